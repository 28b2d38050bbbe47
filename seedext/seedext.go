// Package seedext implements the seed-and-extend scheduler: for every
// k-mer the query enumerator emits, it looks the k-mer up in the reference
// index, filters repetitive and already-covered seeds, extends the
// survivors bidirectionally through dpband, and deduplicates the resulting
// alignments.
//
// A Context holds all per-worker state (DP stack, interval tree,
// repetitive-k-mer map, result vector) as plain fields, not package-level
// state, so traverse.Each can give each goroutine its own Context and run
// them concurrently, each over its own disjoint range of query sections via
// AlignQueryRange.
package seedext

import (
	"sort"

	"github.com/grailbio/base/log"
	"github.com/grailbio/graphalign/dpband"
	"github.com/grailbio/graphalign/errkind"
	"github.com/grailbio/graphalign/gref"
	"github.com/grailbio/graphalign/ivtree"
	"github.com/grailbio/graphalign/kmer"
	"github.com/grailbio/graphalign/kmerindex"
)

const component = "seedext"

// Params are the scheduler's tunable thresholds.
type Params struct {
	// KmerCntThresh: seeds whose reference hit count exceeds this are
	// treated as repetitive and routed to the repetitive-k-mer map instead
	// of being extended.
	KmerCntThresh int
	// OverlapHalfWidth (W) is the diagonal window width the overlap filter
	// searches.
	OverlapHalfWidth int64
	// OverlapDepthThresh: seeds landing in a region already covered at or
	// above this depth are skipped.
	OverlapDepthThresh int32
	// ScoreThresh: an extension whose combined forward+reverse max score
	// does not exceed this is discarded.
	ScoreThresh int32
	// RepeatEntryCap is the initial per-k-mer repetitive-position vector
	// cap, before the first sort-dedup-and-double cycle.
	RepeatEntryCap int
	// MaxSectionHops bounds how many successor sections one direction of
	// an extension may cross, guarding against graphs with cycles.
	MaxSectionHops int
}

// Stats accumulates scheduler-level counters for one Context's lifetime.
type Stats struct {
	SeedsTotal         uint64
	SeedsRepetitive    uint64
	SeedsOverlapped    uint64
	SeedsExtended      uint64
	AlignmentsReported uint64
}

// Result is one reported local alignment.
type Result struct {
	// AID/BID are the gids of the first path-section on the reference (A)
	// and query (B) sides, the key result dedup groups by.
	AID, BID   uint32
	APos, BPos uint32
	Score      int32
	Cigar      string
}

// repeatEntry is the repetitive-k-mer map's per-k-mer value: deduplicated
// reference and query occurrence vectors, each independently capped.
type repeatEntry struct {
	ref, query   []uint64
	refCap, qCap int
}

func packGidPos(gid, pos uint32) uint64 { return uint64(gid)<<32 | uint64(pos) }

func rot16(x uint32) uint32 { return x<<16 | x>>16 }

// Context is one worker's reusable alignment state.
type Context struct {
	dpCfg  *dpband.Config
	params Params

	dp      *dpband.Context
	tree    *ivtree.Tree
	repeats map[uint64]*repeatEntry
	results []Result
	stats   Stats
}

// NewContext returns a Context ready to align queries, with its own DP
// engine and interval tree.
func NewContext(dpCfg *dpband.Config, params Params) *Context {
	if params.RepeatEntryCap <= 0 {
		params.RepeatEntryCap = 8
	}
	if params.MaxSectionHops <= 0 {
		params.MaxSectionHops = 1024
	}
	return &Context{
		dpCfg:   dpCfg,
		params:  params,
		dp:      dpband.NewContext(dpCfg),
		tree:    ivtree.New(),
		repeats: map[uint64]*repeatEntry{},
	}
}

// Stats returns the running counters.
func (c *Context) Stats() Stats { return c.stats }

// AlignQuery runs the full per-query loop against an archived, indexed
// reference graph for every k-mer the archived query graph emits, and
// returns the deduplicated result vector. It resets the overlap tree and
// repetitive-k-mer map at the start, so a Context may be reused across
// queries without carrying state between them.
func (c *Context) AlignQuery(ref *gref.Graph, idx *kmerindex.Index, query *gref.Graph) ([]Result, error) {
	return c.AlignQueryRange(ref, idx, query, 0, query.GIDBound())
}

// AlignQueryRange is AlignQuery restricted to k-mer walks starting in
// [startGid, endGid), so a caller running one Context per worker can hand
// each a disjoint slice of the query graph's gids (see cmd/graphalign's
// worker fan-out). Because query sections never overlap between workers,
// results from independent AlignQueryRange calls over the same query never
// collide on (AID,BID) and can be concatenated without a second dedup pass.
func (c *Context) AlignQueryRange(ref *gref.Graph, idx *kmerindex.Index, query *gref.Graph, startGid, endGid uint32) ([]Result, error) {
	if !ref.Indexed() {
		return nil, errkind.New(component, errkind.InvalidArgs, "reference graph has no k-mer index")
	}
	c.tree.Flush()
	c.repeats = map[uint64]*repeatEntry{}
	c.results = c.results[:0]

	e, err := kmer.NewRange(query, idx.K(), startGid, endGid, 1, kmer.FwRv)
	if err != nil {
		return nil, errkind.Wrap(component, errkind.InvalidArgs, err, "enumerating query")
	}
	k := idx.K()

	for {
		tup, ok := e.Next()
		if !ok {
			break
		}
		if tup == kmer.Sentinel {
			continue
		}
		c.stats.SeedsTotal++

		hits := idx.Lookup(tup.Kmer)
		if len(hits) > c.params.KmerCntThresh {
			c.recordRepetitive(tup.Kmer, hits, tup)
			c.stats.SeedsRepetitive++
			continue
		}

		for _, h := range hits {
			if err := c.processHit(ref, query, tup, h, k); err != nil {
				return nil, err
			}
		}
	}

	results := c.dedup()
	c.stats.AlignmentsReported += uint64(len(results))
	log.Debug.Printf("seedext: %+v", c.stats)
	return results, nil
}

func (c *Context) recordRepetitive(kmerVal uint64, hits []kmerindex.Entry, tup kmer.Tuple) {
	e := c.repeats[kmerVal]
	if e == nil {
		e = &repeatEntry{refCap: c.params.RepeatEntryCap, qCap: c.params.RepeatEntryCap}
		c.repeats[kmerVal] = e
	}
	e.ref = appendCapped(e.ref, packGidPos(hits[0].Gid, hits[0].Pos), &e.refCap)
	e.query = appendCapped(e.query, packGidPos(tup.Gid, tup.Pos), &e.qCap)
}

// appendCapped appends v to vec; once the vector exceeds *cap it is
// sorted and deduplicated in place and the cap doubles, bounding memory use
// independent of how repetitive a k-mer turns out to be.
func appendCapped(vec []uint64, v uint64, capPtr *int) []uint64 {
	vec = append(vec, v)
	if len(vec) > *capPtr {
		sort.Slice(vec, func(i, j int) bool { return vec[i] < vec[j] })
		out := vec[:0]
		for i, x := range vec {
			if i == 0 || x != vec[i-1] {
				out = append(out, x)
			}
		}
		vec = out
		*capPtr *= 2
	}
	return vec
}

// processHit runs the overlap filter, bidirectional extension, and trace
// for one (query tuple, reference hit) pair, appending a result on success.
func (c *Context) processHit(ref, query *gref.Graph, tup kmer.Tuple, h kmerindex.Entry, k uint32) error {
	mark := c.dp.SaveStack()

	diag := int64(h.Pos) - int64(tup.Pos) - c.params.OverlapHalfWidth
	diag ^= int64(h.Gid ^ rot16(tup.Gid))
	p := int64(h.Pos) + int64(tup.Pos) + int64(k)
	if depth := c.overlapDepth(diag, p); depth >= c.params.OverlapDepthThresh {
		c.stats.SeedsOverlapped++
		return nil
	}

	fw, err := c.extend(ref, query, h.Gid, h.Pos, tup.Gid, tup.Pos)
	if err != nil {
		return err
	}
	rvRefGid, rvRefPos := gref.RevGid(h.Gid), ref.Len(h.Gid)-h.Pos
	rvQueryGid, rvQueryPos := gref.RevGid(tup.Gid), query.Len(tup.Gid)-tup.Pos
	rv, err := c.extend(ref, query, rvRefGid, rvRefPos, rvQueryGid, rvQueryPos)
	if err != nil {
		return err
	}

	if fw.Max+rv.Max <= c.params.ScoreThresh {
		c.dp.FlushStack(mark)
		return nil
	}

	result, err := c.dp.Trace(fw, rv)
	if err != nil {
		return errkind.Wrap(component, errkind.InvalidArgs, err, "tracing extension")
	}
	c.results = append(c.results, Result{
		AID: h.Gid, BID: tup.Gid, APos: h.Pos, BPos: tup.Pos,
		Score: fw.Max + rv.Max,
		Cigar: dpband.PrintCigar(result.Path, 0, len(result.Path)),
	})
	c.stats.SeedsExtended++
	c.updateOverlapTree(diag, p, fw.Max+rv.Max)
	return nil
}

// extend runs fill_root then repeated fill calls. A side only pulls a new
// section's bytes once dpband reports it exhausted (Status's UpdateA/
// UpdateB); otherwise it continues with the unconsumed remainder of the
// window it is already partway through, so a side with a shorter current
// section than the other does not get jumped to an unrelated successor
// section before it actually runs out.
func (c *Context) extend(ref, query *gref.Graph, refGid, refPos, queryGid, queryPos uint32) (*dpband.FillRecord, error) {
	refView := ref.View(refGid)
	queryView := query.View(queryGid)
	a := refView.Slice(refPos, refView.Len())
	b := queryView.Slice(queryPos, queryView.Len())

	rec, err := c.dp.FillRoot(a, b)
	if err != nil {
		return nil, errkind.Wrap(component, errkind.InvalidArgs, err, "fill_root")
	}
	a = a[rec.AConsumed:]
	b = b[rec.BConsumed:]

	curRefGid, curQueryGid := refGid, queryGid
	for hops := 0; rec.Status&dpband.Term == 0 && hops < c.params.MaxSectionHops; hops++ {
		nextA, nextB := a, b
		if rec.Status&dpband.UpdateA != 0 {
			nextA = nextSectionBytes(ref, &curRefGid)
		}
		if rec.Status&dpband.UpdateB != 0 {
			nextB = nextSectionBytes(query, &curQueryGid)
		}
		if len(nextA) == 0 && len(nextB) == 0 {
			break
		}
		rec, err = c.dp.Fill(rec, nextA, nextB)
		if err != nil {
			return nil, errkind.Wrap(component, errkind.InvalidArgs, err, "fill")
		}
		a = nextA[rec.AConsumed:]
		b = nextB[rec.BConsumed:]
	}
	return rec, nil
}

// nextSectionBytes advances gidPtr to the first successor of its current
// value that isn't the graph's sentinel, returning that section's full byte
// window, or nil if there is no live successor (the margin case: the
// caller's band simply stops growing on that side).
func nextSectionBytes(g *gref.Graph, gidPtr *uint32) []byte {
	for _, succ := range g.Links(*gidPtr) {
		if succ == g.SentinelGID() || succ == gref.RevGid(g.SentinelGID()) {
			continue
		}
		*gidPtr = succ
		v := g.View(succ)
		return v.Slice(0, v.Len())
	}
	return nil
}

// overlapDepth returns the minimum depth recorded among regions whose
// diagonal key falls in [q, q+W) and whose interval contains p, or 0 if
// none do.
func (c *Context) overlapDepth(q int64, p int64) int32 {
	var minDepth int32 = -1
	for idx, ok := c.tree.FindKeyRight(q); ok; idx, ok = c.tree.Successor(idx) {
		lkey, rkey, depth, _ := c.tree.Get(idx)
		if lkey >= q+c.params.OverlapHalfWidth {
			break
		}
		if p < lkey || p >= rkey {
			continue
		}
		if minDepth < 0 || depth < minDepth {
			minDepth = depth
		}
	}
	if minDepth < 0 {
		return 0
	}
	return minDepth
}

// updateOverlapTree records one covered diagonal region for a reported
// alignment: regions within 16 bases of an existing one have their depth
// bumped and score maxed, otherwise a fresh depth-1 region is inserted.
func (c *Context) updateOverlapTree(q, p int64, score int32) {
	const mergeRadius = 16
	if idx, ok := c.tree.FindKeyRight(q - mergeRadius); ok {
		lkey, _, depth, prevScore := c.tree.Get(idx)
		if lkey > q+mergeRadius {
			c.tree.Insert(q, p, 1, score)
			return
		}
		newScore := prevScore
		if score > newScore {
			newScore = score
		}
		c.tree.SetPayload(idx, depth+1, newScore)
		return
	}
	c.tree.Insert(q, p, 1, score)
}

// dedup sorts results by score descending, then by aid+bid ascending, and
// removes adjacent duplicates sharing the same (aid,bid), keeping the
// higher-scoring one.
func (c *Context) dedup() []Result {
	results := c.results
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].AID+results[i].BID < results[j].AID+results[j].BID
	})
	out := results[:0]
	for i, r := range results {
		if i > 0 && r.AID == results[i-1].AID && r.BID == results[i-1].BID {
			continue
		}
		out = append(out, r)
	}
	return out
}
