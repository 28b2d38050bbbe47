// Package kmer implements the graph k-mer enumerator: for every offset of
// every section of an archived graph, it materializes every packed 2-bit
// k-mer reachable by walking forward through the graph's links, expanding
// IUPAC ambiguity and branching paths as it goes.
package kmer

import (
	"github.com/grailbio/graphalign/errkind"
	"github.com/grailbio/graphalign/gref"
)

const component = "kmer"

// Direction selects which gids the enumerator treats as walk starts.
type Direction int

const (
	// FwOnly starts walks only at forward-strand gids.
	FwOnly Direction = iota
	// FwRv additionally starts walks at reverse-strand gids.
	FwRv
)

// Tuple is one (packed k-mer, starting gid, starting offset) triple.
type Tuple struct {
	Kmer uint64
	Gid  uint32
	Pos  uint32
}

// SentinelKmer/SentinelGid mark the tuple that terminates enumeration.
const (
	SentinelKmer = ^uint64(0)
	SentinelGid  = ^uint32(0)
)

// Sentinel is yielded exactly once, after every real tuple.
var Sentinel = Tuple{Kmer: SentinelKmer, Gid: SentinelGid, Pos: 0}

// Enumerator lazily walks an archived graph, buffering the tuples for one
// starting gid at a time (rather than the teacher's original design-note
// frame-stack driving the whole graph, which this buffers section by
// section instead — see DESIGN.md).
type Enumerator struct {
	g         *gref.Graph
	k         uint32
	step      uint32
	direction Direction

	cursor   uint32
	bound    uint32
	sentinel uint32
	pending  []Tuple
	emitted  bool
	finished bool
}

// New constructs an Enumerator over g, which must already be frozen. step
// defaults to 1 if 0 is passed.
func New(g *gref.Graph, k uint32, step uint32, direction Direction) (*Enumerator, error) {
	return NewRange(g, k, 0, g.GIDBound(), step, direction)
}

// NewRange constructs an Enumerator that only starts walks at gids in
// [start, end), so a caller can hand disjoint ranges of the same graph to
// concurrent workers: since gref.Graph is read-only once frozen, reads of
// sections outside a worker's range (reached through a successor link
// during extension) remain safe even though that worker never starts a
// walk there itself.
func NewRange(g *gref.Graph, k uint32, start, end, step uint32, direction Direction) (*Enumerator, error) {
	if k < 4 || k > 32 {
		return nil, errkind.New(component, errkind.InvalidArgs, "k=%d out of range [4,32]", k)
	}
	if g.State() != gref.Archived {
		return nil, errkind.New(component, errkind.InvalidArgs, "enumerator requires an archived graph")
	}
	if step == 0 {
		step = 1
	}
	bound := g.GIDBound()
	if end > bound {
		end = bound
	}
	return &Enumerator{
		g: g, k: k, step: step, direction: direction,
		cursor: start, bound: end, sentinel: g.SentinelGID(),
	}, nil
}

// Next returns the next tuple and true, or the zero Tuple and false once the
// sentinel has already been returned.
func (e *Enumerator) Next() (Tuple, bool) {
	for len(e.pending) == 0 {
		if e.finished {
			if !e.emitted {
				e.emitted = true
				return Sentinel, true
			}
			return Tuple{}, false
		}
		if e.cursor >= e.bound {
			e.finished = true
			continue
		}
		g := e.cursor
		e.cursor += e.step
		if g == e.sentinel {
			continue
		}
		if e.direction == FwOnly && g&1 == 1 {
			continue
		}
		e.pending = e.scanSection(g)
	}
	t := e.pending[0]
	e.pending = e.pending[1:]
	return t, true
}

// scanSection computes the tuples for every start offset of the section
// addressed by startGid.
func (e *Enumerator) scanSection(startGid uint32) []Tuple {
	view := e.g.View(startGid)
	n := view.Len()
	var out []Tuple
	for pos := uint32(0); pos < n; pos++ {
		for _, c := range e.gatherWindow(startGid, pos, e.k, 0) {
			out = append(out, Tuple{Kmer: c, Gid: startGid, Pos: pos})
		}
	}
	return out
}

// gatherWindow returns the deduplicated set of packed `need`-base windows
// (bases packed low-to-high, i.e. the first base gathered sits at bits 0-1)
// reachable starting at base `pos` of gidVal. It expands IUPAC ambiguity at
// each base and, when the section runs out of bases before the window
// fills, recurses into every successor link. A base whose code set is empty
// (N) kills the path it occurs on, matching "no k-mer spans an N". depth
// bounds recursion so that cycles in the link graph (or zero-length
// sections) cannot loop forever: since each call needs no more bases than
// its parent and k is capped at 32, depth can never legitimately exceed k.
func (e *Enumerator) gatherWindow(gidVal, pos, need, depth uint32) []uint64 {
	if need == 0 {
		return []uint64{0}
	}
	if depth > e.k+1 {
		return nil
	}
	view := e.g.View(gidVal)
	length := view.Len()
	var avail uint32
	if pos < length {
		avail = length - pos
	}
	take := need
	if avail < take {
		take = avail
	}

	combos := []uint64{0}
	for i := uint32(0); i < take; i++ {
		bits := iupacBits(view.Base(pos + i))
		if len(bits) == 0 {
			return nil
		}
		combos = expand(combos, bits, i)
	}
	if take == need {
		return combos
	}

	remain := need - take
	tailSet := map[uint64]struct{}{}
	for _, succ := range e.g.Links(gidVal) {
		for _, tail := range e.gatherWindow(succ, 0, remain, depth+1) {
			tailSet[tail] = struct{}{}
		}
	}
	if len(tailSet) == 0 {
		return nil
	}
	shift := 2 * take
	result := make(map[uint64]struct{}, len(combos)*len(tailSet))
	for _, prefix := range combos {
		for tail := range tailSet {
			result[prefix|(tail<<shift)] = struct{}{}
		}
	}
	out := make([]uint64, 0, len(result))
	for v := range result {
		out = append(out, v)
	}
	return out
}

// iupacBits returns the 2-bit codes {0:A,1:C,2:G,3:T} a 4-bit IUPAC code
// represents; the empty slice means N (no concrete base).
func iupacBits(code byte) []byte {
	var out []byte
	if code&1 != 0 {
		out = append(out, 0)
	}
	if code&2 != 0 {
		out = append(out, 1)
	}
	if code&4 != 0 {
		out = append(out, 2)
	}
	if code&8 != 0 {
		out = append(out, 3)
	}
	return out
}

// expand cross-produces combos with bits at relative base index i, deduping
// as it goes (the effect of "duplicates suppressed when the base repeats").
func expand(combos []uint64, bits []byte, i uint32) []uint64 {
	shift := 2 * i
	seen := make(map[uint64]struct{}, len(combos)*len(bits))
	out := make([]uint64, 0, len(combos)*len(bits))
	for _, c := range combos {
		for _, b := range bits {
			v := c | (uint64(b) << shift)
			if _, ok := seen[v]; !ok {
				seen[v] = struct{}{}
				out = append(out, v)
			}
		}
	}
	return out
}
