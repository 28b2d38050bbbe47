// Package kmerindex builds and queries the reference k-mer index: every
// k-mer emitted by enumerating an archived graph once, sorted by packed
// k-mer value, and addressed through a dense prefix array so a lookup is a
// single masked-index into a slice.
package kmerindex

import (
	"github.com/grailbio/graphalign/errkind"
	"github.com/grailbio/graphalign/gref"
	"github.com/grailbio/graphalign/kmer"
)

const component = "kmerindex"

// maxBuckets bounds the 4^k+1 prefix array so a mistaken large k fails fast
// with OutOfMemory instead of trying to allocate an unrepresentable slice.
const maxBuckets = 1 << 30

// Entry is one (gid, pos) occurrence of a k-mer in the indexed graph.
type Entry struct {
	Gid uint32
	Pos uint32
}

// Index maps every k-mer that occurs in an archived graph to the sorted set
// of (gid, pos) pairs where it occurs.
type Index struct {
	k       uint32
	mask    uint64
	prefix  []uint32 // len 4^k+1; bucket i spans entries[prefix[i]:prefix[i+1]]
	entries []Entry
}

// Record pairs a packed k-mer with its occurrence, the unit a RadixSorter
// reorders.
type Record struct {
	Kmer uint64
	E    Entry
}

// RadixSorter sorts records by their packed k-mer key, ascending, stably
// enough that ties are broken consistently (lookup does not depend on tie
// order, but reproducible builds do). It stands in for the out-of-scope
// generic radix sort over fixed-width records (spec §6); a test may supply
// a trivial sort.Slice-based stub.
type RadixSorter interface {
	Sort(records []Record)
}

// K returns the configured k-mer length.
func (idx *Index) K() uint32 { return idx.k }

// Build enumerates g (which must be archived) with direction FwRv and
// step 1, sorts the resulting tuples by packed k-mer with sorter, and
// assembles the dense prefix array. On success it marks g indexed.
func Build(g *gref.Graph, k uint32, sorter RadixSorter) (*Index, error) {
	if sorter == nil {
		sorter = LSDRadixSorter{}
	}
	if 2*k >= 64 {
		return nil, errkind.New(component, errkind.OutOfMemory,
			"k=%d requires 4^%d buckets, exceeds limit %d", k, k, maxBuckets-1)
	}
	buckets := uint64(1) << (2 * k)
	if buckets > maxBuckets-1 {
		return nil, errkind.New(component, errkind.OutOfMemory,
			"k=%d requires %d buckets, exceeds limit %d", k, buckets, maxBuckets-1)
	}

	e, err := kmer.New(g, k, 1, kmer.FwRv)
	if err != nil {
		return nil, errkind.Wrap(component, errkind.InvalidArgs, err, "building enumerator")
	}

	var records []Record
	for {
		tup, ok := e.Next()
		if !ok {
			break
		}
		if tup == kmer.Sentinel {
			continue
		}
		records = append(records, Record{Kmer: tup.Kmer, E: Entry{Gid: tup.Gid, Pos: tup.Pos}})
	}

	sorter.Sort(records)

	prefix := make([]uint32, buckets+1)
	entries := make([]Entry, len(records))
	for i, r := range records {
		entries[i] = r.E
		prefix[r.Kmer+1]++
	}
	for i := uint64(1); i <= buckets; i++ {
		prefix[i] += prefix[i-1]
	}

	idx := &Index{k: k, mask: buckets - 1, prefix: prefix, entries: entries}
	g.MarkIndexed()
	return idx, nil
}

// Lookup returns the occurrences of kmerVal, masked to this index's k before
// use so a caller need not pre-mask.
func (idx *Index) Lookup(kmerVal uint64) []Entry {
	b := kmerVal & idx.mask
	return idx.entries[idx.prefix[b]:idx.prefix[b+1]]
}

// BucketLen returns len(Lookup(kmerVal)) without slicing, for threshold
// checks that only need a count.
func (idx *Index) BucketLen(kmerVal uint64) int {
	b := kmerVal & idx.mask
	return int(idx.prefix[b+1] - idx.prefix[b])
}
