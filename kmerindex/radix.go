package kmerindex

import (
	"runtime"

	"github.com/grailbio/base/traverse"
)

// LSDRadixSorter is the default RadixSorter: a least-significant-byte-first
// radix sort over the packed k-mer key, eight passes of eight bits each
// (enough to cover every bit a 32-base k-mer key can set). Each pass's
// histogram is accumulated in parallel over input chunks with
// traverse.Each, in the style of this corpus's other chunked-fan-out passes
// (pileup/snp.Pileup, encoding/converter.Convert); the final scatter writes
// each chunk into disjoint, precomputed output ranges so the chunks can
// run concurrently too.
type LSDRadixSorter struct {
	// Chunks bounds how many goroutines a pass fans out across; 0 selects
	// GOMAXPROCS.
	Chunks int
}

const radixPasses = 8
const radixBits = 8
const radixBuckets = 1 << radixBits

func (s LSDRadixSorter) Sort(records []Record) {
	if len(records) < 2 {
		return
	}
	chunks := s.Chunks
	if chunks <= 0 {
		chunks = runtime.GOMAXPROCS(0)
	}
	if chunks > len(records) {
		chunks = len(records)
	}
	if chunks < 1 {
		chunks = 1
	}

	src := records
	dst := make([]Record, len(records))
	bounds := chunkBounds(len(records), chunks)

	for pass := 0; pass < radixPasses; pass++ {
		shift := uint(pass * radixBits)

		// Per-chunk histograms, computed concurrently.
		hist := make([][radixBuckets]uint32, chunks)
		_ = traverse.Each(chunks, func(c int) error {
			lo, hi := bounds[c], bounds[c+1]
			h := &hist[c]
			for _, r := range src[lo:hi] {
				h[(r.Kmer>>shift)&(radixBuckets-1)]++
			}
			return nil
		})

		// Global bucket offsets, ordered bucket-major then chunk-major so
		// each chunk's contribution to a bucket lands contiguously and in
		// original chunk order (keeping the sort stable across passes).
		var offsets [radixBuckets][]uint32
		var running uint32
		for b := 0; b < radixBuckets; b++ {
			offsets[b] = make([]uint32, chunks)
			for c := 0; c < chunks; c++ {
				offsets[b][c] = running
				running += hist[c][b]
			}
		}

		_ = traverse.Each(chunks, func(c int) error {
			lo, hi := bounds[c], bounds[c+1]
			cursor := make([]uint32, radixBuckets)
			for b := 0; b < radixBuckets; b++ {
				cursor[b] = offsets[b][c]
			}
			for _, r := range src[lo:hi] {
				b := (r.Kmer >> shift) & (radixBuckets - 1)
				dst[cursor[b]] = r
				cursor[b]++
			}
			return nil
		})

		src, dst = dst, src
	}
	if &src[0] != &records[0] {
		copy(records, src)
	}
}

// chunkBounds splits [0,n) into `chunks` near-equal, contiguous ranges.
func chunkBounds(n, chunks int) []int {
	bounds := make([]int, chunks+1)
	base := n / chunks
	rem := n % chunks
	pos := 0
	for i := 0; i < chunks; i++ {
		sz := base
		if i < rem {
			sz++
		}
		bounds[i] = pos
		pos += sz
	}
	bounds[chunks] = n
	return bounds
}
