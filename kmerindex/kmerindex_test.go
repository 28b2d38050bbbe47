package kmerindex_test

import (
	"testing"

	"github.com/grailbio/graphalign/gref"
	"github.com/grailbio/graphalign/kmerindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildGraph(t *testing.T) *gref.Graph {
	t.Helper()
	g := gref.NewCopyGraph()
	_, err := g.AddSection("s0", []byte("ACGTACGTACGT"), false)
	require.NoError(t, err)
	require.NoError(t, g.Freeze())
	return g
}

func TestBuildAndLookupRoundTrip(t *testing.T) {
	g := buildGraph(t)
	idx, err := kmerindex.Build(g, 4, nil)
	require.NoError(t, err)
	assert.True(t, g.Indexed())

	// ACGT packed little-endian: A=0,C=1,G=2,T=3 -> 0b11100100 = 0xE4.
	const acgt = uint64(0)<<0 | uint64(1)<<2 | uint64(2)<<4 | uint64(3)<<6
	hits := idx.Lookup(acgt)
	require.NotEmpty(t, hits)
	for _, h := range hits {
		assert.Equal(t, uint32(0), h.Pos%4, "ACGT repeats should only hit in-frame positions")
	}
}

func TestLookupMissReturnsEmpty(t *testing.T) {
	g := buildGraph(t)
	idx, err := kmerindex.Build(g, 4, nil)
	require.NoError(t, err)
	// A kmer that cannot occur in an all-ACGT-repeat graph: four Gs.
	const gggg = uint64(2) | uint64(2)<<2 | uint64(2)<<4 | uint64(2)<<6
	assert.Empty(t, idx.Lookup(gggg))
}

func TestBuildRejectsOversizedK(t *testing.T) {
	g := buildGraph(t)
	_, err := kmerindex.Build(g, 32, nil)
	assert.Error(t, err)
}

type stubSorter struct{ calls int }

func (s *stubSorter) Sort(records []kmerindex.Record) {
	s.calls++
	// insertion sort, deliberately not the production radix sort, to prove
	// Build works against any RadixSorter.
	for i := 1; i < len(records); i++ {
		v := records[i]
		j := i - 1
		for j >= 0 && records[j].Kmer > v.Kmer {
			records[j+1] = records[j]
			j--
		}
		records[j+1] = v
	}
}

func TestBuildAcceptsCustomSorter(t *testing.T) {
	g := buildGraph(t)
	sorter := &stubSorter{}
	idx, err := kmerindex.Build(g, 4, sorter)
	require.NoError(t, err)
	assert.Equal(t, 1, sorter.calls)
	assert.NotNil(t, idx)
}
