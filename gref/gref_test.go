package gref_test

import (
	"testing"

	"github.com/grailbio/graphalign/gref"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildLinear(t *testing.T) (*gref.Graph, uint32) {
	g := gref.NewCopyGraph()
	id, err := g.AddSection("ref1", []byte("GGCTGCCTCCGAGCGTGTGGGCGAGGACAACCGCCCCACAGTCAAGCTCGAATGGGTGCTATTGCGTAGCTAGGACCGGCACT"), false)
	require.NoError(t, err)
	require.NoError(t, g.Freeze())
	return g, id
}

func TestRevGidInvolution(t *testing.T) {
	g, id := buildLinear(t)
	fw := gref.RevGid(gref.RevGid(0))
	assert.EqualValues(t, 0, fw)
	fwGid := id * 2
	revGid := gref.RevGid(fwGid)
	assert.Equal(t, fwGid, gref.RevGid(revGid))
	assert.Equal(t, g.Len(fwGid), g.Len(revGid))
}

func TestReverseComplementView(t *testing.T) {
	g, id := buildLinear(t)
	fwGid := id * 2
	revGid := gref.RevGid(fwGid)
	fwView := g.View(fwGid)
	revView := g.View(revGid)
	require.Equal(t, fwView.Len(), revView.Len())
	// complement(complement(x)) == x, and base i of the reverse view is the
	// complement of base (len-1-i) of the forward view.
	for i := uint32(0); i < fwView.Len(); i++ {
		want := complement(fwView.Base(fwView.Len() - 1 - i))
		assert.Equal(t, want, revView.Base(i))
	}
}

func complement(code byte) byte {
	switch code {
	case 1:
		return 8
	case 8:
		return 1
	case 2:
		return 4
	case 4:
		return 2
	default:
		return code
	}
}

func TestFreezeMeltIdentity(t *testing.T) {
	g := gref.NewCopyGraph()
	id0, err := g.AddSection("s0", []byte("GGRA"), false)
	require.NoError(t, err)
	id1, err := g.AddSection("s1", []byte("MGGG"), false)
	require.NoError(t, err)
	require.NoError(t, g.AddLink(id0, gref.Forward, id1, gref.Forward))
	require.NoError(t, g.Freeze())

	beforeLen0 := g.Len(id0 * 2)
	beforeLinks := append([]uint32(nil), g.Links(id0*2)...)

	require.NoError(t, g.Melt())
	assert.Equal(t, gref.Pool, g.State())

	// Re-observable POOL state: names still resolve, AddLink/AddSection work.
	gotID0, ok := g.NameID("s0")
	require.True(t, ok)
	assert.Equal(t, id0, gotID0)

	require.NoError(t, g.Freeze())
	assert.Equal(t, beforeLen0, g.Len(id0*2))
	assert.Equal(t, beforeLinks, g.Links(id0*2))
}

func TestNoCopyGraphRejectsASCII(t *testing.T) {
	g := gref.NewNoCopyGraph()
	_, err := g.AddSection("s0", []byte("ACGT"), false)
	assert.Error(t, err)
}

func TestSentinelGIDHasZeroLength(t *testing.T) {
	g, _ := buildLinear(t)
	assert.EqualValues(t, 0, g.Len(g.SentinelGID()))
	assert.Empty(t, g.Links(g.SentinelGID()))
}

func TestStatsCountsSectionsLinksAndBases(t *testing.T) {
	g := gref.NewCopyGraph()
	id0, err := g.AddSection("s0", []byte("ACGTACGT"), false)
	require.NoError(t, err)
	id1, err := g.AddSection("s1", []byte("GGCCTT"), false)
	require.NoError(t, err)
	require.NoError(t, g.AddLink(id0, gref.Forward, id1, gref.Forward))
	require.NoError(t, g.Freeze())

	stats := g.Stats()
	assert.Equal(t, 2, stats.Sections)
	assert.EqualValues(t, 14, stats.Bases)
	assert.Greater(t, stats.Links, 0)
}
