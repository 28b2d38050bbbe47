package seedext_test

import (
	"testing"

	"github.com/grailbio/graphalign/dpband"
	"github.com/grailbio/graphalign/gref"
	"github.com/grailbio/graphalign/kmerindex"
	"github.com/grailbio/graphalign/seedext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDPConfig() *dpband.Config {
	var sub [4][4]int32
	for i := range sub {
		for j := range sub {
			if i == j {
				sub[i][j] = 2
			} else {
				sub[i][j] = -1
			}
		}
	}
	return dpband.NewConfig(sub, 5, 2, 20, 8, 4)
}

func testParams() seedext.Params {
	return seedext.Params{
		KmerCntThresh:      100,
		OverlapHalfWidth:   32,
		OverlapDepthThresh: 4,
		ScoreThresh:        0,
	}
}

func singleSectionGraph(t *testing.T, seq string) *gref.Graph {
	t.Helper()
	g := gref.NewCopyGraph()
	_, err := g.AddSection("s0", []byte(seq), false)
	require.NoError(t, err)
	require.NoError(t, g.Freeze())
	return g
}

func TestAlignQueryFindsExactMatch(t *testing.T) {
	const seq = "ACGTACGGTTACGTACCGGTTAACCGGTTAACGT"
	ref := singleSectionGraph(t, seq)
	query := singleSectionGraph(t, seq)

	idx, err := kmerindex.Build(ref, 8, nil)
	require.NoError(t, err)

	ctx := seedext.NewContext(testDPConfig(), testParams())
	results, err := ctx.AlignQuery(ref, idx, query)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	best := results[0]
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].Score, results[i-1].Score, "results must be sorted by score descending")
	}
	assert.Greater(t, best.Score, int32(0))

	stats := ctx.Stats()
	assert.Greater(t, stats.SeedsTotal, uint64(0))
	assert.Greater(t, stats.SeedsExtended, uint64(0))
}

func TestAlignQueryRejectsUnindexedReference(t *testing.T) {
	ref := singleSectionGraph(t, "ACGTACGTACGT")
	query := singleSectionGraph(t, "ACGTACGTACGT")
	idx, err := kmerindex.Build(ref, 4, nil)
	require.NoError(t, err)
	ref.ClearIndexed()

	ctx := seedext.NewContext(testDPConfig(), testParams())
	_, err = ctx.AlignQuery(ref, idx, query)
	assert.Error(t, err)
}

func TestAlignQueryDedupesAdjacentHits(t *testing.T) {
	const seq = "ACGTACGGTTACGTACCGGTTAACCGGTTAACGT"
	ref := singleSectionGraph(t, seq)
	query := singleSectionGraph(t, seq)
	idx, err := kmerindex.Build(ref, 6, nil)
	require.NoError(t, err)

	ctx := seedext.NewContext(testDPConfig(), testParams())
	results, err := ctx.AlignQuery(ref, idx, query)
	require.NoError(t, err)

	seen := map[[2]uint32]bool{}
	for _, r := range results {
		key := [2]uint32{r.AID, r.BID}
		assert.False(t, seen[key], "dedup should remove repeated (aid,bid) pairs")
		seen[key] = true
	}
}

func TestAlignQueryIsReusableAcrossCalls(t *testing.T) {
	const seq = "ACGTACGGTTACGTACCGGTTAACCGGTTAACGT"
	ref := singleSectionGraph(t, seq)
	query := singleSectionGraph(t, seq)
	idx, err := kmerindex.Build(ref, 8, nil)
	require.NoError(t, err)

	ctx := seedext.NewContext(testDPConfig(), testParams())
	first, err := ctx.AlignQuery(ref, idx, query)
	require.NoError(t, err)
	second, err := ctx.AlignQuery(ref, idx, query)
	require.NoError(t, err)

	assert.Equal(t, len(first), len(second), "a reused Context must reset its overlap tree between queries")
}

// linkedTwoSectionGraph builds a two-section graph s0->s1 (name0->name1,
// both forward strand), for exercising extension across a section boundary.
func linkedTwoSectionGraph(t *testing.T, seq0, seq1 string) *gref.Graph {
	t.Helper()
	g := gref.NewCopyGraph()
	id0, err := g.AddSection("s0", []byte(seq0), false)
	require.NoError(t, err)
	id1, err := g.AddSection("s1", []byte(seq1), false)
	require.NoError(t, err)
	require.NoError(t, g.AddLink(id0, gref.Forward, id1, gref.Forward))
	require.NoError(t, g.Freeze())
	return g
}

// TestAlignQueryContinuesUnexhaustedSideWithinItsSection builds a reference
// with two linked sections and a query with two linked sections, where the
// query's first section is much shorter than the reference's first section.
// A single fill call exhausts the query side (B) long before it exhausts the
// reference side (A): the reference side must keep consuming the unconsumed
// remainder of its own first section before crossing into the second one,
// not jump there immediately just because the query side also needed fresh
// bytes. An implementation that always requests a new section for both
// sides compares the query's continuation against the wrong reference
// section and never recovers the true alignment's score.
func TestAlignQueryContinuesUnexhaustedSideWithinItsSection(t *testing.T) {
	s0 := "TAGGCGTCGATGCCGATCCCACGGATGATAACCGATACTC"
	s1 := "GACATCCGTCACGACCGGCT"
	ref := linkedTwoSectionGraph(t, s0, s1)

	q0 := s0[:15]
	q1 := s0[23:] + s1
	query := linkedTwoSectionGraph(t, q0, q1)

	idx, err := kmerindex.Build(ref, 8, nil)
	require.NoError(t, err)

	params := testParams()
	params.ScoreThresh = 50
	ctx := seedext.NewContext(testDPConfig(), params)
	results, err := ctx.AlignQuery(ref, idx, query)
	require.NoError(t, err)

	require.NotEmpty(t, results, "the continuation across s0's unconsumed tail must score well above threshold")
	assert.Greater(t, results[0].Score, int32(50))
}

func TestHighRepetitiveThresholdSkipsExtension(t *testing.T) {
	const seq = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	ref := singleSectionGraph(t, seq)
	query := singleSectionGraph(t, "AAAAAAAA")
	idx, err := kmerindex.Build(ref, 4, nil)
	require.NoError(t, err)

	params := testParams()
	params.KmerCntThresh = 1
	ctx := seedext.NewContext(testDPConfig(), params)
	results, err := ctx.AlignQuery(ref, idx, query)
	require.NoError(t, err)
	assert.Empty(t, results)

	stats := ctx.Stats()
	assert.Greater(t, stats.SeedsRepetitive, uint64(0))
	assert.Equal(t, uint64(0), stats.SeedsExtended)
}
