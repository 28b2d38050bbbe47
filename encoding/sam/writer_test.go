package sam_test

import (
	"bytes"
	"strings"
	"testing"

	gsam "github.com/grailbio/graphalign/encoding/sam"
	"github.com/grailbio/graphalign/gref"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildGraph(t *testing.T) *gref.Graph {
	t.Helper()
	g := gref.NewCopyGraph()
	_, err := g.AddSection("chr1", []byte("ACGTACGTACGT"), false)
	require.NoError(t, err)
	require.NoError(t, g.Freeze())
	return g
}

func TestWriterEmitsHeaderAndRecord(t *testing.T) {
	g := buildGraph(t)
	refs, err := gsam.BuildReferences(g)
	require.NoError(t, err)
	require.Len(t, refs, 1)

	var buf bytes.Buffer
	w, err := gsam.NewWriter(&buf, refs)
	require.NoError(t, err)
	require.NoError(t, w.Write(gsam.Alignment{
		QueryName: "q0", RefName: "chr1", RefPos: 0, Cigar: "12M", QuerySeq: []byte("ACGTACGTACGT"), MapQ: 60,
	}))
	require.NoError(t, w.Flush())

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "@HD\tVN:1.0\tSO:unsorted\n"))
	assert.Contains(t, out, "@SQ\tSN:chr1\tLN:12\n")
	assert.Contains(t, out, "@RG\tID:1\n")
	assert.Contains(t, out, "q0\t0\tchr1\t1\t60\t12M\t*\t0\t0\tACGTACGTACGT\t*")
}

func TestWriterSetsReverseFlag(t *testing.T) {
	g := buildGraph(t)
	refs, err := gsam.BuildReferences(g)
	require.NoError(t, err)
	var buf bytes.Buffer
	w, err := gsam.NewWriter(&buf, refs)
	require.NoError(t, err)
	require.NoError(t, w.Write(gsam.Alignment{QueryName: "q0", RefName: "chr1", ReverseFlag: true, Cigar: "4M"}))
	require.NoError(t, w.Flush())
	assert.Contains(t, buf.String(), "q0\t16\tchr1\t1\t0\t4M")
}

func TestBuildCigarSplicesClips(t *testing.T) {
	assert.Equal(t, "3H10M2H", gsam.BuildCigar("10M", 3, 2, gsam.HardClip))
	assert.Equal(t, "10M", gsam.BuildCigar("10M", 0, 0, gsam.SoftClip))
}
