package gpa_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/grailbio/graphalign/encoding/gpa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterEmitsHeaderAndRecord(t *testing.T) {
	var buf bytes.Buffer
	w, err := gpa.NewWriter(&buf)
	require.NoError(t, err)
	require.NoError(t, w.Write(gpa.Record{
		Name: "aln0",
		RefName: "chr1", RefPos: 10, RefLen: 12, RefDir: gpa.DirFwd,
		QueryName: "q0", QueryPos: 0, QueryLen: 12, QueryDir: gpa.DirFwd,
		Cigar: "12M", MapQ: 255,
	}))
	require.NoError(t, w.Flush())

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "H\tVN:Z:0.1\n"))
	assert.Contains(t, out, "A\taln0\tchr1\t10\t12\t+\tq0\t0\t12\t+\t12M\t*\t*\tMQ:i:255")
}

func TestWriterChainsPrevNext(t *testing.T) {
	var buf bytes.Buffer
	w, err := gpa.NewWriter(&buf)
	require.NoError(t, err)
	require.NoError(t, w.Write(gpa.Record{
		Name: "aln1", RefDir: gpa.DirRev, QueryDir: gpa.DirFwd,
		PrevName: "aln0", NextName: "aln2", MapQ: 255,
	}))
	require.NoError(t, w.Flush())
	assert.Contains(t, buf.String(), "\taln0\taln2\t")
}
