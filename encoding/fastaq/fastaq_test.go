package fastaq_test

import (
	"strings"
	"testing"

	"github.com/grailbio/graphalign/encoding/fastaq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFastaSplitsHeaderAndWrapsSequence(t *testing.T) {
	const doc = ">chr1 a viral sequence\nACGTAC\nGAGGAC\n>chr2\nACGT\n"
	var got []fastaq.Record
	err := fastaq.ReadFasta(strings.NewReader(doc), func(r fastaq.Record) error {
		got = append(got, r)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "chr1", got[0].Name)
	assert.Equal(t, "a viral sequence", got[0].Comment)
	assert.Equal(t, "ACGTACGAGGAC", string(got[0].Bases))
	assert.Equal(t, "chr2", got[1].Name)
	assert.Equal(t, "ACGT", string(got[1].Bases))
}

func TestReadFastqParsesFourLineRecords(t *testing.T) {
	const doc = "@read1 comment\nACGTACGT\n+\nIIIIIIII\n@read2\nGGGGCCCC\n+read2\nIIIIIIII\n"
	var got []fastaq.Record
	err := fastaq.ReadFastq(strings.NewReader(doc), func(r fastaq.Record) error {
		got = append(got, r)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "read1", got[0].Name)
	assert.Equal(t, "comment", got[0].Comment)
	assert.Equal(t, "ACGTACGT", string(got[0].Bases))
	assert.Equal(t, "read2", got[1].Name)
}

func TestReadFastqRejectsMissingPlusLine(t *testing.T) {
	const doc = "@read1\nACGT\nACGT\nIIII\n"
	err := fastaq.ReadFastq(strings.NewReader(doc), func(fastaq.Record) error { return nil })
	assert.Error(t, err)
}

func TestBuildGraphFromFasta(t *testing.T) {
	const doc = ">s0\nACGTACGT\n>s1\nGGGGCCCC\n"
	g, err := fastaq.BuildGraph(strings.NewReader(doc), fastaq.ReadFasta)
	require.NoError(t, err)
	require.NoError(t, g.Freeze())
	assert.Equal(t, 2, g.SectionCount())
}
