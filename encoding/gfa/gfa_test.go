package gfa_test

import (
	"strings"
	"testing"

	"github.com/grailbio/graphalign/encoding/gfa"
	"github.com/grailbio/graphalign/errkind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadParsesSegmentsAndLinks(t *testing.T) {
	const doc = "H\tVN:Z:1.0.0\n" +
		"S\ts0\tACGTACGT\n" +
		"S\ts1\tGGGGCCCC\n" +
		"L\ts0\t+\ts1\t+\t0M\n"

	g, err := gfa.Read(strings.NewReader(doc))
	require.NoError(t, err)
	require.NoError(t, g.Freeze())
	assert.Equal(t, 2, g.SectionCount())
}

func TestReadRejectsLowVersion(t *testing.T) {
	const doc = "H\tVN:Z:0.9.0\nS\ts0\tACGT\n"
	_, err := gfa.Read(strings.NewReader(doc))
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.UnsupportedVersion))
}

func TestReadRejectsMissingHeader(t *testing.T) {
	const doc = "S\ts0\tACGT\n"
	_, err := gfa.Read(strings.NewReader(doc))
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.BadFormat))
}

func TestReadRejectsNonZeroOverlap(t *testing.T) {
	const doc = "H\tVN:Z:1.0.0\n" +
		"S\ts0\tACGT\n" +
		"S\ts1\tGGGG\n" +
		"L\ts0\t+\ts1\t+\t4M\n"
	_, err := gfa.Read(strings.NewReader(doc))
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.UnsupportedFeature))
}

func TestReadSkipsCAndPLines(t *testing.T) {
	const doc = "H\tVN:Z:1.0.0\n" +
		"S\ts0\tACGT\n" +
		"C\tignored\n" +
		"P\tignored\n"
	g, err := gfa.Read(strings.NewReader(doc))
	require.NoError(t, err)
	require.NoError(t, g.Freeze())
	assert.Equal(t, 1, g.SectionCount())
}

func TestReadRejectsUnknownLinkEndpoint(t *testing.T) {
	const doc = "H\tVN:Z:1.0.0\nS\ts0\tACGT\nL\ts0\t+\tsMissing\t+\t0M\n"
	_, err := gfa.Read(strings.NewReader(doc))
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.BadFormat))
}
