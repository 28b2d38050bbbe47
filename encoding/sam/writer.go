// Package sam renders seedext.Result alignments as SAM text, using
// github.com/grailbio/hts/sam's Reference type for the @SQ lines and its
// Reverse flag constant for the record flag, and a manual bufio.Writer text
// formatter grounded on encoding/fastq/writer.go's line-at-a-time style
// (the teacher writes BAM through cgo/bgzf, not SAM text, so no teacher
// package renders the text format itself).
package sam

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/graphalign/errkind"
	"github.com/grailbio/graphalign/gref"
)

const component = "sam"

// Clip selects soft- or hard-clipping for the unaligned portion of a query
// section.
type Clip byte

const (
	SoftClip Clip = 'S'
	HardClip Clip = 'H'
)

// Alignment is the subset of a seedext.Result the writer needs, expressed
// in terms a caller outside seedext can supply directly (name strings
// rather than gids, a pre-rendered CIGAR string rather than a raw path).
type Alignment struct {
	QueryName   string
	RefName     string
	RefPos      int // 0-based, direction-adjusted
	ReverseFlag bool
	Cigar       string
	QuerySeq    []byte
	MapQ        int
}

// BuildReferences returns one *sam.Reference per logical section of ref,
// in gid order, for use as a header's @SQ lines.
func BuildReferences(ref *gref.Graph) ([]*sam.Reference, error) {
	var refs []*sam.Reference
	sentinelName := gref.NameOf(ref.SentinelGID())
	for n := uint32(0); n*2 < ref.GIDBound(); n++ {
		if n == sentinelName {
			continue
		}
		r, err := sam.NewReference(ref.Name(n*2), "", "", int(ref.Len(n*2)), nil, nil)
		if err != nil {
			return nil, errkind.Wrap(component, errkind.InvalidArgs, err, "building @SQ reference")
		}
		refs = append(refs, r)
	}
	return refs, nil
}

// Writer renders the SAM header (`@HD`, one `@SQ` per reference, `@RG
// ID:1`) on construction, then one text record per Write call.
type Writer struct {
	w    *bufio.Writer
	refs []*sam.Reference
	err  error
}

// NewWriter writes the header to w immediately and returns a Writer ready
// to accept alignment records.
func NewWriter(w io.Writer, refs []*sam.Reference) (*Writer, error) {
	out := &Writer{w: bufio.NewWriter(w), refs: refs}
	out.writeln("@HD\tVN:1.0\tSO:unsorted")
	for _, r := range refs {
		out.writeln(fmt.Sprintf("@SQ\tSN:%s\tLN:%d", r.Name(), r.Len()))
	}
	out.writeln("@RG\tID:1")
	if out.err != nil {
		return nil, errkind.Wrap(component, errkind.InvalidArgs, out.err, "writing SAM header")
	}
	return out, nil
}

func (w *Writer) writeln(line string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, line)
	if w.err == nil {
		_, w.err = w.w.Write([]byte{'\n'})
	}
}

// Write renders one Alignment as a SAM record line. Flag bit 0x10 is set
// when ReverseFlag is true, mate fields are the unmapped-mate defaults
// ('*', 0, 0) since this aligner reports single-end results, and quality
// is rendered as '*' since graphalign carries no base quality.
func (w *Writer) Write(a Alignment) error {
	flags := 0
	if a.ReverseFlag {
		flags |= int(sam.Reverse)
	}
	fields := []string{
		a.QueryName,
		strconv.Itoa(flags),
		a.RefName,
		strconv.Itoa(a.RefPos + 1), // SAM positions are 1-based.
		strconv.Itoa(a.MapQ),
		a.Cigar,
		"*", "0", "0",
		string(a.QuerySeq),
		"*",
	}
	w.writeln(strings.Join(fields, "\t"))
	if w.err != nil {
		return errkind.Wrap(component, errkind.InvalidArgs, w.err, "writing SAM record")
	}
	return nil
}

// Flush flushes any buffered output.
func (w *Writer) Flush() error {
	if err := w.w.Flush(); err != nil {
		return errkind.Wrap(component, errkind.InvalidArgs, err, "flushing SAM writer")
	}
	return nil
}

// ClipRun renders the leading/trailing clip CIGAR token for n unaligned
// bases using the configured clip kind, or "" if n is zero.
func ClipRun(n int, clip Clip) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n) + string(clip)
}

// BuildCigar splices leading/trailing clip tokens around an aligned-core
// CIGAR string (as produced by dpband.PrintCigar).
func BuildCigar(core string, leadingClip, trailingClip int, clip Clip) string {
	return ClipRun(leadingClip, clip) + core + ClipRun(trailingClip, clip)
}
