// Package gpa writes the graph pairwise alignment (GPA) text format: a
// version header followed by one A-line per path-section. New format, no
// teacher package covers it; grounded on encoding/fastq/writer.go's
// bufio.Writer, one-field-at-a-time line style.
package gpa

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/graphalign/errkind"
)

const component = "gpa"

// Version is the GPA format version this writer emits.
const Version = "0.1"

// Dir renders a path-section's strand as the GPA direction token.
type Dir byte

const (
	DirFwd Dir = '+'
	DirRev Dir = '-'
)

// Record is one A-line: a single path-section of a reported alignment.
type Record struct {
	Name string

	RefName string
	RefPos  int
	RefLen  int
	RefDir  Dir

	QueryName string
	QueryPos  int
	QueryLen  int
	QueryDir  Dir

	Cigar string

	// PrevName/NextName chain multi-section alignments together; "" renders
	// as the GPA "*" placeholder.
	PrevName string
	NextName string

	MapQ int
}

// Writer emits the GPA header on construction, then one A-line per Write
// call.
type Writer struct {
	w   *bufio.Writer
	err error
}

// NewWriter writes the "H\tVN:Z:0.1" header immediately.
func NewWriter(w io.Writer) (*Writer, error) {
	out := &Writer{w: bufio.NewWriter(w)}
	out.writeln("H\tVN:Z:" + Version)
	if out.err != nil {
		return nil, errkind.Wrap(component, errkind.InvalidArgs, out.err, "writing GPA header")
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

func placeholder(name string) string {
	if name == "" {
		return "*"
	}
	return name
}

// Write renders one Record as an A-line.
func (w *Writer) Write(r Record) error {
	fields := []string{
		"A",
		r.Name,
		r.RefName, strconv.Itoa(r.RefPos), strconv.Itoa(r.RefLen), string(r.RefDir),
		r.QueryName, strconv.Itoa(r.QueryPos), strconv.Itoa(r.QueryLen), string(r.QueryDir),
		r.Cigar,
		placeholder(r.PrevName),
		placeholder(r.NextName),
		"MQ:i:" + strconv.Itoa(r.MapQ),
	}
	w.writeln(strings.Join(fields, "\t"))
	if w.err != nil {
		return errkind.Wrap(component, errkind.InvalidArgs, w.err, "writing GPA record")
	}
	return nil
}

// Flush flushes any buffered output.
func (w *Writer) Flush() error {
	if err := w.w.Flush(); err != nil {
		return errkind.Wrap(component, errkind.InvalidArgs, err, "flushing GPA writer")
	}
	return nil
}
