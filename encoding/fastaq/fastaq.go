// Package fastaq reads FASTA and FASTQ records into single-segment,
// no-link gref.Graph sections: each record's first whitespace-delimited
// header token becomes the section name, and any remainder is discarded
// (the spec keeps it only as a comment, which the aligner never consumes).
//
// Grounded on the teacher's encoding/fasta (Fasta interface, header-token
// splitting) and encoding/fastq (Scanner's "@"/"+" line validation) shape,
// merged into one reader since both formats feed the same graph builder.
package fastaq

import (
	"bufio"
	"io"
	"strings"

	"github.com/grailbio/graphalign/errkind"
	"github.com/grailbio/graphalign/gref"
)

const component = "fastaq"

// Record is one parsed sequence: Name is the first header token, Comment
// is whatever followed it, Bases is raw IUPAC ASCII.
type Record struct {
	Name    string
	Comment string
	Bases   []byte
}

func splitHeader(line string) (name, comment string) {
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return line, ""
	}
	return line[:i], line[i+1:]
}

// ReadFasta parses r as FASTA and calls fn once per record, in order.
// Sequence lines may wrap across multiple lines per record.
func ReadFasta(r io.Reader, fn func(Record) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)

	var cur *Record
	var seq strings.Builder
	flush := func() error {
		if cur == nil {
			return nil
		}
		cur.Bases = []byte(seq.String())
		err := fn(*cur)
		cur = nil
		seq.Reset()
		return err
	}
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		if line[0] == '>' {
			if err := flush(); err != nil {
				return err
			}
			name, comment := splitHeader(line[1:])
			cur = &Record{Name: name, Comment: comment}
			continue
		}
		if cur == nil {
			return errkind.New(component, errkind.BadFormat, "line %d: sequence data before header", lineNo)
		}
		seq.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return errkind.Wrap(component, errkind.BadFormat, err, "scanning FASTA stream")
	}
	return flush()
}

// ReadFastq parses r as FASTQ (4 lines per record: "@id", sequence, "+...",
// quality) and calls fn once per record. Quality strings are parsed but
// discarded: the aligner has no use for base quality.
func ReadFastq(r io.Reader, fn func(Record) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)

	lineNo := 0
	nextLine := func() (string, bool) {
		if !scanner.Scan() {
			return "", false
		}
		lineNo++
		return scanner.Text(), true
	}
	for {
		idLine, ok := nextLine()
		if !ok {
			break
		}
		if idLine == "" {
			continue
		}
		if idLine[0] != '@' {
			return errkind.New(component, errkind.BadFormat, "line %d: expected '@' record start", lineNo)
		}
		seqLine, ok := nextLine()
		if !ok {
			return errkind.New(component, errkind.BadFormat, "line %d: truncated FASTQ record", lineNo)
		}
		plusLine, ok := nextLine()
		if !ok || len(plusLine) == 0 || plusLine[0] != '+' {
			return errkind.New(component, errkind.BadFormat, "line %d: expected '+' separator", lineNo)
		}
		if _, ok := nextLine(); !ok {
			return errkind.New(component, errkind.BadFormat, "line %d: truncated FASTQ record", lineNo)
		}
		name, comment := splitHeader(idLine[1:])
		if err := fn(Record{Name: name, Comment: comment, Bases: []byte(seqLine)}); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errkind.Wrap(component, errkind.BadFormat, err, "scanning FASTQ stream")
	}
	return nil
}

// BuildGraph reads every record from r using reader (ReadFasta or
// ReadFastq) into a single pool-state graph, one no-link section per
// record, ready for Freeze.
func BuildGraph(r io.Reader, reader func(io.Reader, func(Record) error) error) (*gref.Graph, error) {
	g := gref.NewCopyGraph()
	err := reader(r, func(rec Record) error {
		_, err := g.AddSection(rec.Name, rec.Bases, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}
