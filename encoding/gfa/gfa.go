// Package gfa reads the GFA-subset sequence graph format into a gref.Graph:
// a required version header, segment (S) lines, and zero-overlap link (L)
// lines. No teacher package parses GFA; this one borrows encoding/fasta's
// line-oriented bufio.Scanner style and the zero-overlap link validation
// documented for the original gref.c reader.
package gfa

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/graphalign/errkind"
	"github.com/grailbio/graphalign/gref"
)

const component = "gfa"

// MinVersion is the lowest GFA header version this reader accepts.
const MinVersion = "1.0.0"

// Read parses r as a GFA-subset stream into a new pool-state graph built in
// copy mode. C and P lines are skipped. The returned graph is not frozen;
// call Freeze once all inputs have been merged into it.
func Read(r io.Reader) (*gref.Graph, error) {
	g := gref.NewCopyGraph()
	if err := ReadInto(r, g); err != nil {
		return nil, err
	}
	return g, nil
}

// ReadInto parses r into an existing, unfrozen graph, so multiple GFA
// streams can be merged into one graph before Freeze.
func ReadInto(r io.Reader, g *gref.Graph) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)

	sawHeader := false
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		switch fields[0] {
		case "H":
			version, err := headerVersion(fields)
			if err != nil {
				return errkind.Wrap(component, errkind.BadFormat, err, lineContext(lineNo))
			}
			if !versionAtLeast(version, MinVersion) {
				return errkind.New(component, errkind.UnsupportedVersion,
					"%s: GFA version %s below minimum %s", lineContext(lineNo), version, MinVersion)
			}
			sawHeader = true
		case "S":
			if err := readSegment(g, fields); err != nil {
				return errkind.Wrap(component, errkind.BadFormat, err, lineContext(lineNo))
			}
		case "L":
			if err := readLink(g, fields); err != nil {
				return err
			}
		case "C", "P":
			continue
		default:
			return errkind.New(component, errkind.BadFormat, "%s: unrecognized record type %q", lineContext(lineNo), fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return errkind.Wrap(component, errkind.BadFormat, err, "scanning GFA stream")
	}
	if !sawHeader {
		return errkind.New(component, errkind.BadFormat, "missing required H (header) line")
	}
	return nil
}

func lineContext(n int) string { return "line " + strconv.Itoa(n) }

func headerVersion(fields []string) (string, error) {
	for _, f := range fields[1:] {
		if strings.HasPrefix(f, "VN:Z:") {
			return strings.TrimPrefix(f, "VN:Z:"), nil
		}
	}
	return "", errkind.New(component, errkind.BadFormat, "H line missing VN:Z: field")
}

// versionAtLeast compares dotted major.minor.patch version strings
// numerically, field by field, treating a missing trailing field as 0.
func versionAtLeast(v, min string) bool {
	vp, mp := strings.Split(v, "."), strings.Split(min, ".")
	for i := 0; i < len(mp); i++ {
		var vn, mn int
		if i < len(vp) {
			vn, _ = strconv.Atoi(vp[i])
		}
		mn, _ = strconv.Atoi(mp[i])
		if vn != mn {
			return vn > mn
		}
	}
	return true
}

func readSegment(g *gref.Graph, fields []string) error {
	if len(fields) < 3 {
		return errkind.New(component, errkind.BadFormat, "S line requires name and sequence fields")
	}
	_, err := g.AddSection(fields[1], []byte(fields[2]), false)
	return err
}

func readLink(g *gref.Graph, fields []string) error {
	if len(fields) < 6 {
		return errkind.New(component, errkind.BadFormat, "L line requires src, strand, dst, strand, cigar")
	}
	srcStrand, err := parseStrand(fields[2])
	if err != nil {
		return errkind.Wrap(component, errkind.BadFormat, err, "L line source strand")
	}
	dstStrand, err := parseStrand(fields[4])
	if err != nil {
		return errkind.Wrap(component, errkind.BadFormat, err, "L line destination strand")
	}
	cigar := fields[5]
	if len(cigar) == 0 || cigar[0] != '0' {
		return errkind.New(component, errkind.UnsupportedFeature, "L line overlap CIGAR %q must begin with 0", cigar)
	}
	srcID, ok := g.NameID(fields[1])
	if !ok {
		return errkind.New(component, errkind.BadFormat, "L line references unknown segment %q", fields[1])
	}
	dstID, ok := g.NameID(fields[3])
	if !ok {
		return errkind.New(component, errkind.BadFormat, "L line references unknown segment %q", fields[3])
	}
	return g.AddLink(srcID, srcStrand, dstID, dstStrand)
}

func parseStrand(s string) (gref.Strand, error) {
	switch s {
	case "+":
		return gref.Forward, nil
	case "-":
		return gref.Reverse, nil
	default:
		return 0, errkind.New(component, errkind.BadFormat, "strand must be + or -, got %q", s)
	}
}
