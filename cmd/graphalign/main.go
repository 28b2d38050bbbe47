// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

/*
graphalign aligns a query sequence graph against a reference sequence
graph via k-mer seeding and banded affine-gap extension, reporting results
in SAM or GPA format.
*/

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/graphalign/dpband"
	"github.com/grailbio/graphalign/encoding/fastaq"
	"github.com/grailbio/graphalign/encoding/gfa"
	"github.com/grailbio/graphalign/encoding/gpa"
	gsam "github.com/grailbio/graphalign/encoding/sam"
	"github.com/grailbio/graphalign/gref"
	"github.com/grailbio/graphalign/kmerindex"
	"github.com/grailbio/graphalign/seedext"
)

var (
	k                = flag.Int("k", 16, "K-mer length, 4..32")
	kmerCntThresh    = flag.Int("kmer-cnt-thresh", 100, "Repetitive seed cap")
	overlapThresh    = flag.Int("overlap-thresh", 3, "Minimum suppressing depth")
	overlapHalfWidth = flag.Int("overlap-half-width", 32, "Diagonal window half-width searched by the overlap filter")
	scoreThresh      = flag.Int("score-thresh", 0, "Minimum total score to report")
	xdrop            = flag.Int("xdrop", 100, "X-drop threshold")
	matchScore       = flag.Int("m", 2, "Match score")
	mismatchScore    = flag.Int("x", -4, "Mismatch penalty (applied as a negative score)")
	gapOpen          = flag.Int("gi", 5, "Gap open penalty")
	gapExtend        = flag.Int("ge", 2, "Gap extend penalty")
	radius           = flag.Int("radius", 32, "Band radius")
	margin           = flag.Int("margin", 4, "Margin-section length stored in the DP config (not read during extension)")
	clip             = flag.String("clip", "S", "SAM clip kind for unaligned query bases: S or H")
	format           = flag.String("format", "sam", "Output format: sam or gpa")
	numThreads       = flag.Int("num-threads", 0, "Number of seedext.Context workers, each aligning a disjoint range of query sections; 0 = runtime default")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] <reference> <query>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  <reference>, <query>: .gfa, .fa/.fasta, or .fq/.fastq files\n")
	flag.PrintDefaults()
}

func loadGraph(path string) (*gref.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".gfa":
		return gfa.Read(f)
	case ".fq", ".fastq":
		return fastaq.BuildGraph(f, fastaq.ReadFastq)
	default:
		return fastaq.BuildGraph(f, fastaq.ReadFasta)
	}
}

func buildDPConfig() *dpband.Config {
	var sub [4][4]int32
	mismatch := int32(*mismatchScore)
	if mismatch > 0 {
		mismatch = -mismatch
	}
	for i := range sub {
		for j := range sub {
			if i == j {
				sub[i][j] = int32(*matchScore)
			} else {
				sub[i][j] = mismatch
			}
		}
	}
	return dpband.NewConfig(sub, int32(*gapOpen), int32(*gapExtend), int32(*xdrop), int32(*radius), uint32(*margin))
}

type alignedSection struct {
	name                     string
	refName                  string
	refPos, refLen           int
	refDir                   byte
	queryName                string
	queryPos, queryLen       int
	queryDir                 byte
	cigar                    string
	leadingClip, trailingClip int
}

// renderResult maps one seedext.Result onto the output sections the SAM
// and GPA writers both need, reading names/lengths/strands off the
// reference and query graphs.
func renderResult(ref, query *gref.Graph, r seedext.Result) alignedSection {
	refDir, queryDir := byte('+'), byte('+')
	if gref.StrandOf(r.AID) == gref.Reverse {
		refDir = '-'
	}
	if gref.StrandOf(r.BID) == gref.Reverse {
		queryDir = '-'
	}
	return alignedSection{
		name:      ref.Name(r.AID) + "/" + query.Name(r.BID),
		refName:   ref.Name(r.AID), refPos: int(r.APos), refLen: int(ref.Len(r.AID)), refDir: refDir,
		queryName: query.Name(r.BID), queryPos: int(r.BPos), queryLen: int(query.Len(r.BID)), queryDir: queryDir,
		cigar: r.Cigar,
	}
}

func clipKind() gsam.Clip {
	if strings.EqualFold(*clip, "H") {
		return gsam.HardClip
	}
	return gsam.SoftClip
}

func writeSAM(w *os.File, ref, query *gref.Graph, results []seedext.Result) error {
	refs, err := gsam.BuildReferences(ref)
	if err != nil {
		return err
	}
	sw, err := gsam.NewWriter(w, refs)
	if err != nil {
		return err
	}
	for _, r := range results {
		sec := renderResult(ref, query, r)
		cigar := gsam.BuildCigar(sec.cigar, sec.leadingClip, sec.trailingClip, clipKind())
		if err := sw.Write(gsam.Alignment{
			QueryName: sec.queryName, RefName: sec.refName, RefPos: sec.refPos,
			ReverseFlag: sec.refDir != sec.queryDir, Cigar: cigar, MapQ: 255,
		}); err != nil {
			return err
		}
	}
	return sw.Flush()
}

func gpaDir(b byte) gpa.Dir {
	if b == '-' {
		return gpa.DirRev
	}
	return gpa.DirFwd
}

func writeGPA(w *os.File, ref, query *gref.Graph, results []seedext.Result) error {
	gw, err := gpa.NewWriter(w)
	if err != nil {
		return err
	}
	for _, r := range results {
		sec := renderResult(ref, query, r)
		if err := gw.Write(gpa.Record{
			Name:      sec.name,
			RefName:   sec.refName, RefPos: sec.refPos, RefLen: sec.refLen, RefDir: gpaDir(sec.refDir),
			QueryName: sec.queryName, QueryPos: sec.queryPos, QueryLen: sec.queryLen, QueryDir: gpaDir(sec.queryDir),
			Cigar: sec.cigar, MapQ: 255,
		}); err != nil {
			return err
		}
	}
	return gw.Flush()
}

// chunkBounds splits [0,n) into chunks near-equal contiguous ranges, the
// same scheme kmerindex's radix sort uses to divide work across workers.
func chunkBounds(n, chunks int) []int {
	bounds := make([]int, chunks+1)
	base := n / chunks
	rem := n % chunks
	pos := 0
	for i := 0; i < chunks; i++ {
		sz := base
		if i < rem {
			sz++
		}
		bounds[i] = pos
		pos += sz
	}
	bounds[chunks] = n
	return bounds
}

// alignQueryParallel builds one seedext.Context per worker and runs
// traverse.Each over workers, each walking a disjoint range of the query
// graph's sections. Query gids for section i are 2*i (forward) and 2*i+1
// (reverse), so a contiguous section-index range maps to a contiguous gid
// range covering both strands. Sections never overlap between workers, so
// the per-worker result vectors can be concatenated and re-sorted without a
// further cross-worker dedup pass.
func alignQueryParallel(dpCfg *dpband.Config, params seedext.Params, ref *gref.Graph, idx *kmerindex.Index, query *gref.Graph, workers int) ([]seedext.Result, error) {
	sections := query.SectionCount()
	if workers > sections {
		workers = sections
	}
	if workers < 1 {
		workers = 1
	}
	bounds := chunkBounds(sections, workers)
	ctxs := make([]*seedext.Context, workers)
	perWorker := make([][]seedext.Result, workers)
	err := traverse.Each(workers, func(w int) error {
		ctxs[w] = seedext.NewContext(dpCfg, params)
		startGid, endGid := uint32(bounds[w])*2, uint32(bounds[w+1])*2
		results, err := ctxs[w].AlignQueryRange(ref, idx, query, startGid, endGid)
		if err != nil {
			return err
		}
		perWorker[w] = results
		return nil
	})
	if err != nil {
		return nil, err
	}

	var total int
	for _, r := range perWorker {
		total += len(r)
	}
	merged := make([]seedext.Result, 0, total)
	for _, r := range perWorker {
		merged = append(merged, r...)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	return merged, nil
}

func run() error {
	if *k < 4 || *k > 32 {
		return fmt.Errorf("k must be in [4, 32], got %d", *k)
	}
	if flag.NArg() != 2 {
		usage()
		return fmt.Errorf("exactly two positional arguments required, got %d", flag.NArg())
	}
	refPath, queryPath := flag.Arg(0), flag.Arg(1)

	ref, err := loadGraph(refPath)
	if err != nil {
		return fmt.Errorf("loading reference %s: %w", refPath, err)
	}
	if err := ref.Freeze(); err != nil {
		return fmt.Errorf("freezing reference: %w", err)
	}
	log.Debug.Printf("reference %s: %+v", refPath, ref.Stats())
	idx, err := kmerindex.Build(ref, uint32(*k), nil)
	if err != nil {
		return fmt.Errorf("building k-mer index: %w", err)
	}

	query, err := loadGraph(queryPath)
	if err != nil {
		return fmt.Errorf("loading query %s: %w", queryPath, err)
	}
	if err := query.Freeze(); err != nil {
		return fmt.Errorf("freezing query: %w", err)
	}
	log.Debug.Printf("query %s: %+v", queryPath, query.Stats())

	params := seedext.Params{
		KmerCntThresh:      *kmerCntThresh,
		OverlapHalfWidth:   int64(*overlapHalfWidth),
		OverlapDepthThresh: int32(*overlapThresh),
		ScoreThresh:        int32(*scoreThresh),
	}
	dpCfg := buildDPConfig()

	workers := *numThreads
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	} else {
		runtime.GOMAXPROCS(workers)
	}
	results, err := alignQueryParallel(dpCfg, params, ref, idx, query, workers)
	if err != nil {
		return fmt.Errorf("aligning query: %w", err)
	}

	switch strings.ToLower(*format) {
	case "sam":
		return writeSAM(os.Stdout, ref, query, results)
	case "gpa":
		return writeGPA(os.Stdout, ref, query, results)
	default:
		return fmt.Errorf("unrecognized -format %q, want sam or gpa", *format)
	}
}

func main() {
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()

	if err := run(); err != nil {
		log.Error.Printf("%v", err)
		os.Exit(1)
	}
}
