// Package gref implements the immutable sequence-graph store: sections
// addressed by graph id (gid), directed links between section ends, and the
// forward/reverse-complement views used by the k-mer enumerator and the
// band DP engine.
//
// A Graph moves through two observable lifecycle stages, Pool and Archived
// (the archived-with-index stage, IDX in the design notes, is tracked by the
// caller via MarkIndexed/ClearIndexed rather than by this package, so that
// gref has no dependency on the kmerindex package that builds the index).
package gref

import (
	"github.com/grailbio/graphalign/errkind"
)

const component = "gref"

// Strand is the low bit of a gid: 0 reads a section forward, 1 reads its
// reverse complement.
type Strand uint8

const (
	Forward Strand = 0
	Reverse Strand = 1
)

// State is the graph's lifecycle stage. IDX is not modeled here: it is
// "Archived" plus an externally-tracked Indexed flag (see MarkIndexed).
type State int

const (
	Pool State = iota
	Archived
)

func (s State) String() string {
	if s == Pool {
		return "pool"
	}
	return "archived"
}

// SentinelGID is appended for every graph at Freeze and terminates walks:
// it has length 0, so reaching it ends a walk without decoding data.
// Within a frozen graph, section indices run 0..sectionCount-1 and the
// sentinel is sectionCount (its gids are 2*sectionCount and 2*sectionCount+1).

// section holds one logical DNA string and its two gid-addressable strands.
type section struct {
	name string
	// length in bases.
	length uint32
	// copy-mode offsets into g.arena; unused in no-copy mode.
	fwdOffset uint32
	revOffset uint32
	// no-copy mode: caller-owned 4-bit-encoded bytes, one byte per base.
	noCopyBytes []byte
}

// Graph is an immutable-once-frozen directed sequence graph.
type Graph struct {
	copyMode bool
	frozen   bool
	indexed  bool

	names    map[string]uint32
	sections []section

	// POOL-state mutable adjacency: gid -> successor gids, insertion order.
	adj map[uint32][]uint32

	// ACV-state flattened link table: links[linkIndex[g]:linkIndex[g+1]]
	// are g's successors, sorted by from-gid.
	links     []uint32
	linkIndex []uint32

	// copy-mode sequence arena: forward bytes for every section, followed by
	// a reverse-complement mirror of every section, one 4-bit code per byte
	// (the "seq8" convention), each region flanked by zero-byte margins so
	// boundary scans never need a separate bounds check.
	arena []byte
}

// marginBytes flank each section's bytes in the copy-mode arena.
const marginBytes = 4

// NewCopyGraph returns a Graph that copies every added section's bytes into
// its own arena, and precomputes a reverse-complement mirror at Freeze.
func NewCopyGraph() *Graph {
	return &Graph{copyMode: true, names: map[string]uint32{}, adj: map[uint32][]uint32{}}
}

// NewNoCopyGraph returns a Graph that stores added sections by reference.
// The caller must guarantee the backing slices outlive the Graph, and must
// pass already-4-bit-encoded bytes to AddSection (ASCII input is rejected,
// since no-copy mode has nowhere to write the encoded form).
func NewNoCopyGraph() *Graph {
	return &Graph{copyMode: false, names: map[string]uint32{}, adj: map[uint32][]uint32{}}
}

func gid(nameID uint32, strand Strand) uint32 { return nameID*2 + uint32(strand) }

// RevGid returns the gid of the opposite strand of the same section.
func RevGid(g uint32) uint32 { return g ^ 1 }

// NameOf returns the section index encoded in a gid.
func NameOf(g uint32) uint32 { return g >> 1 }

// StrandOf returns the strand encoded in a gid.
func StrandOf(g uint32) Strand { return Strand(g & 1) }

// State reports the graph's lifecycle stage.
func (g *Graph) State() State {
	if g.frozen {
		return Archived
	}
	return Pool
}

// Indexed reports whether a k-mer index currently exists for this archive.
func (g *Graph) Indexed() bool { return g.indexed }

// MarkIndexed is called by kmerindex.Build on success, completing the
// ACV->IDX transition.
func (g *Graph) MarkIndexed() { g.indexed = true }

// ClearIndexed is called by kmerindex when an index is discarded without a
// full Melt, e.g. to rebuild with a different k.
func (g *Graph) ClearIndexed() { g.indexed = false }

// SectionCount returns the number of logical sections, excluding the
// sentinel (which only exists once the graph is frozen).
func (g *Graph) SectionCount() int {
	n := len(g.sections)
	if g.frozen {
		n--
	}
	return n
}

// Stats is a snapshot of a graph's size, for logging via
// github.com/grailbio/base/log rather than for programmatic use.
type Stats struct {
	Sections int
	Links    int
	Bases    uint64
}

// Stats reports the graph's section count, link count, and total base
// count (forward strand only; the reverse-complement mirror and margin
// bytes are copy-mode storage detail, not logical sequence).
func (g *Graph) Stats() Stats {
	s := Stats{Sections: g.SectionCount()}
	if g.frozen {
		s.Links = len(g.links)
	} else {
		for _, tos := range g.adj {
			s.Links += len(tos)
		}
	}
	for i, sec := range g.sections {
		if g.frozen && i == len(g.sections)-1 {
			break
		}
		s.Bases += uint64(sec.length)
	}
	return s
}

// GIDBound returns the gid bound: every valid gid is < 2*totalSections, including
// the sentinel once frozen.
func (g *Graph) GIDBound() uint32 { return uint32(len(g.sections)) * 2 }

// SentinelGID returns the always-empty section's forward gid. Valid only
// once frozen.
func (g *Graph) SentinelGID() uint32 { return uint32(len(g.sections)-1) * 2 }

// AddSection registers a named sequence. If the graph is in copy mode,
// ascii may be raw IUPAC ASCII text (encoded=false) or already-packed 4-bit
// codes (encoded=true); either way the bytes are copied into the arena. If
// the graph is in no-copy mode, bases must already be encoded and is stored
// by reference.
func (g *Graph) AddSection(name string, bases []byte, encoded bool) (uint32, error) {
	if g.frozen {
		return 0, errkind.New(component, errkind.InvalidArgs, "AddSection after Freeze")
	}
	if _, dup := g.names[name]; dup {
		return 0, errkind.New(component, errkind.BadFormat, "duplicate section name %q", name)
	}
	if !g.copyMode && !encoded {
		return 0, errkind.New(component, errkind.InvalidArgs, "no-copy graph requires pre-encoded bases")
	}
	if len(bases) > (1<<31)-1 {
		return 0, errkind.New(component, errkind.InvalidArgs, "section %q exceeds 2^31 bases", name)
	}
	nameID := uint32(len(g.sections))
	sec := section{name: name, length: uint32(len(bases))}
	if g.copyMode {
		enc := bases
		if !encoded {
			enc = make([]byte, len(bases))
			asciiToSeq8(enc, bases)
		}
		sec.fwdOffset = uint32(len(g.arena)) + marginBytes
		g.arena = append(g.arena, make([]byte, marginBytes)...)
		g.arena = append(g.arena, enc...)
		g.arena = append(g.arena, make([]byte, marginBytes)...)
	} else {
		sec.noCopyBytes = bases
	}
	g.names[name] = nameID
	g.sections = append(g.sections, sec)
	return nameID, nil
}

// AddLink records a directed edge between two (section, strand) endpoints
// and its strand-reversed twin, so reverse traversal is symmetric.
func (g *Graph) AddLink(srcName uint32, srcStrand Strand, dstName uint32, dstStrand Strand) error {
	if g.frozen {
		return errkind.New(component, errkind.InvalidArgs, "AddLink after Freeze")
	}
	if int(srcName) >= len(g.sections) || int(dstName) >= len(g.sections) {
		return errkind.New(component, errkind.InvalidArgs, "AddLink: name id out of range")
	}
	from := gid(srcName, srcStrand)
	to := gid(dstName, dstStrand)
	g.adj[from] = append(g.adj[from], to)
	revFrom := gid(dstName, 1-dstStrand)
	revTo := gid(srcName, 1-srcStrand)
	if revFrom != from || revTo != to {
		g.adj[revFrom] = append(g.adj[revFrom], revTo)
	}
	return nil
}

// Freeze transitions POOL->ACV: appends the sentinel section, sorts and
// indexes the link table, and (in copy mode) builds the reverse-complement
// mirror of the sequence arena. The only failure is calling it on a graph
// that is already frozen, which returns an error and leaves the graph as is.
func (g *Graph) Freeze() error {
	if g.frozen {
		return errkind.New(component, errkind.InvalidArgs, "Freeze: already frozen")
	}
	sentinelID := uint32(len(g.sections))
	g.sections = append(g.sections, section{name: ""})
	g.names[""] = sentinelID

	if g.copyMode {
		for i := range g.sections[:sentinelID] {
			sec := &g.sections[i]
			fwd := g.arena[sec.fwdOffset : sec.fwdOffset+sec.length]
			sec.revOffset = uint32(len(g.arena)) + marginBytes
			g.arena = append(g.arena, make([]byte, marginBytes)...)
			rc := make([]byte, sec.length)
			reverseComp4(rc, fwd)
			g.arena = append(g.arena, rc...)
			g.arena = append(g.arena, make([]byte, marginBytes)...)
		}
	}

	total := uint32(len(g.sections)) * 2
	g.linkIndex = make([]uint32, total+1)
	counts := make([]uint32, total)
	for from, tos := range g.adj {
		counts[from] += uint32(len(tos))
	}
	var running uint32
	for i := uint32(0); i < total; i++ {
		g.linkIndex[i] = running
		running += counts[i]
	}
	g.linkIndex[total] = running
	g.links = make([]uint32, running)
	cursor := append([]uint32(nil), g.linkIndex[:total]...)
	for from := uint32(0); from < total; from++ {
		tos := append([]uint32(nil), g.adj[from]...)
		sortUint32(tos)
		for _, to := range tos {
			g.links[cursor[from]] = to
			cursor[from]++
		}
	}
	g.adj = nil
	g.frozen = true
	return nil
}

// Melt transitions ACV (or IDX) back to POOL: drops any k-mer index,
// re-expands the flat link table into mutable adjacency lists, and removes
// the sentinel section so further AddSection/AddLink calls are legal.
func (g *Graph) Melt() error {
	if !g.frozen {
		return errkind.New(component, errkind.InvalidArgs, "Melt: not frozen")
	}
	g.indexed = false
	g.adj = map[uint32][]uint32{}
	total := uint32(len(g.linkIndex)) - 1
	for from := uint32(0); from < total; from++ {
		lo, hi := g.linkIndex[from], g.linkIndex[from+1]
		if hi > lo {
			g.adj[from] = append([]uint32(nil), g.links[lo:hi]...)
		}
	}
	g.links = nil
	g.linkIndex = nil

	sentinelID := uint32(len(g.sections)) - 1
	delete(g.names, g.sections[sentinelID].name)
	g.sections = g.sections[:sentinelID]
	if g.copyMode {
		// drop the reverse-complement mirror region for every section; the
		// forward arena bytes (and their offsets) are untouched.
		if sentinelID > 0 {
			g.arena = g.arena[:g.sections[0].revOffset-marginBytes]
		}
	}
	g.frozen = false
	return nil
}

// Links returns gid's successor gids. Valid only once frozen.
func (g *Graph) Links(gidVal uint32) []uint32 {
	lo, hi := g.linkIndex[gidVal], g.linkIndex[gidVal+1]
	return g.links[lo:hi]
}

// Name returns the section name addressed by gid (either strand).
func (g *Graph) Name(gidVal uint32) string {
	return g.sections[NameOf(gidVal)].name
}

// NameID returns the section index for a name, and whether it was found.
func (g *Graph) NameID(name string) (uint32, bool) {
	id, ok := g.names[name]
	return id, ok
}

// Len returns the base length of the section addressed by gid.
func (g *Graph) Len(gidVal uint32) uint32 {
	return g.sections[NameOf(gidVal)].length
}

func sortUint32(a []uint32) {
	// insertion sort is fine: successor fan-out per gid is small in practice
	// (graph branching factor), and this runs once at Freeze.
	for i := 1; i < len(a); i++ {
		v := a[i]
		j := i - 1
		for j >= 0 && a[j] > v {
			a[j+1] = a[j]
			j--
		}
		a[j+1] = v
	}
}
