// Package dpband implements the banded, affine-gap, X-drop seed extension
// engine: the computational kernel invoked by seedext to grow a seed into a
// full local alignment one section at a time.
//
// The engine operates on 4-bit-code byte windows (the same "seq8" encoding
// gref hands out through StrandView.Slice) and never imports gref, so it
// stays usable against any byte source a caller assembles.
package dpband

import "github.com/grailbio/graphalign/errkind"

const component = "dpband"

// Status bits returned in a FillRecord.
const (
	// UpdateA means the A side ran out of bases and Fill needs a new
	// section's bytes for A on the next call.
	UpdateA uint8 = 1 << iota
	// UpdateB is the same signal for the B side.
	UpdateB
	// Term means the X-drop threshold fired; extension is finished.
	Term
)

const negInf = int32(-1 << 30)

// Config is the scoring and termination configuration shared by every
// Context built from it. It is immutable once constructed.
type Config struct {
	// Sub is the substitution matrix for concrete 2-bit bases (A,C,G,T = 0..3).
	Sub [4][4]int32
	// ambig[code][b] is the score of aligning 4-bit IUPAC code `code`
	// against concrete base `b`, derived once from Sub so fill's inner loop
	// never branches on ambiguity.
	ambig [16][4]int32

	GapOpen   int32
	GapExtend int32
	XDrop     int32
	// Radius is the band half-width: column j is live for row i when
	// |j-i| <= Radius.
	Radius int32
	// Margin is a margin-section length carried with the configuration.
	// Neither this package nor seedext reads it: when a side has no
	// successor link, seedext passes an empty window for that side and no
	// margin section is substituted.
	Margin uint32
}

// NewConfig precomputes the ambiguity-expanded scoring table, trading a
// one-time expansion for a branch-free inner loop.
func NewConfig(sub [4][4]int32, gapOpen, gapExtend, xdrop, radius int32, margin uint32) *Config {
	cfg := &Config{Sub: sub, GapOpen: gapOpen, GapExtend: gapExtend, XDrop: xdrop, Radius: radius, Margin: margin}
	for code := 0; code < 16; code++ {
		bits := bases4(byte(code))
		for b := 0; b < 4; b++ {
			if len(bits) == 0 {
				cfg.ambig[code][b] = sub[0][b] // N: never selected as a seed base
				continue
			}
			best := sub[bits[0]][b]
			for _, a := range bits[1:] {
				if v := sub[a][b]; v > best {
					best = v
				}
			}
			cfg.ambig[code][b] = best
		}
	}
	return cfg
}

// score returns the substitution score of 4-bit codes a (reference, may be
// ambiguous) and b (query, may be ambiguous).
func (cfg *Config) score(a, b byte) int32 {
	if idx, ok := baseIndex(b); ok {
		return cfg.ambig[a][idx]
	}
	bBits := bases4(b)
	if len(bBits) == 0 {
		return cfg.ambig[a][0]
	}
	best := cfg.ambig[a][bBits[0]]
	for _, bb := range bBits[1:] {
		if v := cfg.ambig[a][bb]; v > best {
			best = v
		}
	}
	return best
}

// bases4 decodes a 4-bit IUPAC code into its set of concrete 2-bit bases
// (A=0,C=1,G=2,T=3); N (code 0) decodes to the empty set.
func bases4(code byte) []byte {
	var out []byte
	if code&1 != 0 {
		out = append(out, 0)
	}
	if code&2 != 0 {
		out = append(out, 1)
	}
	if code&4 != 0 {
		out = append(out, 2)
	}
	if code&8 != 0 {
		out = append(out, 3)
	}
	return out
}

func baseIndex(code byte) (int, bool) {
	switch code {
	case 1:
		return 0, true
	case 2:
		return 1, true
	case 4:
		return 2, true
	case 8:
		return 3, true
	default:
		return -1, false
	}
}

// op is one traceback move.
type op byte

const (
	opDiag op = iota // consumes one base of A and one of B (match or mismatch)
	opGapA           // consumes one base of B only (an insertion relative to A)
	opGapB           // consumes one base of A only (a deletion relative to A)
	opNone           // cell outside the band or never reached; not part of any path
)

// FillRecord is returned by FillRoot and Fill: the running state of one
// extension direction after processing up to the end of the window it was
// given.
type FillRecord struct {
	// APos/BPos are bases consumed so far on this extension, cumulative
	// across every FillRoot/Fill call that built this record's chain.
	APos, BPos uint32
	// Psum is the antidiagonal progress, APos+BPos. seedext does not read
	// it: its extension follows one successor section per side and keeps no
	// pending-frame queue.
	Psum int64
	// Max is the best score observed so far on this path.
	Max int32
	// Status is a bitmask of UpdateA, UpdateB, Term.
	Status uint8

	// AConsumed/BConsumed are how many bytes of the a/b slices handed to
	// this FillRoot/Fill call were actually read. A side whose Status bit
	// isn't set still has len(window)-Consumed unread bytes in the window
	// it was just given; the caller should resume with that suffix rather
	// than fetching a new section for it.
	AConsumed, BConsumed uint32

	h, f []int32 // last computed row, carried into the next Fill call
	block int    // index into Context.blocks of the most recent call's block

	// bestBlock/bestRow/bestK locate the cell where Max was achieved, for
	// Trace to clip the path back to the alignment's true best-scoring
	// endpoint rather than wherever X-drop happened to fire.
	bestBlock, bestRow int
	bestK              int32
}

// block records where in Context.path one FillRoot/Fill call wrote its
// traceback, plus the band geometry needed to decode it.
type block struct {
	pathStart int
	rows      int32
	radius    int32
	// aLen/bLen are the window lengths this block was filled against, so
	// Trace can recover which (i,k) a path byte belongs to.
	aLen, bLen int32
}

// Mark is a checkpoint returned by SaveStack, passed back to FlushStack to
// discard every block and path byte written since.
type Mark struct {
	path   int
	blocks int
}

// Context is one alignment's working state: the bump-allocated traceback
// buffer and block list. It is not safe for concurrent use; seedext gives
// each worker its own Context.
type Context struct {
	cfg    *Config
	path   []op
	blocks []block
}

// NewContext returns a Context bound to cfg.
func NewContext(cfg *Config) *Context {
	return &Context{cfg: cfg}
}

// SaveStack checkpoints the bump allocator before a speculative extension.
func (ctx *Context) SaveStack() Mark {
	return Mark{path: len(ctx.path), blocks: len(ctx.blocks)}
}

// FlushStack rolls the bump allocator back to mark, discarding everything
// an abandoned extension wrote.
func (ctx *Context) FlushStack(mark Mark) {
	ctx.path = ctx.path[:mark.path]
	ctx.blocks = ctx.blocks[:mark.blocks]
}

// FillRoot seeds the DP at the start of windows a and b (the first base of
// each is the seed position) and fills until one side is exhausted or
// X-drop fires.
func (ctx *Context) FillRoot(a, b []byte) (*FillRecord, error) {
	return ctx.run(nil, a, b)
}

// Fill continues prev with windows a and b. For a side prev.Status flagged
// with UpdateA/UpdateB, the caller must pass that side's next section's
// bytes; for a side not flagged, the caller must pass the unconsumed suffix
// of the window it gave the previous call (prev.AConsumed/BConsumed marks
// where that suffix starts), since the previous call did not read past it.
func (ctx *Context) Fill(prev *FillRecord, a, b []byte) (*FillRecord, error) {
	if prev == nil {
		return nil, errkind.New(component, errkind.InvalidArgs, "Fill requires a previous record; use FillRoot")
	}
	if prev.Status&Term != 0 {
		return nil, errkind.New(component, errkind.InvalidArgs, "Fill called on a terminated record")
	}
	return ctx.run(prev, a, b)
}

// run is the shared banded-DP driver for FillRoot (prev == nil) and Fill. It
// fills row by row (one row per A base) over a band of width 2*Radius+1
// columns, using Gotoh's three-matrix affine-gap recurrence, until a runs
// out, X-drop fires, or the band empties.
func (ctx *Context) run(prev *FillRecord, a, b []byte) (*FillRecord, error) {
	cfg := ctx.cfg
	r := cfg.Radius
	width := 2*r + 1
	na, nb := int32(len(a)), int32(len(b))

	rec := &FillRecord{}
	hPrev := make([]int32, width)
	fPrev := make([]int32, width)
	for i := range hPrev {
		hPrev[i] = negInf
		fPrev[i] = negInf
	}
	if prev == nil {
		for k := int32(0); k <= r && k <= nb; k++ {
			hPrev[r+k] = gapCost(cfg, k)
		}
	} else {
		rec.APos, rec.BPos, rec.Max = prev.APos, prev.BPos, prev.Max
		rec.bestBlock, rec.bestRow, rec.bestK = prev.bestBlock, prev.bestRow, prev.bestK
		copy(hPrev, prev.h)
		copy(fPrev, prev.f)
	}

	blk := block{pathStart: len(ctx.path), radius: r, aLen: na, bLen: nb}
	terminated := false
	var rows int32
	// validRows counts only rows that produced at least one live cell; rows
	// itself is bumped before the empty-band break check and so can run one
	// past the last row that actually advanced hPrev/fPrev and rec.APos.
	var validRows int32

	for i := int32(1); i <= na; i++ {
		hCur := make([]int32, width)
		fCur := make([]int32, width)
		eCur := make([]int32, width)
		for k := range hCur {
			hCur[k], fCur[k], eCur[k] = negInf, negInf, negInf
		}
		rowBest := negInf
		rowBestK := int32(0)
		rowOps := make([]op, width)
		for k := range rowOps {
			rowOps[k] = opNone
		}

		for k := -r; k <= r; k++ {
			j := i + k
			if j < 0 || j > nb {
				continue
			}
			idx := r + k

			// diag: H[i-1][j-1]. In band coordinates k=j-i that cell sits at
			// the SAME k in the previous row, since (j-1)-(i-1) == j-i. No
			// predecessor exists at column 0 (the F recurrence alone carries
			// the pure-deletion boundary forward from H[0][0]=0).
			diag := negInf
			if j >= 1 && hPrev[idx] > negInf {
				diag = hPrev[idx] + cfg.score(a[i-1], b[j-1])
			}

			// e (gap in A, consumes B): H[i][j-1]/E[i][j-1], same row, k-1.
			e := negInf
			if j >= 1 {
				if lk := k - 1; lk >= -r && lk <= r {
					if hCur[r+lk] > negInf {
						e = hCur[r+lk] - cfg.GapOpen
					}
					if v := eCur[r+lk] - cfg.GapExtend; eCur[r+lk] > negInf && v > e {
						e = v
					}
				}
			}

			// f (gap in B, consumes A): H[i-1][j]/F[i-1][j], previous row,
			// k+1 (since j-(i-1) == k+1).
			f := negInf
			if pk := k + 1; pk >= -r && pk <= r {
				if hPrev[r+pk] > negInf {
					f = hPrev[r+pk] - cfg.GapOpen
				}
				if v := fPrev[r+pk] - cfg.GapExtend; fPrev[r+pk] > negInf && v > f {
					f = v
				}
			}

			best, chosen := diag, opDiag
			if e > best {
				best, chosen = e, opGapA
			}
			if f > best {
				best, chosen = f, opGapB
			}
			if best == negInf {
				continue
			}
			hCur[idx], eCur[idx], fCur[idx] = best, e, f
			rowOps[idx] = chosen
			if best > rowBest {
				rowBest, rowBestK = best, k
			}
		}
		ctx.path = append(ctx.path, rowOps...)

		rows++
		if rowBest == negInf {
			break
		}
		if rowBest > rec.Max {
			rec.Max = rowBest
			rec.bestBlock, rec.bestRow, rec.bestK = len(ctx.blocks), int(rows), rowBestK
		}
		hPrev, fPrev = hCur, fCur
		validRows++
		rec.APos++
		// BPos mirrors APos: the band keeps column j within Radius of row i,
		// so row count is already a faithful proxy for antidiagonal
		// progress without tracking the exact column reached. Psum below
		// only grows monotonically with depth; it does not pinpoint the
		// best-scoring column (Trace's bestRow/bestK do that precisely).
		rec.BPos = rec.APos
		if rec.Max-rowBest > cfg.XDrop {
			terminated = true
			break
		}
	}

	blk.rows = rows
	ctx.blocks = append(ctx.blocks, blk)
	rec.block = len(ctx.blocks) - 1
	rec.h, rec.f = hPrev, fPrev
	rec.Psum = int64(rec.APos) + int64(rec.BPos)

	// validRows is both how many A bytes were consumed and, by the same
	// diagonal convention as APos/BPos above, how far along B the filled
	// band's baseline reached: column j's band neighborhood is centered on
	// row i, so the next call's row 1 must line up with column validRows,
	// not with the band's outer edge at validRows+r (cells beyond the
	// baseline were only ever filled as potential insertions, not as
	// confirmed progress). A side is exhausted only once that baseline
	// reaches the end of its own window; the other side keeps its current
	// section's window rather than asking for a new one.
	rec.AConsumed = uint32(validRows)
	rec.BConsumed = uint32(validRows)
	if validRows > nb {
		rec.BConsumed = uint32(nb)
	}

	switch {
	case terminated:
		rec.Status = Term
	default:
		if validRows == na {
			rec.Status |= UpdateA
		}
		if validRows >= nb {
			rec.Status |= UpdateB
		}
	}
	return rec, nil
}

// gapCost is the cost of an n-base gap opened fresh (one open, then n-1
// extends), saturating at 0 for n<=0.
func gapCost(cfg *Config, n int32) int32 {
	if n <= 0 {
		return 0
	}
	return -(cfg.GapOpen + (n-1)*cfg.GapExtend)
}
