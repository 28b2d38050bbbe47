package dpband

import (
	"strconv"

	"github.com/grailbio/graphalign/errkind"
)

// Result is the alignment produced by Trace: a run of M/I/D moves joining a
// forward and a reverse extension at their shared seed column, plus the
// score at the clipped endpoint.
type Result struct {
	// Path holds one byte per move, 'M' (match or mismatch), 'I'
	// (insertion, consumes a query base only), 'D' (deletion, consumes a
	// reference base only), walked in reference-forward order.
	Path []byte
	// Score is the alignment score at the best-scoring endpoint each tail
	// was clipped to.
	Score int32
}

// Trace joins a forward extension and a reverse extension computed from the
// same seed into one alignment, clipping each tail back to the cell where
// its running Max was achieved (X-drop typically overshoots the true
// optimum by a few bases).
func (ctx *Context) Trace(fwTail, rvTail *FillRecord) (*Result, error) {
	if fwTail == nil || rvTail == nil {
		return nil, errkind.New(component, errkind.InvalidArgs, "Trace requires both tails")
	}
	rv, err := ctx.walkBack(rvTail)
	if err != nil {
		return nil, errkind.Wrap(component, errkind.InvalidArgs, err, "tracing reverse tail")
	}
	fw, err := ctx.walkBack(fwTail)
	if err != nil {
		return nil, errkind.Wrap(component, errkind.InvalidArgs, err, "tracing forward tail")
	}

	// walkBack yields best-to-seed order. The reverse tail's best cell lies
	// furthest left in reference-forward coordinates, so rv already reads
	// left-to-seed; the forward tail's best cell lies furthest right, so fw
	// is reversed to read seed-to-right.
	path := make([]byte, 0, len(rv)+len(fw))
	for _, o := range rv {
		path = append(path, opByte(o))
	}
	for i := len(fw) - 1; i >= 0; i-- {
		path = append(path, opByte(fw[i]))
	}
	return &Result{Path: path, Score: fwTail.Max + rvTail.Max}, nil
}

func opByte(o op) byte {
	switch o {
	case opGapA:
		return 'I'
	case opGapB:
		return 'D'
	default:
		return 'M'
	}
}

// walkBack reconstructs the op sequence from rec's best cell back to the
// seed (row 0 of its earliest block), in best-to-seed order.
func (ctx *Context) walkBack(rec *FillRecord) ([]op, error) {
	var out []op
	blockIdx, row, k := rec.bestBlock, rec.bestRow, rec.bestK
	for row > 0 {
		if blockIdx < 0 || blockIdx >= len(ctx.blocks) {
			return nil, errkind.New(component, errkind.InvalidArgs, "traceback walked off the block list")
		}
		blk := ctx.blocks[blockIdx]
		width := 2*blk.radius + 1
		if k < -blk.radius || k > blk.radius {
			return nil, errkind.New(component, errkind.InvalidArgs, "traceback diagonal left the band")
		}
		o := ctx.path[blk.pathStart+int(row-1)*int(width)+int(blk.radius+k)]
		if o == opNone {
			return nil, errkind.New(component, errkind.InvalidArgs, "traceback hit an unreached cell")
		}
		out = append(out, o)
		switch o {
		case opDiag:
			row--
		case opGapA:
			k--
		case opGapB:
			row--
			k++
		}
		if row == 0 && blockIdx > 0 {
			// Cross into the previous block: its last row is this block's
			// row-0 boundary.
			blockIdx--
			row = int(ctx.blocks[blockIdx].rows)
		}
	}
	return out, nil
}

// PrintCigar run-length encodes path (as produced by Result.Path) into a
// CIGAR string over [offset, offset+length).
func PrintCigar(path []byte, offset, length int) string {
	if length == 0 {
		return ""
	}
	seg := path[offset : offset+length]
	var out []byte
	runLen := 1
	for i := 1; i <= len(seg); i++ {
		if i < len(seg) && seg[i] == seg[i-1] {
			runLen++
			continue
		}
		out = appendRun(out, runLen, seg[i-1])
		runLen = 1
	}
	return string(out)
}

func appendRun(out []byte, n int, op byte) []byte {
	out = append(out, strconv.Itoa(n)...)
	return append(out, op)
}
