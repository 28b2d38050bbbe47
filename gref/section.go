package gref

// complementTable maps a 4-bit IUPAC code to its complement by swapping the
// A<->T and C<->G bit positions (A=1,C=2,G=4,T=8; N=0 is its own complement).
// Computed once instead of hand-transcribed, since it is a pure function of
// the bit layout chosen in §3 of the spec.
var complementTable = func() [16]byte {
	var t [16]byte
	for v := 0; v < 16; v++ {
		a := v & 1
		c := (v >> 1) & 1
		gg := (v >> 2) & 1
		tt := (v >> 3) & 1
		t[v] = byte(tt | gg<<1 | c<<2 | a<<3)
	}
	return t
}()

// asciiToSeq8Table maps a raw ASCII base byte to the 4-bit IUPAC code used
// throughout the arena: 'A'->1, 'C'->2, 'G'->4, 'T'->8, each IUPAC ambiguity
// letter to the OR of the bases it stands for (e.g. 'R'->5), in either case;
// 'N' and anything else -> 0.
var asciiToSeq8Table = func() [256]byte {
	var t [256]byte
	for _, e := range []struct{ c, code byte }{
		{'A', 1}, {'C', 2}, {'G', 4}, {'T', 8},
		{'R', 5}, {'Y', 10}, {'S', 6}, {'W', 9}, {'K', 12}, {'M', 3},
		{'B', 14}, {'D', 13}, {'H', 11}, {'V', 7},
	} {
		t[e.c] = e.code
		t[e.c+'a'-'A'] = e.code
	}
	return t
}()

// asciiToSeq8 encodes src (raw ASCII bases) into dst via asciiToSeq8Table.
// It panics if len(dst) != len(src).
func asciiToSeq8(dst, src []byte) {
	if len(dst) != len(src) {
		panic("asciiToSeq8: len(dst) != len(src)")
	}
	for i, b := range src {
		dst[i] = asciiToSeq8Table[b]
	}
}

// reverseComp4Table complements a 4-bit IUPAC code by swapping the A<->T
// (bit0<->bit3) and C<->G (bit1<->bit2) bit positions, so ambiguity codes
// (which may have more than one bit set) complement correctly along with
// plain bases.
var reverseComp4Table = func() [16]byte {
	var t [16]byte
	for v := 0; v < 16; v++ {
		a := v & 1
		c := (v >> 1) & 1
		g := (v >> 2) & 1
		tt := (v >> 3) & 1
		t[v] = byte(tt | g<<1 | c<<2 | a<<3)
	}
	return t
}()

// reverseComp4 writes the reverse-complement of src (seq8-encoded) to dst.
// It panics if len(dst) != len(src).
func reverseComp4(dst, src []byte) {
	n := len(src)
	if len(dst) != n {
		panic("reverseComp4: len(dst) != len(src)")
	}
	for i, j := 0, n-1; i < n; i, j = i+1, j-1 {
		dst[i] = reverseComp4Table[src[j]]
	}
}

// StrandView is the explicit (base, stride, complement) replacement for the
// reversed-buffer-pointer ("LIM sentinel") trick: it reads a section in
// either orientation without relying on comparing addresses against a magic
// constant.
type StrandView struct {
	fwd        []byte // always the forward-oriented bytes for this section
	precomp    []byte // copy-mode only: precomputed reverse-complement bytes, nil otherwise
	length     uint32
	strand     Strand
}

// View returns a StrandView for gidVal, valid once the graph is frozen.
func (g *Graph) View(gidVal uint32) StrandView {
	sec := &g.sections[NameOf(gidVal)]
	v := StrandView{length: sec.length, strand: StrandOf(gidVal)}
	if g.copyMode {
		v.fwd = g.arena[sec.fwdOffset : sec.fwdOffset+sec.length]
		if v.strand == Reverse {
			v.precomp = g.arena[sec.revOffset : sec.revOffset+sec.length]
		}
	} else {
		v.fwd = sec.noCopyBytes
	}
	return v
}

// Len is the number of bases reachable through this view.
func (v StrandView) Len() uint32 { return v.length }

// Base returns the 4-bit code at position pos, counting from the start of
// this view's reading direction (0 is the first base encountered by a walk
// starting at this gid).
func (v StrandView) Base(pos uint32) byte {
	if v.strand == Forward {
		return v.fwd[pos]
	}
	if v.precomp != nil {
		return v.precomp[pos]
	}
	return complementTable[v.fwd[v.length-1-pos]]
}

// Slice returns the codes for positions [start, end) in reading order. It
// copies when the view must complement on the fly (no-copy reverse strand);
// otherwise it aliases the backing arena.
func (v StrandView) Slice(start, end uint32) []byte {
	if v.strand == Forward {
		return v.fwd[start:end]
	}
	if v.precomp != nil {
		return v.precomp[start:end]
	}
	out := make([]byte, end-start)
	for i := range out {
		out[i] = v.Base(start + uint32(i))
	}
	return out
}
