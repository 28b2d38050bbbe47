// Package ivtree implements the augmented interval tree the seed-and-extend
// scheduler uses to suppress repeated extensions through the same region: a
// red-black tree keyed by interval start (lkey), augmented with rkeyMax (the
// maximum interval end anywhere in a node's subtree) so range queries can
// prune whole subtrees instead of visiting every node.
package ivtree

import "github.com/grailbio/graphalign/circular"

// nilIdx marks the absence of a child/parent/free-list link.
const nilIdx = int32(-1)

type color bool

const (
	red   color = false
	black color = true
)

// node is one interval [Lkey, Rkey) plus the scheduler's payload (Depth,
// Score) and the red-black/augmentation bookkeeping. Deleted nodes are
// threaded onto the free list through left, reusing the same field.
type node struct {
	left, right, parent int32
	c                    color
	inUse                bool

	Lkey, Rkey, rkeyMax int64
	Depth               int32
	Score                int32
}

// Tree is an augmented red-black tree over half-open intervals [lkey,rkey).
// Nodes are allocated from a doubling arena; Delete and Flush recycle slots
// through a free list so repeated flush-then-repopulate cycles (one per
// query, in the scheduler's usage) do not churn the allocator.
type Tree struct {
	nodes    []node
	root     int32
	freeHead int32
	size     int
}

// New returns an empty Tree.
func New() *Tree {
	return &Tree{root: nilIdx, freeHead: nilIdx}
}

// Len returns the number of intervals currently in the tree.
func (t *Tree) Len() int { return t.size }

// Flush drops every interval but keeps the arena allocated, exactly the
// "flush, retain the bump arena" contract: the scheduler flushes and
// repopulates the tree once per query.
func (t *Tree) Flush() {
	t.root = nilIdx
	t.size = 0
	t.freeHead = nilIdx
	for i := range t.nodes {
		t.nodes[i].inUse = false
		t.nodes[i].left = t.freeHead
		t.freeHead = int32(i)
	}
}

func (t *Tree) alloc() int32 {
	if t.freeHead != nilIdx {
		idx := t.freeHead
		t.freeHead = t.nodes[idx].left
		t.nodes[idx] = node{}
		t.nodes[idx].inUse = true
		return idx
	}
	if len(t.nodes) == cap(t.nodes) && len(t.nodes) > 0 {
		grown := make([]node, len(t.nodes), circular.NextExp2(len(t.nodes)))
		copy(grown, t.nodes)
		t.nodes = grown
	}
	t.nodes = append(t.nodes, node{inUse: true})
	return int32(len(t.nodes) - 1)
}

func (t *Tree) free(idx int32) {
	t.nodes[idx] = node{inUse: false}
	t.nodes[idx].left = t.freeHead
	t.freeHead = idx
}

// Insert adds interval [lkey,rkey) with payload (depth,score) and returns
// its node index, stable until the node is deleted or the tree is flushed.
func (t *Tree) Insert(lkey, rkey int64, depth int32, score int32) int32 {
	idx := t.alloc()
	n := &t.nodes[idx]
	n.Lkey, n.Rkey, n.rkeyMax, n.Depth, n.Score = lkey, rkey, rkey, depth, score
	n.left, n.right, n.parent = nilIdx, nilIdx, nilIdx
	n.c = red
	t.size++

	if t.root == nilIdx {
		t.root = idx
		n.c = black
		return idx
	}

	cur := t.root
	var parent int32 = nilIdx
	goLeft := false
	for cur != nilIdx {
		parent = cur
		if lkey < t.nodes[cur].Lkey {
			goLeft = true
			cur = t.nodes[cur].left
		} else {
			goLeft = false
			cur = t.nodes[cur].right
		}
	}
	n.parent = parent
	if goLeft {
		t.nodes[parent].left = idx
	} else {
		t.nodes[parent].right = idx
	}
	t.propagateMax(parent)
	t.insertFixup(idx)
	return idx
}

// Get returns the interval and payload stored at idx.
func (t *Tree) Get(idx int32) (lkey, rkey int64, depth int32, score int32) {
	n := &t.nodes[idx]
	return n.Lkey, n.Rkey, n.Depth, n.Score
}

// SetPayload updates the depth/score carried by an existing node, used when
// the scheduler merges an overlapping region instead of inserting a new one.
func (t *Tree) SetPayload(idx int32, depth int32, score int32) {
	t.nodes[idx].Depth, t.nodes[idx].Score = depth, score
}

func (t *Tree) propagateMax(idx int32) {
	for idx != nilIdx {
		n := &t.nodes[idx]
		m := n.Rkey
		if l := n.left; l != nilIdx && t.nodes[l].rkeyMax > m {
			m = t.nodes[l].rkeyMax
		}
		if r := n.right; r != nilIdx && t.nodes[r].rkeyMax > m {
			m = t.nodes[r].rkeyMax
		}
		n.rkeyMax = m
		idx = n.parent
	}
}

func (t *Tree) rotateLeft(x int32) {
	y := t.nodes[x].right
	t.nodes[x].right = t.nodes[y].left
	if t.nodes[y].left != nilIdx {
		t.nodes[t.nodes[y].left].parent = x
	}
	t.nodes[y].parent = t.nodes[x].parent
	if t.nodes[x].parent == nilIdx {
		t.root = y
	} else if x == t.nodes[t.nodes[x].parent].left {
		t.nodes[t.nodes[x].parent].left = y
	} else {
		t.nodes[t.nodes[x].parent].right = y
	}
	t.nodes[y].left = x
	t.nodes[x].parent = y
	t.fixMaxLocal(x)
	t.fixMaxLocal(y)
}

func (t *Tree) rotateRight(x int32) {
	y := t.nodes[x].left
	t.nodes[x].left = t.nodes[y].right
	if t.nodes[y].right != nilIdx {
		t.nodes[t.nodes[y].right].parent = x
	}
	t.nodes[y].parent = t.nodes[x].parent
	if t.nodes[x].parent == nilIdx {
		t.root = y
	} else if x == t.nodes[t.nodes[x].parent].right {
		t.nodes[t.nodes[x].parent].right = y
	} else {
		t.nodes[t.nodes[x].parent].left = y
	}
	t.nodes[y].right = x
	t.nodes[x].parent = y
	t.fixMaxLocal(x)
	t.fixMaxLocal(y)
}

// fixMaxLocal recomputes rkeyMax for idx alone from its two children,
// without walking to the root (rotations need only the two touched nodes
// refreshed bottom-up, starting with the one that moved down).
func (t *Tree) fixMaxLocal(idx int32) {
	n := &t.nodes[idx]
	m := n.Rkey
	if l := n.left; l != nilIdx && t.nodes[l].rkeyMax > m {
		m = t.nodes[l].rkeyMax
	}
	if r := n.right; r != nilIdx && t.nodes[r].rkeyMax > m {
		m = t.nodes[r].rkeyMax
	}
	n.rkeyMax = m
}

func (t *Tree) insertFixup(z int32) {
	for t.nodes[z].parent != nilIdx && t.nodes[t.nodes[z].parent].c == red {
		p := t.nodes[z].parent
		gp := t.nodes[p].parent
		if p == t.nodes[gp].left {
			u := t.nodes[gp].right
			if u != nilIdx && t.nodes[u].c == red {
				t.nodes[p].c = black
				t.nodes[u].c = black
				t.nodes[gp].c = red
				z = gp
				continue
			}
			if z == t.nodes[p].right {
				z = p
				t.rotateLeft(z)
				p = t.nodes[z].parent
				gp = t.nodes[p].parent
			}
			t.nodes[p].c = black
			t.nodes[gp].c = red
			t.rotateRight(gp)
		} else {
			u := t.nodes[gp].left
			if u != nilIdx && t.nodes[u].c == red {
				t.nodes[p].c = black
				t.nodes[u].c = black
				t.nodes[gp].c = red
				z = gp
				continue
			}
			if z == t.nodes[p].left {
				z = p
				t.rotateRight(z)
				p = t.nodes[z].parent
				gp = t.nodes[p].parent
			}
			t.nodes[p].c = black
			t.nodes[gp].c = red
			t.rotateLeft(gp)
		}
	}
	t.nodes[t.root].c = black
}

func (t *Tree) minimum(idx int32) int32 {
	for t.nodes[idx].left != nilIdx {
		idx = t.nodes[idx].left
	}
	return idx
}

func (t *Tree) transplant(u, v int32) {
	up := t.nodes[u].parent
	if up == nilIdx {
		t.root = v
	} else if u == t.nodes[up].left {
		t.nodes[up].left = v
	} else {
		t.nodes[up].right = v
	}
	if v != nilIdx {
		t.nodes[v].parent = up
	}
}

// Delete removes the node at idx (as returned by Insert) from the tree.
func (t *Tree) Delete(idx int32) {
	z := idx
	y := z
	yOrigColor := t.nodes[y].c
	var x, xParent int32

	if t.nodes[z].left == nilIdx {
		x = t.nodes[z].right
		xParent = t.nodes[z].parent
		t.transplant(z, t.nodes[z].right)
	} else if t.nodes[z].right == nilIdx {
		x = t.nodes[z].left
		xParent = t.nodes[z].parent
		t.transplant(z, t.nodes[z].left)
	} else {
		y = t.minimum(t.nodes[z].right)
		yOrigColor = t.nodes[y].c
		x = t.nodes[y].right
		if t.nodes[y].parent == z {
			xParent = y
			if x != nilIdx {
				t.nodes[x].parent = y
			}
		} else {
			xParent = t.nodes[y].parent
			t.transplant(y, t.nodes[y].right)
			t.nodes[y].right = t.nodes[z].right
			t.nodes[t.nodes[y].right].parent = y
		}
		t.transplant(z, y)
		t.nodes[y].left = t.nodes[z].left
		t.nodes[t.nodes[y].left].parent = y
		t.nodes[y].c = t.nodes[z].c
	}
	if xParent != nilIdx {
		t.propagateMax(xParent)
	}
	if yOrigColor == black {
		t.deleteFixup(x, xParent)
	}
	t.size--
	t.free(z)
}

func (t *Tree) sibling(x, xParent int32) int32 {
	if x == t.nodes[xParent].left {
		return t.nodes[xParent].right
	}
	return t.nodes[xParent].left
}

func (t *Tree) deleteFixup(x, xParent int32) {
	for x != t.root && (x == nilIdx || t.nodes[x].c == black) {
		if xParent == nilIdx {
			break
		}
		if x == t.nodes[xParent].left {
			w := t.sibling(x, xParent)
			if w != nilIdx && t.nodes[w].c == red {
				t.nodes[w].c = black
				t.nodes[xParent].c = red
				t.rotateLeft(xParent)
				w = t.nodes[xParent].right
			}
			if w == nilIdx {
				x, xParent = xParent, t.nodes[xParent].parent
				continue
			}
			wl, wr := t.nodes[w].left, t.nodes[w].right
			wlBlack := wl == nilIdx || t.nodes[wl].c == black
			wrBlack := wr == nilIdx || t.nodes[wr].c == black
			if wlBlack && wrBlack {
				t.nodes[w].c = red
				x, xParent = xParent, t.nodes[xParent].parent
				continue
			}
			if wrBlack {
				if wl != nilIdx {
					t.nodes[wl].c = black
				}
				t.nodes[w].c = red
				t.rotateRight(w)
				w = t.nodes[xParent].right
			}
			t.nodes[w].c = t.nodes[xParent].c
			t.nodes[xParent].c = black
			if t.nodes[w].right != nilIdx {
				t.nodes[t.nodes[w].right].c = black
			}
			t.rotateLeft(xParent)
			x = t.root
			xParent = nilIdx
		} else {
			w := t.sibling(x, xParent)
			if w != nilIdx && t.nodes[w].c == red {
				t.nodes[w].c = black
				t.nodes[xParent].c = red
				t.rotateRight(xParent)
				w = t.nodes[xParent].left
			}
			if w == nilIdx {
				x, xParent = xParent, t.nodes[xParent].parent
				continue
			}
			wl, wr := t.nodes[w].left, t.nodes[w].right
			wlBlack := wl == nilIdx || t.nodes[wl].c == black
			wrBlack := wr == nilIdx || t.nodes[wr].c == black
			if wlBlack && wrBlack {
				t.nodes[w].c = red
				x, xParent = xParent, t.nodes[xParent].parent
				continue
			}
			if wlBlack {
				if wr != nilIdx {
					t.nodes[wr].c = black
				}
				t.nodes[w].c = red
				t.rotateLeft(w)
				w = t.nodes[xParent].left
			}
			t.nodes[w].c = t.nodes[xParent].c
			t.nodes[xParent].c = black
			if t.nodes[w].left != nilIdx {
				t.nodes[t.nodes[w].left].c = black
			}
			t.rotateRight(xParent)
			x = t.root
			xParent = nilIdx
		}
	}
	if x != nilIdx {
		t.nodes[x].c = black
	}
}
