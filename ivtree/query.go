package ivtree

// FindKeyRight returns the leftmost node with Lkey >= k (ties broken toward
// the leftmost such node), and whether one was found. The scheduler walks
// successors from this node rather than calling Intersect, bounding its work
// to the overlap half-width window instead of the whole tree.
func (t *Tree) FindKeyRight(k int64) (int32, bool) {
	cur := t.root
	best := nilIdx
	for cur != nilIdx {
		if t.nodes[cur].Lkey >= k {
			best = cur
			cur = t.nodes[cur].left
		} else {
			cur = t.nodes[cur].right
		}
	}
	if best == nilIdx {
		return nilIdx, false
	}
	return best, true
}

// Successor returns the node whose Lkey is the next one in ascending order
// after idx's, following the in-order successor through the tree's
// structure (not a separately maintained linked list).
func (t *Tree) Successor(idx int32) (int32, bool) {
	if r := t.nodes[idx].right; r != nilIdx {
		return t.minimum(r), true
	}
	cur, p := idx, t.nodes[idx].parent
	for p != nilIdx && cur == t.nodes[p].right {
		cur = p
		p = t.nodes[p].parent
	}
	if p == nilIdx {
		return nilIdx, false
	}
	return p, true
}

// Contained appends to dst the indices of every node with l <= node.Lkey and
// node.Rkey < r, i.e. intervals fully inside [l, r).
func (t *Tree) Contained(l, r int64, dst []int32) []int32 {
	return t.walkPruned(t.root, l, r, dst, func(n *node) bool {
		return l <= n.Lkey && n.Rkey < r
	})
}

// Containing appends to dst the indices of every node with node.Lkey < l and
// node.Rkey >= r, i.e. intervals that fully contain [l, r).
func (t *Tree) Containing(l, r int64, dst []int32) []int32 {
	return t.walkPruned(t.root, l, r, dst, func(n *node) bool {
		return n.Lkey < l && n.Rkey >= r
	})
}

// Intersect appends to dst the indices of every node whose interval
// overlaps [l, r).
func (t *Tree) Intersect(l, r int64, dst []int32) []int32 {
	return t.walkPruned(t.root, l, r, dst, func(n *node) bool {
		return n.Lkey < r && l < n.Rkey
	})
}

// walkPruned visits nodes whose subtree could possibly satisfy pred, using
// rkeyMax to skip subtrees that cannot reach far enough right to matter. It
// does not prune by Lkey: every subtree whose rkeyMax reaches l is visited,
// and r is only passed through to the recursive calls.
func (t *Tree) walkPruned(idx int32, l, r int64, dst []int32, pred func(*node) bool) []int32 {
	if idx == nilIdx {
		return dst
	}
	n := &t.nodes[idx]
	// Nothing in this subtree ends at or past l, so nothing here can
	// intersect, contain, or be contained relative to an interval starting
	// at l or later.
	if n.rkeyMax < l {
		return dst
	}
	if n.left != nilIdx {
		dst = t.walkPruned(n.left, l, r, dst, pred)
	}
	if pred(n) {
		dst = append(dst, idx)
	}
	// Every node in the right subtree has Lkey >= n.Lkey; once n.Lkey is
	// already at or past r there is nothing more to find to the right for
	// the ordering-sensitive callers (Contained, Intersect), but Containing
	// can still find larger encompassing intervals further right only if
	// rkeyMax allows it, which the top-of-call prune above already checks
	// on recursion. Descend unconditionally and let the rkeyMax prune do
	// the work, keeping this walk correct for all three predicates.
	if n.right != nilIdx {
		dst = t.walkPruned(n.right, l, r, dst, pred)
	}
	return dst
}
