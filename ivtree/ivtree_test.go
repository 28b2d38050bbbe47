package ivtree_test

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/grailbio/graphalign/ivtree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkInOrder walks the tree via repeated Successor calls from
// FindKeyRight(-1<<62) and asserts Lkey order is non-decreasing — the
// simplest external proof that rotations kept the tree a valid BST.
func checkInOrder(t *testing.T, tr *ivtree.Tree, want []int64) {
	t.Helper()
	if len(want) == 0 {
		_, ok := tr.FindKeyRight(-1 << 62)
		assert.False(t, ok)
		return
	}
	idx, ok := tr.FindKeyRight(-1 << 62)
	require.True(t, ok)
	var got []int64
	for {
		lkey, _, _, _ := tr.Get(idx)
		got = append(got, lkey)
		next, ok := tr.Successor(idx)
		if !ok {
			break
		}
		idx = next
	}
	sorted := append([]int64(nil), want...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	assert.Equal(t, sorted, got)
}

func TestInsertKeepsInOrderTraversal(t *testing.T) {
	tr := ivtree.New()
	keys := []int64{50, 20, 70, 10, 30, 60, 80, 5, 90, 1}
	for _, k := range keys {
		tr.Insert(k, k+5, 1, 0)
	}
	assert.Equal(t, len(keys), tr.Len())
	checkInOrder(t, tr, keys)
}

func TestFindKeyRight(t *testing.T) {
	tr := ivtree.New()
	for _, k := range []int64{10, 20, 30, 40, 50} {
		tr.Insert(k, k+1, 0, 0)
	}
	idx, ok := tr.FindKeyRight(25)
	require.True(t, ok)
	lkey, _, _, _ := tr.Get(idx)
	assert.Equal(t, int64(30), lkey)

	_, ok = tr.FindKeyRight(1000)
	assert.False(t, ok)
}

func TestIntersectFindsOverlaps(t *testing.T) {
	tr := ivtree.New()
	tr.Insert(0, 10, 0, 0)
	tr.Insert(5, 15, 0, 0)
	tr.Insert(20, 30, 0, 0)
	hits := tr.Intersect(8, 12, nil)
	assert.Len(t, hits, 2)
}

func TestContainedAndContaining(t *testing.T) {
	tr := ivtree.New()
	outer := tr.Insert(0, 100, 0, 0)
	inner := tr.Insert(10, 20, 0, 0)
	_ = tr.Insert(200, 210, 0, 0)

	contained := tr.Contained(0, 100, nil)
	assert.Contains(t, contained, inner)
	assert.NotContains(t, contained, outer)

	containing := tr.Containing(10, 20, nil)
	assert.Contains(t, containing, outer)
	assert.NotContains(t, containing, inner)
}

func TestDeleteRemovesNode(t *testing.T) {
	tr := ivtree.New()
	var idxs []int32
	for _, k := range []int64{1, 2, 3, 4, 5, 6, 7} {
		idxs = append(idxs, tr.Insert(k, k+1, 0, 0))
	}
	tr.Delete(idxs[3]) // key 4
	assert.Equal(t, 6, tr.Len())
	checkInOrder(t, tr, []int64{1, 2, 3, 5, 6, 7})
}

func TestFlushRetainsArenaAndAllowsRepopulate(t *testing.T) {
	tr := ivtree.New()
	for i := int64(0); i < 50; i++ {
		tr.Insert(i, i+1, 0, 0)
	}
	tr.Flush()
	assert.Equal(t, 0, tr.Len())
	_, ok := tr.FindKeyRight(0)
	assert.False(t, ok)

	for i := int64(100); i < 120; i++ {
		tr.Insert(i, i+1, 0, 0)
	}
	assert.Equal(t, 20, tr.Len())
	idx, ok := tr.FindKeyRight(105)
	require.True(t, ok)
	lkey, _, _, _ := tr.Get(idx)
	assert.Equal(t, int64(105), lkey)
}

func TestRandomizedInsertDeleteKeepsBSTOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tr := ivtree.New()
	var live []int64
	var idxs []int32
	for i := 0; i < 300; i++ {
		k := rng.Int63n(1000)
		idxs = append(idxs, tr.Insert(k, k+1, 0, 0))
		live = append(live, k)
	}
	for i := 0; i < 100; i++ {
		j := rng.Intn(len(idxs))
		tr.Delete(idxs[j])
		idxs = append(idxs[:j], idxs[j+1:]...)
		live = append(live[:j], live[j+1:]...)
	}
	assert.Equal(t, len(live), tr.Len())
	checkInOrder(t, tr, live)
}
