package cattree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/segmenter/pkg/alg/multiset"
)

const testTolerance = 1e-9

func one(key int) multiset.Weighted[int] {
	return multiset.Of(key, 1)
}

func TestZeroValueIsEmpty(t *testing.T) {
	t.Parallel()

	var tree Tree[int]

	assert.True(t, tree.IsEmpty())
	assert.Equal(t, 0, tree.Depth())
	assert.Equal(t, 0, tree.LeafCount())
	assert.Empty(t, tree.Rows())
	assert.Equal(t, "<>", tree.String())
}

func TestAddData_DoesNotMutateReceiver(t *testing.T) {
	t.Parallel()

	base := Tree[int]{}.AddData([]string{"L", "L1"}, one(0))
	next := base.AddData([]string{"L", "L2"}, one(1))

	assert.Equal(t, 1, base.LeafCount())
	assert.Equal(t, 2, next.LeafCount())
	assert.Equal(t, "<L:<L1:<(0, 1.000)>>>", base.String())
	assert.Equal(t, "<L:<L1:<(0, 1.000)> L2:<(1, 1.000)>>>", next.String())
}

func TestAddData_SharesUntouchedSubtrees(t *testing.T) {
	t.Parallel()

	base := Tree[int]{}.
		AddData([]string{"L", "L1"}, one(0)).
		AddData([]string{"R", "R1"}, one(1))

	next := base.AddData([]string{"L", "L2"}, one(2))

	require.Len(t, base.root.children, 2)
	require.Len(t, next.root.children, 2)

	assert.NotSame(t, base.root, next.root)
	assert.NotSame(t, base.root.children[0], next.root.children[0])
	assert.Same(t, base.root.children[1], next.root.children[1], "R subtree must be shared")
	assert.Same(t, base.root.children[0].children[0], next.root.children[0].children[0], "L1 leaf must be shared")
}

func TestRemoveData_PrunesEmptyPath(t *testing.T) {
	t.Parallel()

	tree := Tree[int]{}.
		AddData([]string{"L", "L1"}, one(0)).
		AddData([]string{"R", "R1"}, one(1))

	removed := tree.RemoveData([]string{"L", "L1"}, one(0))

	assert.Equal(t, "<R:<R1:<(1, 1.000)>>>", removed.String())
	assert.True(t, removed.RemoveData([]string{"R", "R1"}, one(1)).IsEmpty())
}

func TestAddData_SameIdentityAccumulates(t *testing.T) {
	t.Parallel()

	tree := Tree[int]{}.
		AddData([]string{"A"}, one(3)).
		AddData([]string{"A"}, one(3))

	rows := tree.Rows()
	require.Len(t, rows, 1)
	assert.InDelta(t, 2.0, rows[0].Weight, testTolerance)
}

func TestMerge(t *testing.T) {
	t.Parallel()

	build := func(ids map[string]int) Tree[int] {
		tree := Tree[int]{}
		for lane, id := range ids {
			tree = tree.AddData([]string{"L", lane}, multiset.Of(id, 0.5))
		}

		return tree
	}

	t.Run("same_topology_sums_weights", func(t *testing.T) {
		t.Parallel()

		left := build(map[string]int{"L1": 0, "L2": 1})
		right := build(map[string]int{"L1": 0, "L2": 4})

		merged, ok := left.Merge(right)
		require.True(t, ok)

		rows := merged.Rows()
		require.Len(t, rows, 3)
		assert.Equal(t, []string{"L", "L1"}, rows[0].Path)
		assert.InDelta(t, 1.0, rows[0].Weight, testTolerance)
		assert.Equal(t, []string{"L", "L2"}, rows[1].Path)
		assert.Equal(t, 1, rows[1].Key)
		assert.Equal(t, 4, rows[2].Key)
	})

	t.Run("extra_leaf_is_mismatch", func(t *testing.T) {
		t.Parallel()

		left := build(map[string]int{"L1": 0})
		right := build(map[string]int{"L1": 0, "L2": 1})

		_, ok := left.Merge(right)
		assert.False(t, ok)

		_, ok = right.Merge(left)
		assert.False(t, ok)
	})

	t.Run("different_parent_is_mismatch", func(t *testing.T) {
		t.Parallel()

		left := Tree[int]{}.AddData([]string{"L", "L1"}, one(0))
		right := Tree[int]{}.AddData([]string{"R", "L1"}, one(0))

		_, ok := left.Merge(right)
		assert.False(t, ok)
	})

	t.Run("empty_with_empty", func(t *testing.T) {
		t.Parallel()

		merged, ok := Tree[int]{}.Merge(Tree[int]{})
		require.True(t, ok)
		assert.True(t, merged.IsEmpty())
	})

	t.Run("empty_with_non_empty", func(t *testing.T) {
		t.Parallel()

		_, ok := Tree[int]{}.Merge(build(map[string]int{"L1": 0}))
		assert.False(t, ok)
	})

	t.Run("operands_untouched", func(t *testing.T) {
		t.Parallel()

		left := build(map[string]int{"L1": 0})
		before := left.String()

		_, ok := left.Merge(left)
		require.True(t, ok)
		assert.Equal(t, before, left.String())
	})
}

func TestMap_RewritesWeights(t *testing.T) {
	t.Parallel()

	tree := Tree[int]{}.
		AddData([]string{"L", "L1"}, one(0)).
		AddData([]string{"L", "L2"}, one(1))

	mapped := tree.Map(func(e multiset.Entry[int]) multiset.Entry[int] {
		return multiset.Entry[int]{Key: e.Key, Weight: 0.02}
	})

	for _, row := range mapped.Rows() {
		assert.InDelta(t, 0.02, row.Weight, testTolerance)
	}

	zeroed := tree.Map(func(e multiset.Entry[int]) multiset.Entry[int] {
		return multiset.Entry[int]{Key: e.Key}
	})
	assert.True(t, zeroed.IsEmpty())
}

func TestAdd_AcceptsAnyShape(t *testing.T) {
	t.Parallel()

	left := Tree[int]{}.AddData([]string{"L", "L1"}, one(0))
	right := Tree[int]{}.
		AddData([]string{"L", "L1"}, one(0)).
		AddData([]string{"R", "R1"}, one(2))

	_, ok := left.Merge(right)
	require.False(t, ok)

	sum := left.Add(right)
	assert.Equal(t, "<L:<L1:<(0, 2.000)>> R:<R1:<(2, 1.000)>>>", sum.String())
	assert.Equal(t, "<L:<L1:<(0, 1.000)>>>", left.String())

	assert.Equal(t, left.String(), left.Add(Tree[int]{}).String())
	assert.Equal(t, right.String(), Tree[int]{}.Add(right).String())
}

func TestPrune_ReturnsSameNodesWhenClean(t *testing.T) {
	t.Parallel()

	tree := Tree[int]{}.AddData([]string{"L", "L1"}, one(0))
	assert.Same(t, tree.root, tree.Prune().root)

	dirty := Tree[int]{root: &node[int]{
		keys: []string{"A", "B"},
		children: []*node[int]{
			{},
			{data: one(1)},
		},
	}}

	pruned := dirty.Prune()
	assert.Equal(t, "<B:<(1, 1.000)>>", pruned.String())
	assert.True(t, Tree[int]{root: &node[int]{}}.Prune().IsEmpty())
}

func TestLeaves_RestartableAndOrdered(t *testing.T) {
	t.Parallel()

	tree := Tree[int]{}.
		AddData([]string{"R", "R1"}, one(2)).
		AddData([]string{"L", "L2"}, one(1)).
		AddData([]string{"L", "L1"}, one(0))

	collect := func() [][]string {
		var paths [][]string
		for path := range tree.Leaves() {
			paths = append(paths, path)
		}

		return paths
	}

	want := [][]string{{"L", "L1"}, {"L", "L2"}, {"R", "R1"}}
	assert.Equal(t, want, collect())
	assert.Equal(t, want, collect())
	assert.Equal(t, 2, tree.Depth())

	for path := range tree.Leaves() {
		path[0] = "mutated"

		break
	}

	assert.Equal(t, want, collect())
}

func TestEqual(t *testing.T) {
	t.Parallel()

	left := Tree[int]{}.AddData([]string{"L"}, multiset.Of(0, 0.1+0.2))
	right := Tree[int]{}.AddData([]string{"L"}, multiset.Of(0, 0.3))

	assert.True(t, left.Equal(right, testTolerance))
	assert.False(t, left.Equal(Tree[int]{}, testTolerance))
	assert.False(t, left.Equal(Tree[int]{}.AddData([]string{"R"}, multiset.Of(0, 0.3)), testTolerance))
}
