// Package cattree implements a persistent tree keyed by successive categorical
// values. Each node maps category values to child nodes and carries a weighted
// multiset; in practice data sits at the leaves.
//
// Trees are values. Every mutation copies only the nodes along the touched path
// and shares all other subtrees with the original, so older roots stay valid
// snapshots at O(depth * fanout) cost per update. Nodes that end up with no
// children and an empty multiset are removed on the way back up.
package cattree

import (
	"cmp"
	"iter"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/segmenter/pkg/alg/multiset"
)

// node is immutable once published. keys is sorted and parallel to children.
type node[K cmp.Ordered] struct {
	keys     []string
	children []*node[K]
	data     multiset.Weighted[K]
}

// Tree is a persistent category tree. The zero value is the empty tree.
type Tree[K cmp.Ordered] struct {
	root *node[K]
}

// Row is one flattened (path, key, weight) entry of a tree.
type Row[K cmp.Ordered] struct {
	Path   []string
	Key    K
	Weight float64
}

// IsEmpty reports whether the tree holds no data.
func (t Tree[K]) IsEmpty() bool {
	return t.root == nil
}

// AddData returns a tree where weights has been added to the multiset at path.
// Intermediate nodes are created as needed. t is left untouched.
func (t Tree[K]) AddData(path []string, weights multiset.Weighted[K]) Tree[K] {
	if weights.IsEmpty() {
		return t
	}

	return Tree[K]{root: addAt(t.root, path, weights)}
}

// RemoveData returns t.AddData(path, weights.Neg()).
func (t Tree[K]) RemoveData(path []string, weights multiset.Weighted[K]) Tree[K] {
	return t.AddData(path, weights.Neg())
}

// Merge adds the multisets of two trees node by node. It succeeds only when both
// trees have identical child key sets at every corresponding node; otherwise it
// returns the empty tree and false. A false result is an ordinary outcome: it
// tells the caller that the set of active paths differs.
func (t Tree[K]) Merge(other Tree[K]) (Tree[K], bool) {
	merged, ok := mergeNodes(t.root, other.root)
	if !ok {
		return Tree[K]{}, false
	}

	return Tree[K]{root: merged}, true
}

// Add returns t with every leaf multiset of other added at the same path. Unlike
// Merge it accepts trees of any shape.
func (t Tree[K]) Add(other Tree[K]) Tree[K] {
	out := t

	for path, weights := range other.Leaves() {
		out = out.AddData(path, weights)
	}

	return out
}

// Map applies fn to every entry of every node.
func (t Tree[K]) Map(fn func(multiset.Entry[K]) multiset.Entry[K]) Tree[K] {
	return Tree[K]{root: mapNode(t.root, fn)}
}

// Prune removes empty subtrees bottom-up. Subtrees that need no change are shared.
func (t Tree[K]) Prune() Tree[K] {
	return Tree[K]{root: pruneNode(t.root)}
}

// Leaves iterates over (path, multiset) pairs, one per leaf, visiting children in
// ascending key order. The sequence is lazy and may be ranged over repeatedly.
// Each yielded path is a fresh slice.
func (t Tree[K]) Leaves() iter.Seq2[[]string, multiset.Weighted[K]] {
	return func(yield func([]string, multiset.Weighted[K]) bool) {
		if t.root == nil {
			return
		}

		walkLeaves(t.root, nil, yield)
	}
}

// Rows flattens the tree into one row per leaf entry.
func (t Tree[K]) Rows() []Row[K] {
	var rows []Row[K]

	for path, weights := range t.Leaves() {
		for key, weight := range weights.All() {
			rows = append(rows, Row[K]{Path: path, Key: key, Weight: weight})
		}
	}

	return rows
}

// LeafCount returns the number of leaves.
func (t Tree[K]) LeafCount() int {
	count := 0

	for range t.Leaves() {
		count++
	}

	return count
}

// Depth returns the length of the longest root-to-leaf path.
func (t Tree[K]) Depth() int {
	return depth(t.root)
}

// Equal reports whether both trees have the same shape and multisets within tol.
func (t Tree[K]) Equal(other Tree[K], tol float64) bool {
	return equalNodes(t.root, other.root, tol)
}

// String renders the tree as nested "<data:key:<...> key:<...>>" groups.
func (t Tree[K]) String() string {
	var sb strings.Builder

	writeNode(&sb, t.root)

	return sb.String()
}

func newNode[K cmp.Ordered](keys []string, children []*node[K], data multiset.Weighted[K]) *node[K] {
	if len(children) == 0 && data.IsEmpty() {
		return nil
	}

	if len(children) == 0 {
		keys, children = nil, nil
	}

	return &node[K]{keys: keys, children: children, data: data}
}

func addAt[K cmp.Ordered](current *node[K], path []string, weights multiset.Weighted[K]) *node[K] {
	var (
		keys     []string
		children []*node[K]
		data     multiset.Weighted[K]
	)

	if current != nil {
		keys, children, data = current.keys, current.children, current.data
	}

	if len(path) == 0 {
		return newNode(keys, children, data.Add(weights))
	}

	idx, found := slices.BinarySearch(keys, path[0])

	var child *node[K]
	if found {
		child = children[idx]
	}

	updated := addAt(child, path[1:], weights)

	switch {
	case found && updated == nil:
		keys = slices.Delete(slices.Clone(keys), idx, idx+1)
		children = slices.Delete(slices.Clone(children), idx, idx+1)
	case found:
		children = slices.Clone(children)
		children[idx] = updated
	case updated != nil:
		keys = slices.Insert(slices.Clone(keys), idx, path[0])
		children = slices.Insert(slices.Clone(children), idx, updated)
	}

	return newNode(keys, children, data)
}

func keysOf[K cmp.Ordered](n *node[K]) []string {
	if n == nil {
		return nil
	}

	return n.keys
}

func dataOf[K cmp.Ordered](n *node[K]) multiset.Weighted[K] {
	if n == nil {
		return multiset.Weighted[K]{}
	}

	return n.data
}

func mergeNodes[K cmp.Ordered](left, right *node[K]) (*node[K], bool) {
	if left == nil && right == nil {
		return nil, true
	}

	keys := keysOf(left)
	if !slices.Equal(keys, keysOf(right)) {
		return nil, false
	}

	children := make([]*node[K], len(keys))

	for idx := range keys {
		merged, ok := mergeNodes(left.children[idx], right.children[idx])
		if !ok {
			return nil, false
		}

		children[idx] = merged
	}

	keys, children = compact(keys, children)

	return newNode(keys, children, dataOf(left).Add(dataOf(right))), true
}

func mapNode[K cmp.Ordered](n *node[K], fn func(multiset.Entry[K]) multiset.Entry[K]) *node[K] {
	if n == nil {
		return nil
	}

	children := make([]*node[K], len(n.children))
	for idx, child := range n.children {
		children[idx] = mapNode(child, fn)
	}

	keys, children := compact(n.keys, children)

	return newNode(keys, children, n.data.Map(fn))
}

func pruneNode[K cmp.Ordered](n *node[K]) *node[K] {
	if n == nil {
		return nil
	}

	changed := false
	children := make([]*node[K], len(n.children))

	for idx, child := range n.children {
		children[idx] = pruneNode(child)
		if children[idx] != child {
			changed = true
		}
	}

	if !changed && (len(n.children) > 0 || !n.data.IsEmpty()) {
		return n
	}

	keys, children := compact(n.keys, children)

	return newNode(keys, children, n.data)
}

// compact drops nil children together with their keys. The inputs are reused
// only when nothing has to be dropped.
func compact[K cmp.Ordered](keys []string, children []*node[K]) ([]string, []*node[K]) {
	if !slices.Contains(children, nil) {
		return keys, children
	}

	outKeys := make([]string, 0, len(keys))
	outChildren := make([]*node[K], 0, len(children))

	for idx, child := range children {
		if child == nil {
			continue
		}

		outKeys = append(outKeys, keys[idx])
		outChildren = append(outChildren, child)
	}

	return outKeys, outChildren
}

func walkLeaves[K cmp.Ordered](
	n *node[K], prefix []string, yield func([]string, multiset.Weighted[K]) bool,
) bool {
	if len(n.children) == 0 {
		return yield(slices.Clone(prefix), n.data)
	}

	for idx, child := range n.children {
		if !walkLeaves(child, append(prefix, n.keys[idx]), yield) {
			return false
		}
	}

	return true
}

func depth[K cmp.Ordered](n *node[K]) int {
	if n == nil || len(n.children) == 0 {
		return 0
	}

	deepest := 0
	for _, child := range n.children {
		deepest = max(deepest, depth(child))
	}

	return 1 + deepest
}

func equalNodes[K cmp.Ordered](left, right *node[K], tol float64) bool {
	if left == nil || right == nil {
		return left == right
	}

	if !slices.Equal(left.keys, right.keys) || !left.data.Equal(right.data, tol) {
		return false
	}

	for idx := range left.children {
		if !equalNodes(left.children[idx], right.children[idx], tol) {
			return false
		}
	}

	return true
}

func writeNode[K cmp.Ordered](sb *strings.Builder, n *node[K]) {
	sb.WriteByte('<')

	if n != nil {
		data := ""
		if !n.data.IsEmpty() {
			data = strings.TrimSuffix(strings.TrimPrefix(n.data.String(), "["), "]")
		}

		sb.WriteString(data)

		if data != "" && len(n.children) > 0 {
			sb.WriteByte(':')
		}

		for idx, child := range n.children {
			if idx > 0 {
				sb.WriteByte(' ')
			}

			sb.WriteString(n.keys[idx])
			sb.WriteByte(':')
			writeNode(sb, child)
		}
	}

	sb.WriteByte('>')
}
