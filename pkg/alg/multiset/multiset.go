// Package multiset provides an immutable weighted sparse multiset: a canonical
// mapping from keys to accumulated float64 weights. Entries sharing a key are
// summed and entries whose weight cancels to (almost) zero are dropped, so a
// key that was added and later subtracted disappears from the set.
package multiset

import (
	"cmp"
	"fmt"
	"iter"
	"math"
	"slices"
	"strings"
)

// Epsilon is the absolute weight at or below which an entry is considered cancelled.
// It absorbs floating-point drift from repeated add/subtract cycles.
const Epsilon = 1e-6

// Entry is a single key with its weight.
type Entry[K cmp.Ordered] struct {
	Key    K
	Weight float64
}

// Weighted is an immutable weighted multiset. The zero value is the empty set.
// Entries are kept sorted by key.
type Weighted[K cmp.Ordered] struct {
	entries []Entry[K]
}

// New builds a canonical multiset from arbitrary entries: they are sorted by key,
// weights of equal keys are summed and near-zero sums are dropped.
func New[K cmp.Ordered](entries ...Entry[K]) Weighted[K] {
	if len(entries) == 0 {
		return Weighted[K]{}
	}

	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b Entry[K]) int {
		return cmp.Compare(a.Key, b.Key)
	})

	out := sorted[:0]

	for idx := 0; idx < len(sorted); {
		key := sorted[idx].Key
		sum := 0.0

		for ; idx < len(sorted) && sorted[idx].Key == key; idx++ {
			sum += sorted[idx].Weight
		}

		if math.Abs(sum) > Epsilon {
			out = append(out, Entry[K]{Key: key, Weight: sum})
		}
	}

	if len(out) == 0 {
		return Weighted[K]{}
	}

	return Weighted[K]{entries: slices.Clip(out)}
}

// Of returns a multiset holding a single entry.
func Of[K cmp.Ordered](key K, weight float64) Weighted[K] {
	return New(Entry[K]{Key: key, Weight: weight})
}

// Add returns the union of w and other with weights of shared keys summed.
func (w Weighted[K]) Add(other Weighted[K]) Weighted[K] {
	if len(other.entries) == 0 {
		return w
	}

	if len(w.entries) == 0 {
		return other
	}

	merged := make([]Entry[K], 0, len(w.entries)+len(other.entries))
	merged = append(merged, w.entries...)
	merged = append(merged, other.entries...)

	return New(merged...)
}

// Neg returns w with every weight negated.
func (w Weighted[K]) Neg() Weighted[K] {
	if len(w.entries) == 0 {
		return w
	}

	negated := make([]Entry[K], len(w.entries))
	for idx, entry := range w.entries {
		negated[idx] = Entry[K]{Key: entry.Key, Weight: -entry.Weight}
	}

	return Weighted[K]{entries: negated}
}

// Sub returns w.Add(other.Neg()).
func (w Weighted[K]) Sub(other Weighted[K]) Weighted[K] {
	return w.Add(other.Neg())
}

// Map applies fn to every entry and canonicalises the result, so fn may re-key
// entries onto each other or zero them out.
func (w Weighted[K]) Map(fn func(Entry[K]) Entry[K]) Weighted[K] {
	if len(w.entries) == 0 {
		return w
	}

	mapped := make([]Entry[K], len(w.entries))
	for idx, entry := range w.entries {
		mapped[idx] = fn(entry)
	}

	return New(mapped...)
}

// Len returns the number of entries.
func (w Weighted[K]) Len() int {
	return len(w.entries)
}

// IsEmpty reports whether w has no entries.
func (w Weighted[K]) IsEmpty() bool {
	return len(w.entries) == 0
}

// Entries returns a copy of the entries in ascending key order.
func (w Weighted[K]) Entries() []Entry[K] {
	return slices.Clone(w.entries)
}

// All iterates the entries in ascending key order.
func (w Weighted[K]) All() iter.Seq2[K, float64] {
	return func(yield func(K, float64) bool) {
		for _, entry := range w.entries {
			if !yield(entry.Key, entry.Weight) {
				return
			}
		}
	}
}

// Weight returns the weight stored under key.
func (w Weighted[K]) Weight(key K) (float64, bool) {
	idx, found := slices.BinarySearchFunc(w.entries, key, func(entry Entry[K], target K) int {
		return cmp.Compare(entry.Key, target)
	})
	if !found {
		return 0, false
	}

	return w.entries[idx].Weight, true
}

// Total returns the sum of all weights.
func (w Weighted[K]) Total() float64 {
	total := 0.0
	for _, entry := range w.entries {
		total += entry.Weight
	}

	return total
}

// Equal reports whether w and other hold the same keys with weights within tol.
func (w Weighted[K]) Equal(other Weighted[K], tol float64) bool {
	return slices.EqualFunc(w.entries, other.entries, func(a, b Entry[K]) bool {
		return a.Key == b.Key && math.Abs(a.Weight-b.Weight) <= tol
	})
}

// String renders the entries as "(key, weight), ...".
func (w Weighted[K]) String() string {
	parts := make([]string, len(w.entries))
	for idx, entry := range w.entries {
		parts[idx] = fmt.Sprintf("(%v, %.3f)", entry.Key, entry.Weight)
	}

	return "[" + strings.Join(parts, ", ") + "]"
}
