package crosssection

import (
	"fmt"

	"github.com/Sumatoshi-tech/segmenter/pkg/alg/cattree"
	"github.com/Sumatoshi-tech/segmenter/pkg/alg/multiset"
)

// Transition is the interval between two consecutive sweep positions together
// with the rows active over it. Active holds one unit per open row under its
// cross-section path and decides which paths are open. Tree has the same
// paths with each row weighted by its overlap length; weights within
// multiset.Epsilon of zero are dropped there, so a very short transition may
// have an empty Tree while its Active tree is not.
type Transition struct {
	Active   cattree.Tree[int]
	Tree     cattree.Tree[int]
	TrueFrom float64
	TrueTo   float64
	SLKFrom  float64
	SLKTo    float64
}

// Length returns the true-measure length of the transition.
func (t Transition) Length() float64 {
	return t.TrueTo - t.TrueFrom
}

// IsGap reports whether no row is active over the transition.
func (t Transition) IsGap() bool {
	return t.Active.IsEmpty()
}

// WithOverlap sets Tree to the active rows weighted by the transition length.
func (t Transition) WithOverlap() Transition {
	length := t.Length()

	t.Tree = t.Active.Map(func(e multiset.Entry[int]) multiset.Entry[int] {
		return multiset.Entry[int]{Key: e.Key, Weight: length}
	})

	return t
}

// Accumulate extends t by next when both have the same active paths.
// The extended transition ends where next ends and holds the summed weights.
// It returns false, and t unchanged, when the active paths differ.
func (t Transition) Accumulate(next Transition) (Transition, bool) {
	active, ok := t.Active.Merge(next.Active)
	if !ok {
		return t, false
	}

	t.Active = active
	t.Tree = t.Tree.Add(next.Tree)
	t.TrueTo = next.TrueTo
	t.SLKTo = next.SLKTo

	return t, true
}

// String implements fmt.Stringer.
func (t Transition) String() string {
	return fmt.Sprintf("Transition(true: [%g, %g) slk: [%g, %g) tree: %s)",
		t.TrueFrom, t.TrueTo, t.SLKFrom, t.SLKTo, t.Tree)
}
