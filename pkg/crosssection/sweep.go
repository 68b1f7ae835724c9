package crosssection

import (
	"cmp"
	"slices"

	"github.com/Sumatoshi-tech/segmenter/pkg/alg/cattree"
	"github.com/Sumatoshi-tech/segmenter/pkg/alg/multiset"
)

type eventKind uint8

const (
	eventEnd eventKind = iota
	eventStart
)

func (k eventKind) String() string {
	if k == eventStart {
		return "start"
	}

	return "end"
}

type event struct {
	section []string
	trueAt  float64
	slkAt   float64
	index   int
	kind    eventKind
}

func compareSection(a, b Segment) int {
	return cmp.Or(slices.Compare(a.Section, b.Section), cmp.Compare(a.Index, b.Index))
}

// buildEvents emits an end and a start event per segment. End events come
// first, ordered by descending cross-section key, then start events by
// ascending key; a stable sort by true measure keeps that order among ties, so
// at a shared boundary rows are closed before new rows open.
func buildEvents(segments []Segment) []event {
	ends := slices.Clone(segments)
	slices.SortStableFunc(ends, func(a, b Segment) int {
		return compareSection(b, a)
	})

	starts := slices.Clone(segments)
	slices.SortStableFunc(starts, compareSection)

	events := make([]event, 0, 2*len(segments))

	for _, seg := range ends {
		events = append(events, event{
			section: seg.Section, trueAt: seg.TrueTo, slkAt: seg.SLKTo, index: seg.Index, kind: eventEnd,
		})
	}

	for _, seg := range starts {
		events = append(events, event{
			section: seg.Section, trueAt: seg.TrueFrom, slkAt: seg.SLKFrom, index: seg.Index, kind: eventStart,
		})
	}

	slices.SortStableFunc(events, func(a, b event) int {
		return cmp.Compare(a.trueAt, b.trueAt)
	})

	return events
}

// sweep replays events against a running tree and returns one transition per
// positive-length interval between consecutive events. Each transition holds
// the snapshot taken after its opening event, reweighted to the interval length.
func sweep(events []event) []Transition {
	if len(events) < 2 {
		return nil
	}

	var (
		transitions []Transition
		tree        cattree.Tree[int]
	)

	for idx, ev := range events {
		marker := multiset.Of(ev.index, 1)

		switch ev.kind {
		case eventStart:
			tree = tree.AddData(ev.section, marker)
		case eventEnd:
			tree = tree.RemoveData(ev.section, marker)
		}

		if idx+1 == len(events) {
			break
		}

		next := events[idx+1]
		if next.trueAt <= ev.trueAt {
			continue
		}

		transition := Transition{
			Active:   tree,
			TrueFrom: ev.trueAt,
			TrueTo:   next.trueAt,
			SLKFrom:  ev.slkAt,
			SLKTo:    next.slkAt,
		}

		transitions = append(transitions, transition.WithOverlap())
	}

	return transitions
}
