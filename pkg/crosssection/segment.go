// Package crosssection derives cross-sections from linear-referenced tables.
//
// Rows (segments) carry a categorical group key, a categorical cross-section key
// such as carriageway and lane, a true-measure interval and an auxiliary SLK
// interval. Within each group an event sweep over the interval endpoints builds
// a persistent category tree of the rows active between consecutive endpoints.
// Adjacent intervals whose trees have the same set of active paths are merged,
// and every resulting cross-section is reported with the overlap length of each
// contributing row.
package crosssection

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Sentinel validation errors.
var (
	// ErrEmptySectionKey indicates a segment without cross-section categories.
	ErrEmptySectionKey = errors.New("cross-section key must not be empty")
	// ErrKeyArity indicates segments with different numbers of key fields.
	ErrKeyArity = errors.New("inconsistent key arity")
	// ErrNonFiniteMeasure indicates a NaN or infinite measure value.
	ErrNonFiniteMeasure = errors.New("measure must be finite")
	// ErrReversedMeasure indicates a segment whose true measure ends before it starts.
	ErrReversedMeasure = errors.New("true measure is reversed")
)

// Segment is one input row. Index is the row's stable identity and is reported
// back unchanged in every output row the segment contributes to.
type Segment struct {
	Group    []string
	Section  []string
	Index    int
	TrueFrom float64
	TrueTo   float64
	SLKFrom  float64
	SLKTo    float64
}

// Length returns the true-measure length of the segment.
func (s Segment) Length() float64 {
	return s.TrueTo - s.TrueFrom
}

func (s Segment) validate(sectionArity int) error {
	if len(s.Section) == 0 {
		return fmt.Errorf("%w: row %d", ErrEmptySectionKey, s.Index)
	}

	if len(s.Section) != sectionArity {
		return fmt.Errorf("%w: row %d has %d cross-section fields, expected %d",
			ErrKeyArity, s.Index, len(s.Section), sectionArity)
	}

	for _, value := range [...]float64{s.TrueFrom, s.TrueTo, s.SLKFrom, s.SLKTo} {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return fmt.Errorf("%w: row %d", ErrNonFiniteMeasure, s.Index)
		}
	}

	if s.TrueTo < s.TrueFrom {
		return fmt.Errorf("%w: row %d [%g, %g)", ErrReversedMeasure, s.Index, s.TrueFrom, s.TrueTo)
	}

	return nil
}

// GroupError reports a failure confined to a single group.
type GroupError struct {
	Err   error
	Group []string
}

// Error implements the error interface.
func (e *GroupError) Error() string {
	return fmt.Sprintf("group %s: %v", formatKey(e.Group), e.Err)
}

// Unwrap returns the underlying error.
func (e *GroupError) Unwrap() error {
	return e.Err
}

type group struct {
	key      []string
	segments []Segment
}

// mapKey encodes key fields as one string. Each field is quoted, so distinct
// keys never share an encoding whatever bytes the fields contain.
func mapKey(key []string) string {
	var sb strings.Builder

	for _, field := range key {
		sb.WriteString(strconv.Quote(field))
	}

	return sb.String()
}

// partition splits segments by group key. Groups are returned in ascending key
// order and keep the input order of their segments.
func partition(segments []Segment) ([]group, error) {
	if len(segments) == 0 {
		return nil, nil
	}

	arity := len(segments[0].Group)
	index := make(map[string]int)

	var groups []group

	for _, seg := range segments {
		if len(seg.Group) != arity {
			return nil, fmt.Errorf("%w: row %d has %d group fields, expected %d",
				ErrKeyArity, seg.Index, len(seg.Group), arity)
		}

		encoded := mapKey(seg.Group)

		pos, ok := index[encoded]
		if !ok {
			pos = len(groups)
			index[encoded] = pos
			groups = append(groups, group{key: slices.Clone(seg.Group)})
		}

		groups[pos].segments = append(groups[pos].segments, seg)
	}

	slices.SortFunc(groups, func(a, b group) int {
		return slices.Compare(a.key, b.key)
	})

	return groups, nil
}

func validateGroup(segments []Segment) error {
	if len(segments) == 0 {
		return nil
	}

	arity := len(segments[0].Section)

	for _, seg := range segments {
		err := seg.validate(arity)
		if err != nil {
			return err
		}
	}

	return nil
}

func formatKey(key []string) string {
	return "(" + strings.Join(key, ", ") + ")"
}
