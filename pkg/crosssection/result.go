package crosssection

import (
	"slices"
	"strconv"
)

// Member is one row contributing to a cross-section.
type Member struct {
	Section []string `json:"section" yaml:"section"`
	Index   int      `json:"index"   yaml:"index"`
	Overlap float64  `json:"overlap" yaml:"overlap"`
}

// CrossSection is a maximal true-measure interval over which the set of
// active cross-section paths of a group is constant.
type CrossSection struct {
	Group    []string `json:"group"     yaml:"group"`
	Members  []Member `json:"members"   yaml:"members"`
	ID       int      `json:"id"        yaml:"id"`
	TrueFrom float64  `json:"true_from" yaml:"true_from"`
	TrueTo   float64  `json:"true_to"   yaml:"true_to"`
	SLKFrom  float64  `json:"slk_from"  yaml:"slk_from"`
	SLKTo    float64  `json:"slk_to"    yaml:"slk_to"`
}

// Length returns the true-measure length of the cross-section.
func (cs CrossSection) Length() float64 {
	return cs.TrueTo - cs.TrueFrom
}

// GroupRow is one row of the group table.
type GroupRow struct {
	Group    []string
	ID       int
	TrueFrom float64
	TrueTo   float64
	SLKFrom  float64
	SLKTo    float64
}

// SectionRow is one row of the cross-section table.
type SectionRow struct {
	Section []string
	ID      int
	Index   int
	Overlap float64
}

// Row is one row of the single-table form.
type Row struct {
	Group    []string
	Section  []string
	ID       int
	TrueFrom float64
	TrueTo   float64
	SLKFrom  float64
	SLKTo    float64
	Index    int
	Overlap  float64
}

// Result holds the cross-sections of all groups in ascending id order.
type Result struct {
	CrossSections []CrossSection `json:"cross_sections" yaml:"cross_sections"`
}

// Len returns the number of cross-sections.
func (r Result) Len() int {
	return len(r.CrossSections)
}

// GroupTable returns one row per cross-section.
func (r Result) GroupTable() []GroupRow {
	rows := make([]GroupRow, 0, len(r.CrossSections))

	for _, cs := range r.CrossSections {
		rows = append(rows, GroupRow{
			Group:    cs.Group,
			ID:       cs.ID,
			TrueFrom: cs.TrueFrom,
			TrueTo:   cs.TrueTo,
			SLKFrom:  cs.SLKFrom,
			SLKTo:    cs.SLKTo,
		})
	}

	return rows
}

// SectionTable returns one row per cross-section, path and contributing row.
func (r Result) SectionTable() []SectionRow {
	var rows []SectionRow

	for _, cs := range r.CrossSections {
		for _, member := range cs.Members {
			rows = append(rows, SectionRow{
				Section: member.Section,
				ID:      cs.ID,
				Index:   member.Index,
				Overlap: member.Overlap,
			})
		}
	}

	return rows
}

// Rows returns the group and cross-section tables joined on id.
func (r Result) Rows() []Row {
	var rows []Row

	for _, cs := range r.CrossSections {
		for _, member := range cs.Members {
			rows = append(rows, Row{
				Group:    cs.Group,
				Section:  member.Section,
				ID:       cs.ID,
				TrueFrom: cs.TrueFrom,
				TrueTo:   cs.TrueTo,
				SLKFrom:  cs.SLKFrom,
				SLKTo:    cs.SLKTo,
				Index:    member.Index,
				Overlap:  member.Overlap,
			})
		}
	}

	return rows
}

// Overlaps sums the overlap reported for each row index.
func (r Result) Overlaps() map[int]float64 {
	totals := make(map[int]float64)

	for _, cs := range r.CrossSections {
		for _, member := range cs.Members {
			totals[member.Index] += member.Overlap
		}
	}

	return totals
}

// Segments returns one segment per cross-section, keyed by its id. Sweeping
// them again reproduces the same bounds and ids.
func (r Result) Segments() []Segment {
	segments := make([]Segment, 0, r.Len())

	for _, cs := range r.CrossSections {
		segments = append(segments, Segment{
			Group:    slices.Clone(cs.Group),
			Section:  []string{strconv.Itoa(cs.ID)},
			Index:    cs.ID,
			TrueFrom: cs.TrueFrom,
			TrueTo:   cs.TrueTo,
			SLKFrom:  cs.SLKFrom,
			SLKTo:    cs.SLKTo,
		})
	}

	return segments
}

// assemble numbers merged transitions 0..n-1 within a group.
func assemble(groupKey []string, merged []Transition) []CrossSection {
	sections := make([]CrossSection, 0, len(merged))

	for local, transition := range merged {
		var members []Member

		for _, row := range transition.Tree.Rows() {
			members = append(members, Member{Section: row.Path, Index: row.Key, Overlap: row.Weight})
		}

		sections = append(sections, CrossSection{
			Group:    slices.Clone(groupKey),
			Members:  members,
			ID:       local,
			TrueFrom: transition.TrueFrom,
			TrueTo:   transition.TrueTo,
			SLKFrom:  transition.SLKFrom,
			SLKTo:    transition.SLKTo,
		})
	}

	return sections
}

// renumber concatenates per-group results, shifting each group's local ids by
// the number of ids used by the groups before it.
func renumber(perGroup [][]CrossSection) Result {
	total := 0
	for _, sections := range perGroup {
		total += len(sections)
	}

	out := make([]CrossSection, 0, total)
	offset := 0

	for _, sections := range perGroup {
		used := 0

		for _, cs := range sections {
			used = max(used, cs.ID+1)
			cs.ID += offset
			out = append(out, cs)
		}

		offset += used
	}

	return Result{CrossSections: out}
}
