// Package render prints cross-section tables and run summaries to a terminal.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/segmenter/pkg/crosssection"
	"github.com/Sumatoshi-tech/segmenter/pkg/table"
)

const lengthDigits = 3

// WriteTables renders each table with box-drawing borders and a row count footer.
func WriteTables(w io.Writer, tables []table.Table, precision int) error {
	for idx, tbl := range tables {
		if idx > 0 {
			_, err := io.WriteString(w, "\n")
			if err != nil {
				return fmt.Errorf("render table: %w", err)
			}
		}

		_, err := io.WriteString(w, Table(tbl, precision)+"\n")
		if err != nil {
			return fmt.Errorf("render table %s: %w", tbl.Name, err)
		}
	}

	return nil
}

// Table renders one table as text.
func Table(tbl table.Table, precision int) string {
	writer := prettytable.NewWriter()
	writer.SetStyle(prettytable.StyleLight)
	writer.SetTitle(tbl.Name)

	header := make(prettytable.Row, 0, len(tbl.Columns))
	for _, column := range tbl.Columns {
		header = append(header, column)
	}

	writer.AppendHeader(header)

	for _, row := range tbl.Rows {
		cells := make(prettytable.Row, 0, len(row))
		for _, cell := range row {
			cells = append(cells, table.FormatCell(cell, precision))
		}

		writer.AppendRow(cells)
	}

	var configs []prettytable.ColumnConfig

	if len(tbl.Rows) > 0 {
		for col, cell := range tbl.Rows[0] {
			if _, isText := cell.(string); !isText {
				configs = append(configs, prettytable.ColumnConfig{Number: col + 1, Align: text.AlignRight})
			}
		}
	}

	writer.SetColumnConfigs(configs)
	writer.AppendFooter(prettytable.Row{"rows: " + humanize.Comma(int64(len(tbl.Rows)))})

	return writer.Render()
}

// Summary describes one run.
type Summary struct {
	Segments      int
	Groups        int
	CrossSections int
	Members       int
	FailedGroups  int
	TotalLength   float64
}

// Summarize counts the input and output of a run. Total length is the summed
// length of all cross-sections.
func Summarize(segments []crosssection.Segment, result crosssection.Result, failedGroups int) Summary {
	groups := make(map[string]struct{})
	for _, segment := range segments {
		groups[strings.Join(segment.Group, "\x1f")] = struct{}{}
	}

	summary := Summary{
		Segments:      len(segments),
		Groups:        len(groups),
		CrossSections: result.Len(),
		FailedGroups:  failedGroups,
	}

	for _, cs := range result.CrossSections {
		summary.Members += len(cs.Members)
		summary.TotalLength += cs.Length()
	}

	return summary
}

// WriteSummary prints s as aligned label/value lines, coloured when colorize
// is set regardless of the terminal.
func WriteSummary(w io.Writer, s Summary, colorize bool) error {
	paint := func(attr color.Attribute) *color.Color {
		c := color.New(attr)
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}

		return c
	}

	failedColour := color.FgGreen
	if s.FailedGroups > 0 {
		failedColour = color.FgRed
	}

	lines := []struct {
		label string
		value string
		attr  color.Attribute
	}{
		{"segments", humanize.Comma(int64(s.Segments)), color.FgCyan},
		{"groups", humanize.Comma(int64(s.Groups)), color.FgCyan},
		{"cross-sections", humanize.Comma(int64(s.CrossSections)), color.FgGreen},
		{"members", humanize.Comma(int64(s.Members)), color.FgCyan},
		{"total length", humanize.CommafWithDigits(s.TotalLength, lengthDigits), color.FgCyan},
		{"failed groups", humanize.Comma(int64(s.FailedGroups)), failedColour},
	}

	width := 0
	for _, line := range lines {
		width = max(width, len(line.label))
	}

	for _, line := range lines {
		_, err := fmt.Fprintf(w, "%-*s  %s\n", width, line.label, paint(line.attr).Sprint(line.value))
		if err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	return nil
}
