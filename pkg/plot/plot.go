// Package plot renders an HTML overview of computed cross-sections.
package plot

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/segmenter/pkg/crosssection"
)

const (
	chartWidth       = "100%"
	chartHeight      = "480px"
	emptyChartHeight = "320px"
	labelRotate      = 30
	lineWidth        = 2

	// PageTitle is the HTML document title.
	PageTitle = "Cross-sections"

	groupChartTitle  = "Cross-sections per group"
	memberChartTitle = "Members per cross-section"
)

// Write renders result as a self-contained HTML page to w.
func Write(w io.Writer, result crosssection.Result) error {
	page := components.NewPage()
	page.PageTitle = PageTitle

	if result.Len() == 0 {
		page.AddCharts(emptyChart(groupChartTitle))
	} else {
		page.AddCharts(groupChart(result), memberChart(result))
	}

	err := page.Render(w)
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}

	return nil
}

type groupTotals struct {
	label  string
	count  int
	length float64
}

// totalsByGroup relies on Result listing groups contiguously.
func totalsByGroup(result crosssection.Result) []groupTotals {
	var totals []groupTotals

	for _, cs := range result.CrossSections {
		label := strings.Join(cs.Group, " / ")
		if len(totals) == 0 || totals[len(totals)-1].label != label {
			totals = append(totals, groupTotals{label: label})
		}

		last := &totals[len(totals)-1]
		last.count++
		last.length += cs.Length()
	}

	return totals
}

func groupChart(result crosssection.Result) *charts.Bar {
	totals := totalsByGroup(result)

	labels := make([]string, len(totals))
	counts := make([]opts.BarData, len(totals))
	lengths := make([]opts.BarData, len(totals))

	for i, total := range totals {
		labels[i] = total.label
		counts[i] = opts.BarData{Value: total.count}
		lengths[i] = opts.BarData{Value: total.length}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: groupChartTitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "5%"}),
		charts.WithXAxisOpts(opts.XAxis{
			Name:      "Group",
			AxisLabel: &opts.AxisLabel{Rotate: labelRotate, Interval: "0"},
		}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Count / length"}),
	)
	bar.SetXAxis(labels).
		AddSeries("cross-sections", counts).
		AddSeries("total length", lengths)

	return bar
}

func memberChart(result crosssection.Result) *charts.Line {
	labels := make([]string, result.Len())
	members := make([]opts.LineData, result.Len())

	for i, cs := range result.CrossSections {
		labels[i] = strconv.Itoa(cs.ID)
		members[i] = opts.LineData{Value: len(cs.Members)}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: memberChartTitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Cross-section"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Members"}),
	)
	line.SetXAxis(labels)
	line.AddSeries("members", members,
		charts.WithLineChartOpts(opts.LineChart{Step: "end"}),
		charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidth}),
	)

	return line
}

func emptyChart(title string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: emptyChartHeight}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: "No data"}),
	)

	return line
}
