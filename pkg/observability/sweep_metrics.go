package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricGroupsTotal        = "segmenter.sweep.groups.total"
	metricSegmentsTotal      = "segmenter.sweep.segments.total"
	metricEventsTotal        = "segmenter.sweep.events.total"
	metricTransitionsTotal   = "segmenter.sweep.transitions.total"
	metricCrossSectionsTotal = "segmenter.sweep.cross_sections.total"
	metricGroupDuration      = "segmenter.sweep.group.duration.seconds"

	attrOutcome = "outcome"
)

// SweepMetrics holds OTel instruments for the per-group sweep.
type SweepMetrics struct {
	groups        metric.Int64Counter
	segments      metric.Int64Counter
	events        metric.Int64Counter
	transitions   metric.Int64Counter
	crossSections metric.Int64Counter
	groupDuration metric.Float64Histogram
}

// GroupStats describes one finished group.
type GroupStats struct {
	Err           error
	Duration      time.Duration
	Segments      int
	Events        int
	Transitions   int
	CrossSections int
}

// NewSweepMetrics creates sweep instruments from the given meter.
func NewSweepMetrics(mt metric.Meter) (*SweepMetrics, error) {
	b := &metricBuilder{meter: mt}

	sm := &SweepMetrics{
		groups:        b.counter(metricGroupsTotal, "Groups processed by outcome", "{group}"),
		segments:      b.counter(metricSegmentsTotal, "Input segments swept", "{segment}"),
		events:        b.counter(metricEventsTotal, "Sweep events replayed", "{event}"),
		transitions:   b.counter(metricTransitionsTotal, "Positive-length transitions before merging", "{transition}"),
		crossSections: b.counter(metricCrossSectionsTotal, "Cross-sections emitted", "{cross_section}"),
		groupDuration: b.histogram(metricGroupDuration, "Per-group sweep duration in seconds", "s", durationBucketBoundaries...),
	}

	if b.err != nil {
		return nil, b.err
	}

	return sm, nil
}

// RecordGroup records one finished group. Safe to call on a nil receiver (no-op).
func (sm *SweepMetrics) RecordGroup(ctx context.Context, stats GroupStats) {
	if sm == nil {
		return
	}

	outcome := StatusOK
	if stats.Err != nil {
		outcome = StatusError
	}

	attrs := metric.WithAttributes(attribute.String(attrOutcome, outcome))

	sm.groups.Add(ctx, 1, attrs)
	sm.groupDuration.Record(ctx, stats.Duration.Seconds(), attrs)
	sm.segments.Add(ctx, int64(stats.Segments))
	sm.events.Add(ctx, int64(stats.Events))
	sm.transitions.Add(ctx, int64(stats.Transitions))
	sm.crossSections.Add(ctx, int64(stats.CrossSections))
}
