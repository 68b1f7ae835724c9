package observability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/segmenter/pkg/observability"
)

func newTestReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()

	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

func sumInt64(t *testing.T, rm metricdata.ResourceMetrics, name string, attrs ...attribute.KeyValue) int64 {
	t.Helper()

	found := findMetric(rm, name)
	require.NotNil(t, found, "%s metric not found", name)

	sum, ok := found.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", name)

	want := attribute.NewSet(attrs...)

	var total int64

	for _, dp := range sum.DataPoints {
		if len(attrs) == 0 || dp.Attributes.Equals(&want) {
			total += dp.Value
		}
	}

	return total
}

func TestREDMetrics_RecordRequest(t *testing.T) {
	t.Parallel()

	reader, mp := newTestReader()

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	red.RecordRequest(ctx, "cross_sections", observability.StatusOK, 100*time.Millisecond)
	red.RecordRequest(ctx, "cross_sections", observability.StatusError, time.Second)

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(2), sumInt64(t, rm, "segmenter.requests.total"))
	assert.Equal(t, int64(1), sumInt64(t, rm, "segmenter.errors.total",
		attribute.String("op", "cross_sections")))
	assert.NotNil(t, findMetric(rm, "segmenter.request.duration.seconds"))
}

func TestREDMetrics_TrackInflight(t *testing.T) {
	t.Parallel()

	reader, mp := newTestReader()

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	done := red.TrackInflight(ctx, "cross_sections")

	assert.Equal(t, int64(1), sumInt64(t, collectMetrics(t, reader), "segmenter.inflight.requests"))

	done()

	assert.Equal(t, int64(0), sumInt64(t, collectMetrics(t, reader), "segmenter.inflight.requests"))
}

func TestSweepMetrics_RecordGroup(t *testing.T) {
	t.Parallel()

	reader, mp := newTestReader()

	sm, err := observability.NewSweepMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	sm.RecordGroup(ctx, observability.GroupStats{
		Duration: time.Millisecond, Segments: 3, Events: 6, Transitions: 4, CrossSections: 3,
	})
	sm.RecordGroup(ctx, observability.GroupStats{Err: errors.New("boom"), Segments: 1})

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(1), sumInt64(t, rm, "segmenter.sweep.groups.total", attribute.String("outcome", "ok")))
	assert.Equal(t, int64(1), sumInt64(t, rm, "segmenter.sweep.groups.total", attribute.String("outcome", "error")))
	assert.Equal(t, int64(4), sumInt64(t, rm, "segmenter.sweep.segments.total"))
	assert.Equal(t, int64(6), sumInt64(t, rm, "segmenter.sweep.events.total"))
	assert.Equal(t, int64(3), sumInt64(t, rm, "segmenter.sweep.cross_sections.total"))
	assert.NotNil(t, findMetric(rm, "segmenter.sweep.group.duration.seconds"))
}

func TestSweepMetrics_NilReceiver(t *testing.T) {
	t.Parallel()

	var sm *observability.SweepMetrics

	assert.NotPanics(t, func() {
		sm.RecordGroup(context.Background(), observability.GroupStats{Segments: 1})
	})
}
