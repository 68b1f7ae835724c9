package crosssection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/segmenter/pkg/observability"
)

// Options configures Compute. The zero value is usable.
type Options struct {
	// Logger receives per-group debug records. Nil disables logging.
	Logger *slog.Logger

	// Tracer creates the compute and per-group spans. Nil disables tracing.
	Tracer trace.Tracer

	// Metrics records per-group statistics. Nil disables metrics.
	Metrics *observability.SweepMetrics

	// Workers bounds the number of groups swept concurrently.
	// Zero or negative means runtime.GOMAXPROCS(0).
	Workers int

	// ContinueOnError excludes failing groups instead of aborting. The
	// remaining groups are returned together with the joined group errors.
	ContinueOnError bool
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}

	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}

	if o.Tracer == nil {
		o.Tracer = nooptrace.NewTracerProvider().Tracer("")
	}

	return o
}

// Compute derives the cross-sections of segments.
//
// Segments are partitioned by group key and each group is swept independently
// on a bounded pool of goroutines. Cross-section ids are dense and ascend with
// the group key, then with true measure inside a group. A group failure is
// returned as a *GroupError.
func Compute(ctx context.Context, segments []Segment, opts Options) (Result, error) {
	opts = opts.withDefaults()

	ctx, span := opts.Tracer.Start(ctx, "crosssection.Compute",
		trace.WithAttributes(attribute.Int("segments", len(segments))))
	defer span.End()

	groups, err := partition(segments)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return Result{}, err
	}

	span.SetAttributes(attribute.Int("groups", len(groups)))

	perGroup := make([][]CrossSection, len(groups))
	groupErrs := make([]error, len(groups))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(opts.Workers)

	for idx, grp := range groups {
		eg.Go(func() error {
			ctxErr := egCtx.Err()
			if ctxErr != nil {
				return fmt.Errorf("compute: %w", ctxErr)
			}

			sections, groupErr := computeGroup(egCtx, grp, opts)
			if groupErr == nil {
				perGroup[idx] = sections

				return nil
			}

			wrapped := &GroupError{Group: grp.key, Err: groupErr}
			if !opts.ContinueOnError {
				return wrapped
			}

			groupErrs[idx] = wrapped

			return nil
		})
	}

	err = eg.Wait()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return Result{}, err
	}

	result := renumber(perGroup)
	span.SetAttributes(attribute.Int("cross_sections", result.Len()))

	joined := errors.Join(groupErrs...)
	if joined != nil {
		span.RecordError(joined)
		span.SetStatus(codes.Error, "some groups failed")
	}

	return result, joined
}

// ComputeGroup sweeps a single group and returns its cross-sections with
// local ids starting at zero.
func ComputeGroup(segments []Segment) ([]CrossSection, error) {
	if len(segments) == 0 {
		return nil, nil
	}

	sections, _, err := sweepGroup(group{key: segments[0].Group, segments: segments})

	return sections, err
}

func computeGroup(ctx context.Context, grp group, opts Options) ([]CrossSection, error) {
	ctx, span := opts.Tracer.Start(ctx, "crosssection.group",
		trace.WithAttributes(
			attribute.String("group", strings.Join(grp.key, "/")),
			attribute.Int("segments", len(grp.segments)),
		))
	defer span.End()

	ctx = observability.WithLogAttrs(ctx, slog.String("group", formatKey(grp.key)))

	start := time.Now()
	sections, stats, err := sweepGroup(grp)
	stats.Duration = time.Since(start)
	stats.Err = err

	opts.Metrics.RecordGroup(ctx, stats)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		opts.Logger.WarnContext(ctx, "group failed", slog.Any("error", err))

		return nil, err
	}

	span.SetAttributes(attribute.Int("cross_sections", len(sections)))
	opts.Logger.DebugContext(ctx, "group swept",
		slog.Int("segments", stats.Segments),
		slog.Int("events", stats.Events),
		slog.Int("transitions", stats.Transitions),
		slog.Int("cross_sections", stats.CrossSections),
		slog.Duration("duration", stats.Duration))

	return sections, nil
}

func sweepGroup(grp group) ([]CrossSection, observability.GroupStats, error) {
	stats := observability.GroupStats{Segments: len(grp.segments)}

	err := validateGroup(grp.segments)
	if err != nil {
		return nil, stats, err
	}

	events := buildEvents(grp.segments)
	transitions := sweep(events)
	sections := assemble(grp.key, mergeTransitions(transitions))

	stats.Events = len(events)
	stats.Transitions = len(transitions)
	stats.CrossSections = len(sections)

	return sections, stats, nil
}
