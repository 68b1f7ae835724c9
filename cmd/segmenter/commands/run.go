package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/segmenter/pkg/config"
	"github.com/Sumatoshi-tech/segmenter/pkg/crosssection"
	"github.com/Sumatoshi-tech/segmenter/pkg/observability"
	"github.com/Sumatoshi-tech/segmenter/pkg/plot"
	"github.com/Sumatoshi-tech/segmenter/pkg/render"
	"github.com/Sumatoshi-tech/segmenter/pkg/table"
)

// ErrGroupsFailed is returned by run when groups were skipped under
// --continue-on-error. The output of the other groups is still written.
var ErrGroupsFailed = errors.New("some groups failed")

const opRun = "run"

// RunCommand holds the flags of the run command.
type RunCommand struct {
	global *globalOptions

	format          string
	inputFormat     string
	outputPath      string
	plotPath        string
	metricsFile     string
	precision       int
	workers         int
	normalised      bool
	compress        bool
	continueOnError bool
	quiet           bool
	noColor         bool
}

func newRunCommand(global *globalOptions) *cobra.Command {
	rc := &RunCommand{global: global}

	cmd := &cobra.Command{
		Use:   "run <input>",
		Short: "Compute cross-sections of a segment table",
		Long: `Read a CSV, JSON or YAML segment table (optionally .lz4 framed), compute its
cross-sections and write them as a groups table plus a sections table, or as a
single joined table with --normalised=false. Use "-" to read stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: rc.run,
	}

	cmd.Flags().StringVarP(&rc.format, "format", "f", config.FormatCSV, "Output format: csv, json, yaml, table")
	cmd.Flags().StringVar(&rc.inputFormat, "input-format", config.FormatAuto, "Input format: auto, csv, json, yaml")
	cmd.Flags().StringVarP(&rc.outputPath, "output", "o", "", "Output file (default: stdout); the extension selects the format")
	cmd.Flags().StringVar(&rc.plotPath, "plot", "", "Write an HTML chart of the cross-sections to this file")
	cmd.Flags().StringVar(&rc.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
	cmd.Flags().IntVar(&rc.precision, "precision", -1, "Decimals for measures (-1 = full precision)")
	cmd.Flags().IntVarP(&rc.workers, "workers", "w", 0, "Groups swept in parallel (0 = CPU count)")
	cmd.Flags().BoolVar(&rc.normalised, "normalised", true, "Write separate groups and sections tables")
	cmd.Flags().BoolVar(&rc.compress, "compress", false, "LZ4-frame the output")
	cmd.Flags().BoolVar(&rc.continueOnError, "continue-on-error", false, "Skip failing groups instead of aborting")
	cmd.Flags().BoolVarP(&rc.quiet, "quiet", "q", false, "Do not print the run summary")
	cmd.Flags().BoolVar(&rc.noColor, "no-color", false, "Disable coloured summary")

	return cmd
}

// applyFlags overrides configuration values with explicitly set flags.
func (rc *RunCommand) applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("format") {
		cfg.Output.Format = rc.format
	}

	if flags.Changed("input-format") {
		cfg.Input.Format = rc.inputFormat
	}

	if flags.Changed("precision") {
		cfg.Output.Precision = rc.precision
	}

	if flags.Changed("normalised") {
		cfg.Output.Normalised = rc.normalised
	}

	if flags.Changed("compress") {
		cfg.Output.Compress = rc.compress
	}

	if flags.Changed("workers") {
		cfg.Compute.Workers = rc.workers
	}

	if flags.Changed("continue-on-error") {
		cfg.Compute.ContinueOnError = rc.continueOnError
	}

	if flags.Changed("metrics-file") {
		cfg.Telemetry.MetricsFile = rc.metricsFile
	}

	return cfg.Validate()
}

func (rc *RunCommand) run(cmd *cobra.Command, args []string) (err error) {
	cfg, err := config.LoadConfig(rc.global.configPath)
	if err != nil {
		return err
	}

	err = rc.applyFlags(cmd, cfg)
	if err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	obsCfg, err := observabilityConfig(cfg, observability.ModeCLI)
	if err != nil {
		return err
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	defer shutdownObservability(providers, &err)

	red, err := observability.NewREDMetrics(providers.Meter)
	if err != nil {
		return err
	}

	sweepMetrics, err := observability.NewSweepMetrics(providers.Meter)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	start := time.Now()

	decInflight := red.TrackInflight(ctx, opRun)
	defer decInflight()

	defer func() {
		status := observability.StatusOK
		if err != nil {
			status = observability.StatusError
		}

		red.RecordRequest(ctx, opRun, status, time.Since(start))
	}()

	segments, err := readSegments(cmd.InOrStdin(), args[0], cfg)
	if err != nil {
		return err
	}

	providers.Logger.DebugContext(ctx, "input read", "path", args[0], "segments", len(segments))

	result, computeErr := crosssection.Compute(ctx, segments, crosssection.Options{
		Logger:          providers.Logger,
		Tracer:          providers.Tracer,
		Metrics:         sweepMetrics,
		Workers:         cfg.Compute.Workers,
		ContinueOnError: cfg.Compute.ContinueOnError,
	})

	failed := len(groupErrors(computeErr))
	if computeErr != nil && (!cfg.Compute.ContinueOnError || failed == 0) {
		return computeErr
	}

	output := table.Output{Names: cfg.Output.Names(), Layout: cfg.Columns.Layout()}

	err = rc.writeOutput(cmd, cfg, output.Tables(result, cfg.Output.Normalised))
	if err != nil {
		return err
	}

	if rc.plotPath != "" {
		err = writePlot(rc.plotPath, result)
		if err != nil {
			return err
		}
	}

	if !rc.quiet {
		summary := render.Summarize(segments, result, failed)

		err = render.WriteSummary(cmd.ErrOrStderr(), summary, !rc.noColor && !color.NoColor)
		if err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%w (%d): %w", ErrGroupsFailed, failed, computeErr)
	}

	return nil
}

func (rc *RunCommand) writeOutput(cmd *cobra.Command, cfg *config.Config, tables []table.Table) error {
	format := cfg.Output.Format
	compressed := cfg.Output.Compress

	if rc.outputPath != "" && !cmd.Flags().Changed("format") {
		detected, lz4Framed, detectErr := table.DetectFormat(rc.outputPath)
		if detectErr == nil {
			format = detected
			compressed = compressed || lz4Framed
		}
	}

	if format == config.FormatTable {
		return writeText(cmd.OutOrStdout(), rc.outputPath, func(w io.Writer) error {
			return render.WriteTables(w, tables, cfg.Output.Precision)
		})
	}

	opts := table.WriteOptions{Format: format, Precision: cfg.Output.Precision, Compressed: compressed}

	if rc.outputPath != "" {
		return table.WriteFile(rc.outputPath, tables, opts)
	}

	return table.Write(cmd.OutOrStdout(), tables, opts)
}

// writeText runs write against path, or against stdout when path is empty.
func writeText(stdout io.Writer, path string, write func(io.Writer) error) (err error) {
	if path == "" {
		return write(stdout)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	defer func() {
		err = errors.Join(err, file.Close())
	}()

	return write(file)
}

func writePlot(path string, result crosssection.Result) error {
	return writeText(nil, path, func(w io.Writer) error {
		return plot.Write(w, result)
	})
}

// readSegments reads the input table at path, or stdin for "-".
func readSegments(stdin io.Reader, path string, cfg *config.Config) ([]crosssection.Segment, error) {
	maxBytes, err := cfg.Input.MaxBytes()
	if err != nil {
		return nil, err
	}

	opts := table.ReadOptions{
		Layout:   cfg.Columns.Layout(),
		Format:   cfg.Input.Format,
		MaxBytes: maxBytes,
	}

	if path != stdinPath {
		return table.ReadFile(path, opts)
	}

	if opts.Format == config.FormatAuto {
		return nil, ErrStdinFormat
	}

	segments, err := table.Read(stdin, opts)
	if err != nil {
		return nil, fmt.Errorf("stdin: %w", err)
	}

	return segments, nil
}

// groupErrors extracts the per-group failures from a Compute error.
func groupErrors(err error) []*crosssection.GroupError {
	if err == nil {
		return nil
	}

	var groupErr *crosssection.GroupError

	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		if errors.As(err, &groupErr) {
			return []*crosssection.GroupError{groupErr}
		}

		return nil
	}

	var out []*crosssection.GroupError

	for _, inner := range joined.Unwrap() {
		if errors.As(inner, &groupErr) {
			out = append(out, groupErr)
		}
	}

	return out
}
