package commands

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/segmenter/pkg/config"
	"github.com/Sumatoshi-tech/segmenter/pkg/crosssection"
	"github.com/Sumatoshi-tech/segmenter/pkg/observability"
	"github.com/Sumatoshi-tech/segmenter/pkg/table"
)

// ErrUnstable is returned by check when re-sweeping the group table changes it.
var ErrUnstable = errors.New("cross-sections are not stable")

// CheckCommand holds the flags of the check command.
type CheckCommand struct {
	global *globalOptions

	inputFormat string
	noColor     bool
}

func newCheckCommand(global *globalOptions) *cobra.Command {
	cc := &CheckCommand{global: global}

	cmd := &cobra.Command{
		Use:   "check <input>",
		Short: "Verify that the cross-sections of a table are stable",
		Long: `Compute the cross-sections of a segment table, then sweep the resulting group
table again with every cross-section as its own segment. Stable output yields
the same ids and bounds; otherwise the differing group-table lines are printed.`,
		Args: cobra.ExactArgs(1),
		RunE: cc.run,
	}

	cmd.Flags().StringVar(&cc.inputFormat, "input-format", config.FormatAuto, "Input format: auto, csv, json, yaml")
	cmd.Flags().BoolVar(&cc.noColor, "no-color", false, "Disable coloured verdict and diff")

	return cmd
}

func (cc *CheckCommand) run(cmd *cobra.Command, args []string) (err error) {
	cfg, err := config.LoadConfig(cc.global.configPath)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("input-format") {
		cfg.Input.Format = cc.inputFormat

		err = cfg.Validate()
		if err != nil {
			return fmt.Errorf("invalid flags: %w", err)
		}
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

	segments, err := readSegments(cmd.InOrStdin(), args[0], cfg)
	if err != nil {
		return err
	}

	opts := crosssection.Options{
		Logger:  providers.Logger,
		Tracer:  providers.Tracer,
		Workers: cfg.Compute.Workers,
	}

	first, err := crosssection.Compute(cmd.Context(), segments, opts)
	if err != nil {
		return err
	}

	second, err := crosssection.Compute(cmd.Context(), first.Segments(), opts)
	if err != nil {
		return fmt.Errorf("re-sweep: %w", err)
	}

	output := table.Output{Names: cfg.Output.Names(), Layout: cfg.Columns.Layout()}

	before, err := groupTableText(output, first, cfg.Output.Precision)
	if err != nil {
		return err
	}

	after, err := groupTableText(output, second, cfg.Output.Precision)
	if err != nil {
		return err
	}

	return reportStability(cmd.OutOrStdout(), before, after, first.Len(), !cc.noColor && !color.NoColor)
}

func groupTableText(output table.Output, result crosssection.Result, precision int) (string, error) {
	var buf bytes.Buffer

	err := table.Write(&buf, []table.Table{output.GroupTable(result)}, table.WriteOptions{
		Format:    table.FormatCSV,
		Precision: precision,
	})
	if err != nil {
		return "", err
	}

	return buf.String(), nil
}

// reportStability prints a verdict and, for unstable output, a line diff of
// the two group tables.
func reportStability(w io.Writer, before, after string, crossSections int, colorize bool) error {
	paint := func(attr color.Attribute) *color.Color {
		c := color.New(attr)
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}

		return c
	}

	if before == after {
		_, err := fmt.Fprintf(w, "%s %d cross-sections\n", paint(color.FgGreen).Sprint("stable:"), crossSections)
		if err != nil {
			return fmt.Errorf("write verdict: %w", err)
		}

		return nil
	}

	dmp := diffmatchpatch.New()
	beforeChars, afterChars, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(beforeChars, afterChars, false), lines)

	var out strings.Builder

	fmt.Fprintf(&out, "%s group table changed on re-sweep\n", paint(color.FgRed).Sprint("unstable:"))

	for _, diff := range diffs {
		var (
			prefix string
			attr   color.Attribute
		)

		switch diff.Type {
		case diffmatchpatch.DiffDelete:
			prefix, attr = "- ", color.FgRed
		case diffmatchpatch.DiffInsert:
			prefix, attr = "+ ", color.FgGreen
		case diffmatchpatch.DiffEqual:
			continue
		}

		for line := range strings.SplitSeq(strings.TrimSuffix(diff.Text, "\n"), "\n") {
			out.WriteString(paint(attr).Sprint(prefix+line) + "\n")
		}
	}

	_, err := io.WriteString(w, out.String())
	if err != nil {
		return fmt.Errorf("write diff: %w", err)
	}

	return ErrUnstable
}
