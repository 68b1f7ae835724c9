// Package commands implements CLI command handlers for segmenter.
package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/segmenter/pkg/config"
	"github.com/Sumatoshi-tech/segmenter/pkg/observability"
	"github.com/Sumatoshi-tech/segmenter/pkg/version"
)

// ErrStdinFormat is returned when reading stdin without an explicit format.
var ErrStdinFormat = errors.New("reading stdin requires --input-format csv, json or yaml")

// stdinPath selects standard input in place of an input file.
const stdinPath = "-"

// globalOptions are the persistent flags shared by all commands.
type globalOptions struct {
	configPath string
}

// NewRootCommand creates the segmenter command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "segmenter",
		Short: "Split overlapping linear-referenced segments into cross-sections",
		Long: `segmenter reads a table of segments located along a linear measure
(for example road sections with true and SLK distances) and splits each group
into cross-sections: maximal runs where the set of overlapping segments does
not change.

Commands:
  run       Compute cross-sections and write the output tables
  check     Verify that the cross-sections of a table are stable
  mcp       Serve the computation as an MCP tool over stdio`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"Config file (default: segmenter.yaml in ., ./config or /etc/segmenter)")

	rootCmd.AddCommand(newRunCommand(opts))
	rootCmd.AddCommand(newCheckCommand(opts))
	rootCmd.AddCommand(newMCPCommand(opts))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

// observabilityConfig maps the loaded configuration onto observability settings.
func observabilityConfig(cfg *config.Config, mode observability.AppMode) (observability.Config, error) {
	level, err := cfg.Logging.SlogLevel()
	if err != nil {
		return observability.Config{}, err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Logging.JSON
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Telemetry.OTLPHeaders)
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.MetricsFile = cfg.Telemetry.MetricsFile
	obsCfg.SampleRatio = cfg.Telemetry.SampleRatio

	return obsCfg, nil
}

// shutdownObservability flushes telemetry and joins any failure into err.
func shutdownObservability(providers observability.Providers, err *error) {
	shutdownErr := providers.Shutdown(context.Background())
	if shutdownErr != nil {
		*err = errors.Join(*err, fmt.Errorf("observability shutdown: %w", shutdownErr))
	}
}
