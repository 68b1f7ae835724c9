package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/segmenter/pkg/config"
	"github.com/Sumatoshi-tech/segmenter/pkg/mcp"
	"github.com/Sumatoshi-tech/segmenter/pkg/observability"
)

func newMCPCommand(global *globalOptions) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The server exposes two tools:
  - segmenter_cross_sections: compute cross-sections of an inline segment table
  - segmenter_input_schema: JSON schema for JSON or YAML rows

Column names default to the loaded configuration. Logs are written as JSON to
stderr so they do not interfere with the protocol on stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cobraCmd *cobra.Command, _ []string) (err error) {
			cfg, err := config.LoadConfig(global.configPath)
			if err != nil {
				return err
			}

			obsCfg, err := observabilityConfig(cfg, observability.ModeMCP)
			if err != nil {
				return err
			}

			obsCfg.LogJSON = true

			if debug {
				obsCfg.LogLevel = slog.LevelDebug
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

			srv := mcp.NewServer(mcp.ServerDeps{
				Logger:       providers.Logger,
				Metrics:      red,
				SweepMetrics: sweepMetrics,
				Tracer:       providers.Tracer,
				Layout:       cfg.Columns.Layout(),
				Names:        cfg.Output.Names(),
			})

			return srv.Run(cobraCmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging to stderr")

	return cmd
}
