package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/segmenter/pkg/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "segmenter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, []string{"road"}, cfg.Columns.Group)
	assert.Equal(t, []string{"cwy", "xsp"}, cfg.Columns.CrossSection)
	assert.Equal(t, "true_from", cfg.Columns.TrueFrom)
	assert.Equal(t, "slk_to", cfg.Columns.SLKTo)
	assert.Equal(t, config.FormatAuto, cfg.Input.Format)
	assert.Equal(t, config.FormatCSV, cfg.Output.Format)
	assert.True(t, cfg.Output.Normalised)
	assert.Equal(t, "cross_section_number", cfg.Output.IDColumn)
	assert.Equal(t, "original_index", cfg.Output.IndexColumn)
	assert.Equal(t, "overlap", cfg.Output.OverlapColumn)
	assert.Equal(t, -1, cfg.Output.Precision)
	assert.Zero(t, cfg.Compute.Workers)
	assert.False(t, cfg.Compute.ContinueOnError)
	assert.Equal(t, "info", cfg.Logging.Level)

	maxBytes, err := cfg.Input.MaxBytes()
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<30), maxBytes)
}

func TestLoadConfig_FromFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
columns:
  group: [road, cwy]
  cross_section: [xsp]
  true_from: start_true
  true_to: end_true
input:
  max_size: 64MB
output:
  format: json
  normalised: false
  id_column: cs_id
  precision: 3
compute:
  workers: 4
  continue_on_error: true
logging:
  level: debug
  json: true
telemetry:
  metrics_file: /tmp/segmenter.prom
  sample_ratio: 0.5
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"road", "cwy"}, cfg.Columns.Group)
	assert.Equal(t, []string{"xsp"}, cfg.Columns.CrossSection)
	assert.Equal(t, "start_true", cfg.Columns.TrueFrom)
	assert.Equal(t, "slk_from", cfg.Columns.SLKFrom, "unset keys keep defaults")
	assert.Equal(t, config.FormatJSON, cfg.Output.Format)
	assert.False(t, cfg.Output.Normalised)
	assert.Equal(t, "cs_id", cfg.Output.IDColumn)
	assert.Equal(t, "overlap", cfg.Output.OverlapColumn)
	assert.Equal(t, 3, cfg.Output.Precision)
	assert.Equal(t, 4, cfg.Compute.Workers)
	assert.True(t, cfg.Compute.ContinueOnError)
	assert.True(t, cfg.Logging.JSON)
	assert.Equal(t, "/tmp/segmenter.prom", cfg.Telemetry.MetricsFile)
	assert.InDelta(t, 0.5, cfg.Telemetry.SampleRatio, 0)

	maxBytes, err := cfg.Input.MaxBytes()
	require.NoError(t, err)
	assert.Equal(t, uint64(64_000_000), maxBytes)

	level, err := cfg.Logging.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("SEGMENTER_OUTPUT_FORMAT", "yaml")
	t.Setenv("SEGMENTER_COMPUTE_WORKERS", "3")
	t.Setenv("SEGMENTER_COLUMNS_CROSS_SECTION", "cwy,xsp,lane")

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, config.FormatYAML, cfg.Output.Format)
	assert.Equal(t, 3, cfg.Compute.Workers)
	assert.Equal(t, []string{"cwy", "xsp", "lane"}, cfg.Columns.CrossSection)
}

func TestLoadConfig_ExplicitPathNotFound(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig("/nonexistent/path/segmenter.yaml")
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, "columns: [unterminated"))
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoadConfig_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"no_group", "columns:\n  group: []\n", config.ErrNoGroupColumns},
		{"no_cross_section", "columns:\n  cross_section: []\n", config.ErrNoCrossSectionColumns},
		{"empty_measure", "columns:\n  slk_to: \"\"\n", config.ErrMissingMeasureColumn},
		{"duplicate", "columns:\n  group: [cwy]\n", config.ErrDuplicateColumn},
		{"duplicate_index", "columns:\n  index: true_from\n", config.ErrDuplicateColumn},
		{"input_format", "input:\n  format: parquet\n", config.ErrInvalidFormat},
		{"output_format", "output:\n  format: xml\n", config.ErrInvalidFormat},
		{"precision", "output:\n  precision: 40\n", config.ErrInvalidPrecision},
		{"log_level", "logging:\n  level: chatty\n", config.ErrInvalidLogLevel},
		{"max_size", "input:\n  max_size: lots\n", config.ErrInvalidMaxSize},
		{"sample_ratio", "telemetry:\n  sample_ratio: 2\n", config.ErrInvalidSampleRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := config.LoadConfig(writeConfig(t, tt.content))
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, cfg)
		})
	}
}

func TestConfig_LayoutAndNames(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
columns:
  index: row_id
output:
  id_column: cs
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	layout := cfg.Columns.Layout()
	assert.Equal(t, []string{"road"}, layout.Group)
	assert.Equal(t, []string{"cwy", "xsp"}, layout.CrossSection)
	assert.Equal(t, "row_id", layout.Index)
	assert.Equal(t, []string{"true_from", "true_to", "slk_from", "slk_to"}, layout.Measures())

	names := cfg.Output.Names()
	assert.Equal(t, "cs", names.ID)
	assert.Equal(t, "original_index", names.Index)
	assert.Equal(t, "overlap", names.Overlap)
}
