// Package config provides configuration loading and validation for segmenter.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/segmenter/pkg/table"
)

// Sentinel validation errors.
var (
	ErrNoGroupColumns        = errors.New("at least one group column is required")
	ErrNoCrossSectionColumns = errors.New("at least one cross-section column is required")
	ErrMissingMeasureColumn  = errors.New("measure column name must not be empty")
	ErrDuplicateColumn       = errors.New("column used more than once")
	ErrInvalidFormat         = errors.New("unsupported format")
	ErrInvalidPrecision      = errors.New("float precision must be between -1 and 15")
	ErrInvalidLogLevel       = errors.New("invalid log level")
	ErrInvalidMaxSize        = errors.New("invalid input size limit")
	ErrInvalidSampleRatio    = errors.New("sample ratio must be between 0 and 1")
)

// Supported table formats.
const (
	FormatAuto  = "auto"
	FormatCSV   = "csv"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatTable = "table"
)

// Default configuration values.
const (
	defaultIDColumn      = "cross_section_number"
	defaultIndexColumn   = "original_index"
	defaultOverlapColumn = "overlap"
	defaultPrecision     = -1
	defaultMaxInputSize  = "1GiB"
	maxPrecision         = 15
)

// Config holds all configuration for segmenter.
type Config struct {
	Columns   ColumnsConfig   `mapstructure:"columns"`
	Input     InputConfig     `mapstructure:"input"`
	Output    OutputConfig    `mapstructure:"output"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Compute   ComputeConfig   `mapstructure:"compute"`
}

// ColumnsConfig names the input columns.
type ColumnsConfig struct {
	Group        []string `mapstructure:"group"`
	CrossSection []string `mapstructure:"cross_section"`
	TrueFrom     string   `mapstructure:"true_from"`
	TrueTo       string   `mapstructure:"true_to"`
	SLKFrom      string   `mapstructure:"slk_from"`
	SLKTo        string   `mapstructure:"slk_to"`

	// Index names an optional column carrying the original row number.
	Index string `mapstructure:"index"`
}

// InputConfig controls table reading.
type InputConfig struct {
	Format  string `mapstructure:"format"`
	MaxSize string `mapstructure:"max_size"`
}

// OutputConfig controls table writing.
type OutputConfig struct {
	Format        string `mapstructure:"format"`
	IDColumn      string `mapstructure:"id_column"`
	IndexColumn   string `mapstructure:"index_column"`
	OverlapColumn string `mapstructure:"overlap_column"`
	Precision     int    `mapstructure:"precision"`
	Normalised    bool   `mapstructure:"normalised"`
	Compress      bool   `mapstructure:"compress"`
}

// ComputeConfig holds sweep settings.
type ComputeConfig struct {
	Workers         int  `mapstructure:"workers"`
	ContinueOnError bool `mapstructure:"continue_on_error"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	MetricsFile  string  `mapstructure:"metrics_file"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
}

// LoadConfig loads configuration from file and environment variables.
// An empty configPath searches for segmenter.yaml in the working directory,
// ./config and /etc/segmenter; a missing file is not an error in that case.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("segmenter")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/segmenter")
	}

	viperCfg.SetEnvPrefix("SEGMENTER")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("columns.group", []string{"road"})
	viperCfg.SetDefault("columns.cross_section", []string{"cwy", "xsp"})
	viperCfg.SetDefault("columns.true_from", "true_from")
	viperCfg.SetDefault("columns.true_to", "true_to")
	viperCfg.SetDefault("columns.slk_from", "slk_from")
	viperCfg.SetDefault("columns.slk_to", "slk_to")
	viperCfg.SetDefault("columns.index", "")

	viperCfg.SetDefault("input.format", FormatAuto)
	viperCfg.SetDefault("input.max_size", defaultMaxInputSize)

	viperCfg.SetDefault("output.format", FormatCSV)
	viperCfg.SetDefault("output.normalised", true)
	viperCfg.SetDefault("output.id_column", defaultIDColumn)
	viperCfg.SetDefault("output.index_column", defaultIndexColumn)
	viperCfg.SetDefault("output.overlap_column", defaultOverlapColumn)
	viperCfg.SetDefault("output.precision", defaultPrecision)
	viperCfg.SetDefault("output.compress", false)

	viperCfg.SetDefault("compute.workers", 0)
	viperCfg.SetDefault("compute.continue_on_error", false)

	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.json", false)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.metrics_file", "")
	viperCfg.SetDefault("telemetry.sample_ratio", 0.0)
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	err := c.Columns.validate()
	if err != nil {
		return err
	}

	if !slices.Contains([]string{FormatAuto, FormatCSV, FormatJSON, FormatYAML}, c.Input.Format) {
		return fmt.Errorf("%w: input %q", ErrInvalidFormat, c.Input.Format)
	}

	_, err = c.Input.MaxBytes()
	if err != nil {
		return err
	}

	if !slices.Contains([]string{FormatCSV, FormatJSON, FormatYAML, FormatTable}, c.Output.Format) {
		return fmt.Errorf("%w: output %q", ErrInvalidFormat, c.Output.Format)
	}

	if c.Output.Precision < -1 || c.Output.Precision > maxPrecision {
		return fmt.Errorf("%w: %d", ErrInvalidPrecision, c.Output.Precision)
	}

	_, err = c.Logging.SlogLevel()
	if err != nil {
		return err
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidSampleRatio, c.Telemetry.SampleRatio)
	}

	return nil
}

func (c ColumnsConfig) validate() error {
	if len(c.Group) == 0 {
		return ErrNoGroupColumns
	}

	if len(c.CrossSection) == 0 {
		return ErrNoCrossSectionColumns
	}

	measures := []string{c.TrueFrom, c.TrueTo, c.SLKFrom, c.SLKTo}
	if slices.Contains(measures, "") {
		return ErrMissingMeasureColumn
	}

	seen := make(map[string]bool)

	names := slices.Concat(c.Group, c.CrossSection, measures)
	if c.Index != "" {
		names = append(names, c.Index)
	}

	for _, name := range names {
		if seen[name] {
			return fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
		}

		seen[name] = true
	}

	return nil
}

// Layout returns the table layout for these columns.
func (c ColumnsConfig) Layout() table.Layout {
	return table.Layout{
		Group:        c.Group,
		CrossSection: c.CrossSection,
		TrueFrom:     c.TrueFrom,
		TrueTo:       c.TrueTo,
		SLKFrom:      c.SLKFrom,
		SLKTo:        c.SLKTo,
		Index:        c.Index,
	}
}

// Names returns the output column names.
func (c OutputConfig) Names() table.Names {
	return table.Names{ID: c.IDColumn, Index: c.IndexColumn, Overlap: c.OverlapColumn}
}

// MaxBytes parses MaxSize ("512MB", "1GiB"). Zero means unlimited.
func (c InputConfig) MaxBytes() (uint64, error) {
	if strings.TrimSpace(c.MaxSize) == "" {
		return 0, nil
	}

	size, err := humanize.ParseBytes(c.MaxSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidMaxSize, c.MaxSize, err)
	}

	return size, nil
}

// SlogLevel maps Level onto a slog level.
func (c LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(c.Level))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Level)
	}

	return level, nil
}
