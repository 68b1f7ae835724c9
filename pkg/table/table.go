// Package table reads linear-referenced segment tables and writes
// cross-section tables in CSV, JSON and YAML, optionally LZ4-framed.
package table

import (
	"errors"
	"path/filepath"
	"slices"
	"strings"
)

// Sentinel errors.
var (
	ErrMissingColumn     = errors.New("missing column")
	ErrInvalidValue      = errors.New("invalid value")
	ErrSchemaViolation   = errors.New("input does not match the table schema")
	ErrUnsupportedFormat = errors.New("unsupported table format")
	ErrInputTooLarge     = errors.New("input exceeds size limit")
)

// Table formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

const compressedExt = ".lz4"

// Layout names the input columns that carry segment data. Index is optional;
// when empty, rows are identified by their position in the input.
type Layout struct {
	Group        []string
	CrossSection []string
	TrueFrom     string
	TrueTo       string
	SLKFrom      string
	SLKTo        string
	Index        string
}

// DefaultLayout returns the road-network layout: grouped by road, split by
// carriageway and cross-section position.
func DefaultLayout() Layout {
	return Layout{
		Group:        []string{"road"},
		CrossSection: []string{"cwy", "xsp"},
		TrueFrom:     "true_from",
		TrueTo:       "true_to",
		SLKFrom:      "slk_from",
		SLKTo:        "slk_to",
	}
}

// Measures returns the measure column names in from/to, true/slk order.
func (l Layout) Measures() []string {
	return []string{l.TrueFrom, l.TrueTo, l.SLKFrom, l.SLKTo}
}

// Categories returns the group then cross-section column names.
func (l Layout) Categories() []string {
	return slices.Concat(l.Group, l.CrossSection)
}

// Table is a named, ordered set of columns and rows. Cells hold string, int or
// float64 values.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// DetectFormat derives the format from a file name such as "roads.csv" or
// "roads.json.lz4" and reports whether the file is LZ4-framed.
func DetectFormat(path string) (string, bool, error) {
	name := strings.ToLower(filepath.Base(path))

	compressed := strings.HasSuffix(name, compressedExt)
	name = strings.TrimSuffix(name, compressedExt)

	switch filepath.Ext(name) {
	case ".csv":
		return FormatCSV, compressed, nil
	case ".json":
		return FormatJSON, compressed, nil
	case ".yaml", ".yml":
		return FormatYAML, compressed, nil
	default:
		return "", compressed, ErrUnsupportedFormat
	}
}
