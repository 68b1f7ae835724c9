package table

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"

	"github.com/pierrec/lz4/v4"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/segmenter/pkg/crosssection"
)

// Table names used for the normalised output.
const (
	GroupsTable   = "groups"
	SectionsTable = "sections"
	JoinedTable   = "cross_sections"
)

// Names holds the output column names that are not taken from the input layout.
type Names struct {
	ID      string
	Index   string
	Overlap string
}

// DefaultNames returns the conventional output column names.
func DefaultNames() Names {
	return Names{ID: "cross_section_number", Index: "original_index", Overlap: "overlap"}
}

// Output turns a result into tables using the input layout's column names.
type Output struct {
	Names  Names
	Layout Layout
}

// GroupTable returns [id, group..., true_from, true_to, slk_from, slk_to].
func (o Output) GroupTable(result crosssection.Result) Table {
	columns := slices.Concat([]string{o.Names.ID}, o.Layout.Group, o.Layout.Measures())

	rows := make([][]any, 0, result.Len())
	for _, row := range result.GroupTable() {
		cells := make([]any, 0, len(columns))
		cells = append(cells, row.ID)
		cells = appendStrings(cells, row.Group)
		cells = append(cells, row.TrueFrom, row.TrueTo, row.SLKFrom, row.SLKTo)
		rows = append(rows, cells)
	}

	return Table{Name: GroupsTable, Columns: columns, Rows: rows}
}

// SectionTable returns [id, cross_section..., index, overlap].
func (o Output) SectionTable(result crosssection.Result) Table {
	columns := slices.Concat([]string{o.Names.ID}, o.Layout.CrossSection, []string{o.Names.Index, o.Names.Overlap})

	var rows [][]any

	for _, row := range result.SectionTable() {
		cells := make([]any, 0, len(columns))
		cells = append(cells, row.ID)
		cells = appendStrings(cells, row.Section)
		cells = append(cells, row.Index, row.Overlap)
		rows = append(rows, cells)
	}

	return Table{Name: SectionsTable, Columns: columns, Rows: rows}
}

// Joined returns the single-table form keyed by id.
func (o Output) Joined(result crosssection.Result) Table {
	columns := slices.Concat(
		[]string{o.Names.ID}, o.Layout.Group, o.Layout.CrossSection, o.Layout.Measures(),
		[]string{o.Names.Index, o.Names.Overlap},
	)

	var rows [][]any

	for _, row := range result.Rows() {
		cells := make([]any, 0, len(columns))
		cells = append(cells, row.ID)
		cells = appendStrings(cells, row.Group)
		cells = appendStrings(cells, row.Section)
		cells = append(cells, row.TrueFrom, row.TrueTo, row.SLKFrom, row.SLKTo, row.Index, row.Overlap)
		rows = append(rows, cells)
	}

	return Table{Name: JoinedTable, Columns: columns, Rows: rows}
}

// Tables returns the group and section tables, or the joined table.
func (o Output) Tables(result crosssection.Result, normalised bool) []Table {
	if normalised {
		return []Table{o.GroupTable(result), o.SectionTable(result)}
	}

	return []Table{o.Joined(result)}
}

func appendStrings(cells []any, values []string) []any {
	for _, value := range values {
		cells = append(cells, value)
	}

	return cells
}

// WriteOptions configures Write.
type WriteOptions struct {
	Format string

	// Precision is the number of decimals for floats; -1 keeps full precision.
	Precision int

	// Compressed frames the output with LZ4.
	Compressed bool
}

// WriteFile writes tables to path. An empty opts.Format is derived from the
// file name, as is compression for names ending in ".lz4".
func WriteFile(path string, tables []Table, opts WriteOptions) (err error) {
	format, compressed, detectErr := DetectFormat(path)
	if opts.Format == "" {
		if detectErr != nil {
			return fmt.Errorf("%s: %w", path, detectErr)
		}

		opts.Format = format
	}

	opts.Compressed = opts.Compressed || compressed

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	defer func() {
		err = errors.Join(err, file.Close())
	}()

	return Write(file, tables, opts)
}

// Write encodes tables to w. CSV tables are separated by a blank line. JSON
// and YAML encode a single table as a list of row objects and several tables
// as an object keyed by table name.
func Write(w io.Writer, tables []Table, opts WriteOptions) error {
	if !opts.Compressed {
		return encode(w, tables, opts)
	}

	zw := lz4.NewWriter(w)

	err := encode(zw, tables, opts)
	if err != nil {
		return err
	}

	err = zw.Close()
	if err != nil {
		return fmt.Errorf("close lz4 writer: %w", err)
	}

	return nil
}

func encode(w io.Writer, tables []Table, opts WriteOptions) error {
	switch opts.Format {
	case FormatCSV:
		return writeCSV(w, tables, opts.Precision)
	case FormatJSON:
		return writeJSON(w, tables, opts.Precision)
	case FormatYAML:
		return writeYAML(w, tables, opts.Precision)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, opts.Format)
	}
}

// FormatCell renders a cell as text.
func FormatCell(cell any, precision int) string {
	switch value := cell.(type) {
	case string:
		return value
	case int:
		return strconv.Itoa(value)
	case float64:
		return strconv.FormatFloat(value, 'f', precision, 64)
	default:
		return fmt.Sprint(value)
	}
}

func roundCell(cell any, precision int) any {
	value, ok := cell.(float64)
	if !ok || precision < 0 {
		return cell
	}

	scale := math.Pow10(precision)

	return math.Round(value*scale) / scale
}

func writeCSV(w io.Writer, tables []Table, precision int) error {
	for idx, tbl := range tables {
		if idx > 0 {
			_, err := io.WriteString(w, "\n")
			if err != nil {
				return fmt.Errorf("write csv: %w", err)
			}
		}

		writer := csv.NewWriter(w)

		err := writer.Write(tbl.Columns)
		if err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}

		record := make([]string, len(tbl.Columns))

		for _, row := range tbl.Rows {
			for col, cell := range row {
				record[col] = FormatCell(cell, precision)
			}

			err = writer.Write(record)
			if err != nil {
				return fmt.Errorf("write csv: %w", err)
			}
		}

		writer.Flush()

		err = writer.Error()
		if err != nil {
			return fmt.Errorf("flush csv: %w", err)
		}
	}

	return nil
}

// orderedObject marshals to a JSON object that keeps its key order.
type orderedObject struct {
	keys   []string
	values []any
}

// MarshalJSON implements json.Marshaler.
func (o orderedObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for idx, key := range o.keys {
		if idx > 0 {
			buf.WriteByte(',')
		}

		encodedKey, err := json.Marshal(key)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", key, err)
		}

		encodedValue, err := json.Marshal(o.values[idx])
		if err != nil {
			return nil, fmt.Errorf("marshal %q: %w", key, err)
		}

		buf.Write(encodedKey)
		buf.WriteByte(':')
		buf.Write(encodedValue)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

func rowObjects(tbl Table, precision int) []orderedObject {
	objects := make([]orderedObject, 0, len(tbl.Rows))

	for _, row := range tbl.Rows {
		values := make([]any, len(row))
		for col, cell := range row {
			values[col] = roundCell(cell, precision)
		}

		objects = append(objects, orderedObject{keys: tbl.Columns, values: values})
	}

	return objects
}

func writeJSON(w io.Writer, tables []Table, precision int) error {
	var doc any

	if len(tables) == 1 {
		doc = rowObjects(tables[0], precision)
	} else {
		top := orderedObject{}
		for _, tbl := range tables {
			top.keys = append(top.keys, tbl.Name)
			top.values = append(top.values, rowObjects(tbl, precision))
		}

		doc = top
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	err := encoder.Encode(doc)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	return nil
}

func rowsNode(tbl Table, precision int) (*yaml.Node, error) {
	seq := &yaml.Node{Kind: yaml.SequenceNode}

	for _, row := range tbl.Rows {
		mapping := &yaml.Node{Kind: yaml.MappingNode}

		for col, cell := range row {
			value := &yaml.Node{}

			err := value.Encode(roundCell(cell, precision))
			if err != nil {
				return nil, fmt.Errorf("encode %q: %w", tbl.Columns[col], err)
			}

			mapping.Content = append(mapping.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: tbl.Columns[col]},
				value,
			)
		}

		seq.Content = append(seq.Content, mapping)
	}

	return seq, nil
}

func writeYAML(w io.Writer, tables []Table, precision int) error {
	var doc *yaml.Node

	if len(tables) == 1 {
		node, err := rowsNode(tables[0], precision)
		if err != nil {
			return err
		}

		doc = node
	} else {
		doc = &yaml.Node{Kind: yaml.MappingNode}

		for _, tbl := range tables {
			node, err := rowsNode(tbl, precision)
			if err != nil {
				return err
			}

			doc.Content = append(doc.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: tbl.Name}, node)
		}
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	err := encoder.Encode(doc)
	if err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}

	err = encoder.Close()
	if err != nil {
		return fmt.Errorf("close yaml encoder: %w", err)
	}

	return nil
}
