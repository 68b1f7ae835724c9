package table

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pierrec/lz4/v4"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/segmenter/pkg/crosssection"
)

// ReadOptions configures Read.
type ReadOptions struct {
	Layout Layout

	// Format is one of FormatCSV, FormatJSON or FormatYAML. ReadFile also
	// accepts "" or "auto" and derives it from the file name.
	Format string

	// MaxBytes limits the decompressed input size. Zero means unlimited.
	MaxBytes uint64

	// Compressed marks LZ4-framed input.
	Compressed bool
}

// ReadFile reads segments from path.
func ReadFile(path string, opts ReadOptions) ([]crosssection.Segment, error) {
	format, compressed, detectErr := DetectFormat(path)
	if opts.Format == "" || opts.Format == "auto" {
		if detectErr != nil {
			return nil, fmt.Errorf("%s: %w", path, detectErr)
		}

		opts.Format = format
	}

	opts.Compressed = opts.Compressed || compressed

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	segments, err := Read(file, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return segments, nil
}

// Read decodes segments from r. Columns not named by the layout are ignored.
func Read(r io.Reader, opts ReadOptions) ([]crosssection.Segment, error) {
	if opts.Compressed {
		r = lz4.NewReader(r)
	}

	if opts.MaxBytes > 0 {
		r = &cappedReader{r: r, left: opts.MaxBytes}
	}

	switch opts.Format {
	case FormatCSV:
		return readCSV(r, opts.Layout)
	case FormatJSON:
		return readJSON(r, opts.Layout)
	case FormatYAML:
		return readYAML(r, opts.Layout)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, opts.Format)
	}
}

type cappedReader struct {
	r    io.Reader
	left uint64
}

func (c *cappedReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if uint64(n) > c.left {
		return 0, ErrInputTooLarge
	}

	c.left -= uint64(n)

	return n, err
}

// columns maps layout columns onto header positions.
type columns struct {
	group    []int
	section  []int
	measures []int
	index    int
}

func locate(header []string, layout Layout) (columns, error) {
	positions := make(map[string]int, len(header))
	for idx, name := range header {
		if _, dup := positions[name]; !dup {
			positions[name] = idx
		}
	}

	find := func(names []string) ([]int, error) {
		out := make([]int, 0, len(names))

		for _, name := range names {
			pos, ok := positions[name]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrMissingColumn, name)
			}

			out = append(out, pos)
		}

		return out, nil
	}

	var (
		cols columns
		err  error
	)

	if cols.group, err = find(layout.Group); err != nil {
		return columns{}, err
	}

	if cols.section, err = find(layout.CrossSection); err != nil {
		return columns{}, err
	}

	if cols.measures, err = find(layout.Measures()); err != nil {
		return columns{}, err
	}

	cols.index = -1

	if layout.Index != "" {
		found, findErr := find([]string{layout.Index})
		if findErr != nil {
			return columns{}, findErr
		}

		cols.index = found[0]
	}

	return cols, nil
}

func pick(record []string, positions []int) []string {
	out := make([]string, len(positions))
	for idx, pos := range positions {
		out[idx] = record[pos]
	}

	return out
}

func readCSV(r io.Reader, layout Layout) ([]crosssection.Segment, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	cols, err := locate(header, layout)
	if err != nil {
		return nil, err
	}

	var segments []crosssection.Segment

	for row := 0; ; row++ {
		record, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}

		if readErr != nil {
			return nil, fmt.Errorf("read csv: %w", readErr)
		}

		seg := crosssection.Segment{
			Group:   pick(record, cols.group),
			Section: pick(record, cols.section),
			Index:   row,
		}

		measures := [...]*float64{&seg.TrueFrom, &seg.TrueTo, &seg.SLKFrom, &seg.SLKTo}
		for idx, pos := range cols.measures {
			value, parseErr := strconv.ParseFloat(record[pos], 64)
			if parseErr != nil {
				return nil, fmt.Errorf("%w: row %d column %q: %q", ErrInvalidValue, row, header[pos], record[pos])
			}

			*measures[idx] = value
		}

		if cols.index >= 0 {
			seg.Index, err = strconv.Atoi(record[cols.index])
			if err != nil {
				return nil, fmt.Errorf("%w: row %d column %q: %q", ErrInvalidValue, row, layout.Index, record[cols.index])
			}
		}

		segments = append(segments, seg)
	}

	return segments, nil
}

func readJSON(r io.Reader, layout Layout) ([]crosssection.Segment, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	var records []map[string]any

	err := decoder.Decode(&records)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode json: %w", err)
	}

	return fromRecords(records, layout)
}

func readYAML(r io.Reader, layout Layout) ([]crosssection.Segment, error) {
	var records []map[string]any

	err := yaml.NewDecoder(r).Decode(&records)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	return fromRecords(records, layout)
}

func fromRecords(records []map[string]any, layout Layout) ([]crosssection.Segment, error) {
	err := validateRecords(records, layout)
	if err != nil {
		return nil, err
	}

	segments := make([]crosssection.Segment, 0, len(records))

	for row, record := range records {
		seg := crosssection.Segment{
			Group:   categoryValues(record, layout.Group),
			Section: categoryValues(record, layout.CrossSection),
			Index:   row,
		}

		measures := [...]*float64{&seg.TrueFrom, &seg.TrueTo, &seg.SLKFrom, &seg.SLKTo}
		for idx, name := range layout.Measures() {
			value, convErr := toFloat(record[name])
			if convErr != nil {
				return nil, fmt.Errorf("%w: row %d column %q: %w", ErrInvalidValue, row, name, convErr)
			}

			*measures[idx] = value
		}

		if layout.Index != "" {
			value, convErr := toFloat(record[layout.Index])
			if convErr != nil {
				return nil, fmt.Errorf("%w: row %d column %q: %w", ErrInvalidValue, row, layout.Index, convErr)
			}

			seg.Index = int(value)
		}

		segments = append(segments, seg)
	}

	return segments, nil
}

func categoryValues(record map[string]any, names []string) []string {
	out := make([]string, len(names))

	for idx, name := range names {
		switch value := record[name].(type) {
		case string:
			out[idx] = value
		case json.Number:
			out[idx] = value.String()
		case float64:
			out[idx] = strconv.FormatFloat(value, 'f', -1, 64)
		default:
			out[idx] = fmt.Sprint(value)
		}
	}

	return out
}

func toFloat(value any) (float64, error) {
	switch typed := value.(type) {
	case json.Number:
		return typed.Float64()
	case float64:
		return typed, nil
	case int:
		return float64(typed), nil
	case int64:
		return float64(typed), nil
	case uint64:
		return float64(typed), nil
	default:
		return 0, fmt.Errorf("not a number: %v", value)
	}
}
