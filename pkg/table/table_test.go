package table_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/segmenter/pkg/crosssection"
	"github.com/Sumatoshi-tech/segmenter/pkg/table"
)

func testLayout() table.Layout {
	return table.Layout{
		Group:        []string{"road"},
		CrossSection: []string{"cwy", "xsp"},
		TrueFrom:     "true_from",
		TrueTo:       "true_to",
		SLKFrom:      "slk_from",
		SLKTo:        "slk_to",
	}
}

const sampleCSV = `road,cwy,xsp,true_from,true_to,slk_from,slk_to,surface
H001,L,1,0,2,10,12,asphalt
H001,L,2,1,2,11,12,seal
`

func TestDetectFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path       string
		format     string
		compressed bool
		wantErr    bool
	}{
		{"roads.csv", table.FormatCSV, false, false},
		{"/data/Roads.JSON", table.FormatJSON, false, false},
		{"roads.yml", table.FormatYAML, false, false},
		{"roads.yaml.lz4", table.FormatYAML, true, false},
		{"roads.parquet", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			format, compressed, err := table.DetectFormat(tt.path)
			if tt.wantErr {
				require.ErrorIs(t, err, table.ErrUnsupportedFormat)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.format, format)
			assert.Equal(t, tt.compressed, compressed)
		})
	}
}

func TestRead_CSV(t *testing.T) {
	t.Parallel()

	segments, err := table.Read(strings.NewReader(sampleCSV), table.ReadOptions{
		Layout: testLayout(),
		Format: table.FormatCSV,
	})
	require.NoError(t, err)
	require.Len(t, segments, 2)

	assert.Equal(t, crosssection.Segment{
		Group:    []string{"H001"},
		Section:  []string{"L", "2"},
		Index:    1,
		TrueFrom: 1,
		TrueTo:   2,
		SLKFrom:  11,
		SLKTo:    12,
	}, segments[1])
}

func TestRead_CSVIndexColumn(t *testing.T) {
	t.Parallel()

	layout := testLayout()
	layout.Index = "id"

	input := "id,road,cwy,xsp,true_from,true_to,slk_from,slk_to\n42,H001,L,1,0,1,0,1\n"

	segments, err := table.Read(strings.NewReader(input), table.ReadOptions{Layout: layout, Format: table.FormatCSV})
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, 42, segments[0].Index)
}

func TestRead_CSVErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"missing_column", "road,cwy,true_from,true_to,slk_from,slk_to\n", table.ErrMissingColumn},
		{"bad_number", "road,cwy,xsp,true_from,true_to,slk_from,slk_to\nH001,L,1,zero,1,0,1\n", table.ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := table.Read(strings.NewReader(tt.input), table.ReadOptions{Layout: testLayout(), Format: table.FormatCSV})
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRead_Empty(t *testing.T) {
	t.Parallel()

	for _, format := range []string{table.FormatCSV, table.FormatJSON, table.FormatYAML} {
		segments, err := table.Read(strings.NewReader(""), table.ReadOptions{Layout: testLayout(), Format: format})
		require.NoError(t, err, format)
		assert.Empty(t, segments, format)
	}
}

func TestRead_JSON(t *testing.T) {
	t.Parallel()

	input := `[
  {"road": "H001", "cwy": "L", "xsp": 1, "true_from": 0, "true_to": 2.5, "slk_from": 10, "slk_to": 12.5},
  {"road": "H001", "cwy": "R", "xsp": "R1", "true_from": 0, "true_to": 1, "slk_from": 10, "slk_to": 11, "note": "x"}
]`

	segments, err := table.Read(strings.NewReader(input), table.ReadOptions{Layout: testLayout(), Format: table.FormatJSON})
	require.NoError(t, err)
	require.Len(t, segments, 2)

	assert.Equal(t, []string{"L", "1"}, segments[0].Section)
	assert.InDelta(t, 2.5, segments[0].TrueTo, 0)
	assert.Equal(t, 1, segments[1].Index)
}

func TestRead_JSONSchemaViolation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"missing_measure", `[{"road": "H001", "cwy": "L", "xsp": "1", "true_from": 0, "slk_from": 0, "slk_to": 1}]`},
		{"string_measure", `[{"road": "H001", "cwy": "L", "xsp": "1", "true_from": "0", "true_to": 1, "slk_from": 0, "slk_to": 1}]`},
		{"not_an_array", `{"road": "H001"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := table.Read(strings.NewReader(tt.input), table.ReadOptions{Layout: testLayout(), Format: table.FormatJSON})
			require.Error(t, err)

			if tt.name != "not_an_array" {
				require.ErrorIs(t, err, table.ErrSchemaViolation)
			}
		})
	}
}

func TestRead_YAML(t *testing.T) {
	t.Parallel()

	input := `
- road: H001
  cwy: L
  xsp: L1
  true_from: 0
  true_to: 1.5
  slk_from: 3
  slk_to: 4.5
`

	segments, err := table.Read(strings.NewReader(input), table.ReadOptions{Layout: testLayout(), Format: table.FormatYAML})
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, []string{"H001"}, segments[0].Group)
	assert.InDelta(t, 1.5, segments[0].TrueTo, 0)
	assert.InDelta(t, 4.5, segments[0].SLKTo, 0)
}

func TestRead_LZ4AndSizeLimit(t *testing.T) {
	t.Parallel()

	var compressed bytes.Buffer

	zw := lz4.NewWriter(&compressed)
	_, err := zw.Write([]byte(sampleCSV))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	segments, err := table.Read(bytes.NewReader(compressed.Bytes()), table.ReadOptions{
		Layout: testLayout(), Format: table.FormatCSV, Compressed: true,
	})
	require.NoError(t, err)
	assert.Len(t, segments, 2)

	_, err = table.Read(strings.NewReader(sampleCSV), table.ReadOptions{
		Layout: testLayout(), Format: table.FormatCSV, MaxBytes: 16,
	})
	require.ErrorIs(t, err, table.ErrInputTooLarge)
}

func computeSample(t *testing.T) crosssection.Result {
	t.Helper()

	segments, err := table.Read(strings.NewReader(sampleCSV), table.ReadOptions{Layout: testLayout(), Format: table.FormatCSV})
	require.NoError(t, err)

	result, err := crosssection.Compute(context.Background(), segments, crosssection.Options{})
	require.NoError(t, err)

	return result
}

func TestWrite_NormalisedCSV(t *testing.T) {
	t.Parallel()

	output := table.Output{Names: table.DefaultNames(), Layout: testLayout()}

	var buf bytes.Buffer

	err := table.Write(&buf, output.Tables(computeSample(t), true), table.WriteOptions{Format: table.FormatCSV, Precision: -1})
	require.NoError(t, err)

	assert.Equal(t, `cross_section_number,road,true_from,true_to,slk_from,slk_to
0,H001,0,1,10,11
1,H001,1,2,11,12

cross_section_number,cwy,xsp,original_index,overlap
0,L,1,0,1
1,L,1,0,1
1,L,2,1,1
`, buf.String())
}

func TestWrite_JoinedJSONKeepsColumnOrder(t *testing.T) {
	t.Parallel()

	output := table.Output{
		Names:  table.Names{ID: "cs", Index: "row", Overlap: "len"},
		Layout: testLayout(),
	}

	var buf bytes.Buffer

	err := table.Write(&buf, output.Tables(computeSample(t), false), table.WriteOptions{Format: table.FormatJSON, Precision: 2})
	require.NoError(t, err)

	assert.JSONEq(t, `[
  {"cs": 0, "road": "H001", "cwy": "L", "xsp": "1", "true_from": 0, "true_to": 1, "slk_from": 10, "slk_to": 11, "row": 0, "len": 1},
  {"cs": 1, "road": "H001", "cwy": "L", "xsp": "1", "true_from": 1, "true_to": 2, "slk_from": 11, "slk_to": 12, "row": 0, "len": 1},
  {"cs": 1, "road": "H001", "cwy": "L", "xsp": "2", "true_from": 1, "true_to": 2, "slk_from": 11, "slk_to": 12, "row": 1, "len": 1}
]`, buf.String())

	first := buf.String()
	assert.Less(t, strings.Index(first, `"cs"`), strings.Index(first, `"road"`))
	assert.Less(t, strings.Index(first, `"slk_to"`), strings.Index(first, `"row"`))
}

func TestWrite_NormalisedYAML(t *testing.T) {
	t.Parallel()

	output := table.Output{Names: table.DefaultNames(), Layout: testLayout()}

	var buf bytes.Buffer

	err := table.Write(&buf, output.Tables(computeSample(t), true), table.WriteOptions{Format: table.FormatYAML, Precision: -1})
	require.NoError(t, err)

	var doc map[string][]map[string]any

	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc[table.GroupsTable], 2)
	require.Len(t, doc[table.SectionsTable], 3)

	assert.Equal(t, "2", doc[table.SectionsTable][2]["xsp"], "numeric-looking categories stay strings")
	assert.Equal(t, 1, doc[table.GroupsTable][1]["cross_section_number"])
}

func TestWriteFile_LZ4RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sections.csv.lz4")
	output := table.Output{Names: table.DefaultNames(), Layout: testLayout()}

	require.NoError(t, table.WriteFile(path, output.Tables(computeSample(t), true), table.WriteOptions{Precision: -1}))

	file, err := os.Open(path)
	require.NoError(t, err)

	t.Cleanup(func() { _ = file.Close() })

	var plain bytes.Buffer

	_, err = plain.ReadFrom(lz4.NewReader(file))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(plain.String(), "cross_section_number,road,"))
}

func TestReadFile_DetectsFormat(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "roads.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))

	segments, err := table.ReadFile(path, table.ReadOptions{Layout: testLayout(), Format: "auto"})
	require.NoError(t, err)
	assert.Len(t, segments, 2)

	_, err = table.ReadFile(filepath.Join(t.TempDir(), "roads.txt"), table.ReadOptions{Layout: testLayout()})
	require.ErrorIs(t, err, table.ErrUnsupportedFormat)
}
