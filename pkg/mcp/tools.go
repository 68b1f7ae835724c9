package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/segmenter/pkg/crosssection"
	"github.com/Sumatoshi-tech/segmenter/pkg/table"
)

// Tool name constants.
const (
	ToolNameCrossSections = "segmenter_cross_sections"
	ToolNameSchema        = "segmenter_input_schema"
)

// MaxRowsInputBytes is the maximum allowed size for inline table input (4 MB).
const MaxRowsInputBytes = 4 << 20

// Sentinel errors for tool input validation.
var (
	// ErrEmptyRows indicates the rows parameter is empty.
	ErrEmptyRows = errors.New("rows parameter is required and must not be empty")
	// ErrRowsTooLarge indicates the rows input exceeds the size limit.
	ErrRowsTooLarge = errors.New("rows input exceeds maximum size")
)

// Input types (auto-generate JSON schemas via struct tags).

// ColumnsInput overrides the server's column layout. Empty fields keep the
// server default.
type ColumnsInput struct {
	Group        []string `json:"group,omitempty"         jsonschema:"columns identifying a group (e.g. road)"`
	CrossSection []string `json:"cross_section,omitempty" jsonschema:"columns identifying a section within a group (e.g. cwy xsp)"`
	TrueFrom     string   `json:"true_from,omitempty"     jsonschema:"start of the true measure"`
	TrueTo       string   `json:"true_to,omitempty"       jsonschema:"end of the true measure"`
	SLKFrom      string   `json:"slk_from,omitempty"      jsonschema:"start of the straight line kilometre measure"`
	SLKTo        string   `json:"slk_to,omitempty"        jsonschema:"end of the straight line kilometre measure"`
	Index        string   `json:"index,omitempty"         jsonschema:"optional column holding the original row number"`
}

// CrossSectionsInput is the input schema for the segmenter_cross_sections tool.
type CrossSectionsInput struct {
	Columns    ColumnsInput `json:"columns,omitempty"    jsonschema:"optional column names"`
	Format     string       `json:"format,omitempty"     jsonschema:"format of rows: csv json or yaml (default: csv)"`
	Normalised bool         `json:"normalised,omitempty" jsonschema:"return separate groups and sections tables"`
	Precision  *int         `json:"precision,omitempty"  jsonschema:"decimals for measures (default: full precision)"`
	Rows       string       `json:"rows"                 jsonschema:"segment table as CSV text or a JSON/YAML list of row objects"`
}

// SchemaInput is the input schema for the segmenter_input_schema tool.
type SchemaInput struct {
	Columns ColumnsInput `json:"columns,omitempty" jsonschema:"optional column names"`
}

// Output type (used as structured output for generic AddTool).

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// CrossSectionsOutput is the payload of a successful segmenter_cross_sections call.
type CrossSectionsOutput struct {
	Segments      int             `json:"segments"`
	CrossSections int             `json:"cross_sections"`
	Tables        json.RawMessage `json:"tables"`
}

// Result helpers.

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

func (c ColumnsInput) apply(layout table.Layout) table.Layout {
	if len(c.Group) > 0 {
		layout.Group = c.Group
	}

	if len(c.CrossSection) > 0 {
		layout.CrossSection = c.CrossSection
	}

	for _, field := range []struct {
		value string
		dst   *string
	}{
		{c.TrueFrom, &layout.TrueFrom},
		{c.TrueTo, &layout.TrueTo},
		{c.SLKFrom, &layout.SLKFrom},
		{c.SLKTo, &layout.SLKTo},
		{c.Index, &layout.Index},
	} {
		if field.value != "" {
			*field.dst = field.value
		}
	}

	return layout
}

func validateRowsInput(rows string) error {
	if strings.TrimSpace(rows) == "" {
		return ErrEmptyRows
	}

	if len(rows) > MaxRowsInputBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrRowsTooLarge, len(rows), MaxRowsInputBytes)
	}

	return nil
}

func (s *Server) handleCrossSections(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input CrossSectionsInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateRowsInput(input.Rows)
	if err != nil {
		return errorResult(err)
	}

	format := input.Format
	if format == "" {
		format = table.FormatCSV
	}

	layout := input.Columns.apply(s.layout)

	segments, err := table.Read(strings.NewReader(input.Rows), table.ReadOptions{Layout: layout, Format: format})
	if err != nil {
		return errorResult(fmt.Errorf("read rows: %w", err))
	}

	result, err := crosssection.Compute(ctx, segments, crosssection.Options{
		Logger:  s.logger,
		Tracer:  s.tracer,
		Metrics: s.sweepMetrics,
	})
	if err != nil {
		return errorResult(err)
	}

	precision := -1
	if input.Precision != nil {
		precision = *input.Precision
	}

	output := table.Output{Names: s.names, Layout: layout}

	var buf bytes.Buffer

	err = table.Write(&buf, output.Tables(result, input.Normalised), table.WriteOptions{
		Format:    table.FormatJSON,
		Precision: precision,
	})
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(CrossSectionsOutput{
		Segments:      len(segments),
		CrossSections: result.Len(),
		Tables:        json.RawMessage(bytes.TrimSpace(buf.Bytes())),
	})
}

func (s *Server) handleSchema(
	_ context.Context, _ *mcpsdk.CallToolRequest, input SchemaInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return jsonResult(table.Schema(input.Columns.apply(s.layout)))
}
