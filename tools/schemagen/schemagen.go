// Package main writes JSON schemas for the segmenter input rows, the result
// document and the MCP tool input.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/segmenter/pkg/crosssection"
	"github.com/Sumatoshi-tech/segmenter/pkg/mcp"
	"github.com/Sumatoshi-tech/segmenter/pkg/table"
)

const schemaDraft = "https://json-schema.org/draft-07/schema#"

// Schema is the subset of JSON Schema emitted for Go types.
type Schema struct {
	Schema      string             `json:"$schema,omitempty"`
	Title       string             `json:"title,omitempty"`
	Description string             `json:"description,omitempty"`
	Type        string             `json:"type,omitempty"`
	Ref         string             `json:"$ref,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Definitions map[string]*Schema `json:"definitions,omitempty"`
}

// target is one schema file.
type target struct {
	file   string
	schema func() any
}

func targets() []target {
	return []target{
		{file: "input.json", schema: func() any { return table.Schema(table.DefaultLayout()) }},
		{file: "result.json", schema: func() any {
			return reflectSchema("segmenter result", reflect.TypeFor[crosssection.Result]())
		}},
		{file: "tool_input.json", schema: func() any {
			return reflectSchema(mcp.ToolNameCrossSections+" input", reflect.TypeFor[mcp.CrossSectionsInput]())
		}},
	}
}

func main() {
	outDir := flag.String("o", "docs/schemas", "Output directory for schemas")
	flag.Parse()

	err := generate(*outDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "schemagen: %v\n", err)
		os.Exit(1)
	}
}

func generate(outDir string) error {
	err := os.MkdirAll(outDir, 0o755)
	if err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	for _, tgt := range targets() {
		data, err := json.MarshalIndent(tgt.schema(), "", "  ")
		if err != nil {
			return fmt.Errorf("marshal %s: %w", tgt.file, err)
		}

		err = os.WriteFile(filepath.Join(outDir, tgt.file), append(data, '\n'), 0o644)
		if err != nil {
			return fmt.Errorf("write %s: %w", tgt.file, err)
		}

		fmt.Printf("wrote %s\n", tgt.file)
	}

	return nil
}

// reflectSchema describes a struct type. Named nested structs go into
// definitions and are referenced by name.
func reflectSchema(title string, t reflect.Type) *Schema {
	gen := generator{defs: make(map[string]*Schema)}

	root := gen.object(t)
	root.Schema = schemaDraft
	root.Title = title

	if len(gen.defs) > 0 {
		root.Definitions = gen.defs
	}

	return root
}

type generator struct {
	defs map[string]*Schema
}

func (g generator) object(t reflect.Type) *Schema {
	schema := &Schema{Type: "object", Properties: make(map[string]*Schema)}

	for i := range t.NumField() {
		field := t.Field(i)

		name, opts, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" || !field.IsExported() {
			continue
		}

		prop := g.of(field.Type)
		if desc := field.Tag.Get("jsonschema"); desc != "" && prop.Ref == "" {
			prop.Description = desc
		}

		schema.Properties[name] = prop

		optional := strings.Contains(opts, "omitempty") || strings.Contains(opts, "omitzero") ||
			field.Type.Kind() == reflect.Pointer
		if !optional {
			schema.Required = append(schema.Required, name)
		}
	}

	slices.Sort(schema.Required)

	return schema
}

func (g generator) of(t reflect.Type) *Schema {
	if t == reflect.TypeFor[json.RawMessage]() {
		return &Schema{Description: "raw JSON value"}
	}

	switch t.Kind() {
	case reflect.Pointer:
		return g.of(t.Elem())
	case reflect.String:
		return &Schema{Type: "string"}
	case reflect.Bool:
		return &Schema{Type: "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}
	case reflect.Slice, reflect.Array:
		return &Schema{Type: "array", Items: g.of(t.Elem())}
	case reflect.Map:
		return &Schema{Type: "object"}
	case reflect.Struct:
		if t.Name() == "" {
			return g.object(t)
		}

		if _, seen := g.defs[t.Name()]; !seen {
			// Reserve the name first so recursive types terminate.
			g.defs[t.Name()] = &Schema{}
			*g.defs[t.Name()] = *g.object(t)
		}

		return &Schema{Ref: "#/definitions/" + t.Name()}
	default:
		return &Schema{}
	}
}
