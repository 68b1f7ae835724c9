package table

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// maxReportedViolations caps the schema errors quoted in a single error.
const maxReportedViolations = 5

// Schema returns the JSON schema that structured input must satisfy: an array
// of objects carrying every layout column, with numeric measures.
func Schema(layout Layout) map[string]any {
	properties := make(map[string]any)

	for _, name := range layout.Categories() {
		properties[name] = map[string]any{"type": []string{"string", "number", "boolean"}}
	}

	for _, name := range layout.Measures() {
		properties[name] = map[string]any{"type": "number"}
	}

	required := append(layout.Categories(), layout.Measures()...)

	if layout.Index != "" {
		properties[layout.Index] = map[string]any{"type": "integer"}
		required = append(required, layout.Index)
	}

	return map[string]any{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type":    "array",
		"items": map[string]any{
			"type":       "object",
			"required":   required,
			"properties": properties,
		},
	}
}

func validateRecords(records []map[string]any, layout Layout) error {
	if records == nil {
		records = []map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(Schema(layout)),
		gojsonschema.NewGoLoader(records),
	)
	if err != nil {
		return fmt.Errorf("validate input: %w", err)
	}

	if result.Valid() {
		return nil
	}

	violations := result.Errors()

	messages := make([]string, 0, min(len(violations), maxReportedViolations))
	for _, violation := range violations[:min(len(violations), maxReportedViolations)] {
		messages = append(messages, violation.String())
	}

	if len(violations) > maxReportedViolations {
		messages = append(messages, fmt.Sprintf("and %d more", len(violations)-maxReportedViolations))
	}

	return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(messages, "; "))
}
