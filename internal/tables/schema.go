package tables

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildDocumentSchema returns a JSON-Schema (draft 2020-12 subset) as a generic
// map. It is embedded in the extraction prompt and used locally to validate
// model output.
func BuildDocumentSchema() map[string]any {
	tableProps := map[string]any{
		"table_number": map[string]any{"type": "integer", "minimum": 1},
		"headers": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
		"rows": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"tables": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties":           tableProps,
					"required":             []string{"headers", "rows"},
				},
			},
			"note": map[string]any{"type": "string"},
		},
		"required": []string{"tables"},
	}
}

// ValidateAgainstSchema validates "data" against "schemaMap".
func ValidateAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
