package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// buildExtractionSchema returns the JSON Schema every model payload must satisfy.
// Unknown keys are tolerated; known keys must have a usable type.
func buildExtractionSchema() map[string]any {
	nullableString := map[string]any{"type": []string{"string", "null"}}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"supplier_name":      nullableString,
			"tax_id":             map[string]any{"type": []string{"string", "number", "null"}},
			"amount":             map[string]any{"type": []string{"number", "string", "null"}},
			"document_date":      nullableString,
			"invoice_number":     map[string]any{"type": []string{"string", "number", "null"}},
			"description":        nullableString,
			"payment_method":     nullableString,
			"suggested_category": nullableString,
			"confidence": map[string]any{
				"type":    "number",
				"minimum": 0,
				"maximum": 1,
			},
		},
	}
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	b, err := json.Marshal(buildExtractionSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("extraction.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("extraction.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
})

// validateShape checks a decoded payload against the extraction schema.
func validateShape(payload map[string]any) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(payload); err != nil {
		return fmt.Errorf("payload does not match extraction schema: %w", err)
	}
	return nil
}
