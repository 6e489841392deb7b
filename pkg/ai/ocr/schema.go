package ocr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ResponseSchema is the JSON schema providers are asked to answer with. It
// stays within the subset structured-output APIs accept: every property
// required, no unions, no additional properties.
func ResponseSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"fields": map[string]any{
				"type":  "array",
				"items": fieldSchema(false),
			},
			"summary": map[string]any{"type": "string"},
		},
		"required": []string{"fields", "summary"},
	}
}

// validationSchema is stricter than ResponseSchema and is applied to the
// normalized response.
func validationSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"fields": map[string]any{
				"type":  "array",
				"items": fieldSchema(true),
			},
			"summary": map[string]any{"type": "string"},
		},
		"required": []string{"fields"},
	}
}

func fieldSchema(bounded bool) map[string]any {
	label := map[string]any{"type": "string"}
	confidence := map[string]any{"type": "number"}
	if bounded {
		label["minLength"] = 1
		confidence["minimum"] = 0
		confidence["maximum"] = 1
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"label":      label,
			"value":      map[string]any{"type": "string"},
			"confidence": confidence,
		},
		"required": []string{"label", "value", "confidence"},
	}
}

var compiled = sync.OnceValues(func() (*compiledSchemas, error) {
	doc, err := compileSchema("extraction.json", validationSchema())
	if err != nil {
		return nil, err
	}
	item, err := compileSchema("field.json", fieldSchema(true))
	if err != nil {
		return nil, err
	}
	return &compiledSchemas{doc: doc, item: item}, nil
})

type compiledSchemas struct {
	doc  *jsonschema.Schema
	item *jsonschema.Schema
}

func compileSchema(name string, schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// ValidateJSONAgainstSchema validates data against schemaMap.
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	schema, err := compileSchema("schema.json", schemaMap)
	if err != nil {
		return err
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
