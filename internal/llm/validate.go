package llm

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema is a named JSON Schema used to validate structured replies.
type Schema struct {
	Name       string
	Definition string
}

// ShapeError reports a reply that is not valid JSON or does not match the
// expected schema. Raw holds the text as received from the provider.
type ShapeError struct {
	Schema string
	Raw    string
	Err    error
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("malformed %s response: %v", e.Schema, e.Err)
}

func (e *ShapeError) Unwrap() error { return e.Err }

// schemaCache caches compiled JSON schemas by name.
var schemaCache sync.Map // map[string]*jsonschema.Schema

// DecodeStructured scrubs raw model output down to its JSON payload,
// validates it against schema and unmarshals it into out.
func DecodeStructured(schema *Schema, raw string, out any) error {
	payload := ExtractJSON(raw)

	var parsed any
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return &ShapeError{Schema: schema.Name, Raw: raw, Err: fmt.Errorf("invalid JSON: %w", err)}
	}

	compiled, err := compiledSchema(schema)
	if err != nil {
		return &ShapeError{Schema: schema.Name, Raw: raw, Err: fmt.Errorf("compile schema: %w", err)}
	}
	if err := compiled.Validate(parsed); err != nil {
		return &ShapeError{Schema: schema.Name, Raw: raw, Err: fmt.Errorf("schema validation failed: %w", err)}
	}

	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return &ShapeError{Schema: schema.Name, Raw: raw, Err: err}
	}
	return nil
}

func compiledSchema(schema *Schema) (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(schema.Name); ok {
		return cached.(*jsonschema.Schema), nil
	}

	var def any
	if err := json.Unmarshal([]byte(schema.Definition), &def); err != nil {
		return nil, fmt.Errorf("parse schema definition: %w", err)
	}

	c := jsonschema.NewCompiler()
	url := fmt.Sprintf("schema://%s.json", schema.Name)
	if err := c.AddResource(url, def); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	schemaCache.Store(schema.Name, compiled)
	return compiled, nil
}
