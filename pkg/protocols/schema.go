package protocols

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "https://clinical-guardrails.local/schemas/protocols.schema.json"

//go:embed schema/protocols.schema.json
var schemaSource []byte

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, bytes.NewReader(schemaSource)); err != nil {
		return nil, fmt.Errorf("failed to add protocol schema: %w", err)
	}
	return c.Compile(schemaURL)
})

// SchemaJSON returns the JSON schema protocol documents are validated against.
func SchemaJSON() []byte {
	return bytes.Clone(schemaSource)
}

// validateSchema checks a decoded YAML document against the protocol schema.
func validateSchema(doc map[string]any) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}
	v, err := toJSONValue(doc)
	if err != nil {
		return err
	}
	return schema.Validate(v)
}

// toJSONValue converts YAML-decoded values into the plain JSON value shapes
// the validator accepts.
func toJSONValue(doc any) (any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("document is not representable as JSON: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
