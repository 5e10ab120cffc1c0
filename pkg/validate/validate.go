// Package validate checks raw JSON documents against JSON Schemas.
package validate

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema is a compiled JSON Schema.
type Schema struct {
	name   string
	schema *jsonschema.Schema
}

// MustCompile compiles an inline schema document and panics if it is invalid.
// Schemas are package-level constants, so a bad one is a programming error.
func MustCompile(name, src string) *Schema {
	s, err := jsonschema.CompileString(name, src)
	if err != nil {
		panic(fmt.Sprintf("validate: compile %s: %v", name, err))
	}
	return &Schema{name: name, schema: s}
}

// Name returns the schema's name.
func (s *Schema) Name() string {
	return s.name
}

// Bytes validates a raw JSON document.
func (s *Schema) Bytes(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := s.schema.Validate(doc); err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	return nil
}
