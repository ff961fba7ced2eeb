// Package schema validates a folder's deploy section against a JSON Schema.
//
// Validation is advisory: the workspace still materializes whatever entries
// survive filtering, and reports schema violations as warnings so a typo in
// a settings file is visible without stopping deployment of the rest.
package schema

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"
)

//go:embed deploy.schema.json
var schemaFS embed.FS

// Schema is the subset of JSON Schema used by the deploy section.
type Schema struct {
	ID            string `json:"$id,omitempty"`
	SchemaVersion string `json:"$schema,omitempty"`
	Title         string `json:"title,omitempty"`
	Description   string `json:"description,omitempty"`

	// Type is the JSON type, one name or a list.
	Type SchemaType `json:"type,omitempty"`

	Properties           map[string]*Schema `json:"properties,omitempty"`
	AdditionalProperties *bool              `json:"additionalProperties,omitempty"`
	Required             []string           `json:"required,omitempty"`

	Items    *Schema `json:"items,omitempty"`
	MinItems *int    `json:"minItems,omitempty"`

	Enum      []any `json:"enum,omitempty"`
	MinLength *int  `json:"minLength,omitempty"`

	AnyOf []*Schema `json:"anyOf,omitempty"`
	OneOf []*Schema `json:"oneOf,omitempty"`

	// Ref references an entry of Defs as "#/$defs/name".
	Ref  string             `json:"$ref,omitempty"`
	Defs map[string]*Schema `json:"$defs,omitempty"`
}

// SchemaType represents JSON Schema type(s).
// Can be a single type or an array of types.
type SchemaType struct {
	Types []string
}

// UnmarshalJSON handles both single type and array of types.
func (t *SchemaType) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		t.Types = []string{single}
		return nil
	}

	var arr []string
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("type must be string or array of strings: %w", err)
	}
	t.Types = arr
	return nil
}

// MarshalJSON outputs single type as string, multiple as array.
func (t SchemaType) MarshalJSON() ([]byte, error) {
	if len(t.Types) == 1 {
		return json.Marshal(t.Types[0])
	}
	return json.Marshal(t.Types)
}

// Is checks if the schema type includes the given type.
func (t SchemaType) Is(typ string) bool {
	for _, st := range t.Types {
		if st == typ {
			return true
		}
	}
	return false
}

// IsEmpty returns true if no types are defined.
func (t SchemaType) IsEmpty() bool {
	return len(t.Types) == 0
}

// String returns the type as a string.
func (t SchemaType) String() string {
	if len(t.Types) == 1 {
		return t.Types[0]
	}
	return fmt.Sprintf("%v", t.Types)
}

var (
	schemaCache     *Schema
	schemaCacheOnce sync.Once
	schemaCacheErr  error
)

// LoadEmbedded loads the embedded deploy section schema.
func LoadEmbedded() (*Schema, error) {
	schemaCacheOnce.Do(func() {
		data, err := schemaFS.ReadFile("deploy.schema.json")
		if err != nil {
			schemaCacheErr = fmt.Errorf("failed to read embedded schema: %w", err)
			return
		}
		schemaCache, schemaCacheErr = Parse(data)
	})
	return schemaCache, schemaCacheErr
}

// Parse parses a JSON Schema from bytes.
func Parse(data []byte) (*Schema, error) {
	s := &Schema{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	return s, nil
}

// AllowsAdditionalProperties returns whether additional properties are allowed.
func (s *Schema) AllowsAdditionalProperties() bool {
	if s.AdditionalProperties == nil {
		return true
	}
	return *s.AdditionalProperties
}
