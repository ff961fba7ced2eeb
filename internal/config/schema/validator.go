package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Validator validates a deploy section against a schema.
type Validator struct {
	schema    *Schema
	maxErrors int
}

// NewValidator creates a validator for the given schema.
func NewValidator(schema *Schema) *Validator {
	return &Validator{schema: schema, maxErrors: 100}
}

// WithMaxErrors sets the maximum number of errors to collect (0 = unlimited).
func (v *Validator) WithMaxErrors(n int) *Validator {
	v.maxErrors = n
	return v
}

// Validate validates a deploy section. A nil section is valid.
func (v *Validator) Validate(data map[string]any) error {
	if v.schema == nil || data == nil {
		return nil
	}

	errs := &ValidationErrors{}
	v.validateValue("", data, v.schema, errs)
	return errs.AsError()
}

// Validate checks a deploy section against the embedded schema.
func Validate(data map[string]any) error {
	s, err := LoadEmbedded()
	if err != nil {
		return err
	}
	return NewValidator(s).Validate(data)
}

func (v *Validator) full(errs *ValidationErrors) bool {
	return v.maxErrors > 0 && errs.Len() >= v.maxErrors
}

func (v *Validator) validateValue(path string, value any, schema *Schema, errs *ValidationErrors) {
	if schema == nil || v.full(errs) {
		return
	}

	if schema.Ref != "" {
		v.validateValue(path, value, v.resolveRef(schema.Ref), errs)
		return
	}

	if len(schema.AnyOf) > 0 {
		v.validateAnyOf(path, value, schema.AnyOf, errs)
	}

	if len(schema.OneOf) > 0 {
		matches := 0
		for _, s := range schema.OneOf {
			if v.matches(path, value, s) {
				matches++
			}
		}
		switch {
		case matches == 0:
			errs.Add(path, "value does not match any of the allowed schemas")
		case matches > 1:
			errs.Add(path, "value matches more than one schema (must match exactly one)")
		}
	}

	if len(schema.Enum) > 0 && !inEnum(value, schema.Enum) {
		errs.Add(path, fmt.Sprintf("value %v is not one of %v", value, schema.Enum))
	}

	if !schema.Type.IsEmpty() {
		v.validateType(path, value, schema, errs)
	}
}

// validateAnyOf reports the errors of the closest alternative when none
// matches: the one whose type fits the value, if any.
func (v *Validator) validateAnyOf(path string, value any, alternatives []*Schema, errs *ValidationErrors) {
	var closest *ValidationErrors
	for _, s := range alternatives {
		tried := &ValidationErrors{}
		v.validateValue(path, value, s, tried)
		if !tried.HasErrors() {
			return
		}
		if closest == nil && v.typeFits(value, s) {
			closest = tried
		}
	}

	if closest != nil {
		for _, e := range closest.Errors {
			if v.full(errs) {
				return
			}
			errs.Errors = append(errs.Errors, e)
		}
		return
	}

	kinds := make([]string, 0, len(alternatives))
	for _, s := range alternatives {
		if t := v.typeName(s); t != "" {
			kinds = append(kinds, t)
		}
	}
	errs.Add(path, typeMessage(strings.Join(kinds, " or "), value))
}

func (v *Validator) matches(path string, value any, schema *Schema) bool {
	tried := &ValidationErrors{}
	v.validateValue(path, value, schema, tried)
	return !tried.HasErrors()
}

// typeFits reports whether the value has one of the schema's types.
func (v *Validator) typeFits(value any, schema *Schema) bool {
	if schema.Ref != "" {
		schema = v.resolveRef(schema.Ref)
	}
	if schema == nil || schema.Type.IsEmpty() {
		return false
	}
	for _, typ := range schema.Type.Types {
		if matchesType(value, typ) {
			return true
		}
	}
	return false
}

func (v *Validator) typeName(schema *Schema) string {
	if schema.Ref != "" {
		schema = v.resolveRef(schema.Ref)
	}
	if schema == nil {
		return ""
	}
	return schema.Type.String()
}

func (v *Validator) validateType(path string, value any, schema *Schema, errs *ValidationErrors) {
	for _, typ := range schema.Type.Types {
		if !matchesType(value, typ) {
			continue
		}
		switch typ {
		case TypeString:
			if schema.MinLength != nil && len(value.(string)) < *schema.MinLength {
				errs.Add(path, fmt.Sprintf("string length %d is less than minimum %d", len(value.(string)), *schema.MinLength))
			}
		case TypeArray:
			v.validateArray(path, value.([]any), schema, errs)
		case TypeObject:
			v.validateObject(path, value.(map[string]any), schema, errs)
		}
		return
	}
	errs.Add(path, typeMessage(schema.Type.String(), value))
}

func (v *Validator) validateArray(path string, arr []any, schema *Schema, errs *ValidationErrors) {
	if schema.MinItems != nil && len(arr) < *schema.MinItems {
		errs.Add(path, fmt.Sprintf("array has %d items, minimum is %d", len(arr), *schema.MinItems))
	}
	if schema.Items == nil {
		return
	}
	for i, item := range arr {
		v.validateValue(fmt.Sprintf("%s[%d]", path, i), item, schema.Items, errs)
	}
}

func (v *Validator) validateObject(path string, obj map[string]any, schema *Schema, errs *ValidationErrors) {
	for _, req := range schema.Required {
		if _, ok := obj[req]; !ok {
			errs.Add(joinPath(path, req), "required field is missing")
		}
	}

	// sorted for stable reports
	names := make([]string, 0, len(obj))
	for name := range obj {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if v.full(errs) {
			return
		}
		propPath := joinPath(path, name)
		if propSchema, ok := schema.Properties[name]; ok {
			v.validateValue(propPath, obj[name], propSchema, errs)
		} else if !schema.AllowsAdditionalProperties() {
			errs.Add(propPath, "unknown property")
		}
	}
}

// resolveRef resolves a "#/$defs/name" reference against the root schema.
func (v *Validator) resolveRef(ref string) *Schema {
	if v.schema == nil || v.schema.Defs == nil {
		return nil
	}
	name, ok := strings.CutPrefix(ref, "#/$defs/")
	if !ok {
		return nil
	}
	return v.schema.Defs[name]
}

// JSON type names.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
	TypeNull    = "null"
)

func matchesType(value any, typ string) bool {
	switch typ {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeNumber:
		return isNumber(value)
	case TypeInteger:
		return isInteger(value)
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeArray:
		_, ok := value.([]any)
		return ok
	case TypeObject:
		_, ok := value.(map[string]any)
		return ok
	case TypeNull:
		return value == nil
	default:
		return false
	}
}

// jsonType names the JSON type of a decoded settings value.
func jsonType(value any) string {
	for _, typ := range []string{TypeNull, TypeString, TypeBoolean, TypeInteger, TypeNumber, TypeArray, TypeObject} {
		if matchesType(value, typ) {
			return typ
		}
	}
	return fmt.Sprintf("%T", value)
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	default:
		return false
	}
}

func isInteger(v any) bool {
	switch val := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return float64(int64(val)) == val
	default:
		return false
	}
}

func inEnum(value any, allowed []any) bool {
	for _, a := range allowed {
		if fmt.Sprint(a) == fmt.Sprint(value) && jsonType(a) == jsonType(value) {
			return true
		}
	}
	return false
}

func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}
