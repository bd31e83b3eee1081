package operation

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/tombee/connectkit/pkg/errors"
)

// Kind identifies the shape a Schema node accepts.
type Kind string

const (
	KindString   Kind = "string"
	KindNumber   Kind = "number"
	KindBool     Kind = "boolean"
	KindEnum     Kind = "enum"
	KindArray    Kind = "array"
	KindObject   Kind = "object"
	KindOptional Kind = "optional"
	KindUnion    Kind = "union"
	KindRecord   Kind = "record"
)

// Schema is one node of an operation's input description. Schemas are built
// with the constructors below and are not modified once built: Describe and
// Default return new nodes.
type Schema struct {
	kind        Kind
	description string
	def         any
	hasDefault  bool
	integer     bool
	enum        []string
	elem        *Schema
	fields      []Field
	variants    []*Schema
}

// Field is a named property of an Object schema.
type Field struct {
	Name     string
	Schema   *Schema
	Required bool
}

// String accepts a string.
func String() *Schema { return &Schema{kind: KindString} }

// Number accepts any JSON number.
func Number() *Schema { return &Schema{kind: KindNumber} }

// Integer accepts a number without a fractional part. Validated values are int64.
func Integer() *Schema { return &Schema{kind: KindNumber, integer: true} }

// Bool accepts true or false.
func Bool() *Schema { return &Schema{kind: KindBool} }

// Enum accepts one of the given string literals.
func Enum(values ...string) *Schema {
	return &Schema{kind: KindEnum, enum: append([]string(nil), values...)}
}

// Array accepts a list whose every element matches elem.
func Array(elem *Schema) *Schema { return &Schema{kind: KindArray, elem: elem} }

// Object accepts a map with the given properties. Properties not listed are
// dropped from the validated value.
func Object(fields ...Field) *Schema {
	return &Schema{kind: KindObject, fields: append([]Field(nil), fields...)}
}

// Optional accepts nil or a value matching inner.
func Optional(inner *Schema) *Schema { return &Schema{kind: KindOptional, elem: inner} }

// Union accepts a value matching any variant; the first match wins.
func Union(variants ...*Schema) *Schema {
	return &Schema{kind: KindUnion, variants: append([]*Schema(nil), variants...)}
}

// Record accepts a string-keyed map whose values match value.
func Record(value *Schema) *Schema { return &Schema{kind: KindRecord, elem: value} }

// Required declares a property that must be present.
func Required(name string, s *Schema) Field { return Field{Name: name, Schema: s, Required: true} }

// Prop declares an optional property.
func Prop(name string, s *Schema) Field { return Field{Name: name, Schema: s} }

// Describe returns a copy of s with a description.
func (s *Schema) Describe(text string) *Schema {
	c := *s
	c.description = text
	return &c
}

// Default returns a copy of s that supplies v when the property is absent.
func (s *Schema) Default(v any) *Schema {
	c := *s
	c.def = v
	c.hasDefault = true
	return &c
}

func (s *Schema) Kind() Kind           { return s.kind }
func (s *Schema) Description() string  { return s.description }
func (s *Schema) Fields() []Field      { return append([]Field(nil), s.fields...) }
func (s *Schema) Elem() *Schema        { return s.elem }
func (s *Schema) Variants() []*Schema  { return append([]*Schema(nil), s.variants...) }
func (s *Schema) EnumValues() []string { return append([]string(nil), s.enum...) }
func (s *Schema) IsInteger() bool      { return s.integer }

// DefaultValue returns a copy of the declared default. An Optional node
// without its own default reports its inner default.
func (s *Schema) DefaultValue() (any, bool) {
	if s.hasDefault {
		return deepCopy(s.def), true
	}
	if s.kind == KindOptional && s.elem != nil {
		return s.elem.DefaultValue()
	}
	return nil, false
}

// optional reports whether a property with this schema may be absent.
func (f Field) optional() bool {
	return !f.Required || f.Schema.kind == KindOptional
}

// Validate checks v against s and returns the normalized value: defaults
// applied, unknown object properties dropped, numbers as float64 (int64 for
// Integer). The first failure is returned as a *errors.ValidationError.
func (s *Schema) Validate(v any) (any, error) {
	return s.validate("", v)
}

func (s *Schema) validate(path string, v any) (any, error) {
	switch s.kind {
	case KindOptional:
		if v == nil {
			return nil, nil
		}
		return s.elem.validate(path, v)

	case KindString:
		str, ok := v.(string)
		if !ok {
			return nil, typeMismatch(path, "string", v)
		}
		return str, nil

	case KindNumber:
		n, ok := toFloat(v)
		if !ok {
			return nil, typeMismatch(path, "number", v)
		}
		if s.integer {
			if n != math.Trunc(n) || math.IsInf(n, 0) {
				return nil, &errors.ValidationError{Field: path, Reason: "expected integer, got number"}
			}
			// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
			if n < math.MinInt64 || n >= math.MaxInt64 {
				return nil, &errors.ValidationError{Field: path, Reason: "integer out of range"}
			}
			return int64(n), nil
		}
		return n, nil

	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, typeMismatch(path, "boolean", v)
		}
		return b, nil

	case KindEnum:
		str, ok := v.(string)
		if ok {
			for _, allowed := range s.enum {
				if str == allowed {
					return str, nil
				}
			}
		}
		return nil, &errors.ValidationError{
			Field:  path,
			Reason: fmt.Sprintf("must be one of %v", s.enum),
		}

	case KindArray:
		items, ok := toSlice(v)
		if !ok {
			return nil, typeMismatch(path, "array", v)
		}
		out := make([]any, len(items))
		for i, item := range items {
			val, err := s.elem.validate(fmt.Sprintf("%s[%d]", path, i), item)
			if err != nil {
				return nil, err
			}
			out[i] = val
		}
		return out, nil

	case KindObject:
		m, ok := toMap(v)
		if !ok {
			return nil, typeMismatch(path, "object", v)
		}
		return s.validateObject(path, m)

	case KindRecord:
		m, ok := toMap(v)
		if !ok {
			return nil, typeMismatch(path, "object", v)
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := make(map[string]any, len(m))
		for _, k := range keys {
			val, err := s.elem.validate(joinPath(path, k), m[k])
			if err != nil {
				return nil, err
			}
			out[k] = val
		}
		return out, nil

	case KindUnion:
		for _, variant := range s.variants {
			if val, err := variant.validate(path, v); err == nil {
				return val, nil
			}
		}
		return nil, &errors.ValidationError{Field: path, Reason: "did not match any allowed type"}
	}

	return nil, &errors.ValidationError{Field: path, Reason: fmt.Sprintf("unsupported schema kind %q", s.kind)}
}

func (s *Schema) validateObject(path string, m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		fieldPath := joinPath(path, f.Name)
		raw, present := m[f.Name]
		if present && raw == nil && f.optional() {
			present = false
		}

		if !present {
			if d, ok := f.Schema.DefaultValue(); ok {
				out[f.Name] = d
				continue
			}
			if !f.optional() {
				return nil, &errors.ValidationError{Field: fieldPath, Reason: "required"}
			}
			continue
		}

		val, err := f.Schema.validate(fieldPath, raw)
		if err != nil {
			return nil, err
		}
		out[f.Name] = val
	}
	return out, nil
}

// checkDefaults validates every declared default in the tree against the
// node it is declared on, returning the path of the first that does not fit.
func (s *Schema) checkDefaults(path string) (string, error) {
	if s.hasDefault {
		bare := *s
		bare.hasDefault = false
		bare.def = nil
		if _, err := bare.validate(path, deepCopy(s.def)); err != nil {
			return path, err
		}
	}

	switch s.kind {
	case KindOptional:
		return s.elem.checkDefaults(path)
	case KindArray:
		return s.elem.checkDefaults(path + "[]")
	case KindRecord:
		return s.elem.checkDefaults(joinPath(path, "*"))
	case KindObject:
		for _, f := range s.fields {
			if p, err := f.Schema.checkDefaults(joinPath(path, f.Name)); err != nil {
				return p, err
			}
		}
	case KindUnion:
		for _, v := range s.variants {
			if p, err := v.checkDefaults(path); err != nil {
				return p, err
			}
		}
	}
	return "", nil
}

// JSONSchema renders s as a JSON Schema document.
func (s *Schema) JSONSchema() map[string]any {
	var out map[string]any

	switch s.kind {
	case KindOptional:
		out = s.elem.JSONSchema()
	case KindNumber:
		if s.integer {
			out = map[string]any{"type": "integer"}
		} else {
			out = map[string]any{"type": "number"}
		}
	case KindEnum:
		values := make([]any, len(s.enum))
		for i, v := range s.enum {
			values[i] = v
		}
		out = map[string]any{"type": "string", "enum": values}
	case KindArray:
		out = map[string]any{"type": "array", "items": s.elem.JSONSchema()}
	case KindObject:
		props := make(map[string]any, len(s.fields))
		for _, f := range s.fields {
			props[f.Name] = f.Schema.JSONSchema()
		}
		out = map[string]any{"type": "object", "properties": props}
		if req := s.RequiredFields(); len(req) > 0 {
			out["required"] = req
		}
	case KindRecord:
		out = map[string]any{"type": "object", "additionalProperties": s.elem.JSONSchema()}
	case KindUnion:
		variants := make([]any, len(s.variants))
		for i, v := range s.variants {
			variants[i] = v.JSONSchema()
		}
		out = map[string]any{"anyOf": variants}
	default:
		out = map[string]any{"type": string(s.kind)}
	}

	if s.description != "" {
		out["description"] = s.description
	}
	if s.hasDefault {
		out["default"] = deepCopy(s.def)
	}
	return out
}

// RequiredFields lists the properties a caller must supply: required,
// not wrapped in Optional, and without a default.
func (s *Schema) RequiredFields() []string {
	var names []string
	for _, f := range s.fields {
		if f.optional() {
			continue
		}
		if _, ok := f.Schema.DefaultValue(); ok {
			continue
		}
		names = append(names, f.Name)
	}
	return names
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func typeMismatch(path, want string, got any) error {
	return &errors.ValidationError{
		Field:  path,
		Reason: fmt.Sprintf("expected %s, got %s", want, typeName(got)),
	}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, json.Number:
		return "number"
	case map[string]any, Input:
		return "object"
	case []any, []string, []map[string]any, []float64:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	case []float64:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	default:
		return nil, false
	}
}

func toMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Input:
		return m, true
	default:
		return nil, false
	}
}

// deepCopy copies the JSON-shaped containers inside v.
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = deepCopy(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = deepCopy(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, item := range t {
			out[k] = item
		}
		return out
	default:
		return v
	}
}
