package operation

import (
	"encoding/json"
	"math"
)

// Input is the validated argument map passed to a Handler. Values have
// already been checked against the operation's schema, so the accessors
// only convert; a missing or mismatched key yields the zero value.
type Input map[string]any

// Has reports whether key is present.
func (in Input) Has(key string) bool {
	_, ok := in[key]
	return ok
}

func (in Input) String(key string) string {
	s, _ := in[key].(string)
	return s
}

func (in Input) Bool(key string) bool {
	b, _ := in[key].(bool)
	return b
}

func (in Input) Float(key string) float64 {
	f, _ := toFloat(in[key])
	return f
}

// Int returns a numeric value truncated toward zero.
func (in Input) Int(key string) int {
	switch v := in[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	}
	f, ok := toFloat(in[key])
	if !ok || math.IsNaN(f) {
		return 0
	}
	return int(f)
}

// Strings returns a string list. A single string becomes a one element
// list, which is how string-or-array unions are usually consumed.
func (in Input) Strings(key string) []string {
	switch v := in[key].(type) {
	case string:
		return []string{v}
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Map returns a nested object.
func (in Input) Map(key string) map[string]any {
	m, _ := toMap(in[key])
	return m
}
