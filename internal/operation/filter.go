package operation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
)

// resultFilter is a compiled jq program applied to JSON text blocks.
type resultFilter struct {
	expression string
	code       *gojq.Code
}

func compileFilter(expression string) (*resultFilter, error) {
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("compile error: %w", err)
	}
	return &resultFilter{expression: expression, code: code}, nil
}

// apply rewrites every text block that holds JSON. Other blocks, and text
// that is not JSON, pass through untouched.
func (f *resultFilter) apply(ctx context.Context, env *Envelope) (*Envelope, error) {
	out := &Envelope{Content: make([]Content, len(env.Content)), IsError: env.IsError}
	for i, c := range env.Content {
		out.Content[i] = c
		if c.Kind != ContentText {
			continue
		}

		var data any
		if err := json.Unmarshal([]byte(c.Text), &data); err != nil {
			continue
		}

		result, err := f.run(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("result filter %q failed: %w", f.expression, err)
		}
		filtered, err := JSONContent(result)
		if err != nil {
			return nil, err
		}
		out.Content[i] = filtered
	}
	return out, nil
}

// run collects the program's outputs: none is nil, one is returned as is,
// several become an array.
func (f *resultFilter) run(ctx context.Context, data any) (any, error) {
	iter := f.code.RunWithContext(ctx, data)

	var results []any
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, err
		}
		results = append(results, v)
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}
