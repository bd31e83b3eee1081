package operation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tombee/connectkit/pkg/errors"
)

// ContentKind is the type of a content block.
type ContentKind string

const (
	ContentText     ContentKind = "text"
	ContentImage    ContentKind = "image"
	ContentResource ContentKind = "resource"
)

// Content is one typed block of an operation result.
type Content struct {
	Kind ContentKind `json:"type"`

	// Text is set for text blocks, and for resource blocks with text bodies.
	Text string `json:"text,omitempty"`

	// Data is base64 encoded binary, for image blocks.
	Data string `json:"data,omitempty"`

	MIMEType string `json:"mimeType,omitempty"`
	URI      string `json:"uri,omitempty"`
}

// Envelope is the uniform result of an operation.
type Envelope struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// TextContent returns a text block.
func TextContent(text string) Content {
	return Content{Kind: ContentText, Text: text}
}

// JSONContent renders v as indented JSON inside a text block.
func JSONContent(v any) (Content, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return Content{}, fmt.Errorf("failed to encode result: %w", err)
	}
	return TextContent(string(data)), nil
}

// Text returns a single text block envelope.
func Text(text string) *Envelope {
	return &Envelope{Content: []Content{TextContent(text)}}
}

// JSON returns an envelope holding v as indented JSON.
func JSON(v any) (*Envelope, error) {
	c, err := JSONContent(v)
	if err != nil {
		return nil, err
	}
	return &Envelope{Content: []Content{c}}, nil
}

// ErrorEnvelope describes err for the caller. The text carries the error's
// full message so vendor status codes and bodies stay visible.
func ErrorEnvelope(err error) *Envelope {
	msg := "Error: unknown error"
	if err != nil {
		msg = "Error: " + err.Error()
		if suggestion := errors.SuggestionFor(err); suggestion != "" {
			msg += "\n\nSuggestion: " + suggestion
		}
	}
	return &Envelope{Content: []Content{TextContent(msg)}, IsError: true}
}

// PlainText joins the text of every text block.
func (e *Envelope) PlainText() string {
	if e == nil {
		return ""
	}
	var parts []string
	for _, c := range e.Content {
		if c.Kind == ContentText {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}
