// === ./pkg/ai/ocr/ocr.go ===
package ocr

import (
	"context"

	"github.com/Abraxas-365/docfill/pkg/fieldx"
)

// ============================================================================
// LAYER 1: Capabilities
// ============================================================================

// FieldExtractor reads labeled values off a document image. It is the only
// capability the engine requires from a provider.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, input Input, opts ...Option) (*Extraction, error)
}

// TextRecognizer returns the plain text of a document. Providers that offer
// it let the client attach raw text to extractions.
type TextRecognizer interface {
	RecognizeText(ctx context.Context, input Input, opts ...Option) (string, error)
}

// FieldExtractorFunc adapts a function to FieldExtractor.
type FieldExtractorFunc func(ctx context.Context, input Input, opts ...Option) (*Extraction, error)

func (f FieldExtractorFunc) ExtractFields(ctx context.Context, input Input, opts ...Option) (*Extraction, error) {
	return f(ctx, input, opts...)
}

// ============================================================================
// LAYER 2: Input
// ============================================================================

// Input is an image (or document page) handed to a provider, either inline
// or by URL.
type Input struct {
	Type InputType

	Data []byte // For raw bytes
	URL  string // For URLs

	MimeType string
	Metadata map[string]any
}

type InputType string

const (
	InputTypeBytes InputType = "bytes"
	InputTypeURL   InputType = "url"
)

func FromBytes(data []byte, mimeType string) Input {
	return Input{Type: InputTypeBytes, Data: data, MimeType: mimeType}
}

func FromURL(url, mimeType string) Input {
	return Input{Type: InputTypeURL, URL: url, MimeType: mimeType}
}

// Validate checks that the input carries something a provider can read.
func (in Input) Validate() error {
	switch in.Type {
	case InputTypeBytes:
		if len(in.Data) == 0 {
			return ocrErrors.New(CodeInvalidInput).WithDetail("reason", "empty image data")
		}
	case InputTypeURL:
		if in.URL == "" {
			return ocrErrors.New(CodeInvalidInput).WithDetail("reason", "empty url")
		}
	default:
		return ocrErrors.New(CodeInvalidInput).WithDetail("type", string(in.Type))
	}
	return nil
}

// ============================================================================
// LAYER 3: Result
// ============================================================================

// Extraction is what a provider read off the input.
type Extraction struct {
	Fields  []fieldx.Field `json:"fields"`
	Summary string         `json:"summary,omitempty"`
	RawText string         `json:"raw_text,omitempty"`

	Model string `json:"model,omitempty"`
	Usage Usage  `json:"usage"`
}

// Lookup returns the value read for label. A label that matches none of the
// returned fields still resolves when the extraction holds exactly one
// field, as targeted crops usually do.
func (e *Extraction) Lookup(label string) (fieldx.Field, bool) {
	if e == nil || len(e.Fields) == 0 {
		return fieldx.Field{}, false
	}
	want := fieldx.Normalize(label)
	for _, f := range e.Fields {
		if f.Label == label || fieldx.Normalize(f.Label) == want {
			return f, true
		}
	}
	for _, f := range e.Fields {
		if _, ok := fieldx.Resolve([]fieldx.Field{f}, label); ok {
			return f, true
		}
	}
	if len(e.Fields) == 1 {
		return e.Fields[0], true
	}
	return fieldx.Field{}, false
}

// Usage represents token consumption for one call
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	ProcessingTimeMs int `json:"processing_time_ms"`
}
