package aigemini

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/Abraxas-365/docfill/pkg/ai/ocr"
	"github.com/Abraxas-365/docfill/pkg/logx"
	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.0-flash"

// ProviderOption configures the Gemini provider
type ProviderOption func(*GeminiProvider)

// WithVertexAI configures the provider to use Vertex AI backend
func WithVertexAI(project, location string) ProviderOption {
	return func(p *GeminiProvider) {
		p.project = project
		p.location = location
		p.useVertexAI = true
	}
}

// WithModel sets the default vision model
func WithModel(model string) ProviderOption {
	return func(p *GeminiProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// GeminiProvider implements ocr.FieldExtractor with Gemini vision models
type GeminiProvider struct {
	client      *genai.Client
	apiKey      string
	project     string
	location    string
	useVertexAI bool
	model       string
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(ctx context.Context, apiKey string, opts ...ProviderOption) (*GeminiProvider, error) {
	p := &GeminiProvider{
		apiKey: apiKey,
		model:  DefaultModel,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.apiKey == "" {
		p.apiKey = os.Getenv("GEMINI_API_KEY")
	}

	config := &genai.ClientConfig{}

	if p.useVertexAI {
		config.Backend = genai.BackendVertexAI
		config.Project = p.project
		config.Location = p.location
	} else {
		if p.apiKey == "" {
			return nil, errorRegistry.New(ErrMissingAPIKey)
		}
		config.APIKey = p.apiKey
		config.Backend = genai.BackendGeminiAPI
	}

	client, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, WrapError(err, ErrMissingAPIKey).
			WithDetail("error", "failed to create Gemini client")
	}

	p.client = client
	return p, nil
}

// ============================================================================
// FieldExtractor Implementation
// ============================================================================

// ExtractFields sends the image with the extraction prompt and asks for a
// JSON answer constrained by the extraction schema.
func (p *GeminiProvider) ExtractFields(ctx context.Context, input ocr.Input, opts ...ocr.Option) (*ocr.Extraction, error) {
	options := ocr.ApplyOptions(opts...)
	if options.Model == "" {
		options.Model = p.model
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		MaxOutputTokens:  int32(options.MaxTokens),
		ResponseMIMEType: "application/json",
		ResponseSchema:   convertToGeminiSchema(ocr.ResponseSchema()),
	}

	text, usage, err := p.generate(ctx, input, ocr.BuildPrompt(options), options.Model, config)
	if err != nil {
		return nil, err
	}

	ext, report, err := ocr.ParseResponse(text, options)
	if err != nil {
		return nil, err
	}
	if len(report.Dropped) > 0 {
		logx.WithField("dropped", report.Dropped).Warn("gemini.extract.lenient_sanitize_applied")
	}
	ext.Model = options.Model
	ext.Usage = usage
	return ext, nil
}

// RecognizeText transcribes the document.
func (p *GeminiProvider) RecognizeText(ctx context.Context, input ocr.Input, opts ...ocr.Option) (string, error) {
	options := ocr.ApplyOptions(opts...)
	if options.Model == "" {
		options.Model = p.model
	}

	prompt := "Transcribe all text in this document exactly as printed, preserving line breaks. Return only the text."
	text, _, err := p.generate(ctx, input, prompt, options.Model, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	})
	return text, err
}

func (p *GeminiProvider) generate(ctx context.Context, input ocr.Input, prompt, model string, config *genai.GenerateContentConfig) (string, ocr.Usage, error) {
	parts := []*genai.Part{inputPart(input), genai.NewPartFromText(prompt)}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	result, err := p.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", ocr.Usage{}, ParseGeminiError(err).WithDetail("model", model)
	}

	if result != nil && result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
		return "", ocr.Usage{}, errorRegistry.New(ErrContentBlocked).
			WithDetail("reason", string(result.PromptFeedback.BlockReason))
	}
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", ocr.Usage{}, errorRegistry.New(ErrEmptyResponse).WithDetail("model", model)
	}

	var b strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			b.WriteString(part.Text)
		}
	}

	usage := ocr.Usage{}
	if result.UsageMetadata != nil {
		usage.PromptTokens = int(result.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(result.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int(result.UsageMetadata.TotalTokenCount)
	}
	return b.String(), usage, nil
}

func inputPart(input ocr.Input) *genai.Part {
	mimeType := input.MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}
	if input.Type == ocr.InputTypeURL {
		return genai.NewPartFromURI(input.URL, mimeType)
	}
	return genai.NewPartFromBytes(input.Data, mimeType)
}

// ============================================================================
// Helper Functions
// ============================================================================

func convertToGeminiSchema(params any) *genai.Schema {
	// round-trip so nested []string and map types become []any/map[string]any
	data, err := json.Marshal(params)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return mapToGeminiSchema(m)
}

func mapToGeminiSchema(m map[string]any) *genai.Schema {
	if m == nil {
		return nil
	}

	schema := &genai.Schema{}

	if t, ok := m["type"].(string); ok {
		switch t {
		case "object":
			schema.Type = genai.TypeObject
		case "array":
			schema.Type = genai.TypeArray
		case "string":
			schema.Type = genai.TypeString
		case "number":
			schema.Type = genai.TypeNumber
		case "integer":
			schema.Type = genai.TypeInteger
		case "boolean":
			schema.Type = genai.TypeBoolean
		}
	}

	if desc, ok := m["description"].(string); ok {
		schema.Description = desc
	}

	if enum, ok := m["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}

	if props, ok := m["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema)
		for key, val := range props {
			if propMap, ok := val.(map[string]any); ok {
				schema.Properties[key] = mapToGeminiSchema(propMap)
			}
		}
	}

	if items, ok := m["items"].(map[string]any); ok {
		schema.Items = mapToGeminiSchema(items)
	}

	if required, ok := m["required"].([]any); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}

	return schema
}

var (
	_ ocr.FieldExtractor = (*GeminiProvider)(nil)
	_ ocr.TextRecognizer = (*GeminiProvider)(nil)
)
