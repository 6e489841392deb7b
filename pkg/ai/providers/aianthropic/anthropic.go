package aianthropic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/Abraxas-365/docfill/pkg/ai/ocr"
	"github.com/Abraxas-365/docfill/pkg/logx"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	DefaultModel = "claude-sonnet-4-20250514"

	// extractionTool is forced on every extraction request; its input is
	// the extraction document.
	extractionTool = "record_fields"
)

// AnthropicProvider reads fields with Claude vision. Structured output is
// obtained by forcing a single tool whose input schema is the extraction
// schema.
type AnthropicProvider struct {
	client       anthropic.Client
	apiKey       string
	defaultModel string
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(apiKey string, opts ...option.RequestOption) *AnthropicProvider {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	options := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicProvider{
		client:       anthropic.NewClient(options...),
		apiKey:       apiKey,
		defaultModel: DefaultModel,
	}
}

// ============================================================================
// FieldExtractor Implementation
// ============================================================================

// ExtractFields implements ocr.FieldExtractor.
func (p *AnthropicProvider) ExtractFields(ctx context.Context, input ocr.Input, opts ...ocr.Option) (*ocr.Extraction, error) {
	if p.apiKey == "" {
		return nil, errorRegistry.New(ErrMissingAPIKey)
	}

	options := ocr.ApplyOptions(opts...)
	if options.Model == "" {
		options.Model = p.defaultModel
	}

	params := p.buildParams(input, options, ocr.BuildPrompt(options))
	params.Tools = []anthropic.ToolUnionParam{extractionToolParam()}
	params.ToolChoice = anthropic.ToolChoiceUnionParam{
		OfTool: &anthropic.ToolChoiceToolParam{Name: extractionTool},
	}

	start := time.Now()
	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, ParseAnthropicError(err)
	}

	payload, ok := toolInput(msg)
	if !ok {
		// Some models answer in text despite the forced tool.
		payload = textOf(msg)
		if payload == "" {
			return nil, errorRegistry.New(ErrNoToolOutput).WithDetail("stop_reason", string(msg.StopReason))
		}
	}

	ext, report, err := ocr.ParseResponse(payload, options)
	if err != nil {
		return nil, err
	}
	if len(report.Dropped) > 0 {
		logx.WithField("dropped", report.Dropped).Warn("anthropic.extract.lenient_sanitize_applied")
	}

	ext.Model = string(msg.Model)
	ext.Usage = ocr.Usage{
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
		TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		ProcessingTimeMs: int(time.Since(start).Milliseconds()),
	}
	return ext, nil
}

// ============================================================================
// TextRecognizer Implementation
// ============================================================================

// RecognizeText asks Claude for a plain transcription.
func (p *AnthropicProvider) RecognizeText(ctx context.Context, input ocr.Input, opts ...ocr.Option) (string, error) {
	if p.apiKey == "" {
		return "", errorRegistry.New(ErrMissingAPIKey)
	}

	options := ocr.ApplyOptions(opts...)
	if options.Model == "" {
		options.Model = p.defaultModel
	}

	msg, err := p.client.Messages.New(ctx, p.buildParams(input, options,
		"Transcribe all text in this image exactly as it appears. Return only the text."))
	if err != nil {
		return "", ParseAnthropicError(err)
	}
	return textOf(msg), nil
}

// ============================================================================
// Request Building
// ============================================================================

func (p *AnthropicProvider) buildParams(input ocr.Input, options *ocr.Options, prompt string) anthropic.MessageNewParams {
	maxTokens := int64(4096)
	if options.MaxTokens > 0 {
		maxTokens = int64(options.MaxTokens)
	}

	return anthropic.MessageNewParams{
		Model:       anthropic.Model(options.Model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(0),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(imageBlock(input), anthropic.NewTextBlock(prompt)),
		},
	}
}

func imageBlock(input ocr.Input) anthropic.ContentBlockParamUnion {
	if input.Type == ocr.InputTypeURL {
		return anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: input.URL})
	}
	mimeType := input.MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}
	return anthropic.NewImageBlockBase64(mimeType, base64.StdEncoding.EncodeToString(input.Data))
}

func extractionToolParam() anthropic.ToolUnionParam {
	schema := ocr.ResponseSchema()
	input := anthropic.ToolInputSchemaParam{Properties: schema["properties"]}
	if req, ok := schema["required"].([]string); ok {
		input.Required = req
	}

	tool := anthropic.ToolUnionParamOfTool(input, extractionTool)
	tool.OfTool.Description = anthropic.String("Record the fields read from the document image.")
	return tool
}

func toolInput(msg *anthropic.Message) (string, bool) {
	for _, block := range msg.Content {
		if block.Type == "tool_use" && block.Name == extractionTool && block.Input != nil {
			data, err := json.Marshal(block.Input)
			if err != nil {
				return "", false
			}
			return string(data), true
		}
	}
	return "", false
}

func textOf(msg *anthropic.Message) string {
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

var (
	_ ocr.FieldExtractor = (*AnthropicProvider)(nil)
	_ ocr.TextRecognizer = (*AnthropicProvider)(nil)
)
