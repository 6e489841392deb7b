package aiopenai

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/Abraxas-365/docfill/pkg/ai/ocr"
	"github.com/Abraxas-365/docfill/pkg/logx"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const DefaultModel = "gpt-4o"

// OpenAIProvider reads fields with a vision chat model and a json_schema
// response format.
type OpenAIProvider struct {
	client       openai.Client
	apiKey       string
	defaultModel string
	imageDetail  string
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(apiKey string, opts ...option.RequestOption) *OpenAIProvider {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	options := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIProvider{
		client:       openai.NewClient(options...),
		apiKey:       apiKey,
		defaultModel: DefaultModel,
		imageDetail:  "high",
	}
}

// NewFromClient wraps an already configured client. Azure deployments use
// it with their own endpoint and credentials.
func NewFromClient(client openai.Client, defaultModel string) *OpenAIProvider {
	return &OpenAIProvider{
		client:       client,
		apiKey:       "external",
		defaultModel: defaultModel,
		imageDetail:  "high",
	}
}

// WithDefaultModel replaces the model used when the caller does not pick one.
func (p *OpenAIProvider) WithDefaultModel(model string) *OpenAIProvider {
	p.defaultModel = model
	return p
}

// ============================================================================
// FieldExtractor Implementation
// ============================================================================

// ExtractFields implements ocr.FieldExtractor.
func (p *OpenAIProvider) ExtractFields(ctx context.Context, input ocr.Input, opts ...ocr.Option) (*ocr.Extraction, error) {
	if p.apiKey == "" {
		return nil, errorRegistry.New(ErrMissingAPIKey)
	}

	options := ocr.ApplyOptions(opts...)
	if options.Model == "" {
		options.Model = p.defaultModel
	}

	params := p.buildParams(input, options, ocr.BuildPrompt(options))
	params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
			JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   "field_extraction",
				Schema: ocr.ResponseSchema(),
				Strict: openai.Bool(options.Strict),
			},
		},
	}

	start := time.Now()
	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, ParseOpenAIError(err)
	}
	content, err := firstContent(completion)
	if err != nil {
		return nil, err
	}

	ext, report, err := ocr.ParseResponse(content, options)
	if err != nil {
		return nil, err
	}
	if len(report.Dropped) > 0 {
		logx.WithField("dropped", report.Dropped).Warn("openai.extract.lenient_sanitize_applied")
	}

	ext.Model = completion.Model
	ext.Usage = ocr.Usage{
		PromptTokens:     int(completion.Usage.PromptTokens),
		CompletionTokens: int(completion.Usage.CompletionTokens),
		TotalTokens:      int(completion.Usage.TotalTokens),
		ProcessingTimeMs: int(time.Since(start).Milliseconds()),
	}
	return ext, nil
}

// ============================================================================
// TextRecognizer Implementation
// ============================================================================

// RecognizeText asks the model for a plain transcription.
func (p *OpenAIProvider) RecognizeText(ctx context.Context, input ocr.Input, opts ...ocr.Option) (string, error) {
	if p.apiKey == "" {
		return "", errorRegistry.New(ErrMissingAPIKey)
	}

	options := ocr.ApplyOptions(opts...)
	if options.Model == "" {
		options.Model = p.defaultModel
	}

	completion, err := p.client.Chat.Completions.New(ctx, p.buildParams(input, options, transcribePrompt))
	if err != nil {
		return "", ParseOpenAIError(err)
	}
	return firstContent(completion)
}

const transcribePrompt = "Transcribe all text in this image exactly as it appears. Return only the text."

// ============================================================================
// Request Building
// ============================================================================

func (p *OpenAIProvider) buildParams(input ocr.Input, options *ocr.Options, prompt string) openai.ChatCompletionNewParams {
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(prompt),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL:    imageURL(input),
			Detail: p.imageDetail,
		}),
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(options.Model),
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)},
		Temperature: openai.Float(0),
	}
	if options.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(options.MaxTokens))
	}
	return params
}

// imageURL returns the input as something the image_url part accepts:
// the URL itself or an inline data URI.
func imageURL(input ocr.Input) string {
	if input.Type == ocr.InputTypeURL {
		return input.URL
	}
	mimeType := input.MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(input.Data))
}

func firstContent(completion *openai.ChatCompletion) (string, error) {
	if completion == nil || len(completion.Choices) == 0 {
		return "", errorRegistry.New(ErrNoChoicesInResponse)
	}
	return completion.Choices[0].Message.Content, nil
}

var (
	_ ocr.FieldExtractor = (*OpenAIProvider)(nil)
	_ ocr.TextRecognizer = (*OpenAIProvider)(nil)
)
