package aibedrock

import (
	"context"
	"strings"
	"time"

	"github.com/Abraxas-365/docfill/pkg/ai/ocr"
	"github.com/Abraxas-365/docfill/pkg/logx"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

const (
	DefaultModel   = "anthropic.claude-sonnet-4-20250514-v1:0"
	extractionTool = "record_fields"
)

// ConverseAPI is the slice of the Bedrock runtime client the provider uses.
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// ProviderOption configures the Bedrock provider
type ProviderOption func(*BedrockProvider)

// WithDefaultModel sets the default model ID
func WithDefaultModel(model string) ProviderOption {
	return func(p *BedrockProvider) {
		p.defaultModel = model
	}
}

// WithClient replaces the runtime client.
func WithClient(client ConverseAPI) ProviderOption {
	return func(p *BedrockProvider) {
		p.client = client
	}
}

// BedrockProvider reads fields through the Converse API with a forced tool.
type BedrockProvider struct {
	client       ConverseAPI
	defaultModel string
}

// NewBedrockProvider creates a new Bedrock provider
func NewBedrockProvider(cfg aws.Config, opts ...ProviderOption) *BedrockProvider {
	p := &BedrockProvider{
		client:       bedrockruntime.NewFromConfig(cfg),
		defaultModel: DefaultModel,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// ============================================================================
// FieldExtractor Implementation
// ============================================================================

// ExtractFields implements ocr.FieldExtractor.
func (p *BedrockProvider) ExtractFields(ctx context.Context, input ocr.Input, opts ...ocr.Option) (*ocr.Extraction, error) {
	options := ocr.ApplyOptions(opts...)
	if options.Model == "" {
		options.Model = p.defaultModel
	}

	req, err := p.buildInput(input, options, ocr.BuildPrompt(options))
	if err != nil {
		return nil, err
	}
	req.ToolConfig = &types.ToolConfiguration{
		Tools: []types.Tool{extractionToolSpec()},
		ToolChoice: &types.ToolChoiceMemberTool{
			Value: types.SpecificToolChoice{Name: aws.String(extractionTool)},
		},
	}

	start := time.Now()
	output, err := p.client.Converse(ctx, req)
	if err != nil {
		return nil, ParseBedrockError(err)
	}

	msg, ok := output.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, errorRegistry.New(ErrAPIResponse).WithDetail("error", "unexpected output type")
	}

	payload, err := toolPayload(msg.Value.Content)
	if err != nil {
		return nil, err
	}

	ext, report, err := ocr.ParseResponse(payload, options)
	if err != nil {
		return nil, err
	}
	if len(report.Dropped) > 0 {
		logx.WithField("dropped", report.Dropped).Warn("bedrock.extract.lenient_sanitize_applied")
	}

	ext.Model = options.Model
	ext.Usage = usageOf(output)
	ext.Usage.ProcessingTimeMs = int(time.Since(start).Milliseconds())
	return ext, nil
}

// ============================================================================
// TextRecognizer Implementation
// ============================================================================

// RecognizeText asks the model for a plain transcription.
func (p *BedrockProvider) RecognizeText(ctx context.Context, input ocr.Input, opts ...ocr.Option) (string, error) {
	options := ocr.ApplyOptions(opts...)
	if options.Model == "" {
		options.Model = p.defaultModel
	}

	req, err := p.buildInput(input, options,
		"Transcribe all text in this image exactly as it appears. Return only the text.")
	if err != nil {
		return "", err
	}

	output, err := p.client.Converse(ctx, req)
	if err != nil {
		return "", ParseBedrockError(err)
	}
	msg, ok := output.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return "", errorRegistry.New(ErrAPIResponse).WithDetail("error", "unexpected output type")
	}
	return textOf(msg.Value.Content), nil
}

// ============================================================================
// Request Building
// ============================================================================

func (p *BedrockProvider) buildInput(input ocr.Input, options *ocr.Options, prompt string) (*bedrockruntime.ConverseInput, error) {
	if input.Type != ocr.InputTypeBytes {
		return nil, errorRegistry.New(ErrUnsupportedInput).WithDetail("input_type", string(input.Type))
	}

	block, err := contentBlock(input)
	if err != nil {
		return nil, err
	}

	config := &types.InferenceConfiguration{Temperature: aws.Float32(0)}
	if options.MaxTokens > 0 {
		config.MaxTokens = aws.Int32(int32(options.MaxTokens))
	}

	return &bedrockruntime.ConverseInput{
		ModelId: aws.String(options.Model),
		Messages: []types.Message{{
			Role: types.ConversationRoleUser,
			Content: []types.ContentBlock{
				block,
				&types.ContentBlockMemberText{Value: prompt},
			},
		}},
		InferenceConfig: config,
	}, nil
}

func contentBlock(input ocr.Input) (types.ContentBlock, error) {
	switch strings.ToLower(input.MimeType) {
	case "", "image/png":
		return imageBlock(types.ImageFormatPng, input.Data), nil
	case "image/jpeg", "image/jpg":
		return imageBlock(types.ImageFormatJpeg, input.Data), nil
	case "image/gif":
		return imageBlock(types.ImageFormatGif, input.Data), nil
	case "image/webp":
		return imageBlock(types.ImageFormatWebp, input.Data), nil
	case "application/pdf":
		return &types.ContentBlockMemberDocument{Value: types.DocumentBlock{
			Format: types.DocumentFormatPdf,
			Name:   aws.String("document"),
			Source: &types.DocumentSourceMemberBytes{Value: input.Data},
		}}, nil
	default:
		return nil, errorRegistry.New(ErrUnsupportedInput).WithDetail("mime_type", input.MimeType)
	}
}

func imageBlock(format types.ImageFormat, data []byte) types.ContentBlock {
	return &types.ContentBlockMemberImage{Value: types.ImageBlock{
		Format: format,
		Source: &types.ImageSourceMemberBytes{Value: data},
	}}
}

func extractionToolSpec() types.Tool {
	return &types.ToolMemberToolSpec{Value: types.ToolSpecification{
		Name:        aws.String(extractionTool),
		Description: aws.String("Record the fields read from the document image."),
		InputSchema: &types.ToolInputSchemaMemberJson{
			Value: document.NewLazyDocument(ocr.ResponseSchema()),
		},
	}}
}

// toolPayload returns the forced tool's input as JSON, falling back to the
// text blocks when the model answered in prose.
func toolPayload(blocks []types.ContentBlock) (string, error) {
	for _, block := range blocks {
		use, ok := block.(*types.ContentBlockMemberToolUse)
		if !ok || aws.ToString(use.Value.Name) != extractionTool || use.Value.Input == nil {
			continue
		}
		data, err := use.Value.Input.MarshalSmithyDocument()
		if err != nil {
			return "", errorRegistry.NewWithCause(ErrAPIResponse, err)
		}
		return string(data), nil
	}

	if text := textOf(blocks); text != "" {
		return text, nil
	}
	return "", errorRegistry.New(ErrAPIResponse).WithDetail("error", "no tool use in response")
}

func textOf(blocks []types.ContentBlock) string {
	var b strings.Builder
	for _, block := range blocks {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			b.WriteString(text.Value)
		}
	}
	return b.String()
}

func usageOf(output *bedrockruntime.ConverseOutput) ocr.Usage {
	var usage ocr.Usage
	if output.Usage == nil {
		return usage
	}
	if output.Usage.InputTokens != nil {
		usage.PromptTokens = int(*output.Usage.InputTokens)
	}
	if output.Usage.OutputTokens != nil {
		usage.CompletionTokens = int(*output.Usage.OutputTokens)
	}
	if output.Usage.TotalTokens != nil {
		usage.TotalTokens = int(*output.Usage.TotalTokens)
	}
	return usage
}

var (
	_ ocr.FieldExtractor = (*BedrockProvider)(nil)
	_ ocr.TextRecognizer = (*BedrockProvider)(nil)
)
