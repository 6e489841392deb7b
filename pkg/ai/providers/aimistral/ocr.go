package aimistral

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Abraxas-365/docfill/pkg/ai/ocr"
	"github.com/Abraxas-365/docfill/pkg/logx"
)

// MistralProvider reads fields with Mistral OCR plus document annotation:
// one call returns both the page markdown and a JSON object that follows
// the extraction schema.
type MistralProvider struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	client       *HTTPClient
	maxRetries   int
	retryDelay   time.Duration
	defaultModel string
}

// NewMistralProvider creates a new Mistral OCR provider
func NewMistralProvider(apiKey string, opts ...ProviderOption) (*MistralProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("MISTRAL_API_KEY")
	}

	if apiKey == "" {
		return nil, errorRegistry.New(ErrMissingAPIKey)
	}

	provider := &MistralProvider{
		apiKey:       apiKey,
		baseURL:      DefaultBaseURL,
		maxRetries:   MaxRetries,
		retryDelay:   DefaultRetryDelay,
		defaultModel: DefaultModel,
	}

	for _, opt := range opts {
		opt(provider)
	}

	provider.client = NewHTTPClient(provider.apiKey, provider.baseURL, provider.httpClient)
	provider.client.maxRetries = provider.maxRetries
	provider.client.retryDelay = provider.retryDelay

	return provider, nil
}

// ============================================================================
// FieldExtractor Implementation
// ============================================================================

// ExtractFields implements ocr.FieldExtractor.
func (m *MistralProvider) ExtractFields(ctx context.Context, input ocr.Input, opts ...ocr.Option) (*ocr.Extraction, error) {
	options := ocr.ApplyOptions(opts...)
	if options.Model == "" {
		options.Model = m.defaultModel
	}

	req := m.buildOCRRequest(input, options)
	req.DocumentAnnotationFormat = NewAnnotationFormat("field_extraction", ocr.ResponseSchema(), options.Strict)
	req.DocumentAnnotationPrompt = ocr.BuildPrompt(options)

	resp, err := m.call(ctx, req)
	if err != nil {
		return nil, WrapError(err, ErrAnnotationFailed)
	}
	if resp.DocumentAnnotation == "" {
		return nil, errorRegistry.New(ErrAPIResponse).
			WithDetail("error", "no document annotation in response")
	}

	ext, report, err := ocr.ParseResponse(resp.DocumentAnnotation, options)
	if err != nil {
		return nil, err
	}
	if len(report.Dropped) > 0 {
		logx.WithField("dropped", report.Dropped).Warn("mistral.annotation.lenient_sanitize_applied")
	}

	ext.RawText = pagesMarkdown(resp.Pages)
	ext.Model = resp.Model
	return ext, nil
}

// ============================================================================
// TextRecognizer Implementation
// ============================================================================

// RecognizeText returns the markdown of every page.
func (m *MistralProvider) RecognizeText(ctx context.Context, input ocr.Input, opts ...ocr.Option) (string, error) {
	options := ocr.ApplyOptions(opts...)
	if options.Model == "" {
		options.Model = m.defaultModel
	}

	resp, err := m.call(ctx, m.buildOCRRequest(input, options))
	if err != nil {
		return "", err
	}
	return pagesMarkdown(resp.Pages), nil
}

func (m *MistralProvider) call(ctx context.Context, req *OCRRequest) (*OCRResponse, error) {
	respBody, err := m.client.Post(ctx, "/ocr", req)
	if err != nil {
		return nil, err
	}

	var resp OCRResponse
	if parseErr := json.Unmarshal(respBody, &resp); parseErr != nil {
		return nil, WrapError(parseErr, ErrAPIResponse).
			WithDetail("error", "failed to parse OCR response")
	}
	return &resp, nil
}

// ============================================================================
// Request Building
// ============================================================================

func (m *MistralProvider) buildOCRRequest(input ocr.Input, options *ocr.Options) *OCRRequest {
	return &OCRRequest{
		Model:    options.Model,
		Document: m.convertInputToDocument(input),
	}
}

func (m *MistralProvider) convertInputToDocument(input ocr.Input) DocumentInput {
	isImage := input.MimeType == "" || strings.HasPrefix(input.MimeType, "image/")

	switch input.Type {
	case ocr.InputTypeBytes:
		mimeType := input.MimeType
		if mimeType == "" {
			mimeType = "image/png"
		}
		dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(input.Data))
		if isImage {
			return DocumentInput{Type: "image_url", ImageURL: dataURL}
		}
		return DocumentInput{Type: "document_url", DocumentURL: dataURL}
	default:
		if isImage {
			return DocumentInput{Type: "image_url", ImageURL: input.URL}
		}
		return DocumentInput{Type: "document_url", DocumentURL: input.URL}
	}
}

func pagesMarkdown(pages []PageData) string {
	var b strings.Builder
	for i, p := range pages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(p.Markdown)
	}
	return b.String()
}

var (
	_ ocr.FieldExtractor = (*MistralProvider)(nil)
	_ ocr.TextRecognizer = (*MistralProvider)(nil)
)
