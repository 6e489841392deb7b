package aiazure

import (
	"context"
	"os"

	"github.com/Abraxas-365/docfill/pkg/ai/ocr"
	"github.com/Abraxas-365/docfill/pkg/ai/providers/aiopenai"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"
)

const DefaultAPIVersion = "2024-10-21"

// ProviderOption configures the Azure OpenAI provider
type ProviderOption func(*AzureOpenAIProvider)

// WithAPIVersion sets the Azure OpenAI API version
func WithAPIVersion(version string) ProviderOption {
	return func(p *AzureOpenAIProvider) {
		p.apiVersion = version
	}
}

// WithAzureADCredential configures Azure AD authentication
func WithAzureADCredential(cred azcore.TokenCredential) ProviderOption {
	return func(p *AzureOpenAIProvider) {
		p.tokenCredential = cred
	}
}

// WithRequestOptions appends raw client options, mostly for tests.
func WithRequestOptions(opts ...option.RequestOption) ProviderOption {
	return func(p *AzureOpenAIProvider) {
		p.requestOpts = append(p.requestOpts, opts...)
	}
}

// AzureOpenAIProvider extracts fields through an Azure OpenAI vision
// deployment. Requests are built exactly as for OpenAI; only the endpoint
// and authentication differ.
type AzureOpenAIProvider struct {
	inner           *aiopenai.OpenAIProvider
	endpoint        string
	deployment      string
	apiKey          string
	apiVersion      string
	tokenCredential azcore.TokenCredential
	requestOpts     []option.RequestOption
}

// NewAzureOpenAIProvider creates a new Azure OpenAI provider. deployment is
// used as the model name on every request.
func NewAzureOpenAIProvider(endpoint, deployment, apiKey string, opts ...ProviderOption) (*AzureOpenAIProvider, error) {
	p := &AzureOpenAIProvider{
		endpoint:   endpoint,
		deployment: deployment,
		apiKey:     apiKey,
		apiVersion: DefaultAPIVersion,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.endpoint == "" {
		p.endpoint = os.Getenv("AZURE_OPENAI_ENDPOINT")
	}
	if p.apiKey == "" {
		p.apiKey = os.Getenv("AZURE_OPENAI_API_KEY")
	}

	switch {
	case p.endpoint == "":
		return nil, errorRegistry.New(ErrMissingEndpoint)
	case p.deployment == "":
		return nil, errorRegistry.New(ErrMissingDeployment)
	case p.apiKey == "" && p.tokenCredential == nil:
		return nil, errorRegistry.New(ErrMissingCredentials)
	}

	clientOpts := []option.RequestOption{azure.WithEndpoint(p.endpoint, p.apiVersion)}
	if p.tokenCredential != nil {
		clientOpts = append(clientOpts, azure.WithTokenCredential(p.tokenCredential))
	} else {
		clientOpts = append(clientOpts, azure.WithAPIKey(p.apiKey))
	}
	clientOpts = append(clientOpts, p.requestOpts...)

	p.inner = aiopenai.NewFromClient(openai.NewClient(clientOpts...), p.deployment)
	return p, nil
}

// ExtractFields implements ocr.FieldExtractor.
func (p *AzureOpenAIProvider) ExtractFields(ctx context.Context, input ocr.Input, opts ...ocr.Option) (*ocr.Extraction, error) {
	return p.inner.ExtractFields(ctx, input, p.pinDeployment(opts)...)
}

// RecognizeText implements ocr.TextRecognizer.
func (p *AzureOpenAIProvider) RecognizeText(ctx context.Context, input ocr.Input, opts ...ocr.Option) (string, error) {
	return p.inner.RecognizeText(ctx, input, p.pinDeployment(opts)...)
}

// pinDeployment forces the deployment as model; Azure routes by it and a
// caller-supplied OpenAI model name would 404.
func (p *AzureOpenAIProvider) pinDeployment(opts []ocr.Option) []ocr.Option {
	return append(append([]ocr.Option{}, opts...), ocr.WithModel(p.deployment))
}

var (
	_ ocr.FieldExtractor = (*AzureOpenAIProvider)(nil)
	_ ocr.TextRecognizer = (*AzureOpenAIProvider)(nil)
)
