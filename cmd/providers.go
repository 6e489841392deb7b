package main

import (
	"context"
	"fmt"

	"github.com/Abraxas-365/docfill/pkg/ai/ocr"
	"github.com/Abraxas-365/docfill/pkg/ai/providers/aianthropic"
	"github.com/Abraxas-365/docfill/pkg/ai/providers/aiazure"
	"github.com/Abraxas-365/docfill/pkg/ai/providers/aibedrock"
	"github.com/Abraxas-365/docfill/pkg/ai/providers/aigemini"
	"github.com/Abraxas-365/docfill/pkg/ai/providers/aimistral"
	"github.com/Abraxas-365/docfill/pkg/ai/providers/aiopenai"
	"github.com/Abraxas-365/docfill/pkg/config"
	"github.com/Abraxas-365/docfill/pkg/errx"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
)

// newProvider builds the named extraction provider from cfg.
func newProvider(ctx context.Context, name string, cfg config.AIConfig) (ocr.FieldExtractor, error) {
	switch name {
	case "gemini":
		var opts []aigemini.ProviderOption
		if cfg.GeminiProject != "" {
			opts = append(opts, aigemini.WithVertexAI(cfg.GeminiProject, cfg.GeminiLocation))
		}
		return aigemini.NewGeminiProvider(ctx, cfg.GeminiKey, opts...)

	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, errx.Validation("OPENAI_API_KEY is required")
		}
		return aiopenai.NewOpenAIProvider(cfg.OpenAIKey), nil

	case "azure":
		return aiazure.NewAzureOpenAIProvider(cfg.AzureEndpoint, cfg.AzureDeployment, cfg.AzureAPIKey)

	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, errx.Validation("ANTHROPIC_API_KEY is required")
		}
		return aianthropic.NewAnthropicProvider(cfg.AnthropicKey), nil

	case "bedrock":
		awsCfg, err := awsConfig.LoadDefaultConfig(ctx, awsConfig.WithRegion(cfg.BedrockRegion))
		if err != nil {
			return nil, err
		}
		return aibedrock.NewBedrockProvider(awsCfg), nil

	case "mistral":
		return aimistral.NewMistralProvider(cfg.MistralKey, aimistral.WithTimeout(cfg.Timeout))

	default:
		return nil, fmt.Errorf("unknown AI_PROVIDER %q (use gemini, openai, azure, anthropic, bedrock or mistral)", name)
	}
}
