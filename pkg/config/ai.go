package config

import "time"

// AIConfig selects and configures the extraction provider.
type AIConfig struct {
	Provider string
	Model    string
	// FallbackProviders are tried in order when Provider fails.
	FallbackProviders []string

	OpenAIKey       string
	AnthropicKey    string
	GeminiKey       string
	MistralKey      string
	GeminiProject   string
	GeminiLocation  string
	AzureEndpoint   string
	AzureDeployment string
	AzureAPIKey     string
	BedrockRegion   string

	Retries    int
	RetryDelay time.Duration
	Timeout    time.Duration
	MaxTokens  int
	// MaxImageSide downscales larger sources before the bulk extraction.
	MaxImageSide int
}

func loadAIConfig() AIConfig {
	return AIConfig{
		Provider:          getEnv("AI_PROVIDER", "gemini"),
		Model:             getEnv("AI_MODEL", ""),
		FallbackProviders: getEnvStringSlice("AI_FALLBACK_PROVIDERS", nil),
		OpenAIKey:         getEnv("OPENAI_API_KEY", ""),
		AnthropicKey:      getEnv("ANTHROPIC_API_KEY", ""),
		GeminiKey:         getEnv("GEMINI_API_KEY", ""),
		MistralKey:        getEnv("MISTRAL_API_KEY", ""),
		GeminiProject:     getEnv("GEMINI_VERTEX_PROJECT", ""),
		GeminiLocation:    getEnv("GEMINI_VERTEX_LOCATION", "us-central1"),
		AzureEndpoint:     getEnv("AZURE_OPENAI_ENDPOINT", ""),
		AzureDeployment:   getEnv("AZURE_OPENAI_DEPLOYMENT", ""),
		AzureAPIKey:       getEnv("AZURE_OPENAI_API_KEY", ""),
		BedrockRegion:     getEnv("BEDROCK_REGION", getEnv("AWS_REGION", "us-east-1")),
		Retries:           getEnvInt("AI_RETRIES", 3),
		RetryDelay:        getEnvDuration("AI_RETRY_DELAY", 500*time.Millisecond),
		Timeout:           getEnvDuration("AI_TIMEOUT", 60*time.Second),
		MaxTokens:         getEnvInt("AI_MAX_TOKENS", 2048),
		MaxImageSide:      getEnvInt("AI_MAX_IMAGE_SIDE", 2048),
	}
}
