package aimistral

import (
	"net/http"
	"time"
)

type ProviderOption func(*MistralProvider)

func WithBaseURL(url string) ProviderOption {
	return func(p *MistralProvider) { p.baseURL = url }
}

func WithHTTPClient(client *http.Client) ProviderOption {
	return func(p *MistralProvider) { p.httpClient = client }
}

// WithTimeout bounds each HTTP attempt.
func WithTimeout(timeout time.Duration) ProviderOption {
	return func(p *MistralProvider) {
		if timeout <= 0 {
			return
		}
		if p.httpClient == nil {
			p.httpClient = &http.Client{}
		}
		p.httpClient.Timeout = timeout
	}
}

// WithMaxRetries sets how many times a rate-limited or 5xx call is
// repeated after the first attempt.
func WithMaxRetries(maxRetries int) ProviderOption {
	return func(p *MistralProvider) { p.maxRetries = max(maxRetries, 0) }
}

func WithRetryDelay(d time.Duration) ProviderOption {
	return func(p *MistralProvider) { p.retryDelay = d }
}

func WithDefaultModel(model string) ProviderOption {
	return func(p *MistralProvider) {
		if model != "" {
			p.defaultModel = model
		}
	}
}
