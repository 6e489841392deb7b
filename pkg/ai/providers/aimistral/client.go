package aimistral

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/Abraxas-365/docfill/pkg/asyncx"
	"github.com/Abraxas-365/docfill/pkg/errx"
)

const (
	DefaultBaseURL    = "https://api.mistral.ai/v1"
	DefaultTimeout    = 2 * time.Minute
	DefaultModel      = "mistral-ocr-latest"
	MaxRetries        = 2
	DefaultRetryDelay = time.Second
)

// HTTPClient posts JSON to the Mistral REST API. Rate limits and 5xx
// answers are retried with exponential backoff.
type HTTPClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
}

func NewHTTPClient(apiKey, baseURL string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		maxRetries: MaxRetries,
		retryDelay: DefaultRetryDelay,
	}
}

// Post sends payload to endpoint and returns the raw response body.
func (c *HTTPClient) Post(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(err, ErrInvalidInput)
	}

	return asyncx.RetryWithBackoff(ctx, c.maxRetries+1, c.retryDelay, func(ctx context.Context) ([]byte, error) {
		out, err := c.do(ctx, endpoint, body)
		if err != nil && !retryable(err) {
			return nil, asyncx.Permanent(err)
		}
		return out, err
	})
}

func (c *HTTPClient) do(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	url := c.baseURL + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(err, ErrAPIRequest)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", "docfill/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, WrapError(err, ErrAPIRequest).WithDetail("url", url)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(err, ErrAPIResponse)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, ParseAPIError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

func retryable(err error) bool {
	var e *errx.Error
	if !errx.As(err, &e) {
		return false
	}
	if e.Code == ErrAPIRateLimit.Code {
		return true
	}
	status, _ := e.Details["status_code"].(int)
	return status >= 500
}
