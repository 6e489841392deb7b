package aiopenai

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Abraxas-365/docfill/pkg/errx"
	"github.com/openai/openai-go/v3"
)

var (
	// Error registry for OpenAI provider
	errorRegistry = errx.NewRegistry("OPENAI")

	// API Errors
	ErrAPIRequest = errorRegistry.Register(
		"API_REQUEST_FAILED",
		errx.TypeExternal,
		http.StatusBadGateway,
		"Failed to make request to OpenAI API",
	)

	ErrAPIResponse = errorRegistry.Register(
		"API_RESPONSE_INVALID",
		errx.TypeExternal,
		http.StatusBadGateway,
		"Invalid response from OpenAI API",
	)

	ErrAPIUnauthorized = errorRegistry.Register(
		"API_UNAUTHORIZED",
		errx.TypeAuthorization,
		http.StatusUnauthorized,
		"Invalid or missing OpenAI API key",
	)

	ErrAPIRateLimit = errorRegistry.Register(
		"API_RATE_LIMIT",
		errx.TypeExternal,
		http.StatusTooManyRequests,
		"OpenAI API rate limit exceeded",
	)

	ErrAPIQuotaExceeded = errorRegistry.Register(
		"API_QUOTA_EXCEEDED",
		errx.TypeExternal,
		http.StatusForbidden,
		"OpenAI API quota exceeded",
	)

	ErrModelNotFound = errorRegistry.Register(
		"MODEL_NOT_FOUND",
		errx.TypeValidation,
		http.StatusNotFound,
		"Requested model not found or not accessible",
	)

	ErrInvalidRequest = errorRegistry.Register(
		"INVALID_REQUEST",
		errx.TypeValidation,
		http.StatusBadRequest,
		"Invalid request parameters",
	)

	// Response Errors
	ErrNoChoicesInResponse = errorRegistry.Register(
		"NO_CHOICES_IN_RESPONSE",
		errx.TypeExternal,
		http.StatusBadGateway,
		"No choices returned in API response",
	)

	// Configuration Errors
	ErrMissingAPIKey = errorRegistry.Register(
		"MISSING_API_KEY",
		errx.TypeValidation,
		http.StatusBadRequest,
		"OpenAI API key not provided",
	)
)

// ParseOpenAIError maps an SDK error to a registry error. Status codes win
// over message sniffing when the SDK exposes them.
func ParseOpenAIError(err error) error {
	if err == nil {
		return nil
	}

	var customErr *errx.Error
	if errx.As(err, &customErr) {
		return customErr
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		e := errorRegistry.NewWithCause(codeForStatus(apiErr.StatusCode, apiErr.Message), err).
			WithDetail("status_code", apiErr.StatusCode)
		if apiErr.Code != "" {
			e.WithDetail("error_code", apiErr.Code)
		}
		return e
	}

	errLower := strings.ToLower(err.Error())
	var baseErr *errx.ErrorCode
	switch {
	case strings.Contains(errLower, "unauthorized"),
		strings.Contains(errLower, "invalid api key"),
		strings.Contains(errLower, "incorrect api key"):
		baseErr = ErrAPIUnauthorized
	case strings.Contains(errLower, "rate limit"), strings.Contains(errLower, "rate_limit"):
		baseErr = ErrAPIRateLimit
	case strings.Contains(errLower, "quota"):
		baseErr = ErrAPIQuotaExceeded
	case strings.Contains(errLower, "model") && strings.Contains(errLower, "not found"):
		baseErr = ErrModelNotFound
	default:
		baseErr = ErrAPIRequest
	}
	return errorRegistry.NewWithCause(baseErr, err)
}

func codeForStatus(status int, message string) *errx.ErrorCode {
	switch status {
	case http.StatusUnauthorized:
		return ErrAPIUnauthorized
	case http.StatusForbidden:
		if strings.Contains(strings.ToLower(message), "quota") {
			return ErrAPIQuotaExceeded
		}
		return ErrAPIUnauthorized
	case http.StatusTooManyRequests:
		return ErrAPIRateLimit
	case http.StatusNotFound:
		if strings.Contains(strings.ToLower(message), "model") {
			return ErrModelNotFound
		}
		return ErrAPIRequest
	case http.StatusBadRequest:
		return ErrInvalidRequest
	default:
		if status >= 500 {
			return ErrAPIResponse
		}
		return ErrAPIRequest
	}
}
