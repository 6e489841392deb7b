package aigemini

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Abraxas-365/docfill/pkg/errx"
	"google.golang.org/genai"
)

var errorRegistry = errx.NewRegistry("GEMINI")

var (
	ErrAPIRequest      = errorRegistry.Register("API_REQUEST_FAILED", errx.TypeExternal, http.StatusBadGateway, "Failed to make request to Gemini API")
	ErrAPIResponse     = errorRegistry.Register("API_RESPONSE_INVALID", errx.TypeExternal, http.StatusBadGateway, "Invalid response from Gemini API")
	ErrAPIUnauthorized = errorRegistry.Register("API_UNAUTHORIZED", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid or missing Gemini API key")
	ErrAPIRateLimit    = errorRegistry.Register("API_RATE_LIMIT", errx.TypeExternal, http.StatusTooManyRequests, "Gemini API rate limit exceeded")
	ErrModelNotFound   = errorRegistry.Register("MODEL_NOT_FOUND", errx.TypeValidation, http.StatusNotFound, "Requested model not found or not accessible")
	ErrInvalidRequest  = errorRegistry.Register("INVALID_REQUEST", errx.TypeValidation, http.StatusBadRequest, "Gemini rejected the request")
	ErrMissingAPIKey   = errorRegistry.Register("MISSING_API_KEY", errx.TypeValidation, http.StatusBadRequest, "Gemini API key not provided")
	ErrEmptyResponse   = errorRegistry.Register("EMPTY_RESPONSE", errx.TypeExternal, http.StatusBadGateway, "Gemini returned no content")
	ErrContentBlocked  = errorRegistry.Register("CONTENT_BLOCKED", errx.TypeValidation, http.StatusUnprocessableEntity, "Gemini blocked the document")
)

// ParseGeminiError maps an SDK error to a registered one. Structured API
// errors are mapped by HTTP code; anything else by message.
func ParseGeminiError(err error) *errx.Error {
	if err == nil {
		return nil
	}
	var e *errx.Error
	if errx.As(err, &e) {
		return e
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return errorRegistry.NewWithCause(codeForStatus(apiErr.Code), err).
			WithDetail("status_code", apiErr.Code).
			WithDetail("status", apiErr.Status)
	}

	msg := strings.ToLower(err.Error())
	code := ErrAPIRequest
	switch {
	case strings.Contains(msg, "api key") || strings.Contains(msg, "permission denied"):
		code = ErrAPIUnauthorized
	case strings.Contains(msg, "resource exhausted") || strings.Contains(msg, "quota"):
		code = ErrAPIRateLimit
	}
	return errorRegistry.NewWithCause(code, err)
}

func codeForStatus(status int) *errx.ErrorCode {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAPIUnauthorized
	case status == http.StatusTooManyRequests:
		return ErrAPIRateLimit
	case status == http.StatusNotFound:
		return ErrModelNotFound
	case status == http.StatusBadRequest:
		return ErrInvalidRequest
	default:
		return ErrAPIRequest
	}
}

// WrapError returns err unchanged when it already is an errx error.
func WrapError(err error, code *errx.ErrorCode) *errx.Error {
	if err == nil {
		return nil
	}
	var e *errx.Error
	if errx.As(err, &e) {
		return e
	}
	return errorRegistry.NewWithCause(code, err)
}
