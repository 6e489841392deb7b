package aimistral

import (
	"encoding/json"
	"net/http"

	"github.com/Abraxas-365/docfill/pkg/errx"
)

var errorRegistry = errx.NewRegistry("MISTRAL")

var (
	ErrAPIRequest       = errorRegistry.Register("API_REQUEST_FAILED", errx.TypeExternal, http.StatusBadGateway, "Failed to make request to Mistral API")
	ErrAPIResponse      = errorRegistry.Register("API_RESPONSE_INVALID", errx.TypeExternal, http.StatusBadGateway, "Invalid response from Mistral API")
	ErrAPIUnauthorized  = errorRegistry.Register("API_UNAUTHORIZED", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid or missing API key")
	ErrAPIRateLimit     = errorRegistry.Register("API_RATE_LIMIT", errx.TypeExternal, http.StatusTooManyRequests, "Mistral API rate limit exceeded")
	ErrAPIQuotaExceeded = errorRegistry.Register("API_QUOTA_EXCEEDED", errx.TypeExternal, http.StatusForbidden, "Mistral API quota exceeded")
	ErrInvalidInput     = errorRegistry.Register("INVALID_INPUT", errx.TypeValidation, http.StatusBadRequest, "Invalid input parameters")
	ErrDocumentTooLarge = errorRegistry.Register("DOCUMENT_TOO_LARGE", errx.TypeValidation, http.StatusRequestEntityTooLarge, "Document exceeds the OCR size limit")
	ErrAnnotationFailed = errorRegistry.Register("ANNOTATION_FAILED", errx.TypeExternal, http.StatusBadGateway, "Document annotation failed")
	ErrMissingAPIKey    = errorRegistry.Register("MISSING_API_KEY", errx.TypeValidation, http.StatusBadRequest, "Missing Mistral API key")
)

// ParseAPIError maps a non-2xx answer to a registered error. The body is
// either {"error":{"message","type"}} or {"message"}; anything else is
// used verbatim.
func ParseAPIError(statusCode int, body []byte) *errx.Error {
	var payload struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)

	message, errType := payload.Error.Message, payload.Error.Type
	if message == "" {
		message = payload.Message
	}
	if message == "" {
		message = string(body)
	}

	code := ErrAPIRequest
	switch statusCode {
	case http.StatusUnauthorized:
		code = ErrAPIUnauthorized
	case http.StatusForbidden:
		code = ErrAPIUnauthorized
		if errType == "quota_exceeded" || errType == "insufficient_quota" {
			code = ErrAPIQuotaExceeded
		}
	case http.StatusTooManyRequests:
		code = ErrAPIRateLimit
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		code = ErrInvalidInput
	case http.StatusRequestEntityTooLarge:
		code = ErrDocumentTooLarge
	}

	err := errorRegistry.NewWithMessage(code, message).WithDetail("status_code", statusCode)
	if errType != "" {
		err = err.WithDetail("error_type", errType)
	}
	return err
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
