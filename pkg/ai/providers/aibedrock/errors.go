package aibedrock

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Abraxas-365/docfill/pkg/errx"
	"github.com/aws/smithy-go"
)

var (
	errorRegistry = errx.NewRegistry("BEDROCK")

	ErrAPIRequest = errorRegistry.Register(
		"API_REQUEST_FAILED",
		errx.TypeExternal,
		http.StatusBadGateway,
		"Failed to make request to AWS Bedrock",
	)

	ErrAPIResponse = errorRegistry.Register(
		"API_RESPONSE_INVALID",
		errx.TypeExternal,
		http.StatusBadGateway,
		"Invalid response from AWS Bedrock",
	)

	ErrAPIUnauthorized = errorRegistry.Register(
		"API_UNAUTHORIZED",
		errx.TypeAuthorization,
		http.StatusUnauthorized,
		"Invalid or missing AWS credentials",
	)

	ErrAPIRateLimit = errorRegistry.Register(
		"API_RATE_LIMIT",
		errx.TypeExternal,
		http.StatusTooManyRequests,
		"AWS Bedrock rate limit exceeded",
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
		"Bedrock rejected the request",
	)

	ErrUnsupportedInput = errorRegistry.Register(
		"UNSUPPORTED_INPUT",
		errx.TypeValidation,
		http.StatusBadRequest,
		"Bedrock only accepts inline image bytes",
	)
)

// ParseBedrockError maps an AWS Bedrock error to an errx.Error
func ParseBedrockError(err error) error {
	if err == nil {
		return nil
	}

	var customErr *errx.Error
	if errx.As(err, &customErr) {
		return customErr
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		var code *errx.ErrorCode
		switch apiErr.ErrorCode() {
		case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException":
			code = ErrAPIUnauthorized
		case "ThrottlingException", "ServiceQuotaExceededException":
			code = ErrAPIRateLimit
		case "ResourceNotFoundException":
			code = ErrModelNotFound
		case "ValidationException":
			code = ErrInvalidRequest
		default:
			code = ErrAPIRequest
		}
		return errorRegistry.NewWithCause(code, err).WithDetail("aws_error_code", apiErr.ErrorCode())
	}

	errLower := strings.ToLower(err.Error())

	var baseErr *errx.ErrorCode
	switch {
	case strings.Contains(errLower, "accessdenied") ||
		strings.Contains(errLower, "access denied") ||
		strings.Contains(errLower, "credentials"):
		baseErr = ErrAPIUnauthorized
	case strings.Contains(errLower, "throttl"):
		baseErr = ErrAPIRateLimit
	default:
		baseErr = ErrAPIRequest
	}

	return errorRegistry.NewWithCause(baseErr, err)
}
