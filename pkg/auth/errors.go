package auth

import "github.com/Abraxas-365/docfill/pkg/errx"

var authErrors = errx.NewRegistry("AUTH")

var (
	CodeUnauthorized          = authErrors.Register("UNAUTHORIZED", errx.TypeAuthorization, 401, "Authentication required")
	CodeInvalidToken          = authErrors.Register("INVALID_TOKEN", errx.TypeAuthorization, 401, "Invalid or expired token")
	CodeForbidden             = authErrors.Register("FORBIDDEN", errx.TypeAuthorization, 403, "Missing required scope")
	CodeTokenGenerationFailed = authErrors.Register("TOKEN_GENERATION_FAILED", errx.TypeInternal, 500, "Token generation failed")
)

func ErrUnauthorized() *errx.Error { return authErrors.New(CodeUnauthorized) }

func ErrInvalidToken(reason string) *errx.Error {
	return authErrors.New(CodeInvalidToken).WithDetail("reason", reason)
}

func ErrForbidden(scope string) *errx.Error {
	return authErrors.New(CodeForbidden).WithDetail("scope", scope)
}
