package sessionx

import "github.com/Abraxas-365/docfill/pkg/errx"

var sessionErrors = errx.NewRegistry("SESSION")

var (
	CodeSessionNotFound = sessionErrors.Register("NOT_FOUND", errx.TypeNotFound, 404, "Session not found")
	CodeSessionClosed   = sessionErrors.Register("CLOSED", errx.TypeConflict, 409, "Session is closed")
	CodeInvalidImage    = sessionErrors.Register("INVALID_IMAGE", errx.TypeValidation, 400, "Uploaded image could not be decoded")
	CodeInvalidRequest  = sessionErrors.Register("INVALID_REQUEST", errx.TypeValidation, 400, "Invalid session request")
	CodeStoreFailed     = sessionErrors.Register("STORE_FAILED", errx.TypeInternal, 500, "Session store operation failed")
)

func ErrSessionNotFound() *errx.Error { return sessionErrors.New(CodeSessionNotFound) }
func ErrSessionClosed() *errx.Error   { return sessionErrors.New(CodeSessionClosed) }

func ErrInvalidRequest(reason string) *errx.Error {
	return sessionErrors.New(CodeInvalidRequest).WithDetail("reason", reason)
}

func ErrStoreFailed(cause error) *errx.Error {
	return sessionErrors.NewWithCause(CodeStoreFailed, cause)
}
