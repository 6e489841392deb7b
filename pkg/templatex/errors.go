package templatex

import "github.com/Abraxas-365/docfill/pkg/errx"

var templateErrors = errx.NewRegistry("TEMPLATE")

var (
	CodeTemplateNotFound = templateErrors.Register("NOT_FOUND", errx.TypeNotFound, 404, "Template not found")
	CodeInvalidTemplate  = templateErrors.Register("INVALID", errx.TypeValidation, 400, "Invalid template")
	CodeStoreFailed      = templateErrors.Register("STORE_FAILED", errx.TypeInternal, 500, "Template store operation failed")
)

func ErrTemplateNotFound() *errx.Error { return templateErrors.New(CodeTemplateNotFound) }
func ErrInvalidTemplate() *errx.Error  { return templateErrors.New(CodeInvalidTemplate) }

func ErrStoreFailed(cause error) *errx.Error {
	return templateErrors.NewWithCause(CodeStoreFailed, cause)
}
