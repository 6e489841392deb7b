package refinex

import "github.com/Abraxas-365/docfill/pkg/errx"

var refineErrors = errx.NewRegistry("REFINE")

var (
	CodeDegenerateHint = refineErrors.Register("DEGENERATE_HINT", errx.TypeValidation, 400, "Hint region has no usable area")
	CodeUnlabeledHint  = refineErrors.Register("UNLABELED_HINT", errx.TypeValidation, 400, "Hint has no label")
	CodeCropFailed     = refineErrors.Register("CROP_FAILED", errx.TypeInternal, 500, "Could not crop hint region")
	CodeRefineFailed   = refineErrors.Register("FAILED", errx.TypeExternal, 502, "Refinement extraction failed")
	CodeInvalidRequest = refineErrors.Register("INVALID_REQUEST", errx.TypeValidation, 400, "Invalid refinement request")
)

func ErrDegenerateHint() *errx.Error { return refineErrors.New(CodeDegenerateHint) }
func ErrUnlabeledHint() *errx.Error  { return refineErrors.New(CodeUnlabeledHint) }

func ErrRefineFailed(cause error) *errx.Error {
	return refineErrors.NewWithCause(CodeRefineFailed, cause)
}
