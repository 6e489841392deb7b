package ocr

import "github.com/Abraxas-365/docfill/pkg/errx"

var ocrErrors = errx.NewRegistry("OCR")

var (
	CodeInvalidInput     = ocrErrors.Register("INVALID_INPUT", errx.TypeValidation, 400, "Invalid extraction input")
	CodeMalformedOutput  = ocrErrors.Register("MALFORMED_OUTPUT", errx.TypeExternal, 502, "Provider returned malformed output")
	CodeSchemaMismatch   = ocrErrors.Register("SCHEMA_MISMATCH", errx.TypeExternal, 502, "Provider output does not match the extraction schema")
	CodeExtractionFailed = ocrErrors.Register("EXTRACTION_FAILED", errx.TypeExternal, 502, "Field extraction failed")
	CodeUnsupported      = ocrErrors.Register("UNSUPPORTED", errx.TypeValidation, 400, "Capability not supported by this provider")
)

// ErrMalformedOutput wraps a decoding failure of provider output.
func ErrMalformedOutput(cause error) *errx.Error {
	return ocrErrors.NewWithCause(CodeMalformedOutput, cause)
}

// ErrExtractionFailed wraps a provider call failure.
func ErrExtractionFailed(cause error) *errx.Error {
	return ocrErrors.NewWithCause(CodeExtractionFailed, cause)
}
