package ocr

import (
	"context"
	"errors"
)

// Chain tries each extractor in order and returns the first success.
// Cancellation of ctx stops the chain.
type Chain []FieldExtractor

func (ch Chain) ExtractFields(ctx context.Context, input Input, opts ...Option) (*Extraction, error) {
	if len(ch) == 0 {
		return nil, ocrErrors.New(CodeUnsupported).WithDetail("capability", "field extraction")
	}
	var errs []error
	for _, ex := range ch {
		ext, err := ex.ExtractFields(ctx, input, opts...)
		if err == nil {
			return ext, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 1 {
		return nil, errs[0]
	}
	return nil, ErrExtractionFailed(errors.Join(errs...))
}
