package ocr

import (
	"context"
	"errors"
	"time"

	"github.com/Abraxas-365/docfill/pkg/asyncx"
	"github.com/Abraxas-365/docfill/pkg/errx"
	"github.com/Abraxas-365/docfill/pkg/logx"
)

// Client wraps a provider with input validation, retries of transient
// failures and logging. It is itself a FieldExtractor.
type Client struct {
	extractor  FieldExtractor
	recognizer TextRecognizer

	name       string
	attempts   int
	retryDelay time.Duration
	timeout    time.Duration
	defaults   []Option
	logger     *logx.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRetries sets how many times a transient failure is attempted.
func WithRetries(attempts int, initialDelay time.Duration) ClientOption {
	return func(c *Client) {
		c.attempts = max(attempts, 1)
		c.retryDelay = initialDelay
	}
}

// WithTimeout bounds each call, retries included.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithDefaultOptions prepends opts to every call.
func WithDefaultOptions(opts ...Option) ClientOption {
	return func(c *Client) { c.defaults = append(c.defaults, opts...) }
}

func WithLogger(logger *logx.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithName labels log lines with the provider name.
func WithName(name string) ClientOption {
	return func(c *Client) { c.name = name }
}

// NewClient creates a client from a provider
func NewClient(extractor FieldExtractor, opts ...ClientOption) *Client {
	c := &Client{
		extractor:  extractor,
		name:       "provider",
		attempts:   1,
		retryDelay: 500 * time.Millisecond,
		logger:     logx.GetDefaultLogger(),
	}
	if tr, ok := extractor.(TextRecognizer); ok {
		c.recognizer = tr
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExtractFields implements FieldExtractor.
func (c *Client) ExtractFields(ctx context.Context, input Input, opts ...Option) (*Extraction, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	all := append(append([]Option{}, c.defaults...), opts...)
	options := ApplyOptions(all...)
	log := c.logger.With(logx.Fields{
		"provider": c.name,
		"strict":   options.Strict,
		"targets":  len(options.TargetVariables),
	})

	start := time.Now()
	ext, err := asyncx.RetryWithBackoff(ctx, c.attempts, c.retryDelay, func(ctx context.Context) (*Extraction, error) {
		ext, err := c.extractor.ExtractFields(ctx, input, all...)
		if err != nil && !retryable(err) {
			return nil, asyncx.Permanent(err)
		}
		return ext, err
	})
	elapsed := time.Since(start)

	if err != nil {
		log.WithError(err).WithField("elapsed_ms", elapsed.Milliseconds()).Warn("ocr.extract.failed")
		var e *errx.Error
		if errx.As(err, &e) {
			return nil, err
		}
		return nil, ErrExtractionFailed(err)
	}
	if ext == nil {
		ext = &Extraction{}
	}
	if ext.Usage.ProcessingTimeMs == 0 {
		ext.Usage.ProcessingTimeMs = int(elapsed.Milliseconds())
	}
	if !options.Strict && ext.RawText == "" && c.recognizer != nil {
		c.attachRawText(ctx, log, ext, input, all)
	}

	log.WithFields(logx.Fields{
		"fields":     len(ext.Fields),
		"elapsed_ms": elapsed.Milliseconds(),
	}).Debug("ocr.extract.done")
	return ext, nil
}

// attachRawText transcribes the document for a bulk extraction whose
// provider returned no text of its own. A failed transcription leaves
// RawText empty; the fields are still returned.
func (c *Client) attachRawText(ctx context.Context, log *logx.Logger, ext *Extraction, input Input, opts []Option) {
	text, err := c.recognizer.RecognizeText(ctx, input, opts...)
	if err != nil {
		log.WithError(err).Warn("ocr.recognize.failed")
		return
	}
	ext.RawText = text
}

// retryable reports whether err is worth another attempt. Validation and
// authorization failures are not.
func retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var e *errx.Error
	if errx.As(err, &e) {
		switch e.Type {
		case errx.TypeValidation, errx.TypeAuthorization, errx.TypeNotFound:
			return false
		}
		if e.HTTPStatus == 429 || e.HTTPStatus >= 500 {
			return true
		}
		return e.Type == errx.TypeExternal && e.Code != CodeSchemaMismatch.Code && e.Code != CodeMalformedOutput.Code
	}
	return true
}
