package refinex

import (
	"context"
	"image"
	"time"

	"github.com/Abraxas-365/docfill/pkg/ai/ocr"
	"github.com/Abraxas-365/docfill/pkg/fieldx"
	"github.com/Abraxas-365/docfill/pkg/imagex"
	"github.com/Abraxas-365/docfill/pkg/logx"
)

// Config tunes the refinement geometry and the confidence refined values
// are stored with.
type Config struct {
	Padding    float64
	Confidence float64
	MinArea    float64
}

func DefaultConfig() Config {
	return Config{
		Padding:    0.10,
		Confidence: fieldx.RefinedConfidence,
		MinArea:    DefaultMinArea,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Padding < 0 {
		c.Padding = d.Padding
	}
	if c.Confidence <= 0 || c.Confidence > 1 {
		c.Confidence = d.Confidence
	}
	if c.MinArea <= 0 {
		c.MinArea = d.MinArea
	}
	return c
}

// OutcomeKind says what a refinement did to the result.
type OutcomeKind string

const (
	OutcomeMerged  OutcomeKind = "merged"
	OutcomeSkipped OutcomeKind = "skipped"
	OutcomeEmpty   OutcomeKind = "empty"
	OutcomeDropped OutcomeKind = "dropped"
	OutcomeFailed  OutcomeKind = "failed"
)

// Outcome reports one hint's refinement.
type Outcome struct {
	HintID     string          `json:"hint_id"`
	Label      string          `json:"label"`
	Kind       OutcomeKind     `json:"kind"`
	Value      string          `json:"value,omitempty"`
	Confidence float64         `json:"confidence,omitempty"`
	Region     image.Rectangle `json:"-"`
	Err        error           `json:"-"`
}

// Request carries everything one refinement needs. Image is shared
// read-only between concurrent refinements of the same session.
type Request struct {
	SessionID string
	Image     image.Image
	Hint      Hint
	Result    *fieldx.Result
}

// Engine turns a hint into a cropped, targeted extraction and merges the
// answer into the session result.
type Engine struct {
	extractor ocr.FieldExtractor
	cfg       Config
	logger    *logx.Logger
}

type EngineOption func(*Engine)

func WithConfig(cfg Config) EngineOption {
	return func(e *Engine) { e.cfg = cfg.withDefaults() }
}

func WithEngineLogger(logger *logx.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewEngine(extractor ocr.FieldExtractor, opts ...EngineOption) *Engine {
	e := &Engine{
		extractor: extractor,
		cfg:       DefaultConfig(),
		logger:    logx.GetDefaultLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Config() Config { return e.cfg }

// Refine processes one hint. Skipped, empty and dropped outcomes are not
// errors. A failed crop or extraction returns an error and leaves the
// result untouched; it is never retried here.
func (e *Engine) Refine(ctx context.Context, req Request) (Outcome, error) {
	hint := req.Hint
	label := hint.TrimmedLabel()
	out := Outcome{HintID: hint.ID, Label: label}
	log := e.logger.WithFields(logx.Fields{
		"session_id": req.SessionID,
		"hint_id":    hint.ID,
		"label":      label,
	})

	if req.Image == nil || req.Result == nil {
		out.Kind, out.Err = OutcomeFailed, refineErrors.New(CodeInvalidRequest)
		return out, out.Err
	}
	if label == "" {
		out.Kind, out.Err = OutcomeSkipped, ErrUnlabeledHint()
		log.Debug("refine.skip")
		return out, nil
	}

	bounds, ok := hint.Bounds()
	region := PaddedRegion(bounds, e.cfg.Padding, req.Image.Bounds())
	if !ok || hint.Degenerate(e.cfg.MinArea) || region.Dx() <= 0 || region.Dy() <= 0 {
		out.Kind, out.Err = OutcomeSkipped, ErrDegenerateHint().WithDetail("region", region.String())
		log.Debug("refine.skip")
		return out, nil
	}
	out.Region = region

	start := time.Now()
	log.WithField("region", region.String()).Debug("refine.start")

	crop, err := imagex.Crop(req.Image, region)
	if err != nil {
		return e.fail(log, out, refineErrors.NewWithCause(CodeCropFailed, err))
	}

	ext, err := e.extractor.ExtractFields(ctx, ocr.FromBytes(crop, imagex.PNGMime),
		ocr.WithTargetVariables(label),
		ocr.WithStrictMode(),
	)
	if err != nil {
		return e.fail(log, out, ErrRefineFailed(err).WithDetail("hint_id", hint.ID))
	}

	field, found := ext.Lookup(label)
	if !found || fieldx.IsEmptyValue(field.Value) {
		out.Kind = OutcomeEmpty
		log.WithField("duration_ms", time.Since(start).Milliseconds()).Info("refine.empty")
		return out, nil
	}

	merged := fieldx.Field{Label: label, Value: field.Value, Confidence: e.cfg.Confidence}
	if !req.Result.Merge(merged) {
		out.Kind = OutcomeDropped
		log.Debug("refine.dropped")
		return out, nil
	}

	out.Kind, out.Value, out.Confidence = OutcomeMerged, merged.Value, merged.Confidence
	log.WithField("duration_ms", time.Since(start).Milliseconds()).Info("refine.merged")
	return out, nil
}

func (e *Engine) fail(log *logx.Entry, out Outcome, err error) (Outcome, error) {
	out.Kind, out.Err = OutcomeFailed, err
	log.WithError(err).Warn("refine.failed")
	return out, err
}
