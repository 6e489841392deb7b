package sessionx

import (
	"context"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/Abraxas-365/docfill/pkg/fieldx"
	"github.com/Abraxas-365/docfill/pkg/kernel"
	"github.com/Abraxas-365/docfill/pkg/refinex"
	"github.com/Abraxas-365/docfill/pkg/templatex"
	"github.com/google/uuid"
)

// Session is one review of one document against one template. It owns the
// decoded source image, the extraction result and the refinement scheduler.
type Session struct {
	id         kernel.SessionID
	documentID kernel.DocumentID
	template   templatex.Template
	imagePath  string
	mimeType   string
	source     image.Image
	result     *fieldx.Result
	scheduler  *refinex.Scheduler
	minArea    float64
	createdAt  time.Time

	// hintsMu orders hint edits so the scheduler sees them in the order
	// they were stored.
	hintsMu sync.Mutex

	mu              sync.RWMutex
	hints           []refinex.Hint
	summary         string
	rawText         string
	extractionError string
	lastDispatch    *refinex.Dispatch
	closed          bool
	updatedAt       time.Time

	persistMu sync.Mutex
	revision  uint64
	persist   func(Snapshot)
}

func (s *Session) ID() kernel.SessionID          { return s.id }
func (s *Session) DocumentID() kernel.DocumentID { return s.documentID }
func (s *Session) Template() templatex.Template  { return s.template }

// Fields returns a copy of the current extraction result.
func (s *Session) Fields() []fieldx.Field { return s.result.Fields() }

// Closed reports whether the session was closed or replaced.
func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// SetField records a value typed by the user. A blank value removes the
// field so the template shows the unfilled marker again.
func (s *Session) SetField(label, value string) (fieldx.Field, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return fieldx.Field{}, ErrInvalidRequest("empty label")
	}
	if s.Closed() {
		return fieldx.Field{}, ErrSessionClosed()
	}

	field := fieldx.Field{Label: label, Value: value, Confidence: fieldx.ManualConfidence}
	var ok bool
	if strings.TrimSpace(value) == "" {
		ok = s.result.Remove(label)
	} else {
		ok = s.result.Merge(field)
	}
	if !ok {
		return fieldx.Field{}, ErrSessionClosed()
	}
	return field, nil
}

// SetHints replaces the whole hint set. Hints without an id get one.
func (s *Session) SetHints(hints []refinex.Hint) ([]refinex.Hint, error) {
	s.hintsMu.Lock()
	defer s.hintsMu.Unlock()
	return s.setHints(hints)
}

func (s *Session) setHints(hints []refinex.Hint) ([]refinex.Hint, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed()
	}
	s.hints = withIDs(hints)
	s.updatedAt = time.Now().UTC()
	out := append([]refinex.Hint(nil), s.hints...)
	s.mu.Unlock()

	s.scheduler.OnHintsChanged(out)
	s.save()
	return out, nil
}

// UpsertHint adds h or replaces the hint with the same id.
func (s *Session) UpsertHint(h refinex.Hint) (refinex.Hint, error) {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	s.hintsMu.Lock()
	defer s.hintsMu.Unlock()

	hints := s.Hints()
	replaced := false
	for i := range hints {
		if hints[i].ID == h.ID {
			hints[i], replaced = h, true
			break
		}
	}
	if !replaced {
		hints = append(hints, h)
	}
	if _, err := s.setHints(hints); err != nil {
		return refinex.Hint{}, err
	}
	return h, nil
}

// DeleteHint removes a hint. The value it produced stays in the result.
func (s *Session) DeleteHint(id string) error {
	s.hintsMu.Lock()
	defer s.hintsMu.Unlock()

	hints := s.Hints()
	out := hints[:0]
	for _, h := range hints {
		if h.ID != id {
			out = append(out, h)
		}
	}
	if len(out) == len(hints) {
		return ErrInvalidRequest("unknown hint").WithDetail("hint_id", id)
	}
	_, err := s.setHints(out)
	return err
}

func (s *Session) Hints() []refinex.Hint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]refinex.Hint(nil), s.hints...)
}

// Refine dispatches pending hint changes immediately instead of waiting for
// the debounce to settle.
func (s *Session) Refine(ctx context.Context) (refinex.Dispatch, error) {
	if s.Closed() {
		return refinex.Dispatch{}, ErrSessionClosed()
	}
	return s.scheduler.Flush(ctx), nil
}

// Render fills the session's template with the current result.
func (s *Session) Render() templatex.Report {
	return s.template.Fill(s.result.Fields())
}

// Snapshot captures the session's persisted state.
func (s *Session) Snapshot() Snapshot {
	fields, version := s.result.Snapshot()

	s.mu.RLock()
	defer s.mu.RUnlock()
	status := StatusOpen
	if s.closed {
		status = StatusClosed
	}
	return Snapshot{
		ID:              s.id,
		DocumentID:      s.documentID,
		TemplateID:      s.template.ID,
		Status:          status,
		ImagePath:       s.imagePath,
		MimeType:        s.mimeType,
		Fields:          fields,
		Hints:           append([]refinex.Hint(nil), s.hints...),
		Version:         version,
		Summary:         s.summary,
		RawText:         s.rawText,
		ExtractionError: s.extractionError,
		LastDispatch:    s.lastDispatch,
		CreatedAt:       s.createdAt,
		UpdatedAt:       s.updatedAt,
	}
}

func (s *Session) recordDispatch(d refinex.Dispatch) {
	s.mu.Lock()
	if !d.Unchanged {
		s.lastDispatch = &d
		s.updatedAt = time.Now().UTC()
	}
	s.mu.Unlock()
	s.save()
}

// close seals the result so refinements still in flight are dropped, and
// discards hints too small to ever be refined.
func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	kept := s.hints[:0]
	for _, h := range s.hints {
		if !h.Degenerate(s.minArea) {
			kept = append(kept, h)
		}
	}
	s.hints = kept
	s.updatedAt = time.Now().UTC()
	s.mu.Unlock()

	s.scheduler.Close()
	s.result.Seal()
	s.save()
}

// save hands a snapshot to the persist hook. Snapshots are taken and handed
// over under persistMu so revisions reach the store in order.
func (s *Session) save() {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if s.persist == nil {
		return
	}
	s.revision++
	snap := s.Snapshot()
	snap.Revision = s.revision
	s.persist(snap)
}

func (s *Session) setPersist(fn func(Snapshot)) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	s.persist = fn
}

func withIDs(hints []refinex.Hint) []refinex.Hint {
	out := make([]refinex.Hint, len(hints))
	for i, h := range hints {
		if h.ID == "" {
			h.ID = uuid.NewString()
		}
		out[i] = h
	}
	return out
}
