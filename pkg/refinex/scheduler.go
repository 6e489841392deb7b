package refinex

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/Abraxas-365/docfill/pkg/asyncx"
	"github.com/Abraxas-365/docfill/pkg/fieldx"
	"github.com/Abraxas-365/docfill/pkg/logx"
)

const DefaultDebounce = 1500 * time.Millisecond

// Dispatch is what one settled hint set produced.
type Dispatch struct {
	Signature string    `json:"signature"`
	Unchanged bool      `json:"unchanged"`
	Outcomes  []Outcome `json:"outcomes"`
}

// Failed returns the outcomes that ended in an error.
func (d Dispatch) Failed() []Outcome {
	var out []Outcome
	for _, o := range d.Outcomes {
		if o.Kind == OutcomeFailed {
			out = append(out, o)
		}
	}
	return out
}

type SchedulerOption func(*Scheduler)

func WithDebounce(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.debounce = d
		}
	}
}

func WithClock(clock asyncx.Clock) SchedulerOption {
	return func(s *Scheduler) { s.clock = clock }
}

// WithConcurrency caps parallel refinements per dispatch. Zero means no cap.
func WithConcurrency(n int) SchedulerOption {
	return func(s *Scheduler) { s.concurrency = n }
}

// OnDispatch registers a callback invoked after every dispatch, including
// no-op ones.
func OnDispatch(fn func(Dispatch)) SchedulerOption {
	return func(s *Scheduler) { s.onDispatch = fn }
}

func WithSessionID(id string) SchedulerOption {
	return func(s *Scheduler) { s.sessionID = id }
}

// Scheduler debounces hint edits for one session and refines only hints
// whose label or geometry changed since they were last processed.
//
// States: idle, pending (timer armed), dispatching. A change while pending
// re-arms the timer; a dispatch that finds the settled signature equal to
// the last processed one does nothing.
type Scheduler struct {
	engine    *Engine
	source    image.Image
	result    *fieldx.Result
	sessionID string
	logger    *logx.Logger

	debounce    time.Duration
	clock       asyncx.Clock
	concurrency int
	onDispatch  func(Dispatch)
	debouncer   *asyncx.Debouncer

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	hints      []Hint
	pendingSig string
	lastSig    string
	// inflightSig is the signature a running dispatch is refining. Edits
	// made meanwhile are compared against it, not lastSig.
	inflightSig string
	inflight    bool
	processed   map[string]string // hint id -> signature last refined successfully

	dispatchMu sync.Mutex
}

// NewScheduler binds a scheduler to one session's decoded source image and
// result.
func NewScheduler(engine *Engine, source image.Image, result *fieldx.Result, opts ...SchedulerOption) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		engine:    engine,
		source:    source,
		result:    result,
		logger:    engine.logger,
		debounce:  DefaultDebounce,
		clock:     asyncx.SystemClock,
		ctx:       ctx,
		cancel:    cancel,
		processed: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.debouncer = asyncx.NewDebouncer(s.debounce, s.clock)
	return s
}

// OnHintsChanged records the latest hint set and (re)arms the debounce
// timer when the active signature differs from what is pending, being
// dispatched, or was last processed.
func (s *Scheduler) OnHintsChanged(hints []Hint) {
	sig := SetSignature(hints, s.engine.cfg.MinArea)

	s.mu.Lock()
	s.hints = cloneHints(hints)
	settled := s.lastSig
	if s.inflight {
		settled = s.inflightSig
	}
	pending := s.debouncer.Pending()
	if (pending && sig == s.pendingSig) || (!pending && sig == settled) {
		s.mu.Unlock()
		return
	}
	s.pendingSig = sig
	s.mu.Unlock()

	s.debouncer.Trigger(func() { s.dispatch(s.ctx) })
}

// Flush cancels the timer and dispatches the current hint set now.
func (s *Scheduler) Flush(ctx context.Context) Dispatch {
	s.debouncer.Stop()
	return s.dispatch(ctx)
}

// Prime records hints as already processed without refining them. Used when
// a session is rebuilt from a snapshot whose fields already reflect them.
func (s *Scheduler) Prime(hints []Hint) {
	minArea := s.engine.cfg.MinArea

	s.mu.Lock()
	defer s.mu.Unlock()
	s.hints = cloneHints(hints)
	s.processed = make(map[string]string, len(hints))
	for _, h := range hints {
		if h.Active(minArea) {
			s.processed[h.ID] = h.Signature()
		}
	}
	s.lastSig = SetSignature(hints, minArea)
}

// Pending reports whether a dispatch is armed.
func (s *Scheduler) Pending() bool { return s.debouncer.Pending() }

// Hints returns the latest hint set.
func (s *Scheduler) Hints() []Hint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneHints(s.hints)
}

// Close stops the timer and cancels refinements in flight.
func (s *Scheduler) Close() {
	s.debouncer.Stop()
	s.cancel()
}

func (s *Scheduler) dispatch(ctx context.Context) Dispatch {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	hints := cloneHints(s.hints)
	sig := SetSignature(hints, s.engine.cfg.MinArea)
	if sig == s.lastSig {
		s.mu.Unlock()
		d := Dispatch{Signature: sig, Unchanged: true}
		s.report(d)
		return d
	}

	minArea := s.engine.cfg.MinArea
	var todo []Hint
	active := make(map[string]string, len(hints))
	for _, h := range hints {
		if !h.Active(minArea) {
			continue
		}
		hs := h.Signature()
		active[h.ID] = hs
		if s.processed[h.ID] != hs {
			todo = append(todo, h)
		}
	}
	s.inflight, s.inflightSig = true, sig
	s.mu.Unlock()

	fns := make([]func(context.Context) (Outcome, error), len(todo))
	for i, h := range todo {
		fns[i] = func(ctx context.Context) (Outcome, error) {
			return s.engine.Refine(ctx, Request{
				SessionID: s.sessionID,
				Image:     s.source,
				Hint:      h,
				Result:    s.result,
			})
		}
	}

	settled := asyncx.AllSettledN(ctx, s.concurrency, fns...)

	d := Dispatch{Signature: sig, Outcomes: make([]Outcome, len(settled))}

	s.mu.Lock()
	for id := range s.processed {
		if _, ok := active[id]; !ok {
			delete(s.processed, id)
		}
	}
	for i, r := range settled {
		o := r.Value
		if r.Err != nil {
			o.HintID, o.Label, o.Kind, o.Err = todo[i].ID, todo[i].TrimmedLabel(), OutcomeFailed, r.Err
		} else {
			s.processed[todo[i].ID] = active[todo[i].ID]
		}
		d.Outcomes[i] = o
	}
	s.lastSig = sig
	s.inflight, s.inflightSig = false, ""
	s.mu.Unlock()

	s.logger.WithFields(logx.Fields{
		"session_id": s.sessionID,
		"hints":      len(todo),
		"failed":     len(d.Failed()),
	}).Info("refine.dispatch")

	s.report(d)
	return d
}

func (s *Scheduler) report(d Dispatch) {
	if s.onDispatch != nil {
		s.onDispatch(d)
	}
}

func cloneHints(hints []Hint) []Hint {
	out := make([]Hint, len(hints))
	for i, h := range hints {
		out[i] = h
		if h.Points != nil {
			out[i].Points = append([]Point(nil), h.Points...)
		}
		if h.Rect != nil {
			r := *h.Rect
			out[i].Rect = &r
		}
	}
	return out
}
