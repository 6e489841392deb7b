package refinex_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/Abraxas-365/docfill/pkg/ai/ocr"
	"github.com/Abraxas-365/docfill/pkg/asyncx/asyncxtest"
	"github.com/Abraxas-365/docfill/pkg/errx"
	"github.com/Abraxas-365/docfill/pkg/fieldx"
	"github.com/Abraxas-365/docfill/pkg/refinex"
)

type call struct {
	targets []string
	strict  bool
	size    image.Point
}

// fakeExtractor answers every targeted extraction from values, keyed by the
// target label. Labels listed in fail return an error. When set, hold is
// called with the 1-based call number before answering.
type fakeExtractor struct {
	mu     sync.Mutex
	calls  []call
	values map[string]string
	fail   map[string]bool
	hold   func(n int)
}

func (f *fakeExtractor) ExtractFields(ctx context.Context, in ocr.Input, opts ...ocr.Option) (*ocr.Extraction, error) {
	o := ocr.ApplyOptions(opts...)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(in.Data))
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls = append(f.calls, call{targets: o.TargetVariables, strict: o.Strict, size: image.Pt(cfg.Width, cfg.Height)})
	n := len(f.calls)
	f.mu.Unlock()

	if f.hold != nil {
		f.hold(n)
	}

	label := o.TargetVariables[0]
	if f.fail[label] {
		return nil, errors.New("provider unavailable")
	}
	return &ocr.Extraction{Fields: []fieldx.Field{{Label: label, Value: f.values[label], Confidence: 0.6}}}, nil
}

func (f *fakeExtractor) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func source() image.Image { return image.NewRGBA(image.Rect(0, 0, 200, 100)) }

func rectHint(id, label string, x, y, w, h float64) refinex.Hint {
	return refinex.Hint{ID: id, Label: label, Rect: &refinex.Rect{X: x, Y: y, Width: w, Height: h}}
}

func TestHintBounds(t *testing.T) {
	h := refinex.Hint{Points: []refinex.Point{{X: 10, Y: 20}, {X: 50, Y: 20}, {X: 50, Y: 40}}}
	b, ok := h.Bounds()
	if !ok || b != (refinex.Rect{X: 10, Y: 20, Width: 40, Height: 20}) {
		t.Fatalf("bounds = %+v, %v", b, ok)
	}

	flipped := refinex.Hint{Rect: &refinex.Rect{X: 50, Y: 40, Width: -40, Height: -20}}
	if b, _ := flipped.Bounds(); b != (refinex.Rect{X: 10, Y: 20, Width: 40, Height: 20}) {
		t.Fatalf("flipped bounds = %+v", b)
	}
}

func TestHintDegenerate(t *testing.T) {
	cases := []struct {
		name string
		hint refinex.Hint
		want bool
	}{
		{"no geometry", refinex.Hint{Label: "x"}, true},
		{"single point", refinex.Hint{Points: []refinex.Point{{X: 5, Y: 5}}}, true},
		{"horizontal line", refinex.Hint{Points: []refinex.Point{{X: 0, Y: 3}, {X: 100, Y: 3}}}, true},
		{"one pixel", rectHint("a", "x", 0, 0, 1, 1), true},
		{"two by two", rectHint("a", "x", 0, 0, 2, 2), false},
		{"region", rectHint("a", "x", 10, 10, 30, 12), false},
	}
	for _, tc := range cases {
		if got := tc.hint.Degenerate(refinex.DefaultMinArea); got != tc.want {
			t.Errorf("%s: Degenerate = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestPaddedRegion(t *testing.T) {
	bounds := image.Rect(0, 0, 200, 100)

	got := refinex.PaddedRegion(refinex.Rect{X: 10, Y: 20, Width: 40, Height: 20}, 0.10, bounds)
	if got != image.Rect(6, 18, 54, 42) {
		t.Fatalf("padded = %v", got)
	}

	got = refinex.PaddedRegion(refinex.Rect{X: 0, Y: 0, Width: 50, Height: 50}, 0.10, bounds)
	if got != image.Rect(0, 0, 55, 55) {
		t.Fatalf("clamped = %v", got)
	}

	if got := refinex.PaddedRegion(refinex.Rect{X: 500, Y: 500, Width: 10, Height: 10}, 0.10, bounds); !got.Empty() {
		t.Fatalf("outside region = %v, want empty", got)
	}
}

func TestSetSignatureIgnoresInactiveHints(t *testing.T) {
	a := rectHint("a", "total", 10, 10, 20, 20)
	b := rectHint("b", "tax", 50, 10, 20, 20)
	unlabeled := rectHint("c", "  ", 0, 0, 50, 50)
	dot := refinex.Hint{ID: "d", Label: "date", Points: []refinex.Point{{X: 1, Y: 1}}}

	s1 := refinex.SetSignature([]refinex.Hint{a, b, unlabeled, dot}, refinex.DefaultMinArea)
	s2 := refinex.SetSignature([]refinex.Hint{b, a}, refinex.DefaultMinArea)
	if s1 != s2 {
		t.Fatalf("signatures differ:\n%s\n%s", s1, s2)
	}
}

func TestRefineDegenerateHintSkipsExtraction(t *testing.T) {
	fx := &fakeExtractor{}
	engine := refinex.NewEngine(fx)
	result := fieldx.NewResult(nil)

	out, err := engine.Refine(context.Background(), refinex.Request{
		Image:  source(),
		Hint:   refinex.Hint{ID: "h", Label: "total", Points: []refinex.Point{{X: 40, Y: 40}}},
		Result: result,
	})
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if out.Kind != refinex.OutcomeSkipped || !errx.HasCode(out.Err, refinex.CodeDegenerateHint) {
		t.Fatalf("outcome = %+v", out)
	}
	if len(fx.Calls()) != 0 {
		t.Fatalf("extractor called %d times", len(fx.Calls()))
	}
	if _, v := result.Snapshot(); v != 0 {
		t.Fatalf("result mutated, version %d", v)
	}
}

func TestRefineMergesAtRefinedConfidence(t *testing.T) {
	fx := &fakeExtractor{values: map[string]string{"total_amount": "$450.00"}}
	engine := refinex.NewEngine(fx)
	result := fieldx.NewResult([]fieldx.Field{
		{Label: "Total Amount", Value: "$400.00", Confidence: 0.7},
		{Label: "client_name", Value: "ACME", Confidence: 0.9},
	})

	out, err := engine.Refine(context.Background(), refinex.Request{
		Image:  source(),
		Hint:   rectHint("h1", " total_amount ", 10, 20, 40, 20),
		Result: result,
	})
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if out.Kind != refinex.OutcomeMerged || out.Region != image.Rect(6, 18, 54, 42) {
		t.Fatalf("outcome = %+v", out)
	}

	calls := fx.Calls()
	if len(calls) != 1 || !calls[0].strict || calls[0].targets[0] != "total_amount" || calls[0].size != image.Pt(48, 24) {
		t.Fatalf("calls = %+v", calls)
	}

	fields := result.Fields()
	if len(fields) != 2 {
		t.Fatalf("fields = %+v", fields)
	}
	if fields[0].Value != "$450.00" || fields[0].Confidence != fieldx.RefinedConfidence {
		t.Fatalf("refined field = %+v", fields[0])
	}
	if fields[1] != (fieldx.Field{Label: "client_name", Value: "ACME", Confidence: 0.9}) {
		t.Fatalf("unrelated field changed: %+v", fields[1])
	}
}

func TestRefineEmptyValueKeepsExisting(t *testing.T) {
	fx := &fakeExtractor{values: map[string]string{"due_date": "N/A"}}
	engine := refinex.NewEngine(fx)
	result := fieldx.NewResult([]fieldx.Field{{Label: "due_date", Value: "2024-05-01", Confidence: 0.8}})

	out, err := engine.Refine(context.Background(), refinex.Request{
		Image: source(), Hint: rectHint("h", "due_date", 10, 10, 30, 10), Result: result,
	})
	if err != nil || out.Kind != refinex.OutcomeEmpty {
		t.Fatalf("outcome = %+v, err = %v", out, err)
	}
	if f, _ := result.Get("due_date"); f.Value != "2024-05-01" || f.Confidence != 0.8 {
		t.Fatalf("existing value changed: %+v", f)
	}
}

func TestRefineFailureLeavesResultUntouched(t *testing.T) {
	fx := &fakeExtractor{fail: map[string]bool{"tax": true}}
	engine := refinex.NewEngine(fx)
	result := fieldx.NewResult([]fieldx.Field{{Label: "tax", Value: "81.00", Confidence: 0.5}})

	out, err := engine.Refine(context.Background(), refinex.Request{
		Image: source(), Hint: rectHint("h", "tax", 10, 10, 30, 10), Result: result,
	})
	if !errx.HasCode(err, refinex.CodeRefineFailed) || out.Kind != refinex.OutcomeFailed {
		t.Fatalf("outcome = %+v, err = %v", out, err)
	}
	if _, v := result.Snapshot(); v != 0 {
		t.Fatalf("result mutated, version %d", v)
	}
}

func TestRefineSealedResultDropsWrite(t *testing.T) {
	fx := &fakeExtractor{values: map[string]string{"tax": "81.00"}}
	result := fieldx.NewResult(nil)
	result.Seal()

	out, err := refinex.NewEngine(fx).Refine(context.Background(), refinex.Request{
		Image: source(), Hint: rectHint("h", "tax", 10, 10, 30, 10), Result: result,
	})
	if err != nil || out.Kind != refinex.OutcomeDropped {
		t.Fatalf("outcome = %+v, err = %v", out, err)
	}
	if len(result.Fields()) != 0 {
		t.Fatalf("sealed result was written")
	}
}

func TestSchedulerDebounceUsesSettledGeometry(t *testing.T) {
	fx := &fakeExtractor{values: map[string]string{"total": "100"}}
	clock := asyncxtest.NewFakeClock(time.Unix(0, 0))
	var dispatches []refinex.Dispatch
	s := refinex.NewScheduler(refinex.NewEngine(fx), source(), fieldx.NewResult(nil),
		refinex.WithClock(clock),
		refinex.WithDebounce(1500*time.Millisecond),
		refinex.OnDispatch(func(d refinex.Dispatch) { dispatches = append(dispatches, d) }),
	)
	defer s.Close()

	s.OnHintsChanged([]refinex.Hint{rectHint("h", "total", 10, 10, 20, 20)})
	clock.Advance(time.Second)
	s.OnHintsChanged([]refinex.Hint{rectHint("h", "total", 10, 10, 60, 40)})
	clock.Advance(time.Second)

	if len(fx.Calls()) != 0 || len(dispatches) != 0 {
		t.Fatalf("dispatched before settling: %d calls", len(fx.Calls()))
	}

	clock.Advance(600 * time.Millisecond)

	calls := fx.Calls()
	if len(calls) != 1 || len(dispatches) != 1 {
		t.Fatalf("calls = %d, dispatches = %d", len(calls), len(dispatches))
	}
	if calls[0].size != image.Pt(72, 48) {
		t.Fatalf("crop size = %v, want the settled geometry 72x48", calls[0].size)
	}
	if s.Pending() {
		t.Fatalf("scheduler still pending")
	}
}

func TestSchedulerEditDuringDispatchIsRefined(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	fx := &fakeExtractor{
		values: map[string]string{"total": "100"},
		hold: func(n int) {
			if n == 2 {
				close(entered)
				<-release
			}
		},
	}
	clock := asyncxtest.NewFakeClock(time.Unix(0, 0))
	s := refinex.NewScheduler(refinex.NewEngine(fx), source(), fieldx.NewResult(nil),
		refinex.WithClock(clock),
		refinex.WithDebounce(time.Second),
	)
	defer s.Close()

	small := []refinex.Hint{rectHint("h", "total", 10, 10, 20, 20)}
	large := []refinex.Hint{rectHint("h", "total", 10, 10, 60, 40)}

	s.OnHintsChanged(small)
	clock.Advance(time.Second)

	s.OnHintsChanged(large)
	done := make(chan struct{})
	go func() {
		clock.Advance(time.Second)
		close(done)
	}()
	<-entered

	// Back to the geometry processed before the dispatch now running.
	s.OnHintsChanged(small)
	if !s.Pending() {
		t.Fatalf("edit made during a dispatch did not arm the timer")
	}
	close(release)
	<-done

	clock.Advance(time.Second)

	calls := fx.Calls()
	if len(calls) != 3 {
		t.Fatalf("calls = %d, want 3", len(calls))
	}
	if calls[2].size != image.Pt(24, 24) {
		t.Fatalf("last crop = %v, want the final geometry 24x24", calls[2].size)
	}
	if s.Pending() {
		t.Fatalf("scheduler still pending")
	}
}

func TestSchedulerIgnoresInactiveHints(t *testing.T) {
	clock := asyncxtest.NewFakeClock(time.Unix(0, 0))
	s := refinex.NewScheduler(refinex.NewEngine(&fakeExtractor{}), source(), fieldx.NewResult(nil), refinex.WithClock(clock))
	defer s.Close()

	s.OnHintsChanged([]refinex.Hint{
		{ID: "a", Label: "total", Points: []refinex.Point{{X: 3, Y: 3}}},
		rectHint("b", "", 10, 10, 50, 50),
	})
	if clock.Armed() != 0 || s.Pending() {
		t.Fatalf("timer armed for a hint set with no active hints")
	}
}

func TestSchedulerOnlyChangedHintsReprocessed(t *testing.T) {
	fx := &fakeExtractor{values: map[string]string{"total": "100", "tax": "18"}}
	result := fieldx.NewResult(nil)
	s := refinex.NewScheduler(refinex.NewEngine(fx), source(), result)
	defer s.Close()

	a := rectHint("a", "total", 10, 10, 40, 20)
	b := rectHint("b", "tax", 100, 10, 40, 20)

	s.OnHintsChanged([]refinex.Hint{a, b})
	if d := s.Flush(context.Background()); len(d.Outcomes) != 2 {
		t.Fatalf("first dispatch = %+v", d)
	}

	b.Rect = &refinex.Rect{X: 100, Y: 40, Width: 40, Height: 20}
	s.OnHintsChanged([]refinex.Hint{a, b})
	d := s.Flush(context.Background())
	if len(d.Outcomes) != 1 || d.Outcomes[0].HintID != "b" {
		t.Fatalf("second dispatch = %+v", d)
	}

	d = s.Flush(context.Background())
	if !d.Unchanged || len(d.Outcomes) != 0 {
		t.Fatalf("third dispatch = %+v", d)
	}
	if len(fx.Calls()) != 3 {
		t.Fatalf("extractor calls = %d, want 3", len(fx.Calls()))
	}
	if len(result.Fields()) != 2 {
		t.Fatalf("fields = %+v", result.Fields())
	}
}

func TestSchedulerFailureIsolation(t *testing.T) {
	fx := &fakeExtractor{values: map[string]string{"total": "100"}, fail: map[string]bool{"tax": true}}
	result := fieldx.NewResult(nil)
	s := refinex.NewScheduler(refinex.NewEngine(fx), source(), result, refinex.WithConcurrency(2))
	defer s.Close()

	a := rectHint("a", "total", 10, 10, 40, 20)
	b := rectHint("b", "tax", 100, 10, 40, 20)
	s.OnHintsChanged([]refinex.Hint{a, b})

	d := s.Flush(context.Background())
	failed := d.Failed()
	if len(d.Outcomes) != 2 || len(failed) != 1 || failed[0].HintID != "b" {
		t.Fatalf("dispatch = %+v", d)
	}
	if f, ok := result.Get("total"); !ok || f.Value != "100" {
		t.Fatalf("successful hint not merged: %+v", result.Fields())
	}
	if _, ok := result.Get("tax"); ok {
		t.Fatalf("failed hint wrote a value")
	}

	// Unchanged set: the failed hint is not retried on its own.
	if d := s.Flush(context.Background()); !d.Unchanged {
		t.Fatalf("unchanged set dispatched again: %+v", d)
	}

	// Any edit re-dispatches the changed hint and the one that failed.
	a.Rect.Width = 50
	s.OnHintsChanged([]refinex.Hint{a, b})
	d = s.Flush(context.Background())
	if len(d.Outcomes) != 2 {
		t.Fatalf("after edit = %+v", d)
	}
}

func TestSchedulerPrimeSkipsKnownHints(t *testing.T) {
	fx := &fakeExtractor{values: map[string]string{"total": "100"}}
	s := refinex.NewScheduler(refinex.NewEngine(fx), source(), fieldx.NewResult(nil))
	defer s.Close()

	hints := []refinex.Hint{rectHint("a", "total", 10, 10, 40, 20)}
	s.Prime(hints)
	s.OnHintsChanged(hints)
	if s.Pending() {
		t.Fatalf("primed hint set armed the timer")
	}
	if d := s.Flush(context.Background()); !d.Unchanged || len(fx.Calls()) != 0 {
		t.Fatalf("dispatch = %+v, calls = %d", d, len(fx.Calls()))
	}
}
