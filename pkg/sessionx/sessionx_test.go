package sessionx_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/Abraxas-365/docfill/pkg/ai/ocr"
	"github.com/Abraxas-365/docfill/pkg/asyncx/asyncxtest"
	"github.com/Abraxas-365/docfill/pkg/errx"
	"github.com/Abraxas-365/docfill/pkg/fieldx"
	"github.com/Abraxas-365/docfill/pkg/fsx/fsxlocal"
	"github.com/Abraxas-365/docfill/pkg/kernel"
	"github.com/Abraxas-365/docfill/pkg/refinex"
	"github.com/Abraxas-365/docfill/pkg/sessionx"
	"github.com/Abraxas-365/docfill/pkg/templatex"
)

const markup = "<p>Factura {{invoice_number}} por {{ total_amount }}</p>"

type templates map[kernel.TemplateID]*templatex.Template

func (t templates) Get(_ context.Context, id kernel.TemplateID) (*templatex.Template, error) {
	tmpl, ok := t[id]
	if !ok {
		return nil, templatex.ErrTemplateNotFound()
	}
	return tmpl, nil
}

// extractor answers bulk (non-strict) requests with bulk and targeted
// (strict) ones from refined. It records the size of every image it is sent.
type extractor struct {
	mu      sync.Mutex
	bulk    []fieldx.Field
	bulkErr error
	refined map[string]string
	targets [][]string
	sizes   []image.Point
}

func (e *extractor) ExtractFields(_ context.Context, in ocr.Input, opts ...ocr.Option) (*ocr.Extraction, error) {
	o := ocr.ApplyOptions(opts...)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(in.Data))
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.targets = append(e.targets, o.TargetVariables)
	e.sizes = append(e.sizes, image.Pt(cfg.Width, cfg.Height))
	e.mu.Unlock()

	if !o.Strict {
		if e.bulkErr != nil {
			return nil, e.bulkErr
		}
		return &ocr.Extraction{Fields: e.bulk, Summary: "invoice", RawText: "FACTURA F001-123"}, nil
	}
	label := o.TargetVariables[0]
	return &ocr.Extraction{Fields: []fieldx.Field{{Label: label, Value: e.refined[label], Confidence: 0.4}}}, nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 200, 100))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func setup(t *testing.T, ex *extractor, opts ...sessionx.ManagerOption) (*sessionx.Manager, kernel.TemplateID) {
	t.Helper()
	tmpl, err := templatex.NewTemplate("factura", markup)
	if err != nil {
		t.Fatal(err)
	}
	m := sessionx.NewManager(templates{tmpl.ID: tmpl}, ex, opts...)
	t.Cleanup(m.Shutdown)
	return m, tmpl.ID
}

func TestOpenSeedsResultFromBulkExtraction(t *testing.T) {
	ex := &extractor{bulk: []fieldx.Field{
		{Label: "Número de Factura", Value: "F001-123", Confidence: 0.9},
		{Label: "Monto Total", Value: "$450.00", Confidence: 0.8},
		{Label: "notes", Value: "N/A", Confidence: 0.5},
	}}
	store := sessionx.NewMemoryStore()
	m, tid := setup(t, ex, sessionx.WithStore(store))

	s, err := m.Open(context.Background(), sessionx.OpenRequest{TemplateID: tid, Image: pngBytes(t)})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if len(ex.targets) != 1 || len(ex.targets[0]) != 2 {
		t.Fatalf("bulk extraction targets = %v", ex.targets)
	}
	if got := len(s.Fields()); got != 2 {
		t.Fatalf("fields = %+v, want the empty sentinel dropped", s.Fields())
	}

	report := s.Render()
	if report.Output != "<p>Factura F001-123 por $450.00</p>" || !report.Complete() {
		t.Fatalf("render = %+v", report)
	}

	snap, err := store.Load(context.Background(), s.ID())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.Status != sessionx.StatusOpen || snap.Summary != "invoice" || snap.MimeType != "image/png" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.RawText != "FACTURA F001-123" {
		t.Fatalf("raw text = %q", snap.RawText)
	}
	if ex.sizes[0] != image.Pt(200, 100) {
		t.Fatalf("bulk image = %v, want the upload unchanged", ex.sizes[0])
	}
}

func TestOpenDownscalesLargeSources(t *testing.T) {
	ex := &extractor{refined: map[string]string{"total_amount": "$450.00"}}
	m, tid := setup(t, ex, sessionx.WithMaxImageSide(50))
	ctx := context.Background()

	s, err := m.Open(ctx, sessionx.OpenRequest{TemplateID: tid, Image: pngBytes(t)})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if ex.sizes[0] != image.Pt(50, 25) {
		t.Fatalf("bulk image = %v, want 50x25", ex.sizes[0])
	}

	if _, err := s.SetHints([]refinex.Hint{{ID: "h", Label: "total_amount", Rect: &refinex.Rect{X: 20, Y: 20, Width: 60, Height: 20}}}); err != nil {
		t.Fatalf("SetHints: %v", err)
	}
	if _, err := s.Refine(ctx); err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if len(ex.sizes) != 2 || ex.sizes[1] != image.Pt(72, 24) {
		t.Fatalf("crop sizes = %v, want a crop of the full-size source", ex.sizes)
	}
}

func TestOpenSurvivesExtractionFailure(t *testing.T) {
	ex := &extractor{bulkErr: errors.New("provider down")}
	m, tid := setup(t, ex)

	s, err := m.Open(context.Background(), sessionx.OpenRequest{TemplateID: tid, Image: pngBytes(t)})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Snapshot().ExtractionError == "" {
		t.Fatalf("extraction error not recorded")
	}
	if got := s.Render().Output; got != "<p>Factura ___ por ___</p>" {
		t.Fatalf("render = %q", got)
	}
}

func TestOpenValidation(t *testing.T) {
	m, tid := setup(t, &extractor{})
	ctx := context.Background()

	if _, err := m.Open(ctx, sessionx.OpenRequest{TemplateID: tid, Image: []byte("not an image")}); !errx.HasCode(err, sessionx.CodeInvalidImage) {
		t.Fatalf("expected invalid image, got %v", err)
	}
	if _, err := m.Open(ctx, sessionx.OpenRequest{TemplateID: "missing", Image: pngBytes(t)}); !errx.HasCode(err, templatex.CodeTemplateNotFound) {
		t.Fatalf("expected template not found, got %v", err)
	}
	if _, err := m.Open(ctx, sessionx.OpenRequest{Image: pngBytes(t)}); !errx.HasCode(err, sessionx.CodeInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
}

func TestSetField(t *testing.T) {
	ex := &extractor{bulk: []fieldx.Field{{Label: "total_amount", Value: "$450.00", Confidence: 0.8}}}
	m, tid := setup(t, ex)
	s, err := m.Open(context.Background(), sessionx.OpenRequest{TemplateID: tid, Image: pngBytes(t)})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := s.SetField("total_amount", "$500.00"); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	fields := s.Fields()
	if len(fields) != 1 || fields[0].Value != "$500.00" || fields[0].Confidence != fieldx.ManualConfidence {
		t.Fatalf("fields = %+v", fields)
	}

	if _, err := s.SetField("total_amount", "  "); err != nil {
		t.Fatalf("SetField blank: %v", err)
	}
	if len(s.Fields()) != 0 {
		t.Fatalf("blank value did not clear the field: %+v", s.Fields())
	}

	if _, err := s.SetField(" ", "x"); !errx.HasCode(err, sessionx.CodeInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
}

func TestHintsRefineAfterDebounce(t *testing.T) {
	ex := &extractor{
		bulk:    []fieldx.Field{{Label: "total_amount", Value: "$400.00", Confidence: 0.7}},
		refined: map[string]string{"total_amount": "$450.00"},
	}
	clock := asyncxtest.NewFakeClock(time.Unix(0, 0))
	m, tid := setup(t, ex, sessionx.WithClock(clock), sessionx.WithDebounce(1500*time.Millisecond))

	s, err := m.Open(context.Background(), sessionx.OpenRequest{TemplateID: tid, Image: pngBytes(t)})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	hints, err := s.SetHints([]refinex.Hint{{Label: "total_amount", Rect: &refinex.Rect{X: 20, Y: 20, Width: 60, Height: 20}}})
	if err != nil {
		t.Fatalf("SetHints: %v", err)
	}
	if hints[0].ID == "" {
		t.Fatalf("hint id not assigned")
	}

	clock.Advance(time.Second)
	if f := s.Fields()[0]; f.Value != "$400.00" {
		t.Fatalf("refined before debounce settled: %+v", f)
	}

	clock.Advance(600 * time.Millisecond)
	f := s.Fields()[0]
	if f.Value != "$450.00" || f.Confidence != fieldx.RefinedConfidence {
		t.Fatalf("refined field = %+v", f)
	}
	if d := s.Snapshot().LastDispatch; d == nil || len(d.Outcomes) != 1 || d.Outcomes[0].Kind != refinex.OutcomeMerged {
		t.Fatalf("last dispatch = %+v", d)
	}
}

func TestConcurrentHintEditsKeepSchedulerInStep(t *testing.T) {
	clock := asyncxtest.NewFakeClock(time.Unix(0, 0))
	m, tid := setup(t, &extractor{refined: map[string]string{}}, sessionx.WithClock(clock))
	ctx := context.Background()

	s, err := m.Open(ctx, sessionx.OpenRequest{TemplateID: tid, Image: pngBytes(t), SkipExtraction: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			w := float64(20 + i)
			if _, err := s.SetHints([]refinex.Hint{{ID: "set", Label: "total_amount", Rect: &refinex.Rect{X: 10, Y: 10, Width: w, Height: 20}}}); err != nil {
				t.Errorf("SetHints: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := s.UpsertHint(refinex.Hint{Label: "invoice_number", Rect: &refinex.Rect{X: 100, Y: 10, Width: 30, Height: 20}}); err != nil {
				t.Errorf("UpsertHint: %v", err)
			}
		}()
	}
	wg.Wait()

	d, err := s.Refine(ctx)
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if want := refinex.SetSignature(s.Hints(), refinex.DefaultMinArea); d.Signature != want {
		t.Fatalf("scheduler refined %q, session holds %q", d.Signature, want)
	}
}

func TestReopenClosesPreviousGeneration(t *testing.T) {
	ex := &extractor{refined: map[string]string{"invoice_number": "F001-999"}}
	m, tid := setup(t, ex)
	ctx := context.Background()

	first, err := m.Open(ctx, sessionx.OpenRequest{DocumentID: "doc-1", TemplateID: tid, Image: pngBytes(t)})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	second, err := m.Open(ctx, sessionx.OpenRequest{DocumentID: "doc-1", TemplateID: tid, Image: pngBytes(t)})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}

	if !first.Closed() || second.Closed() {
		t.Fatalf("closed: first=%v second=%v", first.Closed(), second.Closed())
	}
	if _, err := first.Refine(ctx); !errx.HasCode(err, sessionx.CodeSessionClosed) {
		t.Fatalf("expected closed, got %v", err)
	}
	if _, err := first.SetField("invoice_number", "x"); !errx.HasCode(err, sessionx.CodeSessionClosed) {
		t.Fatalf("expected closed, got %v", err)
	}
	if _, err := m.Get(ctx, first.ID()); !errx.HasCode(err, sessionx.CodeSessionNotFound) {
		t.Fatalf("replaced session still reachable: %v", err)
	}
}

func TestCloseDiscardsDegenerateHints(t *testing.T) {
	store := sessionx.NewMemoryStore()
	m, tid := setup(t, &extractor{refined: map[string]string{}}, sessionx.WithStore(store))
	ctx := context.Background()

	s, err := m.Open(ctx, sessionx.OpenRequest{TemplateID: tid, Image: pngBytes(t), SkipExtraction: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.SetHints([]refinex.Hint{
		{ID: "keep", Label: "total_amount", Rect: &refinex.Rect{X: 10, Y: 10, Width: 40, Height: 20}},
		{ID: "dot", Label: "invoice_number", Points: []refinex.Point{{X: 5, Y: 5}}},
	}); err != nil {
		t.Fatalf("SetHints: %v", err)
	}

	snap, err := m.Close(ctx, s.ID())
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if snap.Status != sessionx.StatusClosed || len(snap.Hints) != 1 || snap.Hints[0].ID != "keep" {
		t.Fatalf("final snapshot = %+v", snap)
	}
	stored, err := store.Load(ctx, s.ID())
	if err != nil || stored.Status != sessionx.StatusClosed {
		t.Fatalf("stored = %+v, %v", stored, err)
	}
	if _, err := m.Get(ctx, s.ID()); !errx.HasCode(err, sessionx.CodeSessionNotFound) {
		t.Fatalf("closed session still reachable: %v", err)
	}
}

func TestRestoreFromStore(t *testing.T) {
	ex := &extractor{
		bulk:    []fieldx.Field{{Label: "invoice_number", Value: "F001-123", Confidence: 0.9}},
		refined: map[string]string{"total_amount": "$450.00"},
	}
	store := sessionx.NewMemoryStore()
	files, err := fsxlocal.NewLocalFileSystem(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	m1, tid := setup(t, ex, sessionx.WithStore(store), sessionx.WithFiles(files))
	s, err := m1.Open(ctx, sessionx.OpenRequest{TemplateID: tid, Image: pngBytes(t)})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.SetHints([]refinex.Hint{{ID: "h", Label: "total_amount", Rect: &refinex.Rect{X: 10, Y: 10, Width: 40, Height: 20}}}); err != nil {
		t.Fatalf("SetHints: %v", err)
	}
	if _, err := s.Refine(ctx); err != nil {
		t.Fatalf("Refine: %v", err)
	}

	// A second manager sharing the store stands in for a restarted process.
	m2 := sessionx.NewManager(templates{tid: func() *templatex.Template { tt := s.Template(); return &tt }()}, ex,
		sessionx.WithStore(store), sessionx.WithFiles(files))
	t.Cleanup(m2.Shutdown)

	restored, err := m2.Get(ctx, s.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := restored.Render().Output; got != "<p>Factura F001-123 por $450.00</p>" {
		t.Fatalf("restored render = %q", got)
	}
	d, err := restored.Refine(ctx)
	if err != nil || !d.Unchanged {
		t.Fatalf("restored hints were not primed: %+v, %v", d, err)
	}

	if err := m2.Delete(ctx, s.ID()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(ctx, s.ID()); !errx.HasCode(err, sessionx.CodeSessionNotFound) {
		t.Fatalf("snapshot survived delete: %v", err)
	}
	if ok, _ := files.Exists(ctx, s.Snapshot().ImagePath); ok {
		t.Fatalf("source image survived delete")
	}
}
