package sessionxapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Abraxas-365/docfill/pkg/ai/ocr"
	"github.com/Abraxas-365/docfill/pkg/errx/errxfiber"
	"github.com/Abraxas-365/docfill/pkg/fieldx"
	"github.com/Abraxas-365/docfill/pkg/kernel"
	"github.com/Abraxas-365/docfill/pkg/refinex"
	"github.com/Abraxas-365/docfill/pkg/sessionx"
	"github.com/Abraxas-365/docfill/pkg/sessionx/sessionxapi"
	"github.com/Abraxas-365/docfill/pkg/templatex"
	"github.com/gofiber/fiber/v2"
)

type templates map[kernel.TemplateID]*templatex.Template

func (t templates) Get(_ context.Context, id kernel.TemplateID) (*templatex.Template, error) {
	tmpl, ok := t[id]
	if !ok {
		return nil, templatex.ErrTemplateNotFound()
	}
	return tmpl, nil
}

// extractor returns a fixed bulk result and answers targeted requests
// with "$450.00".
var extractor = ocr.FieldExtractorFunc(func(_ context.Context, _ ocr.Input, opts ...ocr.Option) (*ocr.Extraction, error) {
	o := ocr.ApplyOptions(opts...)
	if o.Strict {
		return &ocr.Extraction{Fields: []fieldx.Field{{Label: o.TargetVariables[0], Value: "$450.00"}}}, nil
	}
	return &ocr.Extraction{Fields: []fieldx.Field{
		{Label: "Cliente", Value: "ACME S.A.", Confidence: 0.9},
		{Label: "Monto Total", Value: "$400.00", Confidence: 0.6},
	}}, nil
})

func newApp(t *testing.T) (*fiber.App, kernel.TemplateID) {
	t.Helper()
	tmpl, err := templatex.NewTemplate("factura", "{{cliente}} debe {{total_amount}}")
	if err != nil {
		t.Fatal(err)
	}
	m := sessionx.NewManager(templates{tmpl.ID: tmpl}, extractor)
	t.Cleanup(m.Shutdown)

	app := fiber.New(fiber.Config{ErrorHandler: errxfiber.ErrorHandler(false)})
	sessionxapi.NewHandlers(m).RegisterRoutes(app)
	return app, tmpl.ID
}

func upload(t *testing.T, app *fiber.App, templateID kernel.TemplateID) (int, []byte) {
	t.Helper()
	var img bytes.Buffer
	if err := png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 160, 80))); err != nil {
		t.Fatal(err)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", "factura.png")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(img.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteField("template_id", templateID.String()); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return send(t, app, req)
}

func do(t *testing.T, app *fiber.App, method, path string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return send(t, app, req)
}

func send(t *testing.T, app *fiber.App, req *http.Request) (int, []byte) {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

type view struct {
	ID     kernel.SessionID `json:"id"`
	Status sessionx.Status  `json:"status"`
	Fields []fieldx.Field   `json:"fields"`
	Render templatex.Report `json:"render"`
}

func TestSessionLifecycle(t *testing.T) {
	app, tid := newApp(t)

	status, body := upload(t, app, tid)
	if status != fiber.StatusCreated {
		t.Fatalf("open status = %d body=%s", status, body)
	}
	var opened view
	if err := json.Unmarshal(body, &opened); err != nil {
		t.Fatal(err)
	}
	if opened.Render.Output != "ACME S.A. debe $400.00" {
		t.Fatalf("initial render = %+v", opened.Render)
	}
	base := "/api/v1/sessions/" + opened.ID.String()

	status, body = do(t, app, http.MethodPut, base+"/hints", map[string]any{
		"hints": []refinex.Hint{{Label: "total_amount", Rect: &refinex.Rect{X: 10, Y: 10, Width: 50, Height: 20}}},
	})
	if status != fiber.StatusOK {
		t.Fatalf("hints status = %d body=%s", status, body)
	}

	status, body = do(t, app, http.MethodPost, base+"/refine", nil)
	if status != fiber.StatusOK {
		t.Fatalf("refine status = %d body=%s", status, body)
	}
	var refined struct {
		Dispatch refinex.Dispatch `json:"dispatch"`
		Render   templatex.Report `json:"render"`
	}
	if err := json.Unmarshal(body, &refined); err != nil {
		t.Fatal(err)
	}
	if len(refined.Dispatch.Outcomes) != 1 || refined.Render.Output != "ACME S.A. debe $450.00" {
		t.Fatalf("refine = %s", body)
	}

	status, body = do(t, app, http.MethodPut, base+"/fields/cliente", map[string]string{"value": "Globex"})
	if status != fiber.StatusOK {
		t.Fatalf("set field status = %d body=%s", status, body)
	}

	status, body = do(t, app, http.MethodGet, base+"/render", nil)
	var report templatex.Report
	if err := json.Unmarshal(body, &report); err != nil || status != fiber.StatusOK {
		t.Fatalf("render status = %d body=%s", status, body)
	}
	if report.Output != "Globex debe $450.00" {
		t.Fatalf("render = %+v", report)
	}

	status, body = do(t, app, http.MethodPost, base+"/close", nil)
	var closed view
	if err := json.Unmarshal(body, &closed); err != nil || status != fiber.StatusOK {
		t.Fatalf("close status = %d body=%s", status, body)
	}
	if closed.Status != sessionx.StatusClosed {
		t.Fatalf("closed = %+v", closed)
	}

	status, _ = do(t, app, http.MethodGet, base, nil)
	if status != fiber.StatusNotFound {
		t.Fatalf("get after close status = %d", status)
	}
}

func TestOpenRejectsMissingTemplate(t *testing.T) {
	app, _ := newApp(t)

	status, body := upload(t, app, "missing")
	if status != fiber.StatusNotFound {
		t.Fatalf("status = %d body=%s", status, body)
	}
	var apiErr struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Code != templatex.CodeTemplateNotFound.Code {
		t.Fatalf("error body = %s", body)
	}
}

func TestUnknownHintIsRejected(t *testing.T) {
	app, tid := newApp(t)
	_, body := upload(t, app, tid)
	var opened view
	if err := json.Unmarshal(body, &opened); err != nil {
		t.Fatal(err)
	}

	status, _ := do(t, app, http.MethodDelete, "/api/v1/sessions/"+opened.ID.String()+"/hints/nope", nil)
	if status != fiber.StatusBadRequest {
		t.Fatalf("status = %d", status)
	}
}

func TestViewRenderMatchesItsFields(t *testing.T) {
	app, tid := newApp(t)
	_, body := upload(t, app, tid)
	var opened view
	if err := json.Unmarshal(body, &opened); err != nil {
		t.Fatal(err)
	}
	base := "/api/v1/sessions/" + opened.ID.String()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			b, _ := json.Marshal(map[string]string{"value": fmt.Sprintf("Cliente %d", i)})
			req := httptest.NewRequest(http.MethodPut, base+"/fields/cliente", bytes.NewReader(b))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req, -1)
			if err != nil {
				t.Errorf("set field: %v", err)
				return
			}
			resp.Body.Close()
		}
	}()

	for i := 0; i < 50; i++ {
		status, body := do(t, app, http.MethodGet, base, nil)
		var got view
		if err := json.Unmarshal(body, &got); err != nil || status != fiber.StatusOK {
			t.Fatalf("get status = %d body=%s", status, body)
		}
		if want := templatex.Substitute("{{cliente}} debe {{total_amount}}", got.Fields); got.Render.Output != want {
			t.Fatalf("render %q does not match fields (%q)", got.Render.Output, want)
		}
	}
	<-done
}
