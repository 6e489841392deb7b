package aimistral_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Abraxas-365/docfill/pkg/ai/ocr"
	"github.com/Abraxas-365/docfill/pkg/ai/providers/aimistral"
	"github.com/Abraxas-365/docfill/pkg/errx"
)

func newServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *aimistral.MistralProvider) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := aimistral.NewMistralProvider("test-key", aimistral.WithBaseURL(srv.URL), aimistral.WithMaxRetries(1), aimistral.WithRetryDelay(time.Millisecond))
	if err != nil {
		t.Fatalf("NewMistralProvider: %v", err)
	}
	return srv, p
}

func TestExtractFields(t *testing.T) {
	_, p := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ocr" || r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected request %s %s", r.URL.Path, r.Header.Get("Authorization"))
		}

		var req aimistral.OCRRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Document.Type != "image_url" || !strings.HasPrefix(req.Document.ImageURL, "data:image/png;base64,") {
			t.Errorf("document = %+v", req.Document)
		}
		if !strings.Contains(req.DocumentAnnotationPrompt, "total_amount") {
			t.Errorf("prompt does not mention the target: %q", req.DocumentAnnotationPrompt)
		}

		annotation := `{"fields":[{"label":"total_amount","value":"$450.00","confidence":0.97}],"summary":""}`
		_ = json.NewEncoder(w).Encode(aimistral.OCRResponse{
			Model:              "mistral-ocr-latest",
			Pages:              []aimistral.PageData{{Index: 0, Markdown: "TOTAL $450.00"}},
			DocumentAnnotation: annotation,
		})
	})

	ext, err := p.ExtractFields(context.Background(),
		ocr.FromBytes([]byte{0x89, 'P', 'N', 'G'}, "image/png"),
		ocr.WithStrictMode(), ocr.WithTargetVariables("total_amount"))
	if err != nil {
		t.Fatalf("ExtractFields: %v", err)
	}
	if len(ext.Fields) != 1 || ext.Fields[0].Value != "$450.00" {
		t.Fatalf("fields = %+v", ext.Fields)
	}
	if ext.RawText != "TOTAL $450.00" || ext.Model != "mistral-ocr-latest" {
		t.Fatalf("extraction = %+v", ext)
	}
}

func TestExtractFields_Unauthorized(t *testing.T) {
	var calls atomic.Int32
	_, p := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"bad key"}`))
	})

	_, err := p.ExtractFields(context.Background(), ocr.FromBytes([]byte{1}, "image/png"))
	if !errx.HasCode(err, aimistral.ErrAPIUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("auth failure was retried: %d calls", calls.Load())
	}
}

func TestRecognizeText_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	_, p := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(aimistral.OCRResponse{
			Pages: []aimistral.PageData{{Markdown: "page one"}, {Markdown: "page two"}},
		})
	})

	text, err := p.RecognizeText(context.Background(), ocr.FromURL("https://example.com/a.pdf", "application/pdf"))
	if err != nil {
		t.Fatalf("RecognizeText: %v", err)
	}
	if text != "page one\n\npage two" || calls.Load() != 2 {
		t.Fatalf("text = %q after %d calls", text, calls.Load())
	}
}

func TestMissingAPIKey(t *testing.T) {
	t.Setenv("MISTRAL_API_KEY", "")
	if _, err := aimistral.NewMistralProvider(""); !errx.HasCode(err, aimistral.ErrMissingAPIKey) {
		t.Fatalf("expected missing key error, got %v", err)
	}
}
