package aiazure_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Abraxas-365/docfill/pkg/ai/ocr"
	"github.com/Abraxas-365/docfill/pkg/ai/providers/aiazure"
	"github.com/Abraxas-365/docfill/pkg/errx"
	"github.com/openai/openai-go/v3/option"
)

func TestExtractFields_UsesDeployment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/openai/deployments/invoices-4o/chat/completions") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Api-Key") != "azure-key" {
			t.Errorf("api-key header = %q", r.Header.Get("Api-Key"))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "1", "object": "chat.completion", "created": 1, "model": "gpt-4o",
			"choices": []map[string]any{{
				"index": 0, "finish_reason": "stop",
				"message": map[string]any{"role": "assistant", "content": `{"fields":[{"label":"due_date","value":"2024-05-01","confidence":0.8}],"summary":""}`},
			}},
		})
	}))
	defer srv.Close()

	p, err := aiazure.NewAzureOpenAIProvider(srv.URL, "invoices-4o", "azure-key",
		aiazure.WithRequestOptions(option.WithMaxRetries(0)))
	if err != nil {
		t.Fatalf("NewAzureOpenAIProvider: %v", err)
	}

	ext, err := p.ExtractFields(context.Background(), ocr.FromBytes([]byte{1, 2}, "image/jpeg"), ocr.WithModel("gpt-4o"))
	if err != nil {
		t.Fatalf("ExtractFields: %v", err)
	}
	if f, ok := ext.Lookup("due_date"); !ok || f.Value != "2024-05-01" {
		t.Fatalf("fields = %+v", ext.Fields)
	}
}

func TestNewAzureOpenAIProvider_Validation(t *testing.T) {
	t.Setenv("AZURE_OPENAI_ENDPOINT", "")
	t.Setenv("AZURE_OPENAI_API_KEY", "")

	if _, err := aiazure.NewAzureOpenAIProvider("", "d", "k"); !errx.HasCode(err, aiazure.ErrMissingEndpoint) {
		t.Fatalf("expected missing endpoint, got %v", err)
	}
	if _, err := aiazure.NewAzureOpenAIProvider("https://x.openai.azure.com", "", "k"); !errx.HasCode(err, aiazure.ErrMissingDeployment) {
		t.Fatalf("expected missing deployment, got %v", err)
	}
	if _, err := aiazure.NewAzureOpenAIProvider("https://x.openai.azure.com", "d", ""); !errx.HasCode(err, aiazure.ErrMissingCredentials) {
		t.Fatalf("expected missing credentials, got %v", err)
	}
}
