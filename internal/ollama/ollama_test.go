package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lehigh-university-libraries/biocapture/internal/providers"
)

func TestExtractTextSendsImagesAndFormat(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"{\"nfiqScore\":61,\"feedback\":\"ok\"}"}`))
	}))
	defer srv.Close()

	out, err := New(srv.URL).ExtractText(context.Background(), providers.Config{
		Model:  "llava",
		Prompt: "rate this",
		Images: []providers.Image{{MIMEType: "image/png", Data: []byte("png")}},
		JSON:   true,
	})
	if err != nil {
		t.Fatalf("ExtractText returned error: %v", err)
	}
	if out != `{"nfiqScore":61,"feedback":"ok"}` {
		t.Errorf("Unexpected response %q", out)
	}
	if got["format"] != "json" {
		t.Errorf("Expected json format, got %v", got["format"])
	}
	images, ok := got["images"].([]interface{})
	if !ok || len(images) != 1 || images[0] != "cG5n" {
		t.Errorf("Unexpected images payload %v", got["images"])
	}
}

func TestExtractTextNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := New(srv.URL).ExtractText(context.Background(), providers.Config{Model: "missing"}); err == nil {
		t.Error("Expected error for non-200 response")
	}
}
