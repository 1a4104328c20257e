package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lehigh-university-libraries/biocapture/internal/providers"
)

func TestExtractText(t *testing.T) {
	var body struct {
		Model          string            `json:"model"`
		ResponseFormat map[string]string `json:"response_format"`
		Messages       []struct {
			Content []map[string]interface{} `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"qualityScore\":90}"}}]}`))
	}))
	defer srv.Close()

	out, err := New("test-key", srv.URL).ExtractText(context.Background(), providers.Config{
		Model:  "gpt-4o",
		Prompt: "rate",
		Images: []providers.Image{{MIMEType: "image/jpeg", Data: []byte{1, 2, 3}}},
		JSON:   true,
	})
	if err != nil {
		t.Fatalf("ExtractText returned error: %v", err)
	}
	if out != `{"qualityScore":90}` {
		t.Errorf("Unexpected content %q", out)
	}
	if body.ResponseFormat["type"] != "json_object" {
		t.Errorf("Expected json_object response format, got %v", body.ResponseFormat)
	}
	if len(body.Messages) != 1 || len(body.Messages[0].Content) != 2 {
		t.Fatalf("Unexpected message shape %+v", body.Messages)
	}
	imageURL, _ := body.Messages[0].Content[1]["image_url"].(map[string]interface{})
	if url, _ := imageURL["url"].(string); !strings.HasPrefix(url, "data:image/jpeg;base64,") {
		t.Errorf("Unexpected image url %v", imageURL)
	}
}

func TestExtractTextRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := New("", "http://127.0.0.1:0").ExtractText(context.Background(), providers.Config{}); err == nil {
		t.Error("Expected error when API key missing")
	}
}

func TestExtractTextNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	if _, err := New("k", srv.URL).ExtractText(context.Background(), providers.Config{}); err == nil {
		t.Error("Expected error for empty choices")
	}
}
