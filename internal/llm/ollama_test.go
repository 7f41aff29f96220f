package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgallion1/corpusrag/internal/retry"
)

func TestGenerate_UsesDefaultModelWhenUnset(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(generateResponse{Response: "  answer text\n", Done: true})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, DefaultModel: "mistral"})
	out, err := c.Generate(context.Background(), "", "the prompt")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got.Model != "mistral" {
		t.Errorf("expected default model, got %q", got.Model)
	}
	if got.Stream {
		t.Error("streaming must be disabled")
	}
	if out != "answer text" {
		t.Errorf("response not trimmed: %q", out)
	}
}

func TestGenerate_ModelOverride(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(generateResponse{Response: "ok", Done: true})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, DefaultModel: "mistral"})
	if _, err := c.Generate(context.Background(), "llama3", "p"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got.Model != "llama3" {
		t.Errorf("model override ignored: %q", got.Model)
	}
}

func TestGenerate_ServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "loading model", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Generate(context.Background(), "", "p")
	if !retry.IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

func TestGenerate_UnknownModelIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Generate(context.Background(), "nope", "p")
	if err == nil || retry.IsRetryable(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}
