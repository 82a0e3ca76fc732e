package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mohammad-safakhou/grounded/config"
)

func TestOllamaEmbed(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %s, want /api/embed", r.URL.Path)
		}
		var body struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.Model != "llama3.2" {
			t.Errorf("model = %s", body.Model)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"embeddings": [][]float32{{0.1, 0.2, 0.3}},
		})
	}))
	defer srv.Close()

	c := NewOllama(config.LLMConfig{
		BaseURL:         srv.URL,
		CompletionModel: "llama3.2",
		EmbeddingModel:  "llama3.2",
		Timeout:         5 * time.Second,
	}, nil)

	vec, err := c.Embed(context.Background(), "what is the refund policy?")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.1 {
		t.Fatalf("vec = %v", vec)
	}
}

func TestOllamaGenerate(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %s, want /api/generate", r.URL.Path)
		}
		var body struct {
			Stream bool `json:"stream"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Stream {
			t.Error("stream must be false")
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "Refunds are allowed within 30 days."})
	}))
	defer srv.Close()

	c := NewOllama(config.LLMConfig{BaseURL: srv.URL, CompletionModel: "llama3.2", Timeout: 5 * time.Second}, nil)
	got, err := c.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "Refunds are allowed within 30 days." {
		t.Fatalf("answer = %q", got)
	}
}

func TestOllamaErrorStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewOllama(config.LLMConfig{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil)
	if _, err := c.Generate(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestOpenAIEmbedBatch(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("path = %s, want /embeddings", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float32{1, 2}, "index": 0},
				{"embedding": []float32{3, 4}, "index": 1},
			},
		})
	}))
	defer srv.Close()

	c := NewOpenAI(config.LLMConfig{
		APIKey:          "sk-test",
		BaseURL:         srv.URL,
		EmbeddingModel:  "text-embedding-3-small",
		CompletionModel: "gpt-4o-mini",
		Timeout:         5 * time.Second,
	}, nil)

	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 2 || vecs[1][1] != 4 {
		t.Fatalf("vecs = %v", vecs)
	}
}

func TestOpenAIGenerate(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s, want /chat/completions", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "generated answer"}},
			},
		})
	}))
	defer srv.Close()

	c := NewOpenAI(config.LLMConfig{APIKey: "sk-test", BaseURL: srv.URL, CompletionModel: "gpt-4o-mini", Timeout: 5 * time.Second}, nil)
	got, err := c.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "generated answer" {
		t.Fatalf("answer = %q", got)
	}
}

func TestStubProvider(t *testing.T) {
	t.Parallel()
	s := NewStub()
	vec, err := s.Embed(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != stubDimensions {
		t.Fatalf("len(vec) = %d, want %d", len(vec), stubDimensions)
	}
	answer, err := s.Generate(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if answer == "" {
		t.Fatal("expected a fixed stub answer")
	}
}

func TestNewSelectsBackend(t *testing.T) {
	t.Parallel()
	if _, err := New(config.LLMConfig{Provider: "openai"}, nil); err == nil {
		t.Fatal("openai without api_key must fail")
	}
	p, err := New(config.LLMConfig{Provider: "stub"}, nil)
	if err != nil {
		t.Fatalf("New(stub): %v", err)
	}
	if _, ok := p.(*Stub); !ok {
		t.Fatalf("provider type = %T, want *Stub", p)
	}
	if _, err := New(config.LLMConfig{Provider: "nope"}, nil); err == nil {
		t.Fatal("unknown provider must fail")
	}
}
