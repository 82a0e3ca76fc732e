package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/mohammad-safakhou/grounded/config"
)

const defaultOllamaBaseURL = "http://localhost:11434"

// Ollama talks to a local or remote Ollama service.
type Ollama struct {
	baseURL         string
	completionModel string
	embeddingModel  string
	httpClient      *http.Client
	logger          *log.Logger
}

// NewOllama creates an Ollama provider from configuration.
func NewOllama(cfg config.LLMConfig, logger *log.Logger) *Ollama {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	return &Ollama{
		baseURL:         strings.TrimRight(baseURL, "/"),
		completionModel: cfg.CompletionModel,
		embeddingModel:  cfg.EmbeddingModel,
		httpClient:      &http.Client{Timeout: cfg.Timeout},
		logger:          logger,
	}
}

// Embed generates an embedding for one text.
func (c *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("ollama returned no embeddings")
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for the given texts in one request.
func (c *Ollama) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	requestBody := map[string]interface{}{
		"model": c.embeddingModel,
		"input": texts,
	}
	var resp struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := c.post(ctx, "/api/embed", requestBody, &resp); err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
}

// Generate produces a non-streaming completion for the prompt.
func (c *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	requestBody := map[string]interface{}{
		"model":  c.completionModel,
		"prompt": prompt,
		"stream": false,
	}
	var resp struct {
		Response string `json:"response"`
	}
	if err := c.post(ctx, "/api/generate", requestBody, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

func (c *Ollama) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

var _ Provider = (*Ollama)(nil)
