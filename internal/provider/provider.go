// Package provider abstracts the remote embedding/generation capability
// behind a narrow contract. Backends are selected once at startup from
// configuration; call sites never branch on the provider type.
package provider

import (
	"context"
	"fmt"
	"log"

	"github.com/mohammad-safakhou/grounded/config"
)

// Provider is the embedding/generation capability consumed by the query and
// ingestion pipelines. Both calls go over the network and may fail or time
// out; callers bound them with a context deadline.
type Provider interface {
	// Embed converts text into a fixed-length vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts several texts in one round trip where the backend
	// supports it.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Generate produces a free-text completion for the prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}

// New constructs the provider named by the configuration.
func New(cfg config.LLMConfig, logger *log.Logger) (Provider, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[LLM] ", log.LstdFlags)
	}
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires llm.api_key")
		}
		return NewOpenAI(cfg, logger), nil
	case "ollama":
		return NewOllama(cfg, logger), nil
	case "stub", "":
		return NewStub(), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}
