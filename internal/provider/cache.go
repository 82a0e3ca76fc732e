package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// EmbeddingCache decorates a Provider with a Redis cache for embeddings.
// Embedding the same text repeatedly is common on re-ingestion and wasteful
// against paid APIs. Generation is never cached.
type EmbeddingCache struct {
	next   Provider
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// NewEmbeddingCache wraps next with a cache backed by the given Redis client.
func NewEmbeddingCache(next Provider, client *redis.Client, ttl time.Duration, logger *log.Logger) *EmbeddingCache {
	if logger == nil {
		logger = log.New(log.Writer(), "[EMBEDCACHE] ", log.LstdFlags)
	}
	return &EmbeddingCache{next: next, client: client, ttl: ttl, logger: logger}
}

// Embed returns the cached vector for the text, or delegates and caches.
func (c *EmbeddingCache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if vec, ok := c.get(ctx, key); ok {
		return vec, nil
	}
	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, vec)
	return vec, nil
}

// EmbedBatch serves what it can from the cache and delegates the rest in a
// single call, preserving input order.
func (c *EmbeddingCache) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if vec, ok := c.get(ctx, cacheKey(text)); ok {
			vecs[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return vecs, nil
	}
	fetched, err := c.next.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(fetched) != len(missing) {
		return nil, errors.New("provider returned wrong number of embeddings")
	}
	for j, vec := range fetched {
		i := missingIdx[j]
		vecs[i] = vec
		c.set(ctx, cacheKey(texts[i]), vec)
	}
	return vecs, nil
}

// Generate passes through to the wrapped provider.
func (c *EmbeddingCache) Generate(ctx context.Context, prompt string) (string, error) {
	return c.next.Generate(ctx, prompt)
}

func (c *EmbeddingCache) get(ctx context.Context, key string) ([]float32, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Printf("warn: cache get failed: %v", err)
		}
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		c.logger.Printf("warn: cache entry corrupt, ignoring: %v", err)
		return nil, false
	}
	return vec, true
}

func (c *EmbeddingCache) set(ctx context.Context, key string, vec []float32) {
	raw, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Printf("warn: cache set failed: %v", err)
	}
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "grounded:embed:" + hex.EncodeToString(sum[:])
}

var _ Provider = (*EmbeddingCache)(nil)
