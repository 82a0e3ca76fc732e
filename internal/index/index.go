// Package index stores fragment embeddings and answers nearest-neighbour
// queries scoped to a knowledge base. Two implementations satisfy the same
// contract: an in-memory exhaustive scan and a Postgres/pgvector store.
package index

import (
	"context"
	"errors"

	"github.com/mohammad-safakhou/grounded/internal/rag"
)

// ErrDimensionMismatch is returned when a stored or queried vector does not
// match the dimension the index was constructed with. Vectors are never
// silently truncated or padded.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Index is the capability set shared by all vector index backends.
//
// Store appends fragments that carry an embedding; fragments without one are
// skipped without error. Re-storing an already-stored fragment id creates a
// duplicate entry: the index gives no dedup guarantee.
//
// Search returns up to topK fragments belonging to kbID, ordered most
// similar first by squared Euclidean distance to the query vector. Fewer
// stored vectors than requested yields all available; an empty index yields
// an empty result.
//
// The delete operations are atomic from a caller's perspective: a concurrent
// Search observes either the pre- or post-deletion state.
type Index interface {
	Store(ctx context.Context, fragments []rag.Fragment) error
	Search(ctx context.Context, vector []float32, kbID string, topK int) ([]rag.Fragment, error)
	DeleteByDocument(ctx context.Context, documentID string) error
	DeleteByKnowledgeBase(ctx context.Context, kbID string) error
}
