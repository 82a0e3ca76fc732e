package index

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mohammad-safakhou/grounded/internal/rag"
)

// Memory is an exhaustive-scan vector index kept entirely in process memory.
// It is the baseline backend used for development and tests and the
// reference behaviour the Postgres backend must match.
//
// A single RWMutex gives the single-writer/multiple-reader discipline the
// contract asks for: searches share the read lock, mutations take the write
// lock, and deletions swap in a rebuilt arena so no reader ever observes a
// half-rebuilt index.
type Memory struct {
	mu        sync.RWMutex
	dimension int
	fragments []rag.Fragment
}

// NewMemory constructs an in-memory index for vectors of the given fixed
// dimension.
func NewMemory(dimension int) (*Memory, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("index: dimension must be positive, got %d", dimension)
	}
	return &Memory{dimension: dimension}, nil
}

// Store appends all fragments carrying an embedding. Duplicated ids are kept
// as separate entries.
func (m *Memory) Store(ctx context.Context, fragments []rag.Fragment) error {
	accepted := make([]rag.Fragment, 0, len(fragments))
	for _, f := range fragments {
		if f.Embedding == nil {
			continue
		}
		if len(f.Embedding) != m.dimension {
			return fmt.Errorf("index: store fragment %s: %w (got %d, want %d)", f.ID, ErrDimensionMismatch, len(f.Embedding), m.dimension)
		}
		accepted = append(accepted, f)
	}
	if len(accepted) == 0 {
		return nil
	}
	m.mu.Lock()
	m.fragments = append(m.fragments, accepted...)
	m.mu.Unlock()
	return nil
}

// Search scans every stored vector and returns the topK nearest fragments in
// the knowledge base, ascending by squared L2 distance.
func (m *Memory) Search(ctx context.Context, vector []float32, kbID string, topK int) ([]rag.Fragment, error) {
	if len(vector) != m.dimension {
		return nil, fmt.Errorf("index: search: %w (got %d, want %d)", ErrDimensionMismatch, len(vector), m.dimension)
	}
	if topK <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		fragment rag.Fragment
		distance float64
	}
	var candidates []scored
	for _, f := range m.fragments {
		if f.KnowledgeBaseID != kbID {
			continue
		}
		candidates = append(candidates, scored{fragment: f, distance: squaredL2(vector, f.Embedding)})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})

	if topK > len(candidates) {
		topK = len(candidates)
	}
	results := make([]rag.Fragment, topK)
	for i := 0; i < topK; i++ {
		results[i] = candidates[i].fragment
	}
	return results, nil
}

// DeleteByDocument removes every fragment owned by the document. The
// surviving set replaces the arena in one swap under the write lock.
func (m *Memory) DeleteByDocument(ctx context.Context, documentID string) error {
	m.rebuild(func(f rag.Fragment) bool { return f.DocumentID != documentID })
	return nil
}

// DeleteByKnowledgeBase removes every fragment scoped to the knowledge base.
func (m *Memory) DeleteByKnowledgeBase(ctx context.Context, kbID string) error {
	m.rebuild(func(f rag.Fragment) bool { return f.KnowledgeBaseID != kbID })
	return nil
}

func (m *Memory) rebuild(keep func(rag.Fragment) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	survivors := make([]rag.Fragment, 0, len(m.fragments))
	for _, f := range m.fragments {
		if keep(f) {
			survivors = append(survivors, f)
		}
	}
	m.fragments = survivors
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

var _ Index = (*Memory)(nil)
