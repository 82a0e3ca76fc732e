package store

import (
	"context"
	"sort"
	"sync"

	"github.com/mohammad-safakhou/grounded/internal/rag"
)

// MemoryInteractionLog keeps interactions in process memory. Used when the
// storage backend is "memory" and in tests.
type MemoryInteractionLog struct {
	mu           sync.RWMutex
	interactions map[string]rag.Interaction
}

// NewMemoryInteractionLog constructs an empty log.
func NewMemoryInteractionLog() *MemoryInteractionLog {
	return &MemoryInteractionLog{interactions: map[string]rag.Interaction{}}
}

// SaveInteraction records one interaction keyed by id.
func (m *MemoryInteractionLog) SaveInteraction(_ context.Context, in rag.Interaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if in.Citations == nil {
		in.Citations = []rag.Citation{}
	}
	m.interactions[in.ID] = in
	return nil
}

// GetInteraction looks up one interaction by id.
func (m *MemoryInteractionLog) GetInteraction(_ context.Context, id string) (rag.Interaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	in, ok := m.interactions[id]
	if !ok {
		return rag.Interaction{}, ErrNotFound
	}
	return in, nil
}

// ListInteractions returns interactions most recent first, optionally
// filtered by knowledge base.
func (m *MemoryInteractionLog) ListInteractions(_ context.Context, kbID string, limit, offset int) ([]rag.Interaction, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	m.mu.RLock()
	all := make([]rag.Interaction, 0, len(m.interactions))
	for _, in := range m.interactions {
		if kbID != "" && in.KnowledgeBaseID != kbID {
			continue
		}
		all = append(all, in)
	}
	m.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
