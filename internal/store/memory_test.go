package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mohammad-safakhou/grounded/internal/rag"
)

func TestMemoryInteractionLogRoundTrip(t *testing.T) {
	t.Parallel()
	log := NewMemoryInteractionLog()
	ctx := context.Background()

	in := rag.Interaction{
		ID:              "int-1",
		KnowledgeBaseID: "kb-1",
		Question:        "q",
		Answer:          "a",
		Status:          rag.StatusAnswered,
		CreatedAt:       time.Now(),
	}
	if err := log.SaveInteraction(ctx, in); err != nil {
		t.Fatalf("SaveInteraction: %v", err)
	}

	got, err := log.GetInteraction(ctx, "int-1")
	if err != nil {
		t.Fatalf("GetInteraction: %v", err)
	}
	if got.Question != "q" || got.Status != rag.StatusAnswered {
		t.Fatalf("unexpected interaction: %+v", got)
	}
	if got.Citations == nil {
		t.Fatalf("citations should be normalized to empty slice")
	}

	if _, err := log.GetInteraction(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryInteractionLogListOrderAndFilter(t *testing.T) {
	t.Parallel()
	log := NewMemoryInteractionLog()
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		kb := "kb-a"
		if i%2 == 1 {
			kb = "kb-b"
		}
		err := log.SaveInteraction(ctx, rag.Interaction{
			ID:              fmt.Sprintf("int-%d", i),
			KnowledgeBaseID: kb,
			Question:        "q",
			Status:          rag.StatusUnknown,
			CreatedAt:       base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("SaveInteraction: %v", err)
		}
	}

	all, err := log.ListInteractions(ctx, "", 0, 0)
	if err != nil {
		t.Fatalf("ListInteractions: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("len = %d, want 5", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAt.After(all[i-1].CreatedAt) {
			t.Fatalf("results not in most-recent-first order at %d", i)
		}
	}

	kbA, err := log.ListInteractions(ctx, "kb-a", 0, 0)
	if err != nil {
		t.Fatalf("ListInteractions kb-a: %v", err)
	}
	if len(kbA) != 3 {
		t.Fatalf("kb-a len = %d, want 3", len(kbA))
	}

	page, err := log.ListInteractions(ctx, "", 2, 1)
	if err != nil {
		t.Fatalf("ListInteractions page: %v", err)
	}
	if len(page) != 2 || page[0].ID != "int-3" {
		t.Fatalf("page = %+v", page)
	}

	empty, err := log.ListInteractions(ctx, "", 10, 99)
	if err != nil {
		t.Fatalf("ListInteractions offset: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty page, got %d", len(empty))
	}
}
