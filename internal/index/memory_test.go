package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/mohammad-safakhou/grounded/internal/rag"
)

func vecFragment(id, docID, kbID string, embedding []float32) rag.Fragment {
	return rag.Fragment{
		ID:              id,
		DocumentID:      docID,
		KnowledgeBaseID: kbID,
		Text:            "text for " + id,
		Embedding:       embedding,
	}
}

func TestMemorySearchNearestFirst(t *testing.T) {
	t.Parallel()
	idx, err := NewMemory(2)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	ctx := context.Background()

	err = idx.Store(ctx, []rag.Fragment{
		vecFragment("far", "d1", "kb1", []float32{10, 10}),
		vecFragment("near", "d1", "kb1", []float32{1, 1}),
		vecFragment("mid", "d2", "kb1", []float32{3, 3}),
	})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, err := idx.Search(ctx, []float32{0, 0}, "kb1", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[0].ID != "near" || got[1].ID != "mid" {
		t.Fatalf("order = [%s %s], want [near mid]", got[0].ID, got[1].ID)
	}
}

func TestMemorySearchReturnsMinTopKAndN(t *testing.T) {
	t.Parallel()
	idx, _ := NewMemory(2)
	ctx := context.Background()

	if err := idx.Store(ctx, []rag.Fragment{vecFragment("only", "d1", "kb1", []float32{1, 2})}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, err := idx.Search(ctx, []float32{0, 0}, "kb1", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
}

func TestMemorySearchEmptyIndex(t *testing.T) {
	t.Parallel()
	idx, _ := NewMemory(3)
	got, err := idx.Search(context.Background(), []float32{0, 0, 0}, "kb1", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d results, want 0", len(got))
	}
}

func TestMemoryScopeFiltering(t *testing.T) {
	t.Parallel()
	idx, _ := NewMemory(2)
	ctx := context.Background()

	if err := idx.Store(ctx, []rag.Fragment{
		vecFragment("a", "d1", "kb1", []float32{1, 1}),
		vecFragment("b", "d2", "kb2", []float32{0, 0}),
	}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, err := idx.Search(ctx, []float32{0, 0}, "kb1", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("got %v, want only fragment a", got)
	}
}

func TestMemorySkipsFragmentsWithoutEmbedding(t *testing.T) {
	t.Parallel()
	idx, _ := NewMemory(2)
	ctx := context.Background()

	if err := idx.Store(ctx, []rag.Fragment{
		{ID: "no-embedding", DocumentID: "d1", KnowledgeBaseID: "kb1", Text: "skipped"},
		vecFragment("with", "d1", "kb1", []float32{1, 1}),
	}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, err := idx.Search(ctx, []float32{0, 0}, "kb1", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].ID != "with" {
		t.Fatalf("got %v, want only the embedded fragment", got)
	}
}

func TestMemoryDuplicateStoreKeepsBothEntries(t *testing.T) {
	t.Parallel()
	idx, _ := NewMemory(2)
	ctx := context.Background()

	f := vecFragment("dup", "d1", "kb1", []float32{1, 1})
	if err := idx.Store(ctx, []rag.Fragment{f}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := idx.Store(ctx, []rag.Fragment{f}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, err := idx.Search(ctx, []float32{0, 0}, "kb1", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2 duplicate entries", len(got))
	}
}

func TestMemoryDimensionMismatch(t *testing.T) {
	t.Parallel()
	idx, _ := NewMemory(3)
	ctx := context.Background()

	err := idx.Store(ctx, []rag.Fragment{vecFragment("bad", "d1", "kb1", []float32{1, 2})})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("Store error = %v, want ErrDimensionMismatch", err)
	}
	_, err = idx.Search(ctx, []float32{1, 2}, "kb1", 5)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("Search error = %v, want ErrDimensionMismatch", err)
	}
}

func TestMemoryDeleteByDocument(t *testing.T) {
	t.Parallel()
	idx, _ := NewMemory(2)
	ctx := context.Background()

	if err := idx.Store(ctx, []rag.Fragment{
		vecFragment("a", "doomed", "kb1", []float32{1, 1}),
		vecFragment("b", "doomed", "kb1", []float32{2, 2}),
		vecFragment("c", "kept", "kb1", []float32{3, 3}),
	}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := idx.DeleteByDocument(ctx, "doomed"); err != nil {
		t.Fatalf("DeleteByDocument: %v", err)
	}
	got, err := idx.Search(ctx, []float32{0, 0}, "kb1", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, f := range got {
		if f.DocumentID == "doomed" {
			t.Fatalf("fragment %s from deleted document still returned", f.ID)
		}
	}
	if len(got) != 1 || got[0].ID != "c" {
		t.Fatalf("got %v, want only fragment c", got)
	}
}

func TestMemoryDeleteByKnowledgeBase(t *testing.T) {
	t.Parallel()
	idx, _ := NewMemory(2)
	ctx := context.Background()

	if err := idx.Store(ctx, []rag.Fragment{
		vecFragment("a", "d1", "kb1", []float32{1, 1}),
		vecFragment("b", "d2", "kb2", []float32{2, 2}),
	}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := idx.DeleteByKnowledgeBase(ctx, "kb1"); err != nil {
		t.Fatalf("DeleteByKnowledgeBase: %v", err)
	}
	got, err := idx.Search(ctx, []float32{0, 0}, "kb1", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("kb1 still has %d fragments after delete", len(got))
	}
	got, err = idx.Search(ctx, []float32{0, 0}, "kb2", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("kb2 lost fragments: got %d, want 1", len(got))
	}
}

func TestMemoryConcurrentSearchDuringMutation(t *testing.T) {
	t.Parallel()
	idx, _ := NewMemory(2)
	ctx := context.Background()

	seed := make([]rag.Fragment, 0, 50)
	for i := 0; i < 50; i++ {
		seed = append(seed, vecFragment(fmt.Sprintf("f%d", i), fmt.Sprintf("d%d", i%5), "kb1", []float32{float32(i), float32(i)}))
	}
	if err := idx.Store(ctx, seed); err != nil {
		t.Fatalf("Store: %v", err)
	}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if _, err := idx.Search(ctx, []float32{1, 1}, "kb1", 5); err != nil {
					t.Errorf("Search: %v", err)
					return
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for d := 0; d < 5; d++ {
			if err := idx.DeleteByDocument(ctx, fmt.Sprintf("d%d", d)); err != nil {
				t.Errorf("DeleteByDocument: %v", err)
				return
			}
		}
	}()
	wg.Wait()
}
