package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/grounded/internal/store"
)

type fakeKBStore struct {
	kbs     map[string]store.KnowledgeBase
	deleted []string
}

func newFakeKBStore() *fakeKBStore {
	return &fakeKBStore{kbs: map[string]store.KnowledgeBase{}}
}

func (f *fakeKBStore) CreateKnowledgeBase(_ context.Context, kb store.KnowledgeBase) error {
	f.kbs[kb.ID] = kb
	return nil
}

func (f *fakeKBStore) GetKnowledgeBase(_ context.Context, id string) (store.KnowledgeBase, error) {
	kb, ok := f.kbs[id]
	if !ok {
		return store.KnowledgeBase{}, store.ErrNotFound
	}
	return kb, nil
}

func (f *fakeKBStore) ListKnowledgeBases(_ context.Context) ([]store.KnowledgeBase, error) {
	var out []store.KnowledgeBase
	for _, kb := range f.kbs {
		out = append(out, kb)
	}
	return out, nil
}

func (f *fakeKBStore) DeleteKnowledgeBase(_ context.Context, id string) error {
	delete(f.kbs, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeFragmentDeleter struct {
	deleted []string
}

func (f *fakeFragmentDeleter) DeleteByKnowledgeBase(_ context.Context, kbID string) error {
	f.deleted = append(f.deleted, kbID)
	return nil
}

func TestKnowledgeBaseCreate(t *testing.T) {
	st := newFakeKBStore()
	h := &KnowledgeBaseHandler{Store: st, Index: &fakeFragmentDeleter{}}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/knowledge-bases", strings.NewReader(`{"name":"Support Docs","description":"policies"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := h.create(ctx); err != nil {
		t.Fatalf("create returned error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var kb store.KnowledgeBase
	if err := json.Unmarshal(rec.Body.Bytes(), &kb); err != nil {
		t.Fatalf("response decode: %v", err)
	}
	if kb.ID == "" || kb.Name != "Support Docs" {
		t.Fatalf("unexpected response: %+v", kb)
	}
	if _, ok := st.kbs[kb.ID]; !ok {
		t.Fatalf("knowledge base not persisted")
	}
}

func TestKnowledgeBaseCreateRequiresName(t *testing.T) {
	h := &KnowledgeBaseHandler{Store: newFakeKBStore(), Index: &fakeFragmentDeleter{}}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/knowledge-bases", strings.NewReader(`{"name":"  "}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	err := h.create(ctx)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestKnowledgeBaseDeleteCascadesToIndex(t *testing.T) {
	st := newFakeKBStore()
	st.kbs["kb-1"] = store.KnowledgeBase{ID: "kb-1", Name: "Docs"}
	idx := &fakeFragmentDeleter{}
	h := &KnowledgeBaseHandler{Store: st, Index: idx}

	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/knowledge-bases/kb-1", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("kb-1")

	if err := h.delete(ctx); err != nil {
		t.Fatalf("delete returned error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(idx.deleted) != 1 || idx.deleted[0] != "kb-1" {
		t.Fatalf("index cascade not issued: %v", idx.deleted)
	}
	if len(st.deleted) != 1 {
		t.Fatalf("store delete not issued: %v", st.deleted)
	}
}

func TestKnowledgeBaseDeleteMissing(t *testing.T) {
	h := &KnowledgeBaseHandler{Store: newFakeKBStore(), Index: &fakeFragmentDeleter{}}

	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/knowledge-bases/missing", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("id")
	ctx.SetParamValues("missing")

	err := h.delete(ctx)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}
