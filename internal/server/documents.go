package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/grounded/internal/store"
)

// Ingester runs the document ingestion pipeline.
type Ingester interface {
	IngestFile(ctx context.Context, kbID, name string, content []byte) (store.Document, error)
	IngestURL(ctx context.Context, kbID, link string) (store.Document, error)
	DeleteDocument(ctx context.Context, documentID string) error
}

// DocumentReader is the slice of the store the handler reads from.
type DocumentReader interface {
	GetKnowledgeBase(ctx context.Context, id string) (store.KnowledgeBase, error)
	ListDocuments(ctx context.Context, kbID string) ([]store.Document, error)
	GetDocument(ctx context.Context, id string) (store.Document, error)
}

type DocumentHandler struct {
	Store  DocumentReader
	Ingest Ingester
}

func (h *DocumentHandler) Register(g *echo.Group) {
	g.GET("/:id/documents", h.list)
	g.POST("/:id/documents", h.upload)
	g.POST("/:id/documents/url", h.fromURL)
	g.DELETE("/:id/documents/:doc_id", h.delete)
}

func (h *DocumentHandler) requireKB(c echo.Context) (string, error) {
	id := c.Param("id")
	if _, err := h.Store.GetKnowledgeBase(c.Request().Context(), id); errors.Is(err, store.ErrNotFound) {
		return "", echo.NewHTTPError(http.StatusNotFound, "knowledge base not found")
	} else if err != nil {
		return "", echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return id, nil
}

func (h *DocumentHandler) list(c echo.Context) error {
	kbID, err := h.requireKB(c)
	if err != nil {
		return err
	}
	docs, err := h.Store.ListDocuments(c.Request().Context(), kbID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if docs == nil {
		docs = []store.Document{}
	}
	return c.JSON(http.StatusOK, docs)
}

func (h *DocumentHandler) upload(c echo.Context) error {
	kbID, err := h.requireKB(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file field required")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	doc, err := h.Ingest.IngestFile(c.Request().Context(), kbID, fh.Filename, content)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, doc)
}

func (h *DocumentHandler) fromURL(c echo.Context) error {
	kbID, err := h.requireKB(c)
	if err != nil {
		return err
	}
	var req ingestURLRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.URL) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url required")
	}
	doc, err := h.Ingest.IngestURL(c.Request().Context(), kbID, req.URL)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusCreated, doc)
}

func (h *DocumentHandler) delete(c echo.Context) error {
	kbID, err := h.requireKB(c)
	if err != nil {
		return err
	}
	docID := c.Param("doc_id")
	doc, err := h.Store.GetDocument(c.Request().Context(), docID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && doc.KnowledgeBaseID != kbID) {
		return echo.NewHTTPError(http.StatusNotFound, "document not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := h.Ingest.DeleteDocument(c.Request().Context(), docID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
