package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/grounded/internal/store"
)

// KnowledgeBaseStore is the slice of the store the handler needs.
type KnowledgeBaseStore interface {
	CreateKnowledgeBase(ctx context.Context, kb store.KnowledgeBase) error
	GetKnowledgeBase(ctx context.Context, id string) (store.KnowledgeBase, error)
	ListKnowledgeBases(ctx context.Context) ([]store.KnowledgeBase, error)
	DeleteKnowledgeBase(ctx context.Context, id string) error
}

// FragmentDeleter removes a knowledge base's fragments from the index when
// the knowledge base goes away.
type FragmentDeleter interface {
	DeleteByKnowledgeBase(ctx context.Context, kbID string) error
}

type KnowledgeBaseHandler struct {
	Store KnowledgeBaseStore
	Index FragmentDeleter
}

func (h *KnowledgeBaseHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.DELETE("/:id", h.delete)
}

func (h *KnowledgeBaseHandler) list(c echo.Context) error {
	items, err := h.Store.ListKnowledgeBases(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []store.KnowledgeBase{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *KnowledgeBaseHandler) create(c echo.Context) error {
	var req createKnowledgeBaseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Name) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name required")
	}
	kb := store.KnowledgeBase{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
	}
	if err := h.Store.CreateKnowledgeBase(c.Request().Context(), kb); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, kb)
}

func (h *KnowledgeBaseHandler) get(c echo.Context) error {
	kb, err := h.Store.GetKnowledgeBase(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "knowledge base not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, kb)
}

func (h *KnowledgeBaseHandler) delete(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if _, err := h.Store.GetKnowledgeBase(ctx, id); errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "knowledge base not found")
	} else if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := h.Index.DeleteByKnowledgeBase(ctx, id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := h.Store.DeleteKnowledgeBase(ctx, id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
