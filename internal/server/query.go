package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/grounded/internal/rag"
	"github.com/mohammad-safakhou/grounded/internal/store"
)

// QueryExecutor runs one question through the pipeline.
type QueryExecutor interface {
	Execute(ctx context.Context, kbID, question string) (rag.QueryResult, error)
}

// QueryStore validates the target knowledge base exists.
type QueryStore interface {
	GetKnowledgeBase(ctx context.Context, id string) (store.KnowledgeBase, error)
}

type QueryHandler struct {
	Store        QueryStore
	Orchestrator QueryExecutor
}

func (h *QueryHandler) Register(g *echo.Group) {
	g.POST("/:id/query", h.query)
}

func (h *QueryHandler) query(c echo.Context) error {
	ctx := c.Request().Context()
	kbID := c.Param("id")
	if _, err := h.Store.GetKnowledgeBase(ctx, kbID); errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "knowledge base not found")
	} else if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Question) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question required")
	}

	result, err := h.Orchestrator.Execute(ctx, kbID, req.Question)
	if err != nil {
		// An error-status result still identifies the persisted
		// interaction; surface it instead of a bare error envelope.
		if result.Status == rag.StatusError {
			return c.JSON(http.StatusBadGateway, result)
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}
