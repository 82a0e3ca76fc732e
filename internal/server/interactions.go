package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/grounded/internal/rag"
	"github.com/mohammad-safakhou/grounded/internal/store"
)

// InteractionStore reads the interaction log.
type InteractionStore interface {
	GetInteraction(ctx context.Context, id string) (rag.Interaction, error)
	ListInteractions(ctx context.Context, kbID string, limit, offset int) ([]rag.Interaction, error)
}

type InteractionHandler struct {
	Store InteractionStore
}

func (h *InteractionHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.GET("/:id", h.get)
}

func (h *InteractionHandler) list(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	items, err := h.Store.ListInteractions(c.Request().Context(), c.QueryParam("kb_id"), limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []rag.Interaction{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *InteractionHandler) get(c echo.Context) error {
	in, err := h.Store.GetInteraction(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "interaction not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, in)
}
