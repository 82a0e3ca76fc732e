package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/grounded/internal/store"
)

// StatsStore aggregates the record counts shown on the dashboard.
type StatsStore interface {
	Dashboard(ctx context.Context) (store.DashboardStats, error)
}

type DashboardHandler struct {
	Store StatsStore
}

func (h *DashboardHandler) Register(g *echo.Group) {
	g.GET("", h.stats)
}

func (h *DashboardHandler) stats(c echo.Context) error {
	stats, err := h.Store.Dashboard(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}
