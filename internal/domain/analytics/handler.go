package analytics

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/johnnysally/SmartCare360-sub000/internal/domain/queue"
	"github.com/johnnysally/SmartCare360-sub000/internal/platform/auth"
)

type Handler struct {
	agg *Aggregator
}

func NewHandler(agg *Aggregator) *Handler {
	return &Handler{agg: agg}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	read := g.Group("", auth.RequireAuthenticated())
	read.GET("/stats", h.GetStats)
	read.GET("/stats/:dept", h.GetStats)
	read.GET("/analytics", h.GetReport)
}

func (h *Handler) GetStats(c echo.Context) error {
	stats, err := h.agg.GetQueueStats(c.Request().Context(), c.Param("dept"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetReport(c echo.Context) error {
	days := 0
	if raw := c.QueryParam("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "days must be an integer")
		}
		days = n
	}
	rows, err := h.agg.GetAnalyticsReport(c.Request().Context(), c.QueryParam("department"), days)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"days": ClampDays(days),
		"data": rows,
	})
}

func httpError(err error) error {
	if errors.Is(err, queue.ErrValidation) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "storage error").SetInternal(err)
}
