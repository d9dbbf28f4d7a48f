package notification

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/johnnysally/SmartCare360-sub000/internal/platform/auth"
	"github.com/johnnysally/SmartCare360-sub000/pkg/pagination"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	read := g.Group("", auth.RequireAuthenticated())
	read.GET("/notifications/:patientId", h.ListByPatient)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID := strings.TrimSpace(c.Param("patientId"))
	if patientID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patientId is required")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.repo.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "storage error").SetInternal(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
