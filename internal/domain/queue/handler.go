package queue

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/johnnysally/SmartCare360-sub000/internal/platform/auth"
	"github.com/johnnysally/SmartCare360-sub000/internal/platform/validation"
	"github.com/johnnysally/SmartCare360-sub000/pkg/pagination"
)

type Handler struct {
	checkIn  *CheckInService
	dispatch *DispatchService
}

func NewHandler(checkIn *CheckInService, dispatch *DispatchService) *Handler {
	return &Handler{checkIn: checkIn, dispatch: dispatch}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	// Read endpoints – any authenticated user
	readGroup := g.Group("", auth.RequireAuthenticated())
	readGroup.GET("/department/:dept", h.GetDepartmentQueue)
	readGroup.GET("/all", h.GetAllQueueStatus)
	readGroup.GET("/next/:dept", h.GetNext)

	// Intake – admin, receptionist, nurse
	intake := g.Group("", auth.RequireRole(auth.RoleReceptionist, auth.RoleNurse))
	intake.POST("/check-in", h.CheckIn)

	// Dispatch – admin, nurse, doctor, staff
	dispatch := g.Group("", auth.RequireRole(auth.RoleNurse, auth.RoleDoctor, auth.RoleStaff))
	dispatch.POST("/:id/call", h.CallNext)
	dispatch.POST("/:id/complete", h.Complete)
	dispatch.PUT("/:id/priority", h.SetPriority)
}

type callRequest struct {
	Department string `json:"department"`
	StaffID    string `json:"staffId" validate:"max=64"`
}

type completeRequest struct {
	NextDepartment string `json:"nextDepartment"`
}

type priorityRequest struct {
	Priority *int `json:"priority" validate:"required"`
}

func (h *Handler) CheckIn(c echo.Context) error {
	var req CheckInRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	entry, err := h.checkIn.CheckIn(c.Request().Context(), req)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusCreated, entry)
}

// boardLimit reads an optional ?limit= for live board reads. Without it the
// whole active queue is returned.
func boardLimit(c echo.Context) int {
	if c.QueryParam("limit") == "" {
		return 0
	}
	return pagination.FromContext(c).Limit
}

func (h *Handler) GetDepartmentQueue(c echo.Context) error {
	items, err := h.dispatch.GetDepartmentQueue(c.Request().Context(), c.Param("dept"), boardLimit(c))
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetAllQueueStatus(c echo.Context) error {
	all, err := h.dispatch.GetAllQueueStatus(c.Request().Context(), boardLimit(c))
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, all)
}

func (h *Handler) GetNext(c echo.Context) error {
	entry, err := h.dispatch.GetNext(c.Request().Context(), c.Param("dept"))
	if err != nil {
		return HTTPError(err)
	}
	if entry == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no patients waiting")
	}
	return c.JSON(http.StatusOK, entry)
}

// CallNext serves POST /:id/call. The department comes from the body and
// falls back to the path segment; the staff id falls back to the caller.
func (h *Handler) CallNext(c echo.Context) error {
	var req callRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	dept := req.Department
	if dept == "" {
		dept = c.Param("id")
	}
	staffID := req.StaffID
	if staffID == "" {
		staffID = auth.UserIDFromContext(c.Request().Context())
	}

	res, err := h.dispatch.CallNext(c.Request().Context(), dept, staffID)
	if err != nil {
		return HTTPError(err)
	}
	if res == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no patients waiting")
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Complete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req completeRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	res, err := h.dispatch.CompleteService(c.Request().Context(), id, req.NextDepartment)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) SetPriority(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req priorityRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if req.Priority == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "priority is required")
	}
	entry, err := h.dispatch.SetPriority(c.Request().Context(), id, *req.Priority)
	if err != nil {
		return HTTPError(err)
	}
	return c.JSON(http.StatusOK, entry)
}

// bindAndValidate binds the JSON body and runs the echo validator when one is
// installed. An empty body is accepted.
func bindAndValidate(c echo.Context, dst interface{}) error {
	if c.Request().ContentLength != 0 {
		if err := c.Bind(dst); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
	}
	if c.Echo().Validator == nil {
		return nil
	}
	if err := c.Validate(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, validation.Message(err))
	}
	return nil
}

// HTTPError maps service errors onto status codes. Anything that is not a
// validation, lookup or transition failure is treated as a storage error.
func HTTPError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "storage error").SetInternal(err)
	}
}
