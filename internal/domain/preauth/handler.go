package preauth

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rcm/rcm/internal/platform/auth"
	"github.com/rcm/rcm/internal/platform/db"
	"github.com/rcm/rcm/internal/workflow"
	"github.com/rcm/rcm/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	role := auth.RequireRole("executive", "processor")

	g := api.Group("", role)
	g.POST("/preauth", h.Submit)
	g.GET("/preauth", h.List)
	g.GET("/preauth/transitions/:role", h.Transitions)
	g.GET("/preauth/:id", h.Get)
	g.PUT("/preauth/:id/status", h.UpdateStatus)
	g.POST("/preauth/:id/discharge", h.SubmitDischarge)
	g.GET("/preauth/:id/status", h.CurrentStatus)
	g.GET("/preauth/:id/status-history", h.StatusHistory)
}

func (h *Handler) actor(c echo.Context) workflow.Actor {
	ctx := c.Request().Context()
	return workflow.Actor{
		ID:   auth.UserIDFromContext(ctx),
		Role: workflow.Role(auth.RoleFromContext(ctx)),
	}
}

// httpError maps workflow errors onto status codes: validation failures
// are 400/422, missing claims 404, lost races 409, store outages 503.
func httpError(err error) error {
	var (
		ur *workflow.UnknownRoleError
		us *workflow.UnknownStateError
		it *workflow.IllegalTransitionError
		am *workflow.AnnotationMismatchError
		pf *workflow.PartialFailureError
	)
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "preauth request not found")
	case errors.Is(err, workflow.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict,
			"claim was modified concurrently, reload and retry")
	case errors.Is(err, workflow.ErrStoreUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "claim store unavailable")
	case errors.As(err, &it):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]interface{}{
			"error":   it.Error(),
			"allowed": it.Allowed,
		})
	case errors.As(err, &ur), errors.As(err, &us), errors.As(err, &am):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &pf):
		// Status committed but the audit append was lost; surfaced so
		// the caller knows reconciliation is needed.
		return echo.NewHTTPError(http.StatusInternalServerError, map[string]interface{}{
			"error":     "status updated but history record failed",
			"new_state": pf.Record.NewState,
		})
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) Submit(c echo.Context) error {
	var in SubmitInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	hospitalID := db.HospitalFromContext(c.Request().Context())
	p, err := h.svc.Submit(c.Request().Context(), hospitalID, in, h.actor(c))
	if err != nil {
		// A bad payload is the caller's problem; a failed insert is not.
		var ii *InvalidInputError
		if errors.As(err, &ii) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	p, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	filter := ListFilter{
		Status:      workflow.State(c.QueryParam("status")),
		PatientUHID: c.QueryParam("patient_uhid"),
		InsurerName: c.QueryParam("insurer"),
	}
	items, total, err := h.svc.List(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	var in UpdateStatusInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if in.NewState == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "new_state is required")
	}

	res, err := h.svc.UpdateStatus(c.Request().Context(), c.Param("id"), in, h.actor(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"preauth_id":     c.Param("id"),
		"previous_state": res.PreviousStatus,
		"new_state":      res.NewStatus,
		"changed_at":     res.Record.ChangedAt,
	})
}

func (h *Handler) SubmitDischarge(c echo.Context) error {
	var in DischargeInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	res, err := h.svc.SubmitDischarge(c.Request().Context(), c.Param("id"), in, h.actor(c))
	if err != nil {
		var ii *InvalidInputError
		if errors.As(err, &ii) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"preauth_id":     c.Param("id"),
		"previous_state": res.PreviousStatus,
		"new_state":      res.NewStatus,
		"changed_at":     res.Record.ChangedAt,
	})
}

func (h *Handler) CurrentStatus(c echo.Context) error {
	role := workflow.Role(auth.RoleFromContext(c.Request().Context()))
	view, err := h.svc.CurrentStatus(c.Request().Context(), c.Param("id"), role)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) StatusHistory(c echo.Context) error {
	hist, err := h.svc.StatusHistory(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if hist == nil {
		hist = []*workflow.TransitionRecord{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"preauth_id": c.Param("id"),
		"history":    hist,
	})
}

func (h *Handler) Transitions(c echo.Context) error {
	transitions, err := h.svc.TransitionsForRole(workflow.Role(c.Param("role")))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"role":        c.Param("role"),
		"transitions": transitions,
	})
}
