package dispensing

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pharmd/pharmd/internal/platform/auth"
	"github.com/pharmd/pharmd/pkg/errs"
	"github.com/pharmd/pharmd/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("admin", "pharmacist", "technician"))
	readGroup.GET("/dispenses", h.List)
	readGroup.GET("/dispenses/:id", h.Get)

	writeGroup := api.Group("", auth.RequireRole("admin", "pharmacist"))
	writeGroup.POST("/dispenses", h.Create)
	writeGroup.POST("/dispenses/:id/verify", h.Verify)
	writeGroup.POST("/dispenses/:id/dispense", h.Dispense)
	writeGroup.POST("/dispenses/:id/pickup", h.ConfirmPickup)
	writeGroup.POST("/dispenses/:id/hold", h.Hold)
	writeGroup.POST("/dispenses/:id/release", h.Release)
	writeGroup.POST("/dispenses/:id/cancel", h.Cancel)
}

func mapError(err error) error {
	switch {
	case errs.IsNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errs.IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	switch {
	case errors.Is(err, errs.ErrInvalidStateTransition):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, errs.ErrInsufficientStock):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, errs.ErrDuplicateRecordNumber):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	pharmacistID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "caller identity is not a valid id")
	}
	rec, err := h.svc.Create(c.Request().Context(), in, pharmacistID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) Get(c echo.Context) error {
	// The path segment doubles as a record number lookup when it is not a
	// UUID, so RX numbers printed on labels resolve directly.
	raw := c.Param("id")
	if id, err := uuid.Parse(raw); err == nil {
		rec, err := h.svc.Get(c.Request().Context(), id)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(http.StatusOK, rec)
	}
	rec, err := h.svc.GetByRecordNumber(c.Request().Context(), raw)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)

	if raw := c.QueryParam("patient_id"); raw != "" {
		patientID, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		records, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(records, total, pg.Limit, pg.Offset))
	}

	status := c.QueryParam("status")
	if status == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id or status query parameter is required")
	}
	records, total, err := h.svc.ListByStatus(c.Request().Context(), status, pg.Limit, pg.Offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(records, total, pg.Limit, pg.Offset))
}

func (h *Handler) Verify(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in VerifyInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.Verify(c.Request().Context(), id, in)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) Dispense(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in DispenseInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.Dispense(c.Request().Context(), id, in)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) ConfirmPickup(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var pickup Pickup
	if err := c.Bind(&pickup); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.ConfirmPickup(c.Request().Context(), id, pickup)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Hold(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req reasonRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.Hold(c.Request().Context(), id, req.Reason)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) Release(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.Release(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req reasonRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.Cancel(c.Request().Context(), id, req.Reason)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, rec)
}
