package reconciliation

import (
	"net/http"
	"strconv"

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
	readGroup.GET("/reconciliations", h.ListByPatient)
	readGroup.GET("/reconciliations/:id", h.Get)

	writeGroup := api.Group("", auth.RequireRole("admin", "pharmacist"))
	writeGroup.POST("/reconciliations", h.Perform)
	writeGroup.POST("/reconciliations/:id/discrepancies/:index/resolve", h.ResolveDiscrepancy)
}

type performRequest struct {
	PatientID           uuid.UUID            `json:"patient_id"`
	Sources             []string             `json:"sources"`
	ReportedMedications []ReportedMedication `json:"reported_medications"`
}

func (h *Handler) Perform(c echo.Context) error {
	var req performRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.PatientID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	pharmacistID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "caller identity is not a valid id")
	}
	rec, err := h.svc.Perform(c.Request().Context(), req.PatientID, pharmacistID, req.Sources, req.ReportedMedications)
	if err != nil {
		if errs.IsValidation(err) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errs.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "reconciliation record not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.QueryParam("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id query parameter is required")
	}
	pg := pagination.FromContext(c)
	records, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(records, total, pg.Limit, pg.Offset))
}

type resolveRequest struct {
	Resolution    string `json:"resolution"`
	UpdateProfile bool   `json:"update_profile"`
}

func (h *Handler) ResolveDiscrepancy(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid discrepancy index")
	}
	var req resolveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.ResolveDiscrepancy(c.Request().Context(), id, index, req.Resolution,
		auth.UserIDFromContext(c.Request().Context()), req.UpdateProfile)
	if err != nil {
		switch {
		case errs.IsValidation(err):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errs.IsNotFound(err):
			return echo.NewHTTPError(http.StatusNotFound, "reconciliation record not found")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, rec)
}
