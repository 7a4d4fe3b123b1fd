package profile

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pharmd/pharmd/internal/platform/auth"
	"github.com/pharmd/pharmd/pkg/errs"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("admin", "pharmacist", "technician"))
	readGroup.GET("/profiles/:patientId", h.Get)

	writeGroup := api.Group("", auth.RequireRole("admin", "pharmacist"))
	writeGroup.POST("/profiles/:patientId/medications", h.UpsertMedications)
	writeGroup.POST("/profiles/:patientId/allergies", h.AddAllergy)
	writeGroup.POST("/profiles/:patientId/conditions", h.AddCondition)
	writeGroup.POST("/profiles/:patientId/alerts", h.AddAlert)
	writeGroup.POST("/profiles/:patientId/alerts/:alertId/acknowledge", h.AcknowledgeAlert)
	writeGroup.POST("/profiles/:patientId/compliance", h.SetCompliance)
	writeGroup.POST("/profiles/:patientId/retire", h.Retire)
}

// callerIDs resolves the patient id from the path and the pharmacist id from
// the authenticated caller.
func callerIDs(c echo.Context) (patientID, pharmacistID uuid.UUID, err error) {
	patientID, err = uuid.Parse(c.Param("patientId"))
	if err != nil {
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	pharmacistID, err = uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "caller identity is not a valid id")
	}
	return patientID, pharmacistID, nil
}

func mapError(err error) error {
	switch {
	case errs.IsNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errs.IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) Get(c echo.Context) error {
	patientID, pharmacistID, err := callerIDs(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetOrCreate(c.Request().Context(), patientID, pharmacistID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpsertMedications(c echo.Context) error {
	patientID, pharmacistID, err := callerIDs(c)
	if err != nil {
		return err
	}
	var body struct {
		Medications []Medication `json:"medications"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.UpsertMedications(c.Request().Context(), patientID, pharmacistID, body.Medications)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) AddAllergy(c echo.Context) error {
	patientID, pharmacistID, err := callerIDs(c)
	if err != nil {
		return err
	}
	var a Allergy
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.AddAllergy(c.Request().Context(), patientID, pharmacistID, a)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) AddCondition(c echo.Context) error {
	patientID, pharmacistID, err := callerIDs(c)
	if err != nil {
		return err
	}
	var cond Condition
	if err := c.Bind(&cond); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.AddCondition(c.Request().Context(), patientID, pharmacistID, cond)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) AddAlert(c echo.Context) error {
	patientID, pharmacistID, err := callerIDs(c)
	if err != nil {
		return err
	}
	var a Alert
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.AddAlert(c.Request().Context(), patientID, pharmacistID, a)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) AcknowledgeAlert(c echo.Context) error {
	patientID, pharmacistID, err := callerIDs(c)
	if err != nil {
		return err
	}
	alertID, err := uuid.Parse(c.Param("alertId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid alert id")
	}
	p, err := h.svc.AcknowledgeAlert(c.Request().Context(), patientID, pharmacistID, alertID,
		auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) SetCompliance(c echo.Context) error {
	patientID, pharmacistID, err := callerIDs(c)
	if err != nil {
		return err
	}
	var comp Compliance
	if err := c.Bind(&comp); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.SetCompliance(c.Request().Context(), patientID, pharmacistID, comp)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Retire(c echo.Context) error {
	patientID, pharmacistID, err := callerIDs(c)
	if err != nil {
		return err
	}
	if err := h.svc.Retire(c.Request().Context(), patientID, pharmacistID); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
