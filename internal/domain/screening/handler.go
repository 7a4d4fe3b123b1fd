package screening

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
	group := api.Group("", auth.RequireRole("admin", "pharmacist", "technician"))
	group.POST("/screenings", h.Screen)
}

func (h *Handler) Screen(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var pharmacistID uuid.UUID
	if req.PatientID != nil {
		var err error
		pharmacistID, err = uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "caller identity is not a valid id")
		}
	}
	result, err := h.svc.Screen(c.Request().Context(), req, pharmacistID)
	if err != nil {
		if errs.IsValidation(err) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}
