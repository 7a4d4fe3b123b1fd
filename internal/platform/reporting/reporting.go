// Package reporting exposes read-only SQL aggregates over the pharmacy
// tables: sales, stock value, adherence, and the pharmacist dashboard
// counters. There is no computation pipeline here, only query access.
package reporting

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/pharmd/pharmd/internal/platform/auth"
)

// MeasureDefinition defines a reporting measure with its SQL query.
// Parameters are positional and bound as $1..$n.
type MeasureDefinition struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	SQL         string   `json:"sql"`
	Parameters  []string `json:"parameters"`
}

// MeasureReport holds the results of evaluating a measure.
type MeasureReport struct {
	MeasureID   string                   `json:"measure_id"`
	MeasureName string                   `json:"measure_name"`
	GeneratedAt time.Time                `json:"generated_at"`
	Results     []map[string]interface{} `json:"results"`
	Parameters  map[string]string        `json:"parameters,omitempty"`
}

// PredefinedMeasures is the list of available reporting measures.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "daily-sales",
		Name:        "Daily Sales",
		Description: "Completed dispense counts and revenue per day over a date range",
		SQL: `SELECT updated_at::date AS day, COUNT(*) AS dispenses,
			COALESCE(SUM(total_amount), 0) AS total_sales
			FROM dispense_record
			WHERE status = 'completed' AND updated_at::date BETWEEN $1 AND $2
			GROUP BY day ORDER BY day ASC`,
		Parameters: []string{"from", "to"},
	},
	{
		ID:          "stock-by-category",
		Name:        "Stock by Category",
		Description: "Item counts, units on hand, and stock value per inventory category",
		SQL: `SELECT category, COUNT(*) AS items,
			COALESCE(SUM(current_stock), 0) AS units,
			COALESCE(SUM(current_stock * unit_price), 0) AS stock_value
			FROM medication_inventory
			WHERE active
			GROUP BY category ORDER BY stock_value DESC`,
		Parameters: []string{},
	},
	{
		ID:          "adherence-summary",
		Name:        "Adherence Summary",
		Description: "Latest overall adherence per assessed patient",
		SQL: `SELECT patient_id,
			(compliance->>'overall_adherence')::float AS overall_adherence,
			compliance->>'last_assessment_date' AS last_assessment_date
			FROM patient_profile
			WHERE NOT retired AND compliance->>'overall_adherence' IS NOT NULL
			ORDER BY overall_adherence ASC`,
		Parameters: []string{},
	},
}

const dashboardSQL = `SELECT
	(SELECT COUNT(*) FROM dispense_record
		WHERE status = 'pending' AND verification_status IN ('pending', 'requires-clarification')) AS pending_verifications,
	(SELECT COUNT(*) FROM dispense_record WHERE status = 'in-progress') AS in_progress_dispenses,
	(SELECT COUNT(*) FROM dispense_record WHERE status = 'on-hold') AS on_hold_dispenses,
	(SELECT COUNT(*) FROM dispense_record
		WHERE status = 'completed' AND updated_at::date = CURRENT_DATE) AS completed_today,
	(SELECT COUNT(*) FROM medication_inventory
		WHERE active AND current_stock <= minimum_stock) AS low_stock_items,
	(SELECT COUNT(*) FROM medication_inventory
		WHERE active AND expiry_date BETWEEN NOW() AND NOW() + make_interval(days => 30)) AS near_expiry_items`

// Handler provides HTTP handlers for the reporting API.
type Handler struct {
	pool *pgxpool.Pool
}

// NewHandler creates a new reporting handler.
func NewHandler(pool *pgxpool.Pool) *Handler {
	return &Handler{pool: pool}
}

// RegisterRoutes registers the reporting API routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	group := api.Group("", auth.RequireRole("admin", "pharmacist"))
	group.GET("/reports/daily-sales", func(c echo.Context) error { return h.evaluate(c, "daily-sales") })
	group.GET("/reports/stock-by-category", func(c echo.Context) error { return h.evaluate(c, "stock-by-category") })
	group.GET("/reports/adherence-summary", func(c echo.Context) error { return h.evaluate(c, "adherence-summary") })
	group.GET("/dashboard", h.Dashboard)
}

// evaluate executes a measure's SQL with its bound parameters.
func (h *Handler) evaluate(c echo.Context, measureID string) error {
	measure := FindMeasure(measureID)
	if measure == nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}

	params := map[string]string{}
	args := make([]interface{}, 0, len(measure.Parameters))
	for _, p := range measure.Parameters {
		v := c.QueryParam(p)
		if v == "" {
			v = defaultParam(p)
		}
		if _, err := time.Parse("2006-01-02", v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s must be a YYYY-MM-DD date", p))
		}
		params[p] = v
		args = append(args, v)
	}

	results, err := h.executeSQL(c.Request().Context(), measure.SQL, args...)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("query failed: %v", err))
	}

	return c.JSON(http.StatusOK, MeasureReport{
		MeasureID:   measure.ID,
		MeasureName: measure.Name,
		GeneratedAt: time.Now().UTC(),
		Results:     results,
		Parameters:  params,
	})
}

// Dashboard returns the pharmacist dashboard counters in one round trip.
func (h *Handler) Dashboard(c echo.Context) error {
	results, err := h.executeSQL(c.Request().Context(), dashboardSQL)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("query failed: %v", err))
	}
	if len(results) == 0 {
		return c.JSON(http.StatusOK, map[string]interface{}{})
	}
	return c.JSON(http.StatusOK, results[0])
}

// defaultParam supplies the default date window: the last 30 days.
func defaultParam(name string) string {
	switch name {
	case "from":
		return time.Now().UTC().AddDate(0, 0, -30).Format("2006-01-02")
	case "to":
		return time.Now().UTC().Format("2006-01-02")
	}
	return ""
}

// executeSQL runs a SQL query and returns results as a slice of maps.
func (h *Handler) executeSQL(ctx context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error) {
	rows, err := h.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	var results []map[string]interface{}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(fieldDescs))
		for i, fd := range fieldDescs {
			row[string(fd.Name)] = values[i]
		}
		results = append(results, row)
	}

	if results == nil {
		results = []map[string]interface{}{}
	}

	return results, nil
}

// FindMeasure looks up a measure by ID.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}
