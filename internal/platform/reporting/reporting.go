// Package reporting exposes predefined revenue cycle measures as a
// read-only API. Each measure is a named SQL query evaluated against
// the hospital schema on demand.
package reporting

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/rcm/rcm/internal/platform/auth"
)

// MeasureDefinition defines a reporting measure with its SQL query.
type MeasureDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SQL         string `json:"sql"`
}

// MeasureReport holds the results of evaluating a measure.
type MeasureReport struct {
	MeasureID   string                   `json:"measure_id"`
	MeasureName string                   `json:"measure_name"`
	GeneratedAt time.Time                `json:"generated_at"`
	Results     []map[string]interface{} `json:"results"`
}

// PredefinedMeasures is the list of available reporting measures.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "claims-by-status",
		Name:        "Claims by Status",
		Description: "Number of pre-authorization requests in each workflow state",
		SQL:         `SELECT status, COUNT(*) AS total FROM preauth_requests GROUP BY status ORDER BY total DESC`,
	},
	{
		ID:          "approved-amount-by-insurer",
		Name:        "Approved Amount by Insurer",
		Description: "Sum of approved and settled amounts grouped by insurer",
		SQL: `SELECT insurer_name,
			COUNT(*) AS claims,
			COALESCE(SUM(approved_amount), 0) AS approved_total,
			COALESCE(SUM(settled_amount), 0) AS settled_total
		FROM preauth_requests GROUP BY insurer_name ORDER BY approved_total DESC`,
	},
	{
		ID:          "denial-rate",
		Name:        "Denial Rate",
		Description: "Denied claims as a share of all adjudicated pre-auth requests",
		SQL: `SELECT
			COUNT(*) FILTER (WHERE status IN ('Denied', 'DischargeDenied')) AS denied,
			COUNT(*) FILTER (WHERE status IN ('Approved', 'Denied', 'DischargeSubmitted',
				'DischargeNeedMoreInfo', 'DischargeInfoSubmitted', 'DischargeApproved', 'DischargeDenied')) AS adjudicated
		FROM preauth_requests`,
	},
	{
		ID:          "approval-turnaround",
		Name:        "Approval Turnaround",
		Description: "Average hours from registration to pre-auth approval",
		SQL: `SELECT AVG(EXTRACT(EPOCH FROM (approval_date - created_at)) / 3600) AS avg_hours
		FROM preauth_requests WHERE approval_date IS NOT NULL`,
	},
	{
		ID:          "estimated-vs-actual-cost",
		Name:        "Estimated vs Actual Cost",
		Description: "Estimated and actual treatment cost totals for discharged claims",
		SQL: `SELECT
			COALESCE(SUM(estimated_cost), 0) AS estimated_total,
			COALESCE(SUM(actual_cost), 0) AS actual_total
		FROM preauth_requests WHERE discharge_date IS NOT NULL`,
	},
}

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
	reportGroup := api.Group("/reports", auth.RequireRole("processor"))
	reportGroup.GET("/measures", h.ListMeasures)
	reportGroup.GET("/measures/:id/evaluate", h.EvaluateMeasure)
}

// ListMeasures returns all available measure definitions.
func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, PredefinedMeasures)
}

// EvaluateMeasure executes a measure's SQL and returns the results.
func (h *Handler) EvaluateMeasure(c echo.Context) error {
	measure := FindMeasure(c.Param("id"))
	if measure == nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}

	results, err := h.executeSQL(c.Request().Context(), measure.SQL)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("query failed: %v", err))
	}

	return c.JSON(http.StatusOK, MeasureReport{
		MeasureID:   measure.ID,
		MeasureName: measure.Name,
		GeneratedAt: time.Now(),
		Results:     results,
	})
}

// executeSQL runs a SQL query and returns results as a slice of maps.
func (h *Handler) executeSQL(ctx context.Context, sql string) ([]map[string]interface{}, error) {
	rows, err := h.pool.Query(ctx, sql)
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
