package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrUnknownMeasure is returned when a measure ID is not recognized.
var ErrUnknownMeasure = errors.New("unknown measure")

// MeasureDefinition describes one dashboard measure and the SQL behind it.
type MeasureDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SQL         string `json:"-"`
}

// MeasureReport holds the results of evaluating a measure.
type MeasureReport struct {
	MeasureID   string                   `json:"measure_id"`
	MeasureName string                   `json:"measure_name"`
	GeneratedAt time.Time                `json:"generated_at"`
	Results     []map[string]interface{} `json:"results"`
}

// PredefinedMeasures is the list of available dashboard measures.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "diagnosis-volume",
		Name:        "Diagnosis Volume",
		Description: "Diagnoses created per day over the last 30 days",
		SQL: `SELECT date_trunc('day', created_at) AS day, COUNT(*) AS total
		      FROM diagnoses WHERE created_at > now() - interval '30 days'
		      GROUP BY day ORDER BY day`,
	},
	{
		ID:          "diagnoses-by-category",
		Name:        "Diagnoses by Scan Type",
		Description: "All-time diagnosis counts grouped by stored scan type",
		SQL: `SELECT COALESCE(NULLIF(patient_meta->>'scan_type', ''), 'GENERAL') AS category, COUNT(*) AS total
		      FROM diagnoses GROUP BY category ORDER BY total DESC`,
	},
	{
		ID:          "hospital-count",
		Name:        "Hospital Count",
		Description: "Total registered hospitals",
		SQL:         `SELECT COUNT(*) AS total FROM hospitals`,
	},
	{
		ID:          "account-count",
		Name:        "Account Count",
		Description: "Total accounts split by disabled flag",
		SQL: `SELECT COUNT(*) AS total, COALESCE(SUM(CASE WHEN disabled THEN 1 ELSE 0 END), 0) AS disabled_count
		      FROM accounts`,
	},
	{
		ID:          "ticket-backlog",
		Name:        "Support Ticket Backlog",
		Description: "Support ticket counts grouped by status",
		SQL:         `SELECT status, COUNT(*) AS total FROM support_tickets GROUP BY status ORDER BY total DESC`,
	},
	{
		ID:          "invoice-status-summary",
		Name:        "Invoice Status Summary",
		Description: "Invoice counts and totals grouped by status",
		SQL: `SELECT status, COUNT(*) AS total, COALESCE(SUM(total_amount), 0) AS amount
		      FROM invoices GROUP BY status ORDER BY total DESC`,
	},
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

// Querier is the subset of the pgx pool the service needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// Service evaluates dashboard measures. It is the single aggregation path;
// the REST handler and any internal caller both go through Evaluate.
type Service struct {
	q Querier
}

func NewService(q Querier) *Service {
	return &Service{q: q}
}

// Measures returns the available measure definitions.
func (s *Service) Measures() []MeasureDefinition {
	return PredefinedMeasures
}

// Evaluate runs a measure's query and returns row maps keyed by column name.
func (s *Service) Evaluate(ctx context.Context, measureID string) (*MeasureReport, error) {
	measure := FindMeasure(measureID)
	if measure == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMeasure, measureID)
	}

	rows, err := s.q.Query(ctx, measure.SQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	results := []map[string]interface{}{}
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
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &MeasureReport{
		MeasureID:   measure.ID,
		MeasureName: measure.Name,
		GeneratedAt: time.Now(),
		Results:     results,
	}, nil
}
