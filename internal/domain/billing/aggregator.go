package billing

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/curamed/curamed/internal/domain/diagnosis"
)

// UnknownHospital is the sentinel used when a hospital record carries no name.
const UnknownHospital = "Unknown"

// Summary holds aggregate billing figures for one scope.
type Summary struct {
	TotalAmount     float64            `json:"total_amount"`
	TotalDiagnoses  int                `json:"total_diagnoses"`
	DiagnosisCounts map[string]int     `json:"diagnosis_counts"`
	DiagnosisCosts  map[string]float64 `json:"diagnosis_costs"`
}

// HospitalSummary is the per-hospital slice of a report.
type HospitalSummary struct {
	HospitalID   uuid.UUID     `json:"hospital_id"`
	HospitalName string        `json:"hospital_name"`
	HospitalCode string        `json:"hospital_code"`
	Summary      Summary       `json:"summary"`
	Diagnoses    []InvoiceLine `json:"diagnoses"`
}

// Report is the aggregator output: overall figures plus per-hospital blocks.
type Report struct {
	Overall   Summary           `json:"overall"`
	Hospitals []HospitalSummary `json:"hospitals"`
}

// AggregateParams scopes an aggregation run.
type AggregateParams struct {
	HospitalID *uuid.UUID `json:"hospital_id"`
	Start      time.Time  `json:"start"`
	End        time.Time  `json:"end"`
}

// Aggregator scans billed diagnoses and produces summary reports.
type Aggregator struct {
	source DiagnosisSource
	prices PriceTable
}

func NewAggregator(source DiagnosisSource, prices PriceTable) *Aggregator {
	if prices == nil {
		prices = DefaultPrices()
	}
	return &Aggregator{source: source, prices: prices}
}

func newSummary() Summary {
	return Summary{
		DiagnosisCounts: make(map[string]int),
		DiagnosisCosts:  make(map[string]float64),
	}
}

// Aggregate groups the period's diagnoses by category and hospital. An empty
// result set yields zero-valued summaries with empty maps, not an error.
func (a *Aggregator) Aggregate(ctx context.Context, params AggregateParams) (*Report, error) {
	if params.Start.After(params.End) {
		return nil, ErrInvalidPeriod
	}

	rows, err := a.source.ListForBilling(ctx, params.HospitalID, params.Start, params.End)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Overall:   newSummary(),
		Hospitals: []HospitalSummary{},
	}
	byHospital := make(map[uuid.UUID]*HospitalSummary)

	for _, row := range rows {
		category := categoryOf(row)
		cost := a.prices.CostOf(category)

		report.Overall.TotalAmount += cost
		report.Overall.TotalDiagnoses++
		report.Overall.DiagnosisCounts[category]++
		report.Overall.DiagnosisCosts[category] += cost

		hs, ok := byHospital[row.HospitalID]
		if !ok {
			name := row.HospitalName
			if strings.TrimSpace(name) == "" {
				name = UnknownHospital
			}
			hs = &HospitalSummary{
				HospitalID:   row.HospitalID,
				HospitalName: name,
				HospitalCode: row.HospitalCode,
				Summary:      newSummary(),
			}
			byHospital[row.HospitalID] = hs
		}
		hs.Summary.TotalAmount += cost
		hs.Summary.TotalDiagnoses++
		hs.Summary.DiagnosisCounts[category]++
		hs.Summary.DiagnosisCosts[category] += cost
		hs.Diagnoses = append(hs.Diagnoses, InvoiceLine{
			DiagnosisID: row.ID.String(),
			Title:       row.Title,
			Category:    category,
			PatientID:   row.PatientID,
			Cost:        cost,
			CreatedAt:   row.CreatedAt,
		})
	}

	for _, hs := range byHospital {
		report.Hospitals = append(report.Hospitals, *hs)
	}
	sort.Slice(report.Hospitals, func(i, j int) bool {
		return report.Hospitals[i].HospitalCode < report.Hospitals[j].HospitalCode
	})

	return report, nil
}

// categoryOf applies the same derivation as the diagnosis domain: stored scan
// type first, title heuristic for legacy rows, then the default category.
func categoryOf(row *BilledDiagnosis) string {
	if st := strings.ToUpper(strings.TrimSpace(row.ScanType)); st != "" {
		return st
	}
	return diagnosis.CategoryFromTitle(row.Title)
}

// PercentOf returns part's share of total as a percentage, guarding the
// zero-total case.
func PercentOf(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return part / total * 100
}
