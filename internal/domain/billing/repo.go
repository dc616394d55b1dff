package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BilledDiagnosis is the projection of a diagnosis the aggregator consumes:
// the row itself plus the hospital metadata needed for grouping.
type BilledDiagnosis struct {
	ID           uuid.UUID
	Title        string
	PatientID    string
	ScanType     string
	HospitalID   uuid.UUID
	HospitalName string
	HospitalCode string
	CreatedAt    time.Time
}

// DiagnosisSource feeds the aggregator. ListForBilling returns diagnoses in
// [start, end], optionally scoped to one hospital, joined with hospital
// metadata.
type DiagnosisSource interface {
	ListForBilling(ctx context.Context, hospitalID *uuid.UUID, start, end time.Time) ([]*BilledDiagnosis, error)
}

// InvoiceFilter narrows invoice listings.
type InvoiceFilter struct {
	HospitalID *uuid.UUID
	Status     string
}

type InvoiceRepository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	Update(ctx context.Context, inv *Invoice) error
	List(ctx context.Context, filter InvoiceFilter, limit, offset int) ([]*Invoice, int, error)
	CountByHospital(ctx context.Context, hospitalID uuid.UUID) (int, error)
}
