package billing

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when an invoice does not exist.
	ErrNotFound = errors.New("invoice not found")
	// ErrInvalidPeriod is returned when a billing period starts after it ends.
	ErrInvalidPeriod = errors.New("period start is after period end")
	// ErrInvalidTransition is returned on a disallowed invoice status change.
	ErrInvalidTransition = errors.New("invalid invoice status transition")
	// ErrDuplicateInvoice is returned when an open invoice already covers the
	// hospital and period.
	ErrDuplicateInvoice = errors.New("an open invoice already exists for this hospital and period")
)

// Invoice statuses. Overdue is derived at read time, never stored.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusPaid    = "paid"
)

// Invoice maps to the invoices table. The details snapshot is immutable after
// generation; only status and its timestamps change.
type Invoice struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	Number      string         `db:"number" json:"number"`
	HospitalID  uuid.UUID      `db:"hospital_id" json:"hospital_id"`
	PeriodStart time.Time      `db:"period_start" json:"period_start"`
	PeriodEnd   time.Time      `db:"period_end" json:"period_end"`
	TotalAmount float64        `db:"total_amount" json:"total_amount"`
	Status      string         `db:"status" json:"status"`
	Details     InvoiceDetails `db:"details" json:"details"`
	GeneratedAt time.Time      `db:"generated_at" json:"generated_at"`
	SentAt      *time.Time     `db:"sent_at" json:"sent_at,omitempty"`
	PaidAt      *time.Time     `db:"paid_at" json:"paid_at,omitempty"`
}

// InvoiceDetails is the point-in-time billing snapshot captured at generation.
type InvoiceDetails struct {
	BillTo          BillTo             `json:"bill_to"`
	Diagnoses       []InvoiceLine      `json:"diagnoses"`
	DiagnosisCounts map[string]int     `json:"diagnosis_counts"`
	DiagnosisCosts  map[string]float64 `json:"diagnosis_costs"`
	Notes           string             `json:"notes,omitempty"`
}

// BillTo is the recipient block rendered on the invoice.
type BillTo struct {
	HospitalName string `json:"hospital_name"`
	HospitalCode string `json:"hospital_code"`
	Address      string `json:"address,omitempty"`
}

// InvoiceLine is one billed diagnosis in the snapshot.
type InvoiceLine struct {
	DiagnosisID string    `json:"diagnosis_id"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	PatientID   string    `json:"patient_id"`
	Cost        float64   `json:"cost"`
	CreatedAt   time.Time `json:"created_at"`
}

var transitions = map[string]map[string]bool{
	StatusPending: {StatusSent: true, StatusPaid: true},
	StatusSent:    {StatusPaid: true},
	StatusPaid:    {},
}

// CanTransition reports whether the invoice may move to the target status.
// Paid is terminal and nothing reverts to pending.
func (inv *Invoice) CanTransition(target string) bool {
	allowed, ok := transitions[inv.Status]
	return ok && allowed[target]
}

// Transition applies a status change with its timestamp side effects.
func (inv *Invoice) Transition(target string, at time.Time) error {
	if !inv.CanTransition(target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, inv.Status, target)
	}
	inv.Status = target
	switch target {
	case StatusSent:
		inv.SentAt = &at
	case StatusPaid:
		inv.PaidAt = &at
	}
	return nil
}

// Overdue reports whether an unpaid invoice's period ended more than the
// threshold before now.
func (inv *Invoice) Overdue(now time.Time, threshold time.Duration) bool {
	if inv.Status != StatusPending && inv.Status != StatusSent {
		return false
	}
	return now.Sub(inv.PeriodEnd) > threshold
}

// FormatNumber renders the deterministic invoice number, e.g.
// FormatNumber("HSP-00001", period, 1) == "HSP-00001-202601-001".
func FormatNumber(hospitalCode string, periodStart time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%03d", hospitalCode, periodStart.Format("200601"), seq)
}
