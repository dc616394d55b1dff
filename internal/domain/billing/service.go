package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/curamed/curamed/internal/domain/hospital"
	"github.com/curamed/curamed/internal/platform/notification"
)

// DefaultOverdueThreshold applies when no threshold is configured.
const DefaultOverdueThreshold = 30 * 24 * time.Hour

// HospitalSource supplies hospital metadata for invoice snapshots.
// Satisfied by hospital.Service.
type HospitalSource interface {
	Get(ctx context.Context, id uuid.UUID) (*hospital.Hospital, error)
}

type Notifier interface {
	SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*notification.Notification, error)
}

type Service struct {
	invoices   InvoiceRepository
	aggregator *Aggregator
	hospitals  HospitalSource
	notifier   Notifier
	overdue    time.Duration
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(invoices InvoiceRepository, agg *Aggregator, hospitals HospitalSource, notifier Notifier, overdueThreshold time.Duration, logger zerolog.Logger) *Service {
	if overdueThreshold <= 0 {
		overdueThreshold = DefaultOverdueThreshold
	}
	return &Service{
		invoices:   invoices,
		aggregator: agg,
		hospitals:  hospitals,
		notifier:   notifier,
		overdue:    overdueThreshold,
		logger:     logger.With().Str("component", "billing").Logger(),
		now:        time.Now,
	}
}

// Aggregate produces a billing report without persisting anything.
func (s *Service) Aggregate(ctx context.Context, params AggregateParams) (*Report, error) {
	return s.aggregator.Aggregate(ctx, params)
}

// InvoiceView pairs an invoice with its derived overdue flag. The flag is
// computed at read time and never stored.
type InvoiceView struct {
	*Invoice
	Overdue bool `json:"overdue"`
}

func (s *Service) view(inv *Invoice) *InvoiceView {
	return &InvoiceView{Invoice: inv, Overdue: inv.Overdue(s.now(), s.overdue)}
}

// GenerateInvoice aggregates the hospital's diagnoses over the period and
// persists a pending invoice carrying a full cost snapshot. The snapshot is
// frozen at generation time; later diagnosis or price changes do not affect it.
func (s *Service) GenerateInvoice(ctx context.Context, hospitalID uuid.UUID, start, end time.Time) (*InvoiceView, error) {
	if start.After(end) {
		return nil, fmt.Errorf("%w: start %s is after end %s", ErrInvalidPeriod, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	hosp, err := s.hospitals.Get(ctx, hospitalID)
	if err != nil {
		return nil, fmt.Errorf("resolve hospital: %w", err)
	}

	report, err := s.aggregator.Aggregate(ctx, AggregateParams{HospitalID: &hospitalID, Start: start, End: end})
	if err != nil {
		return nil, err
	}

	seq, err := s.invoices.CountByHospital(ctx, hospitalID)
	if err != nil {
		return nil, err
	}

	lines := []InvoiceLine{}
	if len(report.Hospitals) > 0 {
		lines = report.Hospitals[0].Diagnoses
	}
	inv := &Invoice{
		ID:          uuid.New(),
		Number:      FormatNumber(hosp.Code, start, seq+1),
		HospitalID:  hospitalID,
		PeriodStart: start,
		PeriodEnd:   end,
		TotalAmount: report.Overall.TotalAmount,
		Status:      StatusPending,
		GeneratedAt: s.now().UTC(),
		Details: InvoiceDetails{
			BillTo: BillTo{
				HospitalName: hosp.Name,
				HospitalCode: hosp.Code,
				Address:      hosp.Address,
			},
			Diagnoses:       lines,
			DiagnosisCounts: report.Overall.DiagnosisCounts,
			DiagnosisCosts:  report.Overall.DiagnosisCosts,
		},
	}

	if err := s.invoices.Create(ctx, inv); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("invoice_number", inv.Number).
		Str("hospital_code", hosp.Code).
		Float64("total", inv.TotalAmount).
		Msg("invoice generated")
	return s.view(inv), nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*InvoiceView, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(inv), nil
}

func (s *Service) List(ctx context.Context, filter InvoiceFilter, limit, offset int) ([]*InvoiceView, int, error) {
	invs, total, err := s.invoices.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	views := make([]*InvoiceView, 0, len(invs))
	for _, inv := range invs {
		views = append(views, s.view(inv))
	}
	return views, total, nil
}

// UpdateStatus advances an invoice through the pending -> sent -> paid
// lifecycle. Moving to sent emails the hospital's billing contact when one is
// on file; delivery failures are logged, never surfaced.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, target string) (*InvoiceView, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := inv.Transition(target, s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.invoices.Update(ctx, inv); err != nil {
		return nil, err
	}
	if target == StatusSent {
		s.notifyIssued(ctx, inv)
	}
	return s.view(inv), nil
}

// MarkSent is a convenience wrapper for the send endpoint.
func (s *Service) MarkSent(ctx context.Context, id uuid.UUID) (*InvoiceView, error) {
	return s.UpdateStatus(ctx, id, StatusSent)
}

func (s *Service) notifyIssued(ctx context.Context, inv *Invoice) {
	if s.notifier == nil {
		return
	}
	hosp, err := s.hospitals.Get(ctx, inv.HospitalID)
	if err != nil {
		s.logger.Warn().Err(err).Str("invoice_number", inv.Number).Msg("resolve hospital for invoice notification")
		return
	}
	if hosp.ContactEmail == "" {
		s.logger.Info().Str("invoice_number", inv.Number).Msg("hospital has no billing contact, skipping invoice email")
		return
	}
	data := map[string]string{
		"invoice_number": inv.Number,
		"hospital_name":  hosp.Name,
		"period_start":   inv.PeriodStart.Format("2006-01-02"),
		"period_end":     inv.PeriodEnd.Format("2006-01-02"),
		"total_amount":   fmt.Sprintf("%.2f", inv.TotalAmount),
		"due_date":       inv.PeriodEnd.Add(s.overdue).Format("2006-01-02"),
	}
	if _, err := s.notifier.SendFromTemplate(ctx, "invoice-issued", data, hosp.ContactEmail); err != nil {
		s.logger.Warn().Err(err).Str("invoice_number", inv.Number).Msg("send invoice email")
	}
}
