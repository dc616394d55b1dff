package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/curamed/curamed/internal/domain/hospital"
	"github.com/curamed/curamed/internal/platform/notification"
)

type mockInvoiceRepo struct {
	items map[uuid.UUID]*Invoice
}

func newMockInvoiceRepo() *mockInvoiceRepo {
	return &mockInvoiceRepo{items: make(map[uuid.UUID]*Invoice)}
}

func (m *mockInvoiceRepo) Create(_ context.Context, inv *Invoice) error {
	for _, existing := range m.items {
		if existing.HospitalID == inv.HospitalID &&
			existing.PeriodStart.Equal(inv.PeriodStart) &&
			existing.PeriodEnd.Equal(inv.PeriodEnd) &&
			existing.Status != StatusPaid {
			return ErrDuplicateInvoice
		}
	}
	cp := *inv
	m.items[inv.ID] = &cp
	return nil
}

func (m *mockInvoiceRepo) GetByID(_ context.Context, id uuid.UUID) (*Invoice, error) {
	inv, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *mockInvoiceRepo) Update(_ context.Context, inv *Invoice) error {
	stored, ok := m.items[inv.ID]
	if !ok {
		return ErrNotFound
	}
	// Mirrors the persistence contract: only status fields are writable.
	stored.Status = inv.Status
	stored.SentAt = inv.SentAt
	stored.PaidAt = inv.PaidAt
	return nil
}

func (m *mockInvoiceRepo) List(_ context.Context, filter InvoiceFilter, limit, offset int) ([]*Invoice, int, error) {
	var out []*Invoice
	for _, inv := range m.items {
		if filter.HospitalID != nil && inv.HospitalID != *filter.HospitalID {
			continue
		}
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		cp := *inv
		out = append(out, &cp)
	}
	total := len(out)
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (m *mockInvoiceRepo) CountByHospital(_ context.Context, hospitalID uuid.UUID) (int, error) {
	n := 0
	for _, inv := range m.items {
		if inv.HospitalID == hospitalID {
			n++
		}
	}
	return n, nil
}

type mockHospitalSource struct {
	items map[uuid.UUID]*hospital.Hospital
}

func (m *mockHospitalSource) Get(_ context.Context, id uuid.UUID) (*hospital.Hospital, error) {
	h, ok := m.items[id]
	if !ok {
		return nil, hospital.ErrNotFound
	}
	return h, nil
}

type sentMail struct {
	TemplateID string
	Recipient  string
	Data       map[string]string
}

type mockNotifier struct {
	sent []sentMail
	fail bool
}

func (m *mockNotifier) SendFromTemplate(_ context.Context, templateID string, data map[string]string, recipient string) (*notification.Notification, error) {
	if m.fail {
		return nil, errors.New("smtp unavailable")
	}
	m.sent = append(m.sent, sentMail{TemplateID: templateID, Recipient: recipient, Data: data})
	return &notification.Notification{}, nil
}

type billingFixture struct {
	svc      *Service
	repo     *mockInvoiceRepo
	source   *mockSource
	notifier *mockNotifier
	hospID   uuid.UUID
}

func newBillingFixture() *billingFixture {
	hospID := uuid.New()
	hospitals := &mockHospitalSource{items: map[uuid.UUID]*hospital.Hospital{
		hospID: {
			ID:           hospID,
			Name:         "General Hospital",
			Code:         "HSP-00001",
			Address:      "1 Care Way",
			ContactEmail: "billing@general.example.org",
		},
	}}
	repo := newMockInvoiceRepo()
	source := &mockSource{}
	notifier := &mockNotifier{}
	svc := NewService(repo, NewAggregator(source, nil), hospitals, notifier, 30*24*time.Hour, zerolog.Nop())
	// Pin the clock shortly after the billing period so overdue assertions do
	// not depend on when the suite runs.
	svc.now = func() time.Time { return fixedNow }
	return &billingFixture{svc: svc, repo: repo, source: source, notifier: notifier, hospID: hospID}
}

func (f *billingFixture) seedDiagnoses() {
	created := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		f.source.rows = append(f.source.rows, billedRow(f.hospID, "General Hospital", "HSP-00001", "CT", created))
	}
	for i := 0; i < 2; i++ {
		f.source.rows = append(f.source.rows, billedRow(f.hospID, "General Hospital", "HSP-00001", "MRI", created))
	}
}

var (
	periodStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC)
	fixedNow    = time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
)

func TestService_GenerateInvoice(t *testing.T) {
	f := newBillingFixture()
	f.seedDiagnoses()

	inv, err := f.svc.GenerateInvoice(context.Background(), f.hospID, periodStart, periodEnd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.Number != "HSP-00001-202601-001" {
		t.Errorf("number = %q, want HSP-00001-202601-001", inv.Number)
	}
	if inv.Status != StatusPending {
		t.Errorf("status = %q, want pending", inv.Status)
	}
	if inv.TotalAmount != 70000 {
		t.Errorf("total = %v, want 70000", inv.TotalAmount)
	}
	if len(inv.Details.Diagnoses) != 5 {
		t.Errorf("snapshot lines = %d, want 5", len(inv.Details.Diagnoses))
	}
	if inv.Details.BillTo.HospitalName != "General Hospital" || inv.Details.BillTo.HospitalCode != "HSP-00001" {
		t.Errorf("bill-to = %+v", inv.Details.BillTo)
	}
	if inv.Details.DiagnosisCounts["CT"] != 3 || inv.Details.DiagnosisCosts["MRI"] != 40000 {
		t.Errorf("snapshot aggregates: counts=%v costs=%v", inv.Details.DiagnosisCounts, inv.Details.DiagnosisCosts)
	}
	if inv.Overdue {
		t.Error("freshly generated invoice reported overdue")
	}
	if len(f.notifier.sent) != 0 {
		t.Errorf("generation sent %d emails, want 0", len(f.notifier.sent))
	}
}

func TestService_GenerateInvoice_SequenceIncrements(t *testing.T) {
	f := newBillingFixture()
	f.seedDiagnoses()

	if _, err := f.svc.GenerateInvoice(context.Background(), f.hospID, periodStart, periodEnd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	feb := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	inv, err := f.svc.GenerateInvoice(context.Background(), f.hospID, feb, feb.AddDate(0, 1, -1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.Number != "HSP-00001-202602-002" {
		t.Errorf("second invoice number = %q, want HSP-00001-202602-002", inv.Number)
	}
}

func TestService_GenerateInvoice_Duplicate(t *testing.T) {
	f := newBillingFixture()
	f.seedDiagnoses()

	if _, err := f.svc.GenerateInvoice(context.Background(), f.hospID, periodStart, periodEnd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := f.svc.GenerateInvoice(context.Background(), f.hospID, periodStart, periodEnd)
	if !errors.Is(err, ErrDuplicateInvoice) {
		t.Errorf("err = %v, want ErrDuplicateInvoice", err)
	}
}

func TestService_GenerateInvoice_InvalidPeriod(t *testing.T) {
	f := newBillingFixture()
	_, err := f.svc.GenerateInvoice(context.Background(), f.hospID, periodEnd, periodStart)
	if !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("err = %v, want ErrInvalidPeriod", err)
	}
}

func TestService_GenerateInvoice_UnknownHospital(t *testing.T) {
	f := newBillingFixture()
	_, err := f.svc.GenerateInvoice(context.Background(), uuid.New(), periodStart, periodEnd)
	if !errors.Is(err, hospital.ErrNotFound) {
		t.Errorf("err = %v, want hospital.ErrNotFound", err)
	}
}

func TestService_SnapshotSurvivesNewDiagnoses(t *testing.T) {
	f := newBillingFixture()
	f.seedDiagnoses()

	inv, err := f.svc.GenerateInvoice(context.Background(), f.hospID, periodStart, periodEnd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Backdated diagnoses landing after generation must not alter the invoice.
	f.source.rows = append(f.source.rows,
		billedRow(f.hospID, "General Hospital", "HSP-00001", "CT", periodStart.Add(time.Hour)))

	got, err := f.svc.Get(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TotalAmount != 70000 || len(got.Details.Diagnoses) != 5 {
		t.Errorf("snapshot changed: total=%v lines=%d", got.TotalAmount, len(got.Details.Diagnoses))
	}
}

func TestService_MarkSentSendsEmail(t *testing.T) {
	f := newBillingFixture()
	f.seedDiagnoses()

	inv, err := f.svc.GenerateInvoice(context.Background(), f.hospID, periodStart, periodEnd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent, err := f.svc.MarkSent(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent.Status != StatusSent || sent.SentAt == nil {
		t.Errorf("status = %q sent_at = %v", sent.Status, sent.SentAt)
	}
	if len(f.notifier.sent) != 1 {
		t.Fatalf("emails sent = %d, want 1", len(f.notifier.sent))
	}
	mail := f.notifier.sent[0]
	if mail.TemplateID != "invoice-issued" {
		t.Errorf("template = %q, want invoice-issued", mail.TemplateID)
	}
	if mail.Recipient != "billing@general.example.org" {
		t.Errorf("recipient = %q", mail.Recipient)
	}
	if mail.Data["invoice_number"] != inv.Number {
		t.Errorf("mailed invoice number = %q, want %q", mail.Data["invoice_number"], inv.Number)
	}
}

func TestService_MarkSentWithoutContactEmail(t *testing.T) {
	f := newBillingFixture()
	f.seedDiagnoses()

	hospitals := f.svc.hospitals.(*mockHospitalSource)
	hospitals.items[f.hospID].ContactEmail = ""

	inv, err := f.svc.GenerateInvoice(context.Background(), f.hospID, periodStart, periodEnd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.MarkSent(context.Background(), inv.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.notifier.sent) != 0 {
		t.Errorf("email sent despite missing contact: %v", f.notifier.sent)
	}
}

func TestService_MarkSentSurvivesMailFailure(t *testing.T) {
	f := newBillingFixture()
	f.seedDiagnoses()
	f.notifier.fail = true

	inv, err := f.svc.GenerateInvoice(context.Background(), f.hospID, periodStart, periodEnd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sent, err := f.svc.MarkSent(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("mail failure surfaced: %v", err)
	}
	if sent.Status != StatusSent {
		t.Errorf("status = %q, want sent", sent.Status)
	}
}

func TestService_UpdateStatus_PaidIsTerminal(t *testing.T) {
	f := newBillingFixture()
	f.seedDiagnoses()

	inv, err := f.svc.GenerateInvoice(context.Background(), f.hospID, periodStart, periodEnd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	paid, err := f.svc.UpdateStatus(context.Background(), inv.ID, StatusPaid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if paid.PaidAt == nil {
		t.Error("paid_at not set")
	}
	if _, err := f.svc.UpdateStatus(context.Background(), inv.ID, StatusSent); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
	// Paying directly skips the notification.
	if len(f.notifier.sent) != 0 {
		t.Errorf("emails sent = %d, want 0", len(f.notifier.sent))
	}
}

func TestService_OverdueDerivedAtRead(t *testing.T) {
	f := newBillingFixture()
	f.seedDiagnoses()

	oldStart := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	oldEnd := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	inv, err := f.svc.GenerateInvoice(context.Background(), f.hospID, oldStart, oldEnd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := f.svc.Get(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Overdue {
		t.Error("year-old pending invoice not reported overdue")
	}
	if got.Status != StatusPending {
		t.Errorf("stored status mutated to %q", got.Status)
	}

	if _, err := f.svc.UpdateStatus(context.Background(), inv.ID, StatusPaid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err = f.svc.Get(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Overdue {
		t.Error("paid invoice reported overdue")
	}
}

func TestService_OverdueFollowsClock(t *testing.T) {
	f := newBillingFixture()
	f.seedDiagnoses()

	inv, err := f.svc.GenerateInvoice(context.Background(), f.hospID, periodStart, periodEnd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.Overdue {
		t.Fatal("invoice overdue 10 days after its period")
	}

	f.svc.now = func() time.Time { return periodEnd.Add(31 * 24 * time.Hour) }
	got, err := f.svc.Get(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Overdue {
		t.Error("invoice not overdue 31 days after its period")
	}
}

func TestService_ListFilters(t *testing.T) {
	f := newBillingFixture()
	f.seedDiagnoses()

	inv, err := f.svc.GenerateInvoice(context.Background(), f.hospID, periodStart, periodEnd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.MarkSent(context.Background(), inv.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	views, total, err := f.svc.List(context.Background(), InvoiceFilter{Status: StatusSent}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(views) != 1 {
		t.Fatalf("total = %d len = %d, want 1/1", total, len(views))
	}

	_, total, err = f.svc.List(context.Background(), InvoiceFilter{Status: StatusPaid}, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 0 {
		t.Errorf("paid total = %d, want 0", total)
	}
}
