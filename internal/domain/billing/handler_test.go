package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *billingFixture) {
	f := newBillingFixture()
	return NewHandler(f.svc), f
}

func TestHandler_Aggregate(t *testing.T) {
	h, f := newTestHandler()
	f.seedDiagnoses()
	e := echo.New()

	payload := `{"start":"2026-01-01","end":"2026-01-31"}`
	req := httptest.NewRequest(http.MethodPost, "/admin/billing/aggregate", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Aggregate(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var report Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if report.Overall.TotalDiagnoses != 5 || report.Overall.TotalAmount != 70000 {
		t.Errorf("overall = %+v", report.Overall)
	}
}

func TestHandler_AggregateBadDates(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()

	payload := `{"start":"January 1","end":"2026-01-31"}`
	req := httptest.NewRequest(http.MethodPost, "/admin/billing/aggregate", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Aggregate(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400", err)
	}
}

func TestHandler_GenerateInvoice(t *testing.T) {
	h, f := newTestHandler()
	f.seedDiagnoses()
	e := echo.New()

	payload := fmt.Sprintf(`{"hospital_id":%q,"start":"2026-01-01","end":"2026-01-31"}`, f.hospID)
	req := httptest.NewRequest(http.MethodPost, "/admin/invoices", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.GenerateInvoice(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}

	var inv InvoiceView
	if err := json.Unmarshal(rec.Body.Bytes(), &inv); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if inv.Number != "HSP-00001-202601-001" {
		t.Errorf("number = %q", inv.Number)
	}
	if inv.Overdue {
		t.Error("new invoice reported overdue")
	}
}

func TestHandler_GenerateInvoiceDuplicate(t *testing.T) {
	h, f := newTestHandler()
	f.seedDiagnoses()
	e := echo.New()

	payload := fmt.Sprintf(`{"hospital_id":%q,"start":"2026-01-01","end":"2026-01-31"}`, f.hospID)
	for i, wantCode := range []int{http.StatusCreated, http.StatusConflict} {
		req := httptest.NewRequest(http.MethodPost, "/admin/invoices", strings.NewReader(payload))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := h.GenerateInvoice(c)
		if wantCode == http.StatusCreated {
			if err != nil {
				t.Fatalf("attempt %d: unexpected error: %v", i, err)
			}
			continue
		}
		var he *echo.HTTPError
		if !errors.As(err, &he) || he.Code != wantCode {
			t.Fatalf("attempt %d: err = %v, want %d", i, err, wantCode)
		}
	}
}

func TestHandler_GenerateInvoiceMissingHospital(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()

	payload := `{"start":"2026-01-01","end":"2026-01-31"}`
	req := httptest.NewRequest(http.MethodPost, "/admin/invoices", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.GenerateInvoice(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400", err)
	}
}

func TestHandler_GenerateInvoiceUnknownHospital(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()

	payload := fmt.Sprintf(`{"hospital_id":%q,"start":"2026-01-01","end":"2026-01-31"}`, uuid.New())
	req := httptest.NewRequest(http.MethodPost, "/admin/invoices", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.GenerateInvoice(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusNotFound {
		t.Fatalf("err = %v, want 404", err)
	}
}

func seedInvoice(t *testing.T, f *billingFixture) *InvoiceView {
	t.Helper()
	f.seedDiagnoses()
	inv, err := f.svc.GenerateInvoice(context.Background(), f.hospID, periodStart, periodEnd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return inv
}

func TestHandler_UpdateStatus(t *testing.T) {
	h, f := newTestHandler()
	inv := seedInvoice(t, f)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"sent"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/admin/invoices/:id/status")
	c.SetParamNames("id")
	c.SetParamValues(inv.ID.String())

	if err := h.UpdateStatus(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var updated InvoiceView
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if updated.Status != StatusSent {
		t.Errorf("status = %q, want sent", updated.Status)
	}
	if len(f.notifier.sent) != 1 {
		t.Errorf("emails sent = %d, want 1", len(f.notifier.sent))
	}
}

func TestHandler_UpdateStatusUnknownValue(t *testing.T) {
	h, f := newTestHandler()
	inv := seedInvoice(t, f)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"void"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/admin/invoices/:id/status")
	c.SetParamNames("id")
	c.SetParamValues(inv.ID.String())

	err := h.UpdateStatus(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400", err)
	}
}

func TestHandler_UpdateStatusInvalidTransition(t *testing.T) {
	h, f := newTestHandler()
	inv := seedInvoice(t, f)
	if _, err := f.svc.UpdateStatus(context.Background(), inv.ID, StatusPaid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e := echo.New()

	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"sent"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/admin/invoices/:id/status")
	c.SetParamNames("id")
	c.SetParamValues(inv.ID.String())

	err := h.UpdateStatus(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusConflict {
		t.Fatalf("err = %v, want 409", err)
	}
}

func TestHandler_SendInvoice(t *testing.T) {
	h, f := newTestHandler()
	inv := seedInvoice(t, f)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/admin/invoices/:id/send")
	c.SetParamNames("id")
	c.SetParamValues(inv.ID.String())

	if err := h.SendInvoice(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].TemplateID != "invoice-issued" {
		t.Errorf("notifications = %+v", f.notifier.sent)
	}
}

func TestHandler_GetInvoiceNotFound(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/admin/invoices/:id")
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())

	err := h.GetInvoice(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusNotFound {
		t.Fatalf("err = %v, want 404", err)
	}
}

func TestHandler_ListInvoices(t *testing.T) {
	h, f := newTestHandler()
	seedInvoice(t, f)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/?hospital_id="+f.hospID.String(), nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/admin/invoices")

	if err := h.ListInvoices(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Invoices []InvoiceView `json:"invoices"`
		Total    int           `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if resp.Total != 1 || len(resp.Invoices) != 1 {
		t.Errorf("total = %d len = %d, want 1/1", resp.Total, len(resp.Invoices))
	}
}

func TestHandler_InvoicePDF(t *testing.T) {
	h, f := newTestHandler()
	inv := seedInvoice(t, f)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/admin/invoices/:id/pdf")
	c.SetParamNames("id")
	c.SetParamValues(inv.ID.String())

	if err := h.InvoicePDF(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "application/pdf" {
		t.Errorf("content type = %q", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "%PDF-") {
		t.Error("body is not a pdf")
	}
}
