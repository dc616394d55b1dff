package reporting

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestPredefinedMeasures(t *testing.T) {
	expectedIDs := []string{
		"diagnosis-volume",
		"diagnoses-by-category",
		"hospital-count",
		"account-count",
		"ticket-backlog",
		"invoice-status-summary",
	}
	if len(PredefinedMeasures) != len(expectedIDs) {
		t.Fatalf("expected %d predefined measures, got %d", len(expectedIDs), len(PredefinedMeasures))
	}
	for i, id := range expectedIDs {
		if PredefinedMeasures[i].ID != id {
			t.Errorf("measure[%d].ID = %s, want %s", i, PredefinedMeasures[i].ID, id)
		}
	}
}

func TestPredefinedMeasures_Complete(t *testing.T) {
	for _, m := range PredefinedMeasures {
		if m.SQL == "" {
			t.Errorf("measure %s has empty SQL", m.ID)
		}
		if m.Name == "" {
			t.Errorf("measure %s has empty name", m.ID)
		}
		if m.Description == "" {
			t.Errorf("measure %s has empty description", m.ID)
		}
	}
}

func TestFindMeasure(t *testing.T) {
	m := FindMeasure("ticket-backlog")
	if m == nil {
		t.Fatal("expected to find ticket-backlog measure")
	}
	if m.Name != "Support Ticket Backlog" {
		t.Errorf("name = %q", m.Name)
	}
	if FindMeasure("nonexistent") != nil {
		t.Error("expected nil for nonexistent measure")
	}
}

func TestService_EvaluateUnknownMeasure(t *testing.T) {
	svc := NewService(nil)
	_, err := svc.Evaluate(context.Background(), "nonexistent")
	if !errors.Is(err, ErrUnknownMeasure) {
		t.Errorf("err = %v, want ErrUnknownMeasure", err)
	}
}

func TestHandler_ListMeasures(t *testing.T) {
	h := NewHandler(NewService(nil), zerolog.Nop())
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/admin/reports/measures", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListMeasures(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestHandler_EvaluateUnknownMeasure(t *testing.T) {
	h := NewHandler(NewService(nil), zerolog.Nop())
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/admin/reports/measures/:id/evaluate")
	c.SetParamNames("id")
	c.SetParamValues("nonexistent")

	err := h.EvaluateMeasure(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusNotFound {
		t.Fatalf("err = %v, want 404", err)
	}
}
