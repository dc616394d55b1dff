package diagnosis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/curamed/curamed/internal/platform/auth"
)

func newTestHandler() (*Handler, *mockRepo) {
	repo := newMockRepo()
	svc := NewService(repo, &mockAnalyzer{}, &mockBlobDeleter{fail: map[string]error{}}, zerolog.Nop())
	return NewHandler(svc), repo
}

func authed(req *http.Request, userID uuid.UUID) *http.Request {
	ctx := context.WithValue(req.Context(), auth.UserIDKey, userID.String())
	return req.WithContext(ctx)
}

func TestHandler_Create(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()

	hospitalID := uuid.New()
	payload := `{"title":"CT head","patient_id":"MRN-1","hospital_id":"` + hospitalID.String() + `","patient_meta":{"scan_type":"CT","age":40}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/diagnoses", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = authed(req, uuid.New())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}

	var d Diagnosis
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if d.Analysis == nil {
		t.Error("expected analysis payload on created diagnosis")
	}
	if d.HospitalID != hospitalID {
		t.Errorf("hospital_id = %s, want %s", d.HospitalID, hospitalID)
	}
}

func TestHandler_CreateMissingIdentity(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()

	payload := `{"title":"CT head","patient_id":"MRN-1","hospital_id":"` + uuid.NewString() + `","patient_meta":{"scan_type":"CT"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/diagnoses", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Create(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", httpErr.Code, http.StatusUnauthorized)
	}
}

func TestHandler_CreateMissingScanType(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()

	payload := `{"title":"CT head","patient_id":"MRN-1","hospital_id":"` + uuid.NewString() + `","patient_meta":{"age":30}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/diagnoses", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = authed(req, uuid.New())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Create(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", httpErr.Code, http.StatusBadRequest)
	}
}

func TestHandler_GetNotFound(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/diagnoses/"+id, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/diagnoses/:id")
	c.SetParamNames("id")
	c.SetParamValues(id)

	err := h.Get(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", httpErr.Code, http.StatusNotFound)
	}
}

func TestHandler_ListInvalidDate(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/diagnoses?from=01-02-2026", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.List(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", httpErr.Code, http.StatusBadRequest)
	}
}

func TestHandler_ListEmpty(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/diagnoses", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var body struct {
		Diagnoses []Diagnosis `json:"diagnoses"`
		Total     int         `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if body.Total != 0 || body.Diagnoses == nil {
		t.Errorf("expected empty non-null diagnoses array, got %+v", body)
	}
}

func TestHandler_Delete(t *testing.T) {
	h, repo := newTestHandler()
	e := echo.New()

	d := &Diagnosis{Title: "CT head", PatientID: "MRN-2", HospitalID: uuid.New(), AuthorID: uuid.New()}
	if err := repo.Create(context.Background(), d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/diagnoses/"+d.ID.String(), nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/admin/diagnoses/:id")
	c.SetParamNames("id")
	c.SetParamValues(d.ID.String())

	if err := h.Delete(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}
