package diagnosis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/curamed/curamed/internal/platform/analysis"
)

// -- Mock Repository --

type mockRepo struct {
	items map[uuid.UUID]*Diagnosis
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Diagnosis)}
}

func (m *mockRepo) Create(_ context.Context, d *Diagnosis) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.CreatedAt = time.Now()
	m.items[d.ID] = d
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Diagnosis, error) {
	d, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, filter ListFilter, limit, offset int) ([]*Diagnosis, int, error) {
	var result []*Diagnosis
	for _, d := range m.items {
		if filter.HospitalID != nil && d.HospitalID != *filter.HospitalID {
			continue
		}
		if filter.PatientID != "" && d.PatientID != filter.PatientID {
			continue
		}
		result = append(result, d)
	}
	return result, len(result), nil
}

// -- Mock Analyzer / Blob Deleter --

type mockAnalyzer struct {
	result *analysis.Result
	calls  int
}

func (m *mockAnalyzer) Analyze(_ context.Context, _ analysis.Request) *analysis.Result {
	m.calls++
	if m.result != nil {
		return m.result
	}
	return analysis.Placeholder()
}

type mockBlobDeleter struct {
	deleted []string
	fail    map[string]error
}

func (m *mockBlobDeleter) Delete(_ context.Context, id string) error {
	if err, ok := m.fail[id]; ok {
		return err
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func newTestService() (*Service, *mockRepo, *mockAnalyzer, *mockBlobDeleter) {
	repo := newMockRepo()
	az := &mockAnalyzer{}
	blobs := &mockBlobDeleter{fail: make(map[string]error)}
	return NewService(repo, az, blobs, zerolog.Nop()), repo, az, blobs
}

func validInput() CreateInput {
	return CreateInput{
		Title:       "CT head without contrast",
		PatientID:   "MRN-1001",
		HospitalID:  uuid.New(),
		Images:      []string{"blob-1", "blob-2"},
		PatientMeta: PatientMeta{Age: 54, Gender: "female", ScanType: "ct"},
	}
}

// -- Service Tests --

func TestService_CreateRunsAnalyzer(t *testing.T) {
	svc, _, az, _ := newTestService()
	az.result = &analysis.Result{Summary: "No acute findings.", ModelVersion: "v1"}

	d, err := svc.Create(context.Background(), uuid.New(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if az.calls != 1 {
		t.Errorf("analyzer calls = %d, want 1", az.calls)
	}
	if d.Analysis == nil || d.Analysis.Summary != "No acute findings." {
		t.Errorf("analysis = %+v", d.Analysis)
	}
	if d.PatientMeta.ScanType != "CT" {
		t.Errorf("scan_type = %q, want normalized CT", d.PatientMeta.ScanType)
	}
}

func TestService_CreatePlaceholderOnAnalyzerFallback(t *testing.T) {
	svc, _, _, _ := newTestService()

	d, err := svc.Create(context.Background(), uuid.New(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Analysis == nil || !d.Analysis.Placeholder {
		t.Errorf("expected placeholder analysis, got %+v", d.Analysis)
	}
}

func TestService_CreateRequiresScanType(t *testing.T) {
	svc, _, _, _ := newTestService()

	in := validInput()
	in.PatientMeta.ScanType = "  "
	if _, err := svc.Create(context.Background(), uuid.New(), in); err == nil {
		t.Fatal("expected error for missing scan_type, got nil")
	}
}

func TestService_CreateRequiredFields(t *testing.T) {
	svc, _, _, _ := newTestService()

	cases := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"missing title", func(in *CreateInput) { in.Title = "" }},
		{"missing patient", func(in *CreateInput) { in.PatientID = "" }},
		{"missing hospital", func(in *CreateInput) { in.HospitalID = uuid.Nil }},
	}
	for _, tc := range cases {
		in := validInput()
		tc.mutate(&in)
		if _, err := svc.Create(context.Background(), uuid.New(), in); err == nil {
			t.Errorf("%s: expected error, got nil", tc.name)
		}
	}
}

func TestService_CreateRequiresAuthor(t *testing.T) {
	svc, _, _, _ := newTestService()
	if _, err := svc.Create(context.Background(), uuid.Nil, validInput()); err == nil {
		t.Fatal("expected error for missing author, got nil")
	}
}

func TestService_DeleteCascadesBlobs(t *testing.T) {
	svc, _, _, blobs := newTestService()

	d, err := svc.Create(context.Background(), uuid.New(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Delete(context.Background(), d.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(blobs.deleted) != 2 {
		t.Errorf("deleted %d blobs, want 2", len(blobs.deleted))
	}
	if _, err := svc.Get(context.Background(), d.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound after delete", err)
	}
}

func TestService_DeleteSurvivesBlobFailure(t *testing.T) {
	svc, _, _, blobs := newTestService()
	blobs.fail["blob-1"] = errors.New("object missing")

	d, err := svc.Create(context.Background(), uuid.New(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Delete(context.Background(), d.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Get(context.Background(), d.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("row survived blob failure: %v", err)
	}
}

// -- Category Tests --

func TestDiagnosis_CategoryPrefersScanType(t *testing.T) {
	d := &Diagnosis{
		Title:       "MRI lumbar spine",
		PatientMeta: PatientMeta{ScanType: "ct"},
	}
	if got := d.Category(); got != "CT" {
		t.Errorf("category = %q, want CT", got)
	}
}

func TestDiagnosis_CategoryLegacyTitleFallback(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"CT head without contrast", "CT"},
		{"Follow-up MRI of the knee", "MRI"},
		{"Chest X-Ray PA view", "XRAY"},
		{"chest x ray", "XRAY"},
		{"Abdominal ultrasound", "ULTRASOUND"},
		{"USG abdomen", "ULTRASOUND"},
		{"Routine checkup", "GENERAL"},
		{"OCTOBER review", "GENERAL"}, // CT must match as a word, not inside OCTOBER
	}
	for _, tc := range cases {
		d := &Diagnosis{Title: tc.title}
		if got := d.Category(); got != tc.want {
			t.Errorf("Category(%q) = %q, want %q", tc.title, got, tc.want)
		}
	}
}
