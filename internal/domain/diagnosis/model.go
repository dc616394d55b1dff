package diagnosis

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/curamed/curamed/internal/platform/analysis"
)

// ErrNotFound is returned when a diagnosis does not exist.
var ErrNotFound = errors.New("diagnosis not found")

// DefaultCategory is the billing category for scans that match nothing else.
const DefaultCategory = "GENERAL"

// PatientMeta is the patient_meta payload stored alongside a diagnosis.
// ScanType is required at creation and drives the billing category.
type PatientMeta struct {
	Age      int    `json:"age,omitempty"`
	Gender   string `json:"gender,omitempty"`
	ScanType string `json:"scan_type"`
}

// Diagnosis maps to the diagnoses table. Rows are immutable after creation
// except for deletion.
type Diagnosis struct {
	ID          uuid.UUID        `db:"id" json:"id"`
	Title       string           `db:"title" json:"title"`
	PatientID   string           `db:"patient_id" json:"patient_id"`
	HospitalID  uuid.UUID        `db:"hospital_id" json:"hospital_id"`
	AuthorID    uuid.UUID        `db:"author_id" json:"author_id"`
	Notes       string           `db:"notes" json:"notes,omitempty"`
	Images      []string         `db:"images" json:"images"`
	Analysis    *analysis.Result `db:"analysis" json:"analysis,omitempty"`
	PatientMeta PatientMeta      `db:"patient_meta" json:"patient_meta"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}

var titleCategoryPatterns = []struct {
	re       *regexp.Regexp
	category string
}{
	{regexp.MustCompile(`(?i)\bCT\b`), "CT"},
	{regexp.MustCompile(`(?i)\bMRI\b`), "MRI"},
	{regexp.MustCompile(`(?i)\bX[\s-]?RAY\b`), "XRAY"},
	{regexp.MustCompile(`(?i)\b(ULTRASOUND|USG)\b`), "ULTRASOUND"},
}

// Category returns the billing category. The stored scan type wins; the title
// heuristic only covers legacy rows written before scan_type was required.
func (d *Diagnosis) Category() string {
	if st := strings.ToUpper(strings.TrimSpace(d.PatientMeta.ScanType)); st != "" {
		return st
	}
	return CategoryFromTitle(d.Title)
}

// CategoryFromTitle derives a billing category from free text.
func CategoryFromTitle(title string) string {
	for _, p := range titleCategoryPatterns {
		if p.re.MatchString(title) {
			return p.category
		}
	}
	return DefaultCategory
}
