package diagnosis

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/curamed/curamed/internal/platform/analysis"
)

// BlobDeleter is the slice of the blob store the service needs for cascade
// deletion of diagnosis images.
type BlobDeleter interface {
	Delete(ctx context.Context, id string) error
}

type Service struct {
	repo     Repository
	analyzer analysis.Analyzer
	blobs    BlobDeleter
	logger   zerolog.Logger
}

func NewService(repo Repository, analyzer analysis.Analyzer, blobs BlobDeleter, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		analyzer: analyzer,
		blobs:    blobs,
		logger:   logger.With().Str("component", "diagnosis").Logger(),
	}
}

// CreateInput carries the fields for diagnosis submission.
type CreateInput struct {
	Title       string      `json:"title"`
	PatientID   string      `json:"patient_id"`
	HospitalID  uuid.UUID   `json:"hospital_id"`
	Notes       string      `json:"notes"`
	Images      []string    `json:"images"`
	PatientMeta PatientMeta `json:"patient_meta"`
}

// Create validates the submission, runs the analyzer, and persists the
// diagnosis. Analyzer failures degrade to a placeholder payload; they never
// block creation.
func (s *Service) Create(ctx context.Context, authorID uuid.UUID, in CreateInput) (*Diagnosis, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if in.PatientID == "" {
		return nil, fmt.Errorf("patient_id is required")
	}
	if in.HospitalID == uuid.Nil {
		return nil, fmt.Errorf("hospital_id is required")
	}
	if authorID == uuid.Nil {
		return nil, fmt.Errorf("author is required")
	}
	if strings.TrimSpace(in.PatientMeta.ScanType) == "" {
		return nil, fmt.Errorf("patient_meta.scan_type is required")
	}

	d := &Diagnosis{
		ID:          uuid.New(),
		Title:       in.Title,
		PatientID:   in.PatientID,
		HospitalID:  in.HospitalID,
		AuthorID:    authorID,
		Notes:       in.Notes,
		Images:      in.Images,
		PatientMeta: in.PatientMeta,
	}
	d.PatientMeta.ScanType = strings.ToUpper(strings.TrimSpace(d.PatientMeta.ScanType))

	d.Analysis = s.analyzer.Analyze(ctx, analysis.Request{
		DiagnosisID: d.ID.String(),
		ScanType:    d.PatientMeta.ScanType,
		Title:       d.Title,
		Notes:       d.Notes,
		ImageIDs:    d.Images,
	})

	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Diagnosis, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Diagnosis, int, error) {
	return s.repo.List(ctx, filter, limit, offset)
}

// Delete removes the diagnosis and its stored images. Blob deletion is
// best-effort: a missing blob does not keep the row alive.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	for _, blobID := range d.Images {
		if err := s.blobs.Delete(ctx, blobID); err != nil {
			s.logger.Warn().
				Err(err).
				Str("diagnosis_id", id.String()).
				Str("blob_id", blobID).
				Msg("failed to delete diagnosis image")
		}
	}

	return s.repo.Delete(ctx, id)
}
