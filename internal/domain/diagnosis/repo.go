package diagnosis

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows List results.
type ListFilter struct {
	HospitalID *uuid.UUID
	PatientID  string
	From       *time.Time
	To         *time.Time
}

type Repository interface {
	Create(ctx context.Context, d *Diagnosis) error
	GetByID(ctx context.Context, id uuid.UUID) (*Diagnosis, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Diagnosis, int, error)
}
