package support

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows ticket listings.
type ListFilter struct {
	Status     string
	Priority   string
	HospitalID *uuid.UUID
	AccountID  *uuid.UUID
	Search     string
}

type Repository interface {
	Create(ctx context.Context, t *Ticket) error
	GetByID(ctx context.Context, id uuid.UUID) (*Ticket, error)
	Update(ctx context.Context, t *Ticket) error
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Ticket, int, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}
