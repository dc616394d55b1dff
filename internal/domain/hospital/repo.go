package hospital

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, h *Hospital) error
	GetByID(ctx context.Context, id uuid.UUID) (*Hospital, error)
	GetByCode(ctx context.Context, code string) (*Hospital, error)
	Update(ctx context.Context, h *Hospital) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, search string, limit, offset int) ([]*Hospital, int, error)
	Count(ctx context.Context) (int, error)
	// CountReferences reports how many accounts and diagnoses still point at
	// the hospital. Deletion is blocked while it is non-zero.
	CountReferences(ctx context.Context, id uuid.UUID) (int, error)
}
