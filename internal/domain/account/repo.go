package account

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows List results.
type ListFilter struct {
	Search     string
	HospitalID *uuid.UUID
}

type Repository interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	Update(ctx context.Context, a *Account) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Account, int, error)
	// CountReferences reports how many diagnoses the account authored.
	CountReferences(ctx context.Context, id uuid.UUID) (int, error)
}
