package hospital

import (
	"context"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

var codePattern = regexp.MustCompile(`^HSP-\d{5}$`)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create registers a hospital. When no code is supplied one is generated from
// the current hospital count.
func (s *Service) Create(ctx context.Context, h *Hospital) error {
	if h.Name == "" {
		return fmt.Errorf("name is required")
	}
	if h.Code == "" {
		n, err := s.repo.Count(ctx)
		if err != nil {
			return err
		}
		h.Code = FormatCode(n + 1)
	} else if !codePattern.MatchString(h.Code) {
		return fmt.Errorf("invalid hospital code format: %s", h.Code)
	}
	return s.repo.Create(ctx, h)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByCode(ctx context.Context, code string) (*Hospital, error) {
	return s.repo.GetByCode(ctx, code)
}

// Update modifies name, address, and contact email. The code is immutable
// once assigned since invoice numbers embed it.
func (s *Service) Update(ctx context.Context, id uuid.UUID, name, address, contactEmail string) (*Hospital, error) {
	h, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if name != "" {
		h.Name = name
	}
	if address != "" {
		h.Address = address
	}
	if contactEmail != "" {
		h.ContactEmail = contactEmail
	}
	if err := s.repo.Update(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// Delete removes a hospital unless accounts or diagnoses still reference it.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := s.repo.CountReferences(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: %d dependent records", ErrHasReferences, n)
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, search string, limit, offset int) ([]*Hospital, int, error) {
	return s.repo.List(ctx, search, limit, offset)
}
