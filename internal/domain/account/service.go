package account

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/curamed/curamed/internal/platform/auth"
	"github.com/curamed/curamed/internal/platform/notification"
)

// Notifier is the slice of the notification manager the service uses.
type Notifier interface {
	SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*notification.Notification, error)
}

type Service struct {
	repo     Repository
	notifier Notifier
	logger   zerolog.Logger
}

func NewService(repo Repository, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		logger:   logger.With().Str("component", "account").Logger(),
	}
}

// CreateInput carries the fields for account creation. When Password is empty
// a temporary password is generated and mailed to the new account.
type CreateInput struct {
	FullName   string     `json:"full_name"`
	Email      string     `json:"email"`
	Password   string     `json:"password"`
	HospitalID *uuid.UUID `json:"hospital_id"`
	IsAdmin    bool       `json:"is_admin"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Account, error) {
	if in.FullName == "" {
		return nil, fmt.Errorf("full_name is required")
	}
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return nil, fmt.Errorf("a valid email is required")
	}

	password := in.Password
	generated := false
	if password == "" {
		var err error
		password, err = auth.GenerateTemporaryPassword()
		if err != nil {
			return nil, err
		}
		generated = true
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	a := &Account{
		FullName:     in.FullName,
		Email:        strings.ToLower(in.Email),
		PasswordHash: hash,
		HospitalID:   in.HospitalID,
		IsAdmin:      in.IsAdmin,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	if generated {
		s.notify(ctx, "account-created", a, map[string]string{
			"user_name":          a.FullName,
			"temporary_password": password,
		})
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Account, int, error) {
	return s.repo.List(ctx, filter, limit, offset)
}

// UpdateInput carries the mutable profile fields. Nil pointers leave the
// current value unchanged.
type UpdateInput struct {
	FullName   *string    `json:"full_name"`
	Email      *string    `json:"email"`
	HospitalID *uuid.UUID `json:"hospital_id"`
	IsAdmin    *bool      `json:"is_admin"`
	Verified   *bool      `json:"verified"`
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Account, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.FullName != nil {
		a.FullName = *in.FullName
	}
	if in.Email != nil {
		if !strings.Contains(*in.Email, "@") {
			return nil, fmt.Errorf("a valid email is required")
		}
		a.Email = strings.ToLower(*in.Email)
	}
	if in.HospitalID != nil {
		a.HospitalID = in.HospitalID
	}
	if in.IsAdmin != nil {
		a.IsAdmin = *in.IsAdmin
	}
	if in.Verified != nil {
		a.Verified = *in.Verified
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Disable blocks the account from authenticating. Existing sessions are not
// revoked; the check happens on login.
func (s *Service) Disable(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.setDisabled(ctx, id, true)
}

// Enable re-admits a previously disabled account.
func (s *Service) Enable(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.setDisabled(ctx, id, false)
}

func (s *Service) setDisabled(ctx context.Context, id uuid.UUID, disabled bool) (*Account, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Disabled = disabled
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// ResetPassword replaces the password with a generated temporary one and
// mails it to the account.
func (s *Service) ResetPassword(ctx context.Context, id uuid.UUID) (*Account, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	password, err := auth.GenerateTemporaryPassword()
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	a.PasswordHash = hash
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}

	s.notify(ctx, "password-reset", a, map[string]string{
		"user_name":          a.FullName,
		"temporary_password": password,
	})
	return a, nil
}

// Delete removes an account unless diagnoses still reference it.
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

// Authenticate verifies the credentials and records the login time. Disabled
// accounts are rejected before the password check.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	a, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if a.Disabled {
		return nil, ErrAccountDisabled
	}
	if !auth.CheckPassword(a.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	a.LastLoginAt = &now
	if err := s.repo.Update(ctx, a); err != nil {
		s.logger.Warn().Err(err).Str("account_id", a.ID.String()).Msg("failed to record login time")
	}
	return a, nil
}

// notify sends best-effort: delivery failures never fail the operation.
func (s *Service) notify(ctx context.Context, templateID string, a *Account, data map[string]string) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.SendFromTemplate(ctx, templateID, data, a.Email); err != nil {
		s.logger.Warn().
			Err(err).
			Str("template", templateID).
			Str("account_id", a.ID.String()).
			Msg("notification delivery failed")
	}
}
