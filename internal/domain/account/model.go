package account

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when an account does not exist.
	ErrNotFound = errors.New("account not found")
	// ErrEmailExists is returned when creating an account with an email already in use.
	ErrEmailExists = errors.New("email already registered")
	// ErrAccountDisabled is returned when a disabled account attempts to authenticate.
	ErrAccountDisabled = errors.New("account is disabled")
	// ErrInvalidCredentials is returned on a failed email/password check.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrHasReferences is returned when deleting an account that diagnoses still reference.
	ErrHasReferences = errors.New("account is referenced by existing records")
)

// Account maps to the accounts table.
type Account struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	FullName     string     `db:"full_name" json:"full_name"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	HospitalID   *uuid.UUID `db:"hospital_id" json:"hospital_id,omitempty"`
	IsAdmin      bool       `db:"is_admin" json:"is_admin"`
	Verified     bool       `db:"verified" json:"verified"`
	Disabled     bool       `db:"disabled" json:"disabled"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Roles returns the role set encoded into issued tokens.
func (a *Account) Roles() []string {
	if a.IsAdmin {
		return []string{"admin"}
	}
	return []string{"staff"}
}
