package hospital

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a hospital does not exist.
	ErrNotFound = errors.New("hospital not found")
	// ErrCodeExists is returned when creating a hospital with a code already in use.
	ErrCodeExists = errors.New("hospital code already exists")
	// ErrHasReferences is returned when deleting a hospital that accounts or
	// diagnoses still reference.
	ErrHasReferences = errors.New("hospital is referenced by existing records")
)

// Hospital maps to the hospitals table. ContactEmail receives billing
// notifications and may be empty.
type Hospital struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Code         string    `db:"code" json:"code"`
	Address      string    `db:"address" json:"address"`
	ContactEmail string    `db:"contact_email" json:"contact_email,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// FormatCode renders the nth hospital code, e.g. FormatCode(1) == "HSP-00001".
func FormatCode(n int) string {
	return fmt.Sprintf("HSP-%05d", n)
}
