package support

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a ticket does not exist.
	ErrNotFound = errors.New("support ticket not found")
	// ErrInvalidStatus is returned for an unrecognized status value.
	ErrInvalidStatus = errors.New("invalid ticket status")
	// ErrInvalidPriority is returned for an unrecognized priority value.
	ErrInvalidPriority = errors.New("invalid ticket priority")
	// ErrTicketClosed is returned when responding to a closed ticket.
	ErrTicketClosed = errors.New("ticket is closed")
)

// Ticket statuses.
const (
	StatusOpen       = "open"
	StatusInProgress = "in-progress"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"
)

// Ticket priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Response author kinds.
const (
	AuthorAdmin = "admin"
	AuthorUser  = "user"
)

// Response is one entry in a ticket's append-only conversation log.
type Response struct {
	AuthorKind string    `json:"author_kind"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// Ticket maps to the support_tickets table. Responses are stored as jsonb and
// only ever appended to.
type Ticket struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	AccountID  uuid.UUID  `db:"account_id" json:"account_id"`
	HospitalID *uuid.UUID `db:"hospital_id" json:"hospital_id,omitempty"`
	Subject    string     `db:"subject" json:"subject"`
	Message    string     `db:"message" json:"message"`
	Status     string     `db:"status" json:"status"`
	Priority   string     `db:"priority" json:"priority"`
	Responses  []Response `db:"responses" json:"responses"`
	AdminNotes string     `db:"admin_notes" json:"admin_notes,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// ValidStatus reports whether s is a known ticket status.
func ValidStatus(s string) bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// ValidPriority reports whether p is a known ticket priority.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}
