package support

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/curamed/curamed/internal/domain/account"
	"github.com/curamed/curamed/internal/platform/notification"
)

// AccountSource resolves ticket authors for response notifications.
// Satisfied by account.Service.
type AccountSource interface {
	Get(ctx context.Context, id uuid.UUID) (*account.Account, error)
}

type Notifier interface {
	SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*notification.Notification, error)
}

type Service struct {
	repo     Repository
	accounts AccountSource
	notifier Notifier
	logger   zerolog.Logger
}

func NewService(repo Repository, accounts AccountSource, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		accounts: accounts,
		notifier: notifier,
		logger:   logger.With().Str("component", "support").Logger(),
	}
}

// CreateInput carries the fields a user supplies when opening a ticket.
type CreateInput struct {
	Subject    string     `json:"subject"`
	Message    string     `json:"message"`
	Priority   string     `json:"priority"`
	HospitalID *uuid.UUID `json:"hospital_id"`
}

// Create opens a ticket. Priority defaults to medium, status is always open.
func (s *Service) Create(ctx context.Context, accountID uuid.UUID, in CreateInput) (*Ticket, error) {
	if strings.TrimSpace(in.Subject) == "" {
		return nil, fmt.Errorf("subject is required")
	}
	if strings.TrimSpace(in.Message) == "" {
		return nil, fmt.Errorf("message is required")
	}
	priority := in.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !ValidPriority(priority) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPriority, priority)
	}

	t := &Ticket{
		ID:         uuid.New(),
		AccountID:  accountID,
		HospitalID: in.HospitalID,
		Subject:    in.Subject,
		Message:    in.Message,
		Status:     StatusOpen,
		Priority:   priority,
		Responses:  []Response{},
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Ticket, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Ticket, int, error) {
	return s.repo.List(ctx, filter, limit, offset)
}

// AddResponse appends to the ticket's conversation log. An admin response on an
// open ticket moves it to in-progress; user responses never change status.
// Admin responses are mailed to the ticket author when an address is on file.
func (s *Service) AddResponse(ctx context.Context, id uuid.UUID, authorKind, authorName, content string) (*Ticket, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("response content is required")
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status == StatusClosed {
		return nil, ErrTicketClosed
	}

	t.Responses = append(t.Responses, Response{
		AuthorKind: authorKind,
		AuthorName: authorName,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	})
	if authorKind == AuthorAdmin && t.Status == StatusOpen {
		t.Status = StatusInProgress
	}
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	if authorKind == AuthorAdmin {
		s.notifyResponse(ctx, t, content)
	}
	return t, nil
}

// AdminRespond appends a staff response under the responder's account name.
func (s *Service) AdminRespond(ctx context.Context, id, adminID uuid.UUID, content string) (*Ticket, error) {
	return s.AddResponse(ctx, id, AuthorAdmin, s.authorName(ctx, adminID, "Support"), content)
}

// UserRespond appends a response from the ticket's author. Tickets owned by
// other accounts are reported as not found.
func (s *Service) UserRespond(ctx context.Context, id, accountID uuid.UUID, content string) (*Ticket, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.AccountID != accountID {
		return nil, ErrNotFound
	}
	return s.AddResponse(ctx, id, AuthorUser, s.authorName(ctx, accountID, "User"), content)
}

func (s *Service) authorName(ctx context.Context, id uuid.UUID, fallback string) string {
	if s.accounts == nil {
		return fallback
	}
	a, err := s.accounts.Get(ctx, id)
	if err != nil || a.FullName == "" {
		return fallback
	}
	return a.FullName
}

// UpdateInput carries the admin-editable ticket fields.
type UpdateInput struct {
	Status     string `json:"status"`
	Priority   string `json:"priority"`
	AdminNotes string `json:"admin_notes"`
}

// Update applies admin changes to status, priority, and notes.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Ticket, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Status != "" {
		if !ValidStatus(in.Status) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, in.Status)
		}
		t.Status = in.Status
	}
	if in.Priority != "" {
		if !ValidPriority(in.Priority) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPriority, in.Priority)
		}
		t.Priority = in.Priority
	}
	if in.AdminNotes != "" {
		t.AdminNotes = in.AdminNotes
	}
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Backlog returns open ticket counts per status for the dashboard.
func (s *Service) Backlog(ctx context.Context) (map[string]int, error) {
	return s.repo.CountByStatus(ctx)
}

func (s *Service) notifyResponse(ctx context.Context, t *Ticket, content string) {
	if s.notifier == nil || s.accounts == nil {
		return
	}
	a, err := s.accounts.Get(ctx, t.AccountID)
	if err != nil {
		s.logger.Warn().Err(err).Str("ticket_id", t.ID.String()).Msg("resolve ticket author")
		return
	}
	data := map[string]string{
		"user_name":      a.FullName,
		"ticket_subject": t.Subject,
		"response":       content,
	}
	if _, err := s.notifier.SendFromTemplate(ctx, "ticket-response", data, a.Email); err != nil {
		s.logger.Warn().Err(err).Str("ticket_id", t.ID.String()).Msg("send ticket response email")
	}
}
