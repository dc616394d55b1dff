package support

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/curamed/curamed/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const cols = `id, account_id, hospital_id, subject, message, status, priority, responses, admin_notes, created_at, updated_at`

func scanTicket(row pgx.Row) (*Ticket, error) {
	var (
		t             Ticket
		responsesJSON []byte
	)
	err := row.Scan(&t.ID, &t.AccountID, &t.HospitalID, &t.Subject, &t.Message,
		&t.Status, &t.Priority, &responsesJSON, &t.AdminNotes, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(responsesJSON) > 0 {
		if err := json.Unmarshal(responsesJSON, &t.Responses); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

func (r *repoPG) Create(ctx context.Context, t *Ticket) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	responsesJSON, err := json.Marshal(t.Responses)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO support_tickets (id, account_id, hospital_id, subject, message, status, priority, responses, admin_notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.AccountID, t.HospitalID, t.Subject, t.Message, t.Status, t.Priority, responsesJSON, t.AdminNotes)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Ticket, error) {
	return scanTicket(r.conn(ctx).QueryRow(ctx, `SELECT `+cols+` FROM support_tickets WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, t *Ticket) error {
	responsesJSON, err := json.Marshal(t.Responses)
	if err != nil {
		return err
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE support_tickets
		SET status = $2, priority = $3, responses = $4, admin_notes = $5, updated_at = now()
		WHERE id = $1`,
		t.ID, t.Status, t.Priority, responsesJSON, t.AdminNotes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Ticket, int, error) {
	where := ``
	args := []interface{}{}
	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		if where == `` {
			where = ` WHERE `
		} else {
			where += ` AND `
		}
		where += clause + `$` + strconv.Itoa(len(args))
	}
	if filter.Status != "" {
		add(`status = `, filter.Status)
	}
	if filter.Priority != "" {
		add(`priority = `, filter.Priority)
	}
	if filter.HospitalID != nil {
		add(`hospital_id = `, *filter.HospitalID)
	}
	if filter.AccountID != nil {
		add(`account_id = `, *filter.AccountID)
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := strconv.Itoa(len(args))
		clause := `(subject ILIKE $` + n + ` OR message ILIKE $` + n + `)`
		if where == `` {
			where = ` WHERE ` + clause
		} else {
			where += ` AND ` + clause
		}
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM support_tickets`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := `SELECT ` + cols + ` FROM support_tickets` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}

func (r *repoPG) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT status, COUNT(*) FROM support_tickets GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
