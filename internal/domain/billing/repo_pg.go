package billing

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

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

// =========== Invoice Repository ===========

type invoiceRepoPG struct{ pool *pgxpool.Pool }

func NewInvoiceRepoPG(pool *pgxpool.Pool) InvoiceRepository { return &invoiceRepoPG{pool: pool} }

func (r *invoiceRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const invoiceCols = `id, number, hospital_id, period_start, period_end, total_amount,
	status, details, generated_at, sent_at, paid_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var (
		inv         Invoice
		detailsJSON []byte
	)
	err := row.Scan(&inv.ID, &inv.Number, &inv.HospitalID, &inv.PeriodStart, &inv.PeriodEnd,
		&inv.TotalAmount, &inv.Status, &detailsJSON, &inv.GeneratedAt, &inv.SentAt, &inv.PaidAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &inv.Details); err != nil {
			return nil, err
		}
	}
	return &inv, nil
}

func (r *invoiceRepoPG) Create(ctx context.Context, inv *Invoice) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	detailsJSON, err := json.Marshal(inv.Details)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO invoices (id, number, hospital_id, period_start, period_end, total_amount, status, details, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		inv.ID, inv.Number, inv.HospitalID, inv.PeriodStart, inv.PeriodEnd,
		inv.TotalAmount, inv.Status, detailsJSON, inv.GeneratedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateInvoice
	}
	return err
}

func (r *invoiceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return scanInvoice(r.conn(ctx).QueryRow(ctx, `SELECT `+invoiceCols+` FROM invoices WHERE id = $1`, id))
}

// Update persists status changes only. The details snapshot is immutable.
func (r *invoiceRepoPG) Update(ctx context.Context, inv *Invoice) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE invoices SET status=$2, sent_at=$3, paid_at=$4
		WHERE id = $1`,
		inv.ID, inv.Status, inv.SentAt, inv.PaidAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *invoiceRepoPG) List(ctx context.Context, filter InvoiceFilter, limit, offset int) ([]*Invoice, int, error) {
	where := ``
	args := []interface{}{}
	if filter.HospitalID != nil {
		args = append(args, *filter.HospitalID)
		where += ` AND hospital_id = $` + strconv.Itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += ` AND status = $` + strconv.Itoa(len(args))
	}
	if where != "" {
		where = ` WHERE ` + where[5:]
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM invoices`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := `SELECT ` + invoiceCols + ` FROM invoices` + where +
		` ORDER BY generated_at DESC LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, inv)
	}
	return items, total, rows.Err()
}

func (r *invoiceRepoPG) CountByHospital(ctx context.Context, hospitalID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE hospital_id = $1`, hospitalID).Scan(&n)
	return n, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// =========== Diagnosis Source ===========

type diagnosisSourcePG struct{ pool *pgxpool.Pool }

func NewDiagnosisSourcePG(pool *pgxpool.Pool) DiagnosisSource { return &diagnosisSourcePG{pool: pool} }

func (r *diagnosisSourcePG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *diagnosisSourcePG) ListForBilling(ctx context.Context, hospitalID *uuid.UUID, start, end time.Time) ([]*BilledDiagnosis, error) {
	query := `
		SELECT d.id, d.title, d.patient_id,
		       COALESCE(d.patient_meta->>'scan_type', ''),
		       d.hospital_id, COALESCE(h.name, ''), COALESCE(h.code, ''),
		       d.created_at
		FROM diagnoses d
		LEFT JOIN hospitals h ON h.id = d.hospital_id
		WHERE d.created_at >= $1 AND d.created_at <= $2`
	args := []interface{}{start, end}
	if hospitalID != nil {
		query += ` AND d.hospital_id = $3`
		args = append(args, *hospitalID)
	}
	query += ` ORDER BY d.created_at`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*BilledDiagnosis
	for rows.Next() {
		var bd BilledDiagnosis
		if err := rows.Scan(&bd.ID, &bd.Title, &bd.PatientID, &bd.ScanType,
			&bd.HospitalID, &bd.HospitalName, &bd.HospitalCode, &bd.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &bd)
	}
	return items, rows.Err()
}
