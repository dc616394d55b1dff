package diagnosis

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

const cols = `id, title, patient_id, hospital_id, author_id, notes, images, analysis, patient_meta, created_at`

func scanDiagnosis(row pgx.Row) (*Diagnosis, error) {
	var (
		d            Diagnosis
		analysisJSON []byte
		metaJSON     []byte
	)
	err := row.Scan(&d.ID, &d.Title, &d.PatientID, &d.HospitalID, &d.AuthorID,
		&d.Notes, &d.Images, &analysisJSON, &metaJSON, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(analysisJSON) > 0 {
		if err := json.Unmarshal(analysisJSON, &d.Analysis); err != nil {
			return nil, err
		}
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &d.PatientMeta); err != nil {
			return nil, err
		}
	}
	return &d, nil
}

func (r *repoPG) Create(ctx context.Context, d *Diagnosis) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	analysisJSON, err := json.Marshal(d.Analysis)
	if err != nil {
		return err
	}
	metaJSON, err := json.Marshal(d.PatientMeta)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO diagnoses (id, title, patient_id, hospital_id, author_id, notes, images, analysis, patient_meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.Title, d.PatientID, d.HospitalID, d.AuthorID, d.Notes, d.Images, analysisJSON, metaJSON)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Diagnosis, error) {
	return scanDiagnosis(r.conn(ctx).QueryRow(ctx, `SELECT `+cols+` FROM diagnoses WHERE id = $1`, id))
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM diagnoses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Diagnosis, int, error) {
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
	if filter.HospitalID != nil {
		add(`hospital_id = `, *filter.HospitalID)
	}
	if filter.PatientID != "" {
		add(`patient_id = `, filter.PatientID)
	}
	if filter.From != nil {
		add(`created_at >= `, *filter.From)
	}
	if filter.To != nil {
		add(`created_at <= `, *filter.To)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM diagnoses`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := `SELECT ` + cols + ` FROM diagnoses` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Diagnosis
	for rows.Next() {
		d, err := scanDiagnosis(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}
