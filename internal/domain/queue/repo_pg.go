package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/hms/internal/platform/db"
	"github.com/clinicore/hms/pkg/pagination"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const entrySelect = `
	SELECT q.id, q.visit_id, q.patient_id, q.sent_to_id, q.qued_from_id,
	       q.status, q.entry_type, q.notes, q.created_at, q.updated_at,
	       st.name, qf.name,
	       p.first_name || ' ' || p.last_name
	FROM queue_entry q
	JOIN department st ON st.id = q.sent_to_id
	LEFT JOIN department qf ON qf.id = q.qued_from_id
	JOIN patient p ON p.id = q.patient_id`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.VisitID, &e.PatientID, &e.SentToID, &e.QuedFromID,
		&e.Status, &e.EntryType, &e.Notes, &e.CreatedAt, &e.UpdatedAt,
		&e.SentToName, &e.QuedFromName, &e.PatientName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *repoPG) Create(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := time.Now()
	e.CreatedAt = now
	e.UpdatedAt = now
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO queue_entry (id, visit_id, patient_id, sent_to_id, qued_from_id,
			status, entry_type, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.VisitID, e.PatientID, e.SentToID, e.QuedFromID,
		e.Status, e.EntryType, e.Notes, e.CreatedAt, e.UpdatedAt)
	return err
}

func (r *repoPG) Update(ctx context.Context, e *Entry) error {
	e.UpdatedAt = time.Now()
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE queue_entry
		SET sent_to_id = $2, qued_from_id = $3, status = $4, entry_type = $5,
		    notes = $6, updated_at = $7
		WHERE id = $1`,
		e.ID, e.SentToID, e.QuedFromID, e.Status, e.EntryType, e.Notes, e.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return scanEntry(r.conn(ctx).QueryRow(ctx, entrySelect+` WHERE q.id = $1`, id))
}

func (r *repoPG) FindPending(ctx context.Context, visitID, sentToID uuid.UUID) (*Entry, error) {
	return scanEntry(r.conn(ctx).QueryRow(ctx, entrySelect+`
		WHERE q.visit_id = $1 AND q.sent_to_id = $2 AND q.status = 'PENDING'`,
		visitID, sentToID))
}

func (r *repoPG) FindPendingByDeptName(ctx context.Context, visitID uuid.UUID, deptName string) ([]*Entry, error) {
	rows, err := r.conn(ctx).Query(ctx, entrySelect+`
		WHERE q.visit_id = $1 AND q.status = 'PENDING'
		  AND st.name ILIKE '%' || $2 || '%'
		ORDER BY q.created_at DESC`, visitID, deptName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (r *repoPG) ListByDepartment(ctx context.Context, deptID uuid.UUID, status string, p pagination.Params) ([]*Entry, int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT count(*) FROM queue_entry
		WHERE sent_to_id = $1 AND ($2 = '' OR status = $2)`, deptID, status).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, entrySelect+`
		WHERE q.sent_to_id = $1 AND ($2 = '' OR q.status = $2)
		ORDER BY q.created_at
		LIMIT $3 OFFSET $4`, deptID, status, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries, err := collectEntries(rows)
	return entries, total, err
}

func (r *repoPG) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*Entry, error) {
	rows, err := r.conn(ctx).Query(ctx, entrySelect+`
		WHERE q.visit_id = $1
		ORDER BY q.created_at`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func collectEntries(rows pgx.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
