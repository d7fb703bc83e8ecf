package diagnostics

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

type pgBase struct{ pool *pgxpool.Pool }

func (b pgBase) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return b.pool
}

type orderRepoPG struct{ pgBase }
type reportRepoPG struct{ pgBase }
type parameterRepoPG struct{ pgBase }

func NewOrderRepoPG(pool *pgxpool.Pool) OrderRepository {
	return &orderRepoPG{pgBase{pool}}
}

func NewReportRepoPG(pool *pgxpool.Pool) ReportRepository {
	return &reportRepoPG{pgBase{pool}}
}

func NewParameterRepoPG(pool *pgxpool.Pool) ParameterRepository {
	return &parameterRepoPG{pgBase{pool}}
}

const orderSelect = `
	SELECT o.id, o.patient_id, o.service_id, o.invoice_id, o.invoice_item_id,
	       o.requested_by, o.performed_by, o.status, o.priority,
	       o.clinical_notes, o.results, o.interpretation,
	       o.requested_at, o.scheduled_for, o.completed_at, o.created_at, o.updated_at,
	       s.name, d.name,
	       p.first_name || ' ' || p.last_name
	FROM diagnostic_order o
	JOIN hospital_service s ON s.id = o.service_id
	LEFT JOIN department d ON d.id = s.department_id
	JOIN patient p ON p.id = o.patient_id`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.PatientID, &o.ServiceID, &o.InvoiceID, &o.InvoiceItemID,
		&o.RequestedBy, &o.PerformedBy, &o.Status, &o.Priority,
		&o.ClinicalNotes, &o.Results, &o.Interpretation,
		&o.RequestedAt, &o.ScheduledFor, &o.CompletedAt, &o.CreatedAt, &o.UpdatedAt,
		&o.ServiceName, &o.DepartmentName, &o.PatientName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepoPG) Create(ctx context.Context, o *Order) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	now := time.Now()
	o.CreatedAt = now
	o.UpdatedAt = now
	if o.RequestedAt.IsZero() {
		o.RequestedAt = now
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO diagnostic_order (id, patient_id, service_id, invoice_id, invoice_item_id,
			requested_by, performed_by, status, priority, clinical_notes, results,
			interpretation, requested_at, scheduled_for, completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		o.ID, o.PatientID, o.ServiceID, o.InvoiceID, o.InvoiceItemID,
		o.RequestedBy, o.PerformedBy, o.Status, o.Priority, o.ClinicalNotes, o.Results,
		o.Interpretation, o.RequestedAt, o.ScheduledFor, o.CompletedAt, o.CreatedAt, o.UpdatedAt)
	return err
}

func (r *orderRepoPG) Update(ctx context.Context, o *Order) error {
	o.UpdatedAt = time.Now()
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE diagnostic_order
		SET performed_by = $2, status = $3, priority = $4, clinical_notes = $5,
		    results = $6, interpretation = $7, scheduled_for = $8,
		    completed_at = $9, updated_at = $10
		WHERE id = $1`,
		o.ID, o.PerformedBy, o.Status, o.Priority, o.ClinicalNotes,
		o.Results, o.Interpretation, o.ScheduledFor, o.CompletedAt, o.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *orderRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	return scanOrder(r.conn(ctx).QueryRow(ctx, orderSelect+` WHERE o.id = $1`, id))
}

func (r *orderRepoPG) GetByInvoiceItem(ctx context.Context, itemID uuid.UUID) (*Order, error) {
	return scanOrder(r.conn(ctx).QueryRow(ctx, orderSelect+`
		WHERE o.invoice_item_id = $1
		ORDER BY o.created_at LIMIT 1`, itemID))
}

func (r *orderRepoPG) List(ctx context.Context, f OrderFilter, p pagination.Params) ([]*Order, int, error) {
	where := ` WHERE ($1 = '00000000-0000-0000-0000-000000000000'::uuid OR o.patient_id = $1)
	  AND ($2 = '' OR o.status = $2)
	  AND ($3 = '' OR d.name ILIKE '%' || $3 || '%')`

	var total int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT count(*)
		FROM diagnostic_order o
		JOIN hospital_service s ON s.id = o.service_id
		LEFT JOIN department d ON d.id = s.department_id`+where,
		f.PatientID, f.Status, f.Focus).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, orderSelect+where+`
		ORDER BY o.requested_at DESC
		LIMIT $4 OFFSET $5`, f.PatientID, f.Status, f.Focus, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	return orders, total, rows.Err()
}

func (r *orderRepoPG) Stats(ctx context.Context, focus string) (*Stats, error) {
	var s Stats
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE o.status = 'Pending'),
			count(*) FILTER (WHERE o.status = 'In Progress'),
			count(*) FILTER (WHERE o.status = 'Completed' AND o.completed_at::date = CURRENT_DATE),
			count(*) FILTER (WHERE i.id IS NOT NULL AND NOT (i.amount > 0 AND i.paid_amount >= i.amount)),
			count(*) FILTER (WHERE i.id IS NOT NULL AND i.amount > 0 AND i.paid_amount >= i.amount)
		FROM diagnostic_order o
		JOIN hospital_service s ON s.id = o.service_id
		LEFT JOIN department d ON d.id = s.department_id
		LEFT JOIN invoice_item i ON i.id = o.invoice_item_id
		WHERE $1 = '' OR d.name ILIKE '%' || $1 || '%'`, focus).
		Scan(&s.PendingOrders, &s.InProgressOrders, &s.CompletedToday, &s.UnpaidItems, &s.PaidItems)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *reportRepoPG) Upsert(ctx context.Context, rep *Report) (bool, error) {
	existing, err := r.GetByOrderID(ctx, rep.OrderID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return false, err
	}
	now := time.Now()
	if existing == nil {
		if rep.ID == uuid.Nil {
			rep.ID = uuid.New()
		}
		rep.CreatedAt = now
		rep.UpdatedAt = now
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO diagnostic_report (id, order_id, body, created_by, is_final,
				reviewed_by, reviewed_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			rep.ID, rep.OrderID, rep.Body, rep.CreatedBy, rep.IsFinal,
			rep.ReviewedBy, rep.ReviewedAt, rep.CreatedAt, rep.UpdatedAt)
		return false, err
	}

	rep.ID = existing.ID
	rep.CreatedAt = existing.CreatedAt
	rep.CreatedBy = existing.CreatedBy
	rep.UpdatedAt = now
	_, err = r.conn(ctx).Exec(ctx, `
		UPDATE diagnostic_report
		SET body = $2, is_final = $3, reviewed_by = $4, reviewed_at = $5, updated_at = $6
		WHERE id = $1`,
		rep.ID, rep.Body, rep.IsFinal, rep.ReviewedBy, rep.ReviewedAt, rep.UpdatedAt)
	return existing.IsFinal, err
}

func (r *reportRepoPG) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*Report, error) {
	var rep Report
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, order_id, body, created_by, is_final, reviewed_by, reviewed_at,
		       created_at, updated_at
		FROM diagnostic_report WHERE order_id = $1`, orderID).
		Scan(&rep.ID, &rep.OrderID, &rep.Body, &rep.CreatedBy, &rep.IsFinal,
			&rep.ReviewedBy, &rep.ReviewedAt, &rep.CreatedAt, &rep.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

func (r *parameterRepoPG) Create(ctx context.Context, p *Parameter) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO order_parameter (id, order_id, name, value, unit, reference_range, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.OrderID, p.Name, p.Value, p.Unit, p.ReferenceRange, p.CreatedAt)
	return err
}

func (r *parameterRepoPG) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*Parameter, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, order_id, name, value, unit, reference_range, created_at
		FROM order_parameter
		WHERE order_id = $1
		ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var params []*Parameter
	for rows.Next() {
		var p Parameter
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Name, &p.Value, &p.Unit, &p.ReferenceRange, &p.CreatedAt); err != nil {
			return nil, err
		}
		params = append(params, &p)
	}
	return params, rows.Err()
}
