package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/hms/internal/platform/db"
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

type invoiceRepoPG struct{ pgBase }
type itemRepoPG struct{ pgBase }
type serviceRepoPG struct{ pgBase }

func NewInvoiceRepoPG(pool *pgxpool.Pool) InvoiceRepository {
	return &invoiceRepoPG{pgBase{pool}}
}

func NewInvoiceItemRepoPG(pool *pgxpool.Pool) InvoiceItemRepository {
	return &itemRepoPG{pgBase{pool}}
}

func NewServiceRepoPG(pool *pgxpool.Pool) ServiceRepository {
	return &serviceRepoPG{pgBase{pool}}
}

const invoiceCols = `id, patient_id, visit_id, status, total_amount, paid_amount, created_at`

func (r *invoiceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	var inv Invoice
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+invoiceCols+` FROM invoice WHERE id = $1`, id).
		Scan(&inv.ID, &inv.PatientID, &inv.VisitID, &inv.Status, &inv.TotalAmount, &inv.PaidAmount, &inv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

const itemCols = `id, invoice_id, service_id, name, quantity, unit_price, amount, paid_amount, created_at`

func scanItem(row pgx.Row) (*InvoiceItem, error) {
	var it InvoiceItem
	err := row.Scan(&it.ID, &it.InvoiceID, &it.ServiceID, &it.Name, &it.Quantity,
		&it.UnitPrice, &it.Amount, &it.PaidAmount, &it.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *invoiceRepoPG) GetItems(ctx context.Context, invoiceID uuid.UUID) ([]*InvoiceItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+itemCols+` FROM invoice_item
		WHERE invoice_id = $1
		ORDER BY created_at`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*InvoiceItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *itemRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*InvoiceItem, error) {
	return scanItem(r.conn(ctx).QueryRow(ctx, `SELECT `+itemCols+` FROM invoice_item WHERE id = $1`, id))
}

func (r *serviceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*HospitalService, error) {
	var s HospitalService
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT s.id, s.name, s.department_id, s.price, s.is_active, s.created_at, d.name
		FROM hospital_service s
		LEFT JOIN department d ON d.id = s.department_id
		WHERE s.id = $1`, id).
		Scan(&s.ID, &s.Name, &s.DepartmentID, &s.Price, &s.IsActive, &s.CreatedAt, &s.DepartmentName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
