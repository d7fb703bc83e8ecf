package diagnostics

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/clinicore/hms/pkg/pagination"
)

var ErrNotFound = errors.New("diagnostic record not found")

type OrderRepository interface {
	Create(ctx context.Context, o *Order) error
	Update(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	// GetByInvoiceItem returns the order created from the given invoice line,
	// or ErrNotFound. Backs CreateOrder idempotency.
	GetByInvoiceItem(ctx context.Context, itemID uuid.UUID) (*Order, error)
	List(ctx context.Context, f OrderFilter, p pagination.Params) ([]*Order, int, error)
	Stats(ctx context.Context, focus string) (*Stats, error)
}

// OrderFilter narrows List results. Zero values mean no filter.
type OrderFilter struct {
	PatientID uuid.UUID
	Status    string
	Focus     string
}

type ReportRepository interface {
	// Upsert inserts the report or, when one exists for the order, updates it
	// in place keeping the one-to-one invariant. The stored previous is_final
	// value is returned so callers can detect the finalization edge.
	Upsert(ctx context.Context, r *Report) (wasFinal bool, err error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*Report, error)
}

type ParameterRepository interface {
	Create(ctx context.Context, p *Parameter) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*Parameter, error)
}
