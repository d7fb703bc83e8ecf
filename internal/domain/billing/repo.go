package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("billing record not found")

type InvoiceRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	GetItems(ctx context.Context, invoiceID uuid.UUID) ([]*InvoiceItem, error)
}

type InvoiceItemRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*InvoiceItem, error)
}

type ServiceRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*HospitalService, error)
}
