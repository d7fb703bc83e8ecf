package billing

import (
	"time"

	"github.com/google/uuid"
)

// Invoice aggregate statuses.
const (
	InvoiceDraft     = "Draft"
	InvoicePending   = "Pending"
	InvoicePartial   = "Partial"
	InvoicePaid      = "Paid"
	InvoiceCancelled = "Cancelled"
)

// HospitalService maps to the hospital_service table: one priced catalog
// entry owned by a department ("Full Blood Count" under Main Lab).
type HospitalService struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	DepartmentID *uuid.UUID `db:"department_id" json:"department_id,omitempty"`
	Price        float64    `db:"price" json:"price"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`

	// DepartmentName is joined in by queries; not a column.
	DepartmentName *string `db:"-" json:"department_name,omitempty"`
}

// Invoice maps to the invoice table. Owned by the billing subsystem; the
// clinical workflow core reads it to gate diagnostic work.
type Invoice struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	VisitID     *uuid.UUID `db:"visit_id" json:"visit_id,omitempty"`
	Status      string     `db:"status" json:"status"`
	TotalAmount float64    `db:"total_amount" json:"total_amount"`
	PaidAmount  float64    `db:"paid_amount" json:"paid_amount"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// InvoiceItem maps to the invoice_item table: one billable line.
type InvoiceItem struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	InvoiceID  uuid.UUID  `db:"invoice_id" json:"invoice_id"`
	ServiceID  *uuid.UUID `db:"service_id" json:"service_id,omitempty"`
	Name       string     `db:"name" json:"name"`
	Quantity   int        `db:"quantity" json:"quantity"`
	UnitPrice  float64    `db:"unit_price" json:"unit_price"`
	Amount     float64    `db:"amount" json:"amount"`
	PaidAmount float64    `db:"paid_amount" json:"paid_amount"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// IsSettled reports whether the line is fully paid, independent of the
// invoice aggregate status.
func (i *InvoiceItem) IsSettled() bool {
	return i.Amount > 0 && i.PaidAmount >= i.Amount
}
