package diagnostics

import (
	"time"

	"github.com/google/uuid"
)

// Order statuses. Transitions are deliberately unguarded: results trickle in
// from bench equipment and clerks in any order, so any status may be set at
// any time. completed_at is still stamped only on the first move to
// Completed.
const (
	StatusPending    = "Pending"
	StatusInProgress = "In Progress"
	StatusCompleted  = "Completed"
	StatusCancelled  = "Cancelled"
)

// Order priorities.
const (
	PriorityLow    = "Low"
	PriorityNormal = "Normal"
	PriorityHigh   = "High"
	PriorityUrgent = "Urgent"
)

// Department focus values, derived from the ordered service's owning
// department or the actor's role.
const (
	FocusLab     = "Lab"
	FocusImaging = "Imaging"
)

// Order maps to the diagnostic_order table: one requested test for a
// patient, optionally tied to the invoice line that pays for it.
type Order struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	ServiceID      uuid.UUID  `db:"service_id" json:"service_id"`
	InvoiceID      *uuid.UUID `db:"invoice_id" json:"invoice_id,omitempty"`
	InvoiceItemID  *uuid.UUID `db:"invoice_item_id" json:"invoice_item_id,omitempty"`
	RequestedBy    string     `db:"requested_by" json:"requested_by"`
	PerformedBy    *string    `db:"performed_by" json:"performed_by,omitempty"`
	Status         string     `db:"status" json:"status"`
	Priority       string     `db:"priority" json:"priority"`
	ClinicalNotes  *string    `db:"clinical_notes" json:"clinical_notes,omitempty"`
	Results        *string    `db:"results" json:"results,omitempty"`
	Interpretation *string    `db:"interpretation" json:"interpretation,omitempty"`
	RequestedAt    time.Time  `db:"requested_at" json:"requested_at"`
	ScheduledFor   *time.Time `db:"scheduled_for" json:"scheduled_for,omitempty"`
	CompletedAt    *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`

	// Joined display fields; not columns.
	ServiceName    string  `db:"-" json:"service_name,omitempty"`
	DepartmentName *string `db:"-" json:"department_name,omitempty"`
	PatientName    string  `db:"-" json:"patient_name,omitempty"`
}

// Report maps to the diagnostic_report table. One-to-one with an order;
// attaching a report to an order that already has one updates it in place.
type Report struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	OrderID    uuid.UUID  `db:"order_id" json:"order_id"`
	Body       string     `db:"body" json:"body"`
	CreatedBy  string     `db:"created_by" json:"created_by"`
	IsFinal    bool       `db:"is_final" json:"is_final"`
	ReviewedBy *string    `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// Parameter maps to the order_parameter table: one measured value row.
type Parameter struct {
	ID             uuid.UUID `db:"id" json:"id"`
	OrderID        uuid.UUID `db:"order_id" json:"order_id"`
	Name           string    `db:"name" json:"name"`
	Value          string    `db:"value" json:"value"`
	Unit           *string   `db:"unit" json:"unit,omitempty"`
	ReferenceRange *string   `db:"reference_range" json:"reference_range,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Stats is the dashboard summary for a department focus.
type Stats struct {
	PendingOrders    int `json:"pending_orders"`
	InProgressOrders int `json:"in_progress_orders"`
	CompletedToday   int `json:"completed_today"`
	UnpaidItems      int `json:"unpaid_items"`
	PaidItems        int `json:"paid_items"`
}
