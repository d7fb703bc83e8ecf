package queue

import (
	"time"

	"github.com/google/uuid"
)

// Entry lifecycle.
const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
)

// Entry kind: INITIAL for the first routing of a visit, REVIEW when results
// are handed back to the requesting clinician.
const (
	TypeInitial = "INITIAL"
	TypeReview  = "REVIEW"
)

// Entry maps to the queue_entry table: one pending or completed stop of a
// visit at a department. At most one PENDING entry exists per
// (visit, destination) pair; re-routing merges into it.
type Entry struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	VisitID    uuid.UUID  `db:"visit_id" json:"visit_id"`
	PatientID  uuid.UUID  `db:"patient_id" json:"patient_id"`
	SentToID   uuid.UUID  `db:"sent_to_id" json:"sent_to_id"`
	QuedFromID *uuid.UUID `db:"qued_from_id" json:"qued_from_id,omitempty"`
	Status     string     `db:"status" json:"status"`
	EntryType  string     `db:"entry_type" json:"entry_type"`
	Notes      *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`

	// Joined display fields; not columns.
	SentToName   string  `db:"-" json:"sent_to_name,omitempty"`
	QuedFromName *string `db:"-" json:"qued_from_name,omitempty"`
	PatientName  string  `db:"-" json:"patient_name,omitempty"`
}
