package encounter

import (
	"time"

	"github.com/google/uuid"
)

// Visit types.
const (
	TypeOutpatient = "OUT-PATIENT"
	TypeInpatient  = "IN-PATIENT"
)

// Visit maps to the visit table: one clinical encounter for a patient.
// Owned by the patient-record subsystem; the clinical workflow core only
// reads it.
type Visit struct {
	ID            uuid.UUID `db:"id" json:"id"`
	PatientID     uuid.UUID `db:"patient_id" json:"patient_id"`
	VisitType     string    `db:"visit_type" json:"visit_type"`
	PaymentMethod string    `db:"payment_method" json:"payment_method"`
	IsActive      bool      `db:"is_active" json:"is_active"`
	VisitDate     time.Time `db:"visit_date" json:"visit_date"`
}

// IsOutpatient reports whether the visit is an outpatient encounter, the
// only visit type subject to the pay-before-service billing gate.
func (v *Visit) IsOutpatient() bool {
	return v.VisitType == TypeOutpatient
}
