package directory

import (
	"time"

	"github.com/google/uuid"
)

// Department maps to the department table. Reference data: created by
// administration, read by routing and billing.
type Department struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Abbreviation *string   `db:"abbreviation" json:"abbreviation,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
