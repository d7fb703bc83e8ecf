package encounter

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("visit not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Visit, error)
	// GetActiveForPatient returns the patient's latest active visit, falling
	// back to the latest visit of any state; ErrNotFound when the patient has
	// never visited.
	GetActiveForPatient(ctx context.Context, patientID uuid.UUID) (*Visit, error)
}
