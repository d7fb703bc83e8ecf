package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a department does not exist.
var ErrNotFound = errors.New("department not found")

// Directory is the lookup capability handed to routing code. Matching is by
// case-insensitive name containment ("Lab" matches "Main Lab").
type Directory interface {
	FindByNameContains(ctx context.Context, fragment string) ([]*Department, error)
}

type Repository interface {
	Directory
	GetByID(ctx context.Context, id uuid.UUID) (*Department, error)
	List(ctx context.Context) ([]*Department, error)
}
