package queue

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/clinicore/hms/pkg/pagination"
)

var ErrNotFound = errors.New("queue entry not found")

type Repository interface {
	Create(ctx context.Context, e *Entry) error
	Update(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	// FindPending returns the visit's PENDING entry for the destination
	// department, or ErrNotFound.
	FindPending(ctx context.Context, visitID, sentToID uuid.UUID) (*Entry, error)
	// FindPendingByDeptName returns the visit's PENDING entries at departments
	// whose name contains deptName, newest first.
	FindPendingByDeptName(ctx context.Context, visitID uuid.UUID, deptName string) ([]*Entry, error)
	ListByDepartment(ctx context.Context, deptID uuid.UUID, status string, p pagination.Params) ([]*Entry, int, error)
	ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*Entry, error)
}
