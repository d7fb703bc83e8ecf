package queue

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/clinicore/hms/internal/platform/db"
	"github.com/clinicore/hms/pkg/pagination"
)

// ErrConflict is returned when a concurrent enqueue for the same
// (visit, destination) pair cannot be merged.
var ErrConflict = errors.New("queue entry conflict")

// Engine routes visits between departments. All writes are idempotent per
// (visit, destination): enqueueing to a department that already holds a
// PENDING entry for the visit merges into that entry instead of stacking a
// duplicate.
type Engine struct {
	repo   Repository
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func NewEngine(repo Repository, pool *pgxpool.Pool, logger zerolog.Logger) *Engine {
	return &Engine{repo: repo, pool: pool, logger: logger}
}

// inTx runs fn in a transaction when a pool is configured. Tests wire the
// engine with a nil pool and map-backed repos, where fn runs directly.
func (e *Engine) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if e.pool == nil {
		return fn(ctx)
	}
	return db.RunInTx(ctx, e.pool, fn)
}

type EnqueueInput struct {
	VisitID    uuid.UUID
	PatientID  uuid.UUID
	SentToID   uuid.UUID
	QuedFromID *uuid.UUID
	EntryType  string
	Notes      *string
}

// Enqueue routes the visit to a destination department. If a PENDING entry
// already exists for the pair it is updated in place; otherwise one is
// inserted. A unique-violation race against a concurrent insert is resolved
// by re-reading and merging once.
func (e *Engine) Enqueue(ctx context.Context, in EnqueueInput) (*Entry, error) {
	if in.EntryType == "" {
		in.EntryType = TypeInitial
	}

	var result *Entry
	err := e.inTx(ctx, func(ctx context.Context) error {
		existing, err := e.repo.FindPending(ctx, in.VisitID, in.SentToID)
		if err == nil {
			merged, err := e.merge(ctx, existing, in)
			if err != nil {
				return err
			}
			result = merged
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		entry := &Entry{
			VisitID:    in.VisitID,
			PatientID:  in.PatientID,
			SentToID:   in.SentToID,
			QuedFromID: in.QuedFromID,
			Status:     StatusPending,
			EntryType:  in.EntryType,
			Notes:      in.Notes,
		}
		// The insert runs under a savepoint so a unique violation does not
		// abort the enclosing transaction and the recovery read can proceed.
		err = db.WithSavepoint(ctx, func(ctx context.Context) error {
			return e.repo.Create(ctx, entry)
		})
		if err != nil {
			if !db.IsUniqueViolation(err) {
				return err
			}
			// Lost the insert race; the winner's row is the one to merge into.
			existing, rerr := e.repo.FindPending(ctx, in.VisitID, in.SentToID)
			if rerr != nil {
				return ErrConflict
			}
			merged, merr := e.merge(ctx, existing, in)
			if merr != nil {
				return merr
			}
			result = merged
			return nil
		}
		result = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) merge(ctx context.Context, existing *Entry, in EnqueueInput) (*Entry, error) {
	if in.QuedFromID != nil {
		existing.QuedFromID = in.QuedFromID
	}
	if in.Notes != nil {
		existing.Notes = in.Notes
	}
	existing.EntryType = in.EntryType
	if err := e.repo.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// CompleteEntry marks a single entry COMPLETED. Already-completed entries
// are left untouched.
func (e *Engine) CompleteEntry(ctx context.Context, id uuid.UUID) (*Entry, error) {
	entry, err := e.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.Status == StatusCompleted {
		return entry, nil
	}
	entry.Status = StatusCompleted
	if err := e.repo.Update(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// FindOrigin reports where the visit was routed from, taken from the newest
// PENDING entry at departments whose name contains deptName. Nil when no
// such entry exists or the entry has no recorded origin.
func (e *Engine) FindOrigin(ctx context.Context, visitID uuid.UUID, deptName string) (*uuid.UUID, error) {
	entries, err := e.repo.FindPendingByDeptName(ctx, visitID, deptName)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[0].QuedFromID, nil
}

// Complete marks COMPLETED every PENDING entry of the visit at departments
// whose name contains deptName. Callers that need the origin must capture
// it with FindOrigin before completing.
func (e *Engine) Complete(ctx context.Context, visitID uuid.UUID, deptName string) (int, error) {
	entries, err := e.repo.FindPendingByDeptName(ctx, visitID, deptName)
	if err != nil {
		return 0, err
	}
	completed := 0
	for _, entry := range entries {
		entry.Status = StatusCompleted
		if err := e.repo.Update(ctx, entry); err != nil {
			return completed, err
		}
		completed++
	}
	if completed > 0 {
		e.logger.Debug().
			Str("visit_id", visitID.String()).
			Str("department", deptName).
			Int("completed", completed).
			Msg("queue entries completed")
	}
	return completed, nil
}

// Board lists a department's queue, optionally filtered by status.
func (e *Engine) Board(ctx context.Context, deptID uuid.UUID, status string, p pagination.Params) ([]*Entry, int, error) {
	return e.repo.ListByDepartment(ctx, deptID, status, p)
}

// History lists every stop of a visit in order.
func (e *Engine) History(ctx context.Context, visitID uuid.UUID) ([]*Entry, error) {
	return e.repo.ListByVisit(ctx, visitID)
}
