package diagnostics

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicore/hms/internal/domain/billing"
	"github.com/clinicore/hms/internal/domain/queue"
)

// handback routes the visit back to the requesting clinician after a report
// is finalized. Runs inside the AttachReport transaction.
//
// Orders without billing linkage, or billed outside a visit, have no queue
// presence to route; those are a logged no-op, not an error. The origin is
// read from the pending entry at the performing department before that
// entry is completed; when no origin was recorded the visit goes to the
// configured fallback department. When even the fallback cannot be
// resolved, the finalization stands and the routing is skipped.
func (s *Service) handback(ctx context.Context, order *Order) error {
	if order.InvoiceID == nil {
		s.logger.Debug().
			Str("order_id", order.ID.String()).
			Msg("finalized order has no invoice, skipping hand-back")
		return nil
	}
	invoice, err := s.invoices.GetByID(ctx, *order.InvoiceID)
	if err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			s.logger.Warn().
				Str("order_id", order.ID.String()).
				Msg("finalized order references missing invoice, skipping hand-back")
			return nil
		}
		return fmt.Errorf("load invoice: %w", err)
	}
	visit, err := s.resolveVisit(ctx, invoice)
	if err != nil {
		return err
	}
	if visit == nil {
		s.logger.Debug().
			Str("order_id", order.ID.String()).
			Msg("finalized order billed outside a visit, skipping hand-back")
		return nil
	}

	focus := focusForOrder(order)

	// Capture the origin before completing; completion removes the pending
	// entry the origin lives on.
	origin, err := s.queue.FindOrigin(ctx, visit.ID, focus)
	if err != nil {
		return fmt.Errorf("find routing origin: %w", err)
	}
	if _, err := s.queue.Complete(ctx, visit.ID, focus); err != nil {
		return fmt.Errorf("complete queue entries: %w", err)
	}

	dest := origin
	if dest == nil {
		depts, err := s.depts.FindByNameContains(ctx, s.fallbackDept)
		if err != nil {
			return fmt.Errorf("resolve fallback department: %w", err)
		}
		if len(depts) == 0 {
			s.logger.Info().
				Str("order_id", order.ID.String()).
				Msg("no hand-back destination resolved, skipping routing")
			return nil
		}
		dest = &depts[0].ID
	}

	var quedFrom *uuid.UUID
	if svc, err := s.services.GetByID(ctx, order.ServiceID); err == nil {
		quedFrom = svc.DepartmentID
	}

	notes := "Results ready for review"
	_, err = s.queue.Enqueue(ctx, queue.EnqueueInput{
		VisitID:    visit.ID,
		PatientID:  order.PatientID,
		SentToID:   *dest,
		QuedFromID: quedFrom,
		EntryType:  queue.TypeReview,
		Notes:      &notes,
	})
	if err != nil {
		return fmt.Errorf("enqueue review entry: %w", err)
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("visit_id", visit.ID.String()).
		Str("destination", dest.String()).
		Msg("visit handed back for review")
	return nil
}
