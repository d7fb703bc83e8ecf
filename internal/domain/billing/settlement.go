package billing

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicore/hms/internal/domain/encounter"
)

// Denial reasons surfaced to the caller.
const (
	ReasonItemUnpaid    = "specific item unpaid"
	ReasonInvoiceUnpaid = "invoice unpaid"
)

// DeniedError indicates the settlement gate rejected a diagnostic order.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("settlement denied: %s", e.Reason)
}

// Decision is the settlement gate verdict.
type Decision struct {
	Allowed bool
	Reason  string
}

// SettlementInput is everything the gate inspects. Callers load the records;
// the gate itself has no side effects and hits no storage.
type SettlementInput struct {
	// Visit linked to the invoice; nil for direct orders with no visit
	// context, which are never gated.
	Visit *encounter.Visit
	// Invoice the order bills against.
	Invoice *Invoice
	// LinkedItem is the specific invoice line the order was created from;
	// nil for legacy group orders.
	LinkedItem *InvoiceItem
	// ServiceID of the ordered test, used for the fallback line search when
	// no specific item is linked.
	ServiceID *uuid.UUID
	// InvoiceItems are all lines of the invoice, for the fallback search.
	InvoiceItems []*InvoiceItem
	// ExemptMethods are payment methods that bypass the gate (e.g. SHA).
	ExemptMethods []string
}

// CheckSettlement decides whether diagnostic work billed through the given
// invoice may proceed. Outpatient pay-as-you-go is the only gated flow;
// scheme-billed and inpatient visits always pass. The gate is re-evaluated
// on every access because settlement state changes between requests.
func CheckSettlement(in SettlementInput) Decision {
	if in.Visit == nil {
		return Decision{Allowed: true}
	}
	for _, m := range in.ExemptMethods {
		if in.Visit.PaymentMethod == m {
			return Decision{Allowed: true}
		}
	}
	if !in.Visit.IsOutpatient() {
		return Decision{Allowed: true}
	}

	if in.LinkedItem != nil {
		if in.LinkedItem.IsSettled() {
			return Decision{Allowed: true}
		}
		return Decision{Allowed: false, Reason: ReasonItemUnpaid}
	}

	// Legacy group order: look for a settled line matching the ordered
	// service. A match for the same service code may belong to a different
	// order on the same invoice; behavior kept as observed.
	if in.ServiceID != nil {
		for _, item := range in.InvoiceItems {
			if item.ServiceID != nil && *item.ServiceID == *in.ServiceID && item.IsSettled() {
				return Decision{Allowed: true}
			}
		}
	}

	if in.Invoice != nil && in.Invoice.Status == InvoicePaid {
		return Decision{Allowed: true}
	}
	return Decision{Allowed: false, Reason: ReasonInvoiceUnpaid}
}
