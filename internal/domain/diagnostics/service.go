package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/clinicore/hms/internal/domain/billing"
	"github.com/clinicore/hms/internal/domain/directory"
	"github.com/clinicore/hms/internal/domain/encounter"
	"github.com/clinicore/hms/internal/domain/queue"
	"github.com/clinicore/hms/internal/platform/db"
	"github.com/clinicore/hms/pkg/pagination"
)

// Service owns the diagnostic order lifecycle: creation behind the
// settlement gate, result updates, report finalization and the hand-back
// routing that follows it.
type Service struct {
	orders   OrderRepository
	reports  ReportRepository
	params   ParameterRepository
	invoices billing.InvoiceRepository
	items    billing.InvoiceItemRepository
	services billing.ServiceRepository
	visits   encounter.Repository
	queue    *queue.Engine
	depts    directory.Directory
	pool     *pgxpool.Pool
	logger   zerolog.Logger

	exemptMethods []string
	fallbackDept  string
}

type ServiceDeps struct {
	Orders   OrderRepository
	Reports  ReportRepository
	Params   ParameterRepository
	Invoices billing.InvoiceRepository
	Items    billing.InvoiceItemRepository
	Services billing.ServiceRepository
	Visits   encounter.Repository
	Queue    *queue.Engine
	Depts    directory.Directory
	Pool     *pgxpool.Pool
	Logger   zerolog.Logger

	ExemptPaymentMethods []string
	FallbackDepartment   string
}

func NewService(d ServiceDeps) *Service {
	if d.FallbackDepartment == "" {
		d.FallbackDepartment = "Consultation"
	}
	return &Service{
		orders:        d.Orders,
		reports:       d.Reports,
		params:        d.Params,
		invoices:      d.Invoices,
		items:         d.Items,
		services:      d.Services,
		visits:        d.Visits,
		queue:         d.Queue,
		depts:         d.Depts,
		pool:          d.Pool,
		logger:        d.Logger,
		exemptMethods: d.ExemptPaymentMethods,
		fallbackDept:  d.FallbackDepartment,
	}
}

// inTx runs fn in a transaction when a pool is configured. Tests wire the
// service with a nil pool and map-backed repos, where fn runs directly.
func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.pool == nil {
		return fn(ctx)
	}
	return db.RunInTx(ctx, s.pool, fn)
}

// OrderSource names the billing record an order is created from. Exactly one
// of the two constructors applies; the transport layer resolves ambiguous
// identifiers (item probed first) before calling the service.
type OrderSource struct {
	itemID    *uuid.UUID
	invoiceID *uuid.UUID
	serviceID *uuid.UUID
}

// ByItem orders against one specific invoice line.
func ByItem(itemID uuid.UUID) OrderSource {
	return OrderSource{itemID: &itemID}
}

// ByInvoice orders a service against a whole invoice, without a dedicated
// line. Settlement then falls back to the service-match search.
func ByInvoice(invoiceID, serviceID uuid.UUID) OrderSource {
	return OrderSource{invoiceID: &invoiceID, serviceID: &serviceID}
}

type CreateOrderInput struct {
	Priority      string
	ScheduledFor  *time.Time
	ClinicalNotes *string
	// BypassGate skips the settlement check. Set by the transport layer for
	// capabilities that may order ahead of payment, never by default.
	BypassGate bool
	ActorID    string
}

// CreateOrder creates a diagnostic order from a billing source. Creation is
// idempotent per invoice item: ordering twice from the same line returns the
// existing order instead of duplicating it.
func (s *Service) CreateOrder(ctx context.Context, src OrderSource, in CreateOrderInput) (*Order, error) {
	if in.Priority == "" {
		in.Priority = PriorityNormal
	}

	if src.itemID != nil {
		return s.createFromItem(ctx, *src.itemID, in)
	}
	if src.invoiceID != nil && src.serviceID != nil {
		return s.createFromInvoice(ctx, *src.invoiceID, *src.serviceID, in)
	}
	return nil, fmt.Errorf("order source: %w", ErrNotFound)
}

func (s *Service) createFromItem(ctx context.Context, itemID uuid.UUID, in CreateOrderInput) (*Order, error) {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			return nil, fmt.Errorf("invoice item %s: %w", itemID, ErrNotFound)
		}
		return nil, fmt.Errorf("load invoice item: %w", err)
	}

	if existing, err := s.orders.GetByInvoiceItem(ctx, item.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check existing order: %w", err)
	}

	if item.ServiceID == nil {
		return nil, fmt.Errorf("invoice item %s has no service: %w", itemID, ErrNotFound)
	}

	invoice, err := s.invoices.GetByID(ctx, item.InvoiceID)
	if err != nil {
		return nil, fmt.Errorf("load invoice: %w", err)
	}

	if !in.BypassGate {
		visit, err := s.resolveVisit(ctx, invoice)
		if err != nil {
			return nil, err
		}
		decision := billing.CheckSettlement(billing.SettlementInput{
			Visit:         visit,
			Invoice:       invoice,
			LinkedItem:    item,
			ExemptMethods: s.exemptMethods,
		})
		if !decision.Allowed {
			return nil, &billing.DeniedError{Reason: decision.Reason}
		}
	}

	order := &Order{
		PatientID:     invoice.PatientID,
		ServiceID:     *item.ServiceID,
		InvoiceID:     &invoice.ID,
		InvoiceItemID: &item.ID,
		RequestedBy:   in.ActorID,
		Status:        StatusPending,
		Priority:      in.Priority,
		ClinicalNotes: in.ClinicalNotes,
		ScheduledFor:  in.ScheduledFor,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("invoice_item_id", item.ID.String()).
		Str("requested_by", in.ActorID).
		Msg("diagnostic order created")
	return order, nil
}

func (s *Service) createFromInvoice(ctx context.Context, invoiceID, serviceID uuid.UUID, in CreateOrderInput) (*Order, error) {
	invoice, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			return nil, fmt.Errorf("invoice %s: %w", invoiceID, ErrNotFound)
		}
		return nil, fmt.Errorf("load invoice: %w", err)
	}

	if !in.BypassGate {
		visit, err := s.resolveVisit(ctx, invoice)
		if err != nil {
			return nil, err
		}
		items, err := s.invoices.GetItems(ctx, invoice.ID)
		if err != nil {
			return nil, fmt.Errorf("load invoice items: %w", err)
		}
		decision := billing.CheckSettlement(billing.SettlementInput{
			Visit:         visit,
			Invoice:       invoice,
			ServiceID:     &serviceID,
			InvoiceItems:  items,
			ExemptMethods: s.exemptMethods,
		})
		if !decision.Allowed {
			return nil, &billing.DeniedError{Reason: decision.Reason}
		}
	}

	order := &Order{
		PatientID:     invoice.PatientID,
		ServiceID:     serviceID,
		InvoiceID:     &invoice.ID,
		RequestedBy:   in.ActorID,
		Status:        StatusPending,
		Priority:      in.Priority,
		ClinicalNotes: in.ClinicalNotes,
		ScheduledFor:  in.ScheduledFor,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("invoice_id", invoice.ID.String()).
		Str("requested_by", in.ActorID).
		Msg("diagnostic order created")
	return order, nil
}

// resolveVisit loads the visit the invoice bills under. Invoices without a
// visit (direct sales) resolve to nil and are never gated.
func (s *Service) resolveVisit(ctx context.Context, invoice *billing.Invoice) (*encounter.Visit, error) {
	if invoice.VisitID == nil {
		return nil, nil
	}
	visit, err := s.visits.GetByID(ctx, *invoice.VisitID)
	if errors.Is(err, encounter.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load visit: %w", err)
	}
	return visit, nil
}

// CheckOrderAccess re-runs the settlement gate for an existing order.
// Settlement state moves between requests, so the verdict is never cached.
// Orders with no billing linkage always pass.
func (s *Service) CheckOrderAccess(ctx context.Context, order *Order) error {
	if order.InvoiceID == nil {
		return nil
	}
	invoice, err := s.invoices.GetByID(ctx, *order.InvoiceID)
	if err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load invoice: %w", err)
	}
	visit, err := s.resolveVisit(ctx, invoice)
	if err != nil {
		return err
	}

	in := billing.SettlementInput{
		Visit:         visit,
		Invoice:       invoice,
		ServiceID:     &order.ServiceID,
		ExemptMethods: s.exemptMethods,
	}
	if order.InvoiceItemID != nil {
		item, err := s.items.GetByID(ctx, *order.InvoiceItemID)
		if err != nil && !errors.Is(err, billing.ErrNotFound) {
			return fmt.Errorf("load invoice item: %w", err)
		}
		in.LinkedItem = item
	}
	if in.LinkedItem == nil {
		items, err := s.invoices.GetItems(ctx, invoice.ID)
		if err != nil {
			return fmt.Errorf("load invoice items: %w", err)
		}
		in.InvoiceItems = items
	}

	if decision := billing.CheckSettlement(in); !decision.Allowed {
		return &billing.DeniedError{Reason: decision.Reason}
	}
	return nil
}

type UpdateStatusInput struct {
	Status         string
	Results        *string
	Interpretation *string
	ActorID        string
}

// UpdateStatus records progress on an order the caller has already loaded.
// Any status may be set; the bench workflow is not linear. The performer
// defaults to the acting user on first update and completed_at is stamped
// only on the first move to Completed.
func (s *Service) UpdateStatus(ctx context.Context, order *Order, in UpdateStatusInput) (*Order, error) {
	order.Status = in.Status
	if in.Results != nil {
		order.Results = in.Results
	}
	if in.Interpretation != nil {
		order.Interpretation = in.Interpretation
	}
	if order.PerformedBy == nil && in.ActorID != "" {
		order.PerformedBy = &in.ActorID
	}
	if in.Status == StatusCompleted && order.CompletedAt == nil {
		now := time.Now()
		order.CompletedAt = &now
	}

	if err := s.orders.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	return order, nil
}

type ReportInput struct {
	Body       string
	IsFinal    bool
	ReviewerID *string
	ActorID    string
}

// AttachReport creates or updates the report of an order the caller has
// already loaded. Finalizing a report (is_final moving false to true)
// completes the performing department's queue entries and hands the visit
// back for review; the report write and the routing commit or roll back
// together. Re-finalizing an already final report does not route again.
func (s *Service) AttachReport(ctx context.Context, order *Order, in ReportInput) (*Report, error) {
	var report *Report
	err := s.inTx(ctx, func(ctx context.Context) error {
		rep := &Report{
			OrderID:   order.ID,
			Body:      in.Body,
			CreatedBy: in.ActorID,
			IsFinal:   in.IsFinal,
		}
		if in.IsFinal && in.ReviewerID != nil {
			now := time.Now()
			rep.ReviewedBy = in.ReviewerID
			rep.ReviewedAt = &now
		}

		wasFinal, err := s.reports.Upsert(ctx, rep)
		if err != nil {
			return fmt.Errorf("upsert report: %w", err)
		}
		report = rep

		if in.IsFinal && !wasFinal {
			if err := s.handback(ctx, order); err != nil {
				return fmt.Errorf("hand back visit: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

type ParameterInput struct {
	Name           string
	Value          string
	Unit           *string
	ReferenceRange *string
}

// AddParameter appends a measured value to an order. Purely additive.
func (s *Service) AddParameter(ctx context.Context, orderID uuid.UUID, in ParameterInput) (*Parameter, error) {
	if _, err := s.orders.GetByID(ctx, orderID); err != nil {
		return nil, err
	}
	p := &Parameter{
		OrderID:        orderID,
		Name:           in.Name,
		Value:          in.Value,
		Unit:           in.Unit,
		ReferenceRange: in.ReferenceRange,
	}
	if err := s.params.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create parameter: %w", err)
	}
	return p, nil
}

// OrderDetail is the full read model for one order.
type OrderDetail struct {
	Order      *Order       `json:"order"`
	Report     *Report      `json:"report,omitempty"`
	Parameters []*Parameter `json:"parameters,omitempty"`
}

func (s *Service) GetOrderDetail(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	detail := &OrderDetail{Order: order}

	report, err := s.reports.GetByOrderID(ctx, orderID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("load report: %w", err)
	}
	detail.Report = report

	params, err := s.params.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load parameters: %w", err)
	}
	detail.Parameters = params
	return detail, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

func (s *Service) ListOrders(ctx context.Context, f OrderFilter, p pagination.Params) ([]*Order, int, error) {
	return s.orders.List(ctx, f, p)
}

// Dashboard returns workload and payment counts for a department focus.
func (s *Service) Dashboard(ctx context.Context, focus string) (*Stats, error) {
	return s.orders.Stats(ctx, focus)
}

// FocusForRoles maps the actor's roles to a department focus. Lab is the
// default for performing staff with no imaging role.
func FocusForRoles(roles []string) string {
	for _, r := range roles {
		if r == "radiographer" {
			return FocusImaging
		}
	}
	return FocusLab
}

// focusForOrder derives the department focus from the ordered service's
// owning department name.
func focusForOrder(order *Order) string {
	if order.DepartmentName == nil {
		return FocusLab
	}
	name := strings.ToLower(*order.DepartmentName)
	if strings.Contains(name, "imaging") || strings.Contains(name, "radiolog") {
		return FocusImaging
	}
	return FocusLab
}
