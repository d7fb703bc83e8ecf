package diagnostics

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicore/hms/internal/domain/billing"
	"github.com/clinicore/hms/internal/platform/auth"
	"github.com/clinicore/hms/internal/platform/validate"
	"github.com/clinicore/hms/pkg/pagination"
)

type Handler struct {
	svc      *Service
	items    billing.InvoiceItemRepository
	invoices billing.InvoiceRepository
}

func NewHandler(svc *Service, items billing.InvoiceItemRepository, invoices billing.InvoiceRepository) *Handler {
	return &Handler{svc: svc, items: items, invoices: invoices}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/diagnostic-orders", h.CreateOrder)
	g.GET("/diagnostic-orders", h.ListOrders)
	g.GET("/diagnostic-orders/:id", h.GetOrder)
	g.PUT("/diagnostic-orders/:id/status", h.UpdateStatus)
	g.PUT("/diagnostic-orders/:id/report", h.AttachReport)
	g.POST("/diagnostic-orders/:id/parameters", h.AddParameter)
	g.GET("/diagnostics/dashboard", h.Dashboard)
}

type createOrderRequest struct {
	// SourceID is an ambiguous billing reference, probed as an invoice item
	// first and as an invoice second. The explicit fields skip the probe.
	SourceID      *string    `json:"source_id,omitempty" validate:"omitempty,uuid"`
	InvoiceItemID *string    `json:"invoice_item_id,omitempty" validate:"omitempty,uuid"`
	InvoiceID     *string    `json:"invoice_id,omitempty" validate:"omitempty,uuid"`
	ServiceID     *string    `json:"service_id,omitempty" validate:"omitempty,uuid"`
	Priority      string     `json:"priority,omitempty" validate:"omitempty,oneof=Low Normal High Urgent"`
	ScheduledFor  *time.Time `json:"scheduled_for,omitempty"`
	ClinicalNotes *string    `json:"clinical_notes,omitempty" validate:"omitempty,max=4000"`
}

// CreateOrder creates a diagnostic order from a billing source.
// POST /api/v1/diagnostic-orders
func (h *Handler) CreateOrder(c echo.Context) error {
	var req createOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}

	ctx := c.Request().Context()
	src, err := h.resolveSource(c, &req)
	if err != nil {
		return err
	}

	order, err := h.svc.CreateOrder(ctx, src, CreateOrderInput{
		Priority:      req.Priority,
		ScheduledFor:  req.ScheduledFor,
		ClinicalNotes: req.ClinicalNotes,
		ActorID:       auth.UserIDFromContext(ctx),
	})
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, order)
}

// resolveSource turns the request's billing reference into an OrderSource.
// Ambiguous source_id values are probed against invoice items before
// invoices, matching how order forms reference either record.
func (h *Handler) resolveSource(c echo.Context, req *createOrderRequest) (OrderSource, error) {
	ctx := c.Request().Context()

	if req.InvoiceItemID != nil {
		return ByItem(uuid.MustParse(*req.InvoiceItemID)), nil
	}
	if req.InvoiceID != nil {
		if req.ServiceID == nil {
			return OrderSource{}, echo.NewHTTPError(http.StatusBadRequest, "service_id required when ordering by invoice")
		}
		return ByInvoice(uuid.MustParse(*req.InvoiceID), uuid.MustParse(*req.ServiceID)), nil
	}
	if req.SourceID == nil {
		return OrderSource{}, echo.NewHTTPError(http.StatusBadRequest, "source_id, invoice_item_id or invoice_id required")
	}

	id := uuid.MustParse(*req.SourceID)
	if _, err := h.items.GetByID(ctx, id); err == nil {
		return ByItem(id), nil
	} else if !errors.Is(err, billing.ErrNotFound) {
		return OrderSource{}, echo.NewHTTPError(http.StatusInternalServerError, "failed to resolve order source")
	}
	if _, err := h.invoices.GetByID(ctx, id); err == nil {
		if req.ServiceID == nil {
			return OrderSource{}, echo.NewHTTPError(http.StatusBadRequest, "service_id required when ordering by invoice")
		}
		return ByInvoice(id, uuid.MustParse(*req.ServiceID)), nil
	} else if !errors.Is(err, billing.ErrNotFound) {
		return OrderSource{}, echo.NewHTTPError(http.StatusInternalServerError, "failed to resolve order source")
	}
	return OrderSource{}, echo.NewHTTPError(http.StatusNotFound, "order source not found")
}

// GetOrder returns the order with its report and parameters. Performing
// staff face the settlement gate on every read; other roles see the record
// without it.
// GET /api/v1/diagnostic-orders/:id
func (h *Handler) GetOrder(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}
	ctx := c.Request().Context()

	detail, err := h.svc.GetOrderDetail(ctx, id)
	if err != nil {
		return mapServiceError(err)
	}

	if auth.IsDiagnosticsPerformer(auth.RolesFromContext(ctx)) {
		if err := h.svc.CheckOrderAccess(ctx, detail.Order); err != nil {
			return mapServiceError(err)
		}
	}
	return c.JSON(http.StatusOK, detail)
}

// ListOrders lists orders, filterable by patient, status and department
// focus.
// GET /api/v1/diagnostic-orders
func (h *Handler) ListOrders(c echo.Context) error {
	var f OrderFilter
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = id
	}
	f.Status = c.QueryParam("status")
	f.Focus = c.QueryParam("focus")

	p := pagination.FromContext(c)
	orders, total, err := h.svc.ListOrders(c.Request().Context(), f, p)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list orders")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(orders, total, p.Limit, p.Offset))
}

type updateStatusRequest struct {
	Status         string  `json:"status" validate:"required,oneof=Pending 'In Progress' Completed Cancelled"`
	Results        *string `json:"results,omitempty" validate:"omitempty,max=8000"`
	Interpretation *string `json:"interpretation,omitempty" validate:"omitempty,max=8000"`
}

// UpdateStatus records progress and results on an order.
// PUT /api/v1/diagnostic-orders/:id/status
func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}
	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}
	ctx := c.Request().Context()

	order, err := h.loadGated(c, id)
	if err != nil {
		return err
	}

	order, err = h.svc.UpdateStatus(ctx, order, UpdateStatusInput{
		Status:         req.Status,
		Results:        req.Results,
		Interpretation: req.Interpretation,
		ActorID:        auth.UserIDFromContext(ctx),
	})
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, order)
}

type attachReportRequest struct {
	Body       string  `json:"body" validate:"required,max=20000"`
	IsFinal    bool    `json:"is_final"`
	ReviewerID *string `json:"reviewer_id,omitempty"`
}

// AttachReport creates or updates the order's report; finalizing triggers
// the hand-back routing.
// PUT /api/v1/diagnostic-orders/:id/report
func (h *Handler) AttachReport(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}
	var req attachReportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}
	ctx := c.Request().Context()

	order, err := h.loadGated(c, id)
	if err != nil {
		return err
	}

	report, err := h.svc.AttachReport(ctx, order, ReportInput{
		Body:       req.Body,
		IsFinal:    req.IsFinal,
		ReviewerID: req.ReviewerID,
		ActorID:    auth.UserIDFromContext(ctx),
	})
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, report)
}

type addParameterRequest struct {
	Name           string  `json:"name" validate:"required,max=200"`
	Value          string  `json:"value" validate:"required,max=500"`
	Unit           *string `json:"unit,omitempty" validate:"omitempty,max=50"`
	ReferenceRange *string `json:"reference_range,omitempty" validate:"omitempty,max=200"`
}

// AddParameter appends a measured value row to an order.
// POST /api/v1/diagnostic-orders/:id/parameters
func (h *Handler) AddParameter(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}
	var req addParameterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}

	param, err := h.svc.AddParameter(c.Request().Context(), id, ParameterInput{
		Name:           req.Name,
		Value:          req.Value,
		Unit:           req.Unit,
		ReferenceRange: req.ReferenceRange,
	})
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, param)
}

// Dashboard returns workload and payment counts for the actor's department
// focus, overridable by the focus query param.
// GET /api/v1/diagnostics/dashboard
func (h *Handler) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()
	focus := c.QueryParam("focus")
	if focus == "" {
		focus = FocusForRoles(auth.RolesFromContext(ctx))
	}

	stats, err := h.svc.Dashboard(ctx, focus)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load dashboard")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"focus": focus, "stats": stats})
}

// loadGated loads the order once for the rest of the request, re-running
// the settlement gate when the acting user is performing staff.
func (h *Handler) loadGated(c echo.Context, orderID uuid.UUID) (*Order, error) {
	ctx := c.Request().Context()
	order, err := h.svc.GetOrder(ctx, orderID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	if auth.IsDiagnosticsPerformer(auth.RolesFromContext(ctx)) {
		if err := h.svc.CheckOrderAccess(ctx, order); err != nil {
			return nil, mapServiceError(err)
		}
	}
	return order, nil
}

func mapServiceError(err error) error {
	var denied *billing.DeniedError
	if errors.As(err, &denied) {
		return echo.NewHTTPError(http.StatusConflict, map[string]string{
			"error":  "payment required before proceeding",
			"reason": denied.Reason,
		})
	}
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "diagnostic record not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "request failed")
}
