package queue

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicore/hms/internal/domain/encounter"
	"github.com/clinicore/hms/internal/platform/validate"
	"github.com/clinicore/hms/pkg/pagination"
)

type Handler struct {
	engine *Engine
	visits encounter.Repository
}

func NewHandler(engine *Engine, visits encounter.Repository) *Handler {
	return &Handler{engine: engine, visits: visits}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/queue", h.Board)
	g.POST("/queue", h.Enqueue)
	g.POST("/queue/:id/complete", h.CompleteEntry)
}

// Board lists a department's queue or a visit's routing history.
// GET /api/v1/queue?department_id=...&status=PENDING
// GET /api/v1/queue?visit_id=...
func (h *Handler) Board(c echo.Context) error {
	ctx := c.Request().Context()

	if v := c.QueryParam("visit_id"); v != "" {
		visitID, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid visit_id")
		}
		entries, err := h.engine.History(ctx, visitID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to list queue entries")
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"entries": entries})
	}

	deptID, err := uuid.Parse(c.QueryParam("department_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "department_id or visit_id required")
	}
	status := c.QueryParam("status")
	if status != "" && status != StatusPending && status != StatusCompleted {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid status filter")
	}

	p := pagination.FromContext(c)
	entries, total, err := h.engine.Board(ctx, deptID, status, p)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list queue entries")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, p.Limit, p.Offset))
}

type enqueueRequest struct {
	// VisitID may be omitted for walk-ins; the patient's current visit is
	// looked up instead.
	VisitID    *string `json:"visit_id,omitempty" validate:"omitempty,uuid"`
	PatientID  string  `json:"patient_id" validate:"required,uuid"`
	SentToID   string  `json:"sent_to_id" validate:"required,uuid"`
	QuedFromID *string `json:"qued_from_id,omitempty" validate:"omitempty,uuid"`
	EntryType  string  `json:"entry_type,omitempty" validate:"omitempty,oneof=INITIAL REVIEW"`
	Notes      *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// Enqueue routes a visit to a department.
// POST /api/v1/queue
func (h *Handler) Enqueue(c echo.Context) error {
	var req enqueueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if ferrs := validate.Struct(&req); ferrs != nil {
		return echo.NewHTTPError(http.StatusBadRequest, ferrs)
	}
	ctx := c.Request().Context()
	patientID := uuid.MustParse(req.PatientID)

	var visitID uuid.UUID
	if req.VisitID != nil {
		visitID = uuid.MustParse(*req.VisitID)
	} else {
		visit, err := h.visits.GetActiveForPatient(ctx, patientID)
		if err != nil {
			if errors.Is(err, encounter.ErrNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "patient has no visit to queue")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to resolve patient visit")
		}
		visitID = visit.ID
	}

	in := EnqueueInput{
		VisitID:   visitID,
		PatientID: patientID,
		SentToID:  uuid.MustParse(req.SentToID),
		EntryType: req.EntryType,
		Notes:     req.Notes,
	}
	if req.QuedFromID != nil {
		id := uuid.MustParse(*req.QuedFromID)
		in.QuedFromID = &id
	}

	entry, err := h.engine.Enqueue(ctx, in)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return echo.NewHTTPError(http.StatusConflict, "concurrent routing conflict, retry the request")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to enqueue visit")
	}
	return c.JSON(http.StatusCreated, entry)
}

// CompleteEntry marks one queue entry done.
// POST /api/v1/queue/:id/complete
func (h *Handler) CompleteEntry(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid queue entry id")
	}
	entry, err := h.engine.CompleteEntry(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "queue entry not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to complete queue entry")
	}
	return c.JSON(http.StatusOK, entry)
}
