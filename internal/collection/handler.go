package collection

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/duewell/duewell/internal/platform/httpx"
	"github.com/duewell/duewell/internal/shared"
)

// Handler manages collection case endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers case routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Post("/{id}/advance", h.advance)
	r.Post("/{id}/pause", h.pause)
	r.Post("/{id}/resume", h.resume)
	r.Post("/{id}/communication", h.recordCommunication)
	r.Put("/{id}/summary", h.updateSummary)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tc, _ := shared.TenantFromContext(r.Context())
	q := r.URL.Query()

	f := ListFilter{
		Status:     CaseStatus(q.Get("status")),
		Stage:      Stage(q.Get("stage")),
		Pagination: shared.PaginationFromQuery(q),
	}
	if raw := q.Get("company_id"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			f.CompanyID = id
		}
	}
	if raw := q.Get("action_before"); raw != "" {
		if at, err := time.Parse(time.RFC3339, raw); err == nil {
			f.ActionBefore = &at
		}
	}

	cases, err := h.service.List(r.Context(), tc, f)
	if err != nil {
		h.logger.Error("list cases", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"cases": cases})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	tc, _ := shared.TenantFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid case id")
		return
	}
	c, err := h.service.Get(r.Context(), tc, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) advance(w http.ResponseWriter, r *http.Request) {
	h.caseAction(w, r, h.service.Advance)
}

func (h *Handler) pause(w http.ResponseWriter, r *http.Request) {
	h.caseAction(w, r, h.service.Pause)
}

func (h *Handler) resume(w http.ResponseWriter, r *http.Request) {
	h.caseAction(w, r, h.service.Resume)
}

func (h *Handler) recordCommunication(w http.ResponseWriter, r *http.Request) {
	h.caseAction(w, r, h.service.RecordCommunication)
}

func (h *Handler) updateSummary(w http.ResponseWriter, r *http.Request) {
	tc, _ := shared.TenantFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid case id")
		return
	}
	var body struct {
		Summary string `json:"summary" validate:"max=2000"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	c, err := h.service.UpdateSummary(r.Context(), tc, id, body.Summary)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) caseAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, tc shared.TenantContext, id uuid.UUID) (*Case, error)) {
	tc, _ := shared.TenantFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid case id")
		return
	}
	c, err := fn(r.Context(), tc, id)
	if err != nil {
		h.logger.Error("case action", slog.Any("error", err), slog.String("id", id.String()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}
