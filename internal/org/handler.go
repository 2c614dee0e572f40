package org

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/duewell/duewell/internal/platform/httpx"
	"github.com/duewell/duewell/internal/shared"
)

// Handler manages organization endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers organization routes. Provisioning happens before
// a tenant context exists, so it mounts outside the tenant middleware.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/current", h.current)
}

type createRequest struct {
	Name            string `json:"name" validate:"required,max=200"`
	CountryCode     string `json:"country_code" validate:"omitempty,len=2"`
	DefaultCurrency string `json:"default_currency" validate:"required,len=3"`
	IdempotencyKey  string `json:"idempotency_key" validate:"required,max=100"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(r)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in required")
		return
	}

	var body createRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	result, err := h.service.CreateOrganizationWithOwner(r.Context(), CreateInput{
		UserID:          userID,
		Name:            body.Name,
		CountryCode:     body.CountryCode,
		DefaultCurrency: body.DefaultCurrency,
		IdempotencyKey:  body.IdempotencyKey,
	})
	if err != nil {
		h.logger.Error("provision organization", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	status := http.StatusCreated
	if result.IsDuplicate {
		status = http.StatusOK
	}
	httpx.JSON(w, status, map[string]any{
		"organization": result.Organization,
		"membership":   result.Membership,
		"is_duplicate": result.IsDuplicate,
	})
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	tc, ok := shared.TenantFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no tenant context")
		return
	}
	organization, err := h.service.Get(r.Context(), tc.OrgID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, organization)
}

// userFromRequest resolves the authenticated user id. Provisioning runs
// before org selection, so only the user id is required here.
func userFromRequest(r *http.Request) (uuid.UUID, bool) {
	if id, ok := shared.UserFromContext(r.Context()); ok {
		return id, true
	}
	if tc, ok := shared.TenantFromContext(r.Context()); ok && tc.ActorID != uuid.Nil {
		return tc.ActorID, true
	}
	return uuid.Nil, false
}
