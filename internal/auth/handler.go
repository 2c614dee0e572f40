package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/duewell/duewell/internal/org"
	"github.com/duewell/duewell/internal/platform/httpx"
	"github.com/duewell/duewell/internal/shared"
)

// MembershipSource resolves a user's organization memberships.
type MembershipSource interface {
	Memberships(ctx context.Context, userID uuid.UUID) ([]org.Membership, error)
}

// Handler manages login, logout and organization selection.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	sessions    *SessionManager
	memberships MembershipSource
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *SessionManager, memberships MembershipSource) *Handler {
	return &Handler{logger: logger, service: service, sessions: sessions, memberships: memberships}
}

// MountRoutes registers auth routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
	r.Post("/select-org", h.selectOrg)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	user, err := h.service.Authenticate(r.Context(), body.Email, body.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	data := SessionData{UserID: user.ID}
	// Single-org users land in their tenant straight away.
	members, err := h.memberships.Memberships(r.Context(), user.ID)
	if err == nil && len(members) == 1 {
		data.OrgID = members[0].OrgID
		data.Role = members[0].Role
	}

	token, err := h.sessions.Create(r.Context(), data)
	if err != nil {
		h.logger.Error("create session", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"token":   token,
		"user_id": user.ID,
		"org_id":  data.OrgID,
		"role":    data.Role,
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token != "" {
		if err := h.sessions.Delete(r.Context(), token); err != nil {
			h.logger.Warn("delete session", slog.Any("error", err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) selectOrg(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	userID, ok := shared.UserFromContext(r.Context())
	if token == "" || !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in required")
		return
	}
	var body struct {
		OrgID string `json:"org_id" validate:"required,uuid4"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	orgID, err := uuid.Parse(body.OrgID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid org id")
		return
	}

	members, err := h.memberships.Memberships(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	for _, m := range members {
		if m.OrgID == orgID {
			if err := h.sessions.Update(r.Context(), token, SessionData{
				UserID: userID, OrgID: m.OrgID, Role: m.Role,
			}); err != nil {
				h.logger.Error("update session", slog.Any("error", err))
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			httpx.JSON(w, http.StatusOK, map[string]any{"org_id": m.OrgID, "role": m.Role})
			return
		}
	}
	// Not a member: indistinguishable from a nonexistent organization.
	httpx.RespondError(w, shared.ErrNotFound)
}
