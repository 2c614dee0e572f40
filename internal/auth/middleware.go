package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/duewell/duewell/internal/platform/httpx"
	"github.com/duewell/duewell/internal/shared"
)

// Middleware resolves bearer tokens into request context.
type Middleware struct {
	Sessions *SessionManager
	Logger   *slog.Logger
}

// WithSession attaches the user and, when an organization is selected,
// the tenant context. Requests without a token pass through untouched;
// handlers that need identity reject them downstream.
func (m Middleware) WithSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		data, err := m.Sessions.Get(r.Context(), token)
		if err != nil {
			if !errors.Is(err, ErrSessionNotFound) {
				m.Logger.Error("load session", slog.Any("error", err))
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		ctx := shared.ContextWithUser(r.Context(), data.UserID)
		if data.OrgID != uuid.Nil && data.Role != "" {
			ctx = shared.ContextWithTenant(ctx, shared.TenantContext{
				OrgID:   data.OrgID,
				ActorID: data.UserID,
				Role:    data.Role,
			})
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireTenant rejects requests lacking a full tenant context.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc, ok := shared.TenantFromContext(r.Context())
		if !ok || !tc.Valid() {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "organization context required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}
