package authz

import (
	"log/slog"
	"net/http"

	"github.com/duewell/duewell/internal/platform/httpx"
	"github.com/duewell/duewell/internal/shared"
)

// Middleware wires authorization checks into HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// Require ensures the request's tenant context allows the action.
func (m Middleware) Require(action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tc, ok := shared.TenantFromContext(r.Context())
			if !ok || !tc.Valid() {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no tenant context")
				return
			}
			if err := Require(tc.Role, action); err != nil {
				if m.Logger != nil {
					m.Logger.Warn("action denied",
						slog.String("action", string(action)),
						slog.String("role", string(tc.Role)),
						slog.String("actor_id", tc.ActorID.String()))
				}
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
