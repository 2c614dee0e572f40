package jobs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/duewell/duewell/internal/shared"
)

func sweepRequest(t *testing.T, name string, role shared.Role) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/jobs/sweeps/"+name, nil)
	if role != "" {
		tc := shared.TenantContext{OrgID: uuid.New(), ActorID: uuid.New(), Role: role}
		req = req.WithContext(shared.ContextWithTenant(req.Context(), tc))
	}
	return req
}

func TestTriggerSweep(t *testing.T) {
	h := NewHandler(nil, nil, discardLogger())
	router := chi.NewRouter()
	router.Route("/jobs", h.MountRoutes)

	t.Run("no tenant context", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, sweepRequest(t, "overdue", ""))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("viewer denied", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, sweepRequest(t, "overdue", shared.RoleViewer))
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown sweep name", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, sweepRequest(t, "nonsense", shared.RoleAdmin))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("queue not configured", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, sweepRequest(t, "promise", shared.RoleAdmin))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
