package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/duewell/duewell/internal/shared"
)

func requestWithRole(role shared.Role) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/invoices", nil)
	tc := shared.TenantContext{OrgID: uuid.New(), ActorID: uuid.New(), Role: role}
	return req.WithContext(shared.ContextWithTenant(req.Context(), tc))
}

func TestMiddlewareRequire(t *testing.T) {
	var reached bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})

	t.Run("allowed role passes through", func(t *testing.T) {
		reached = false
		rec := httptest.NewRecorder()
		Middleware{}.Require(ActionInvoicesView)(next).ServeHTTP(rec, requestWithRole(shared.RoleViewer))
		require.True(t, reached)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("denied role gets 403", func(t *testing.T) {
		reached = false
		rec := httptest.NewRecorder()
		Middleware{}.Require(ActionInvoicesCancel)(next).ServeHTTP(rec, requestWithRole(shared.RoleViewer))
		require.False(t, reached)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("missing tenant context gets 401", func(t *testing.T) {
		reached = false
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/invoices", nil)
		Middleware{}.Require(ActionInvoicesView)(next).ServeHTTP(rec, req)
		require.False(t, reached)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
