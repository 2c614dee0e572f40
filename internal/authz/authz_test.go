package authz

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/duewell/duewell/internal/shared"
)

func TestMatrixTruthTable(t *testing.T) {
	cases := []struct {
		role    shared.Role
		action  Action
		allowed bool
	}{
		{shared.RoleViewer, ActionInvoicesView, true},
		{shared.RoleViewer, ActionInvoicesCreate, false},
		{shared.RoleViewer, ActionInvoicesCancel, false},
		{shared.RoleViewer, ActionExportsRun, true},
		{shared.RoleMember, ActionInvoicesCreate, true},
		{shared.RoleMember, ActionInvoicesMarkPaid, true},
		{shared.RoleMember, ActionInvoicesCancel, false},
		{shared.RoleMember, ActionInvoicesUpdateAmount, false},
		{shared.RoleMember, ActionInvoicesRevertPaid, false},
		{shared.RoleAdmin, ActionInvoicesCancel, true},
		{shared.RoleAdmin, ActionInvoicesRevertPaid, true},
		{shared.RoleAdmin, ActionInvoicesUpdateAmount, true},
		{shared.RoleMember, ActionJobsRun, false},
		{shared.RoleAdmin, ActionJobsRun, true},
		{shared.RoleAdmin, ActionOrgManage, false},
		{shared.RoleOwner, ActionOrgManage, true},
		{shared.RoleOwner, ActionInvoicesCancel, true},
	}
	for _, tc := range cases {
		require.Equal(t, tc.allowed, Allowed(tc.role, tc.action),
			"role=%s action=%s", tc.role, tc.action)
	}
}

func TestUnknownActionDeniedForEveryRole(t *testing.T) {
	for _, role := range []shared.Role{shared.RoleOwner, shared.RoleAdmin, shared.RoleMember, shared.RoleViewer} {
		require.False(t, Allowed(role, Action("invoices:nonexistent")))
	}
}

func TestUnknownRoleDenied(t *testing.T) {
	require.False(t, Allowed(shared.Role("SUPERUSER"), ActionInvoicesView))
}

func TestRequireWrapsPermissionDenied(t *testing.T) {
	err := Require(shared.RoleViewer, ActionInvoicesCancel)
	require.Error(t, err)
	require.True(t, errors.Is(err, shared.ErrPermissionDenied))

	require.NoError(t, Require(shared.RoleAdmin, ActionInvoicesCancel))
}

func TestActionsReturnsClosedSet(t *testing.T) {
	actions := Actions()
	require.Len(t, actions, len(matrix))
	for _, a := range actions {
		_, ok := matrix[a]
		require.True(t, ok)
	}
}
