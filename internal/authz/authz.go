// Package authz holds the role/action permission matrix. The matrix is
// data, not branching code: adding or auditing an action is a one-line
// table edit, and there is no default-allow for unknown actions.
package authz

import (
	"fmt"

	"github.com/duewell/duewell/internal/shared"
)

// Action is an atomic capability gated by the matrix.
type Action string

const (
	ActionInvoicesView            Action = "invoices:view"
	ActionInvoicesCreate          Action = "invoices:create"
	ActionInvoicesUpdate          Action = "invoices:update"
	ActionInvoicesUpdateAmount    Action = "invoices:update_amount"
	ActionInvoicesMarkPaid        Action = "invoices:mark_paid"
	ActionInvoicesRevertPaid      Action = "invoices:revert_paid"
	ActionInvoicesCancel          Action = "invoices:cancel"
	ActionInvoicesSetExpectedDate Action = "invoices:set_expected_date"
	ActionInvoicesRecordPromise   Action = "invoices:record_promise"
	ActionCasesView               Action = "cases:view"
	ActionCasesUpdate             Action = "cases:update"
	ActionCasesEscalate           Action = "cases:escalate"
	ActionCasesPause              Action = "cases:pause"
	ActionCustomersView           Action = "customers:view"
	ActionCustomersManage         Action = "customers:manage"
	ActionOrgManage               Action = "org:manage"
	ActionMembersManage           Action = "members:manage"
	ActionExportsRun              Action = "exports:run"
	ActionJobsRun                 Action = "jobs:run"
)

var (
	everyone = []shared.Role{shared.RoleOwner, shared.RoleAdmin, shared.RoleMember, shared.RoleViewer}
	writers  = []shared.Role{shared.RoleOwner, shared.RoleAdmin, shared.RoleMember}
	admins   = []shared.Role{shared.RoleOwner, shared.RoleAdmin}
)

// matrix is the closed action set. An action missing here is denied for
// every role; cancel, amount edits and the PAID reversal bypass MEMBER
// even though MEMBER writes elsewhere.
var matrix = map[Action][]shared.Role{
	ActionInvoicesView:            everyone,
	ActionInvoicesCreate:          writers,
	ActionInvoicesUpdate:          writers,
	ActionInvoicesUpdateAmount:    admins,
	ActionInvoicesMarkPaid:        writers,
	ActionInvoicesRevertPaid:      admins,
	ActionInvoicesCancel:          admins,
	ActionInvoicesSetExpectedDate: writers,
	ActionInvoicesRecordPromise:   writers,
	ActionCasesView:               everyone,
	ActionCasesUpdate:             writers,
	ActionCasesEscalate:           writers,
	ActionCasesPause:              writers,
	ActionCustomersView:           everyone,
	ActionCustomersManage:         writers,
	ActionOrgManage:               []shared.Role{shared.RoleOwner},
	ActionMembersManage:           admins,
	ActionExportsRun:              everyone,
	ActionJobsRun:                 admins,
}

// Allowed reports whether role may perform action.
func Allowed(role shared.Role, action Action) bool {
	roles, ok := matrix[action]
	if !ok {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// Require returns ErrPermissionDenied when role may not perform action.
func Require(role shared.Role, action Action) error {
	if !Allowed(role, action) {
		return fmt.Errorf("%s for role %s: %w", action, role, shared.ErrPermissionDenied)
	}
	return nil
}

// Actions returns the closed action set, for introspection endpoints.
func Actions() []Action {
	out := make([]Action, 0, len(matrix))
	for a := range matrix {
		out = append(out, a)
	}
	return out
}
