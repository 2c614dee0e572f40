package shared

import (
	"context"

	"github.com/google/uuid"
)

// TenantContext identifies the actor and the organization a request acts
// within. Every core operation takes it as input; none may run without it.
type TenantContext struct {
	OrgID   uuid.UUID
	ActorID uuid.UUID
	Role    Role
}

// Valid reports whether the context carries an organization, an actor and
// a known role.
func (tc TenantContext) Valid() bool {
	return tc.OrgID != uuid.Nil && tc.ActorID != uuid.Nil && tc.Role.Valid()
}

type tenantContextKey struct{}

// ContextWithTenant stores the tenant context in ctx.
func ContextWithTenant(ctx context.Context, tc TenantContext) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tc)
}

// TenantFromContext extracts the tenant context. The second return is false
// when no tenant context was attached.
func TenantFromContext(ctx context.Context) (TenantContext, bool) {
	tc, ok := ctx.Value(tenantContextKey{}).(TenantContext)
	return tc, ok
}

type userContextKey struct{}

// ContextWithUser stores the authenticated user id. Set even before an
// organization is selected; tenant provisioning relies on it.
func ContextWithUser(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userContextKey{}, userID)
}

// UserFromContext extracts the authenticated user id.
func UserFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userContextKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}
