package shared

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestTenantContextValid(t *testing.T) {
	tc := TenantContext{OrgID: uuid.New(), ActorID: uuid.New(), Role: RoleMember}
	require.True(t, tc.Valid())

	require.False(t, TenantContext{ActorID: uuid.New(), Role: RoleMember}.Valid())
	require.False(t, TenantContext{OrgID: uuid.New(), Role: RoleMember}.Valid())
	require.False(t, TenantContext{OrgID: uuid.New(), ActorID: uuid.New(), Role: "ROOT"}.Valid())
}

func TestTenantContextRoundTrip(t *testing.T) {
	tc := TenantContext{OrgID: uuid.New(), ActorID: uuid.New(), Role: RoleAdmin}
	ctx := ContextWithTenant(context.Background(), tc)

	got, ok := TenantFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, tc, got)

	_, ok = TenantFromContext(context.Background())
	require.False(t, ok)
}

func TestPaginationNormalize(t *testing.T) {
	p := Pagination{}.Normalize()
	require.Equal(t, 50, p.Limit)
	require.Equal(t, 0, p.Offset)

	p = Pagination{Limit: 9999, Offset: -3}.Normalize()
	require.Equal(t, 500, p.Limit)
	require.Equal(t, 0, p.Offset)
}
