package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/duewell/duewell/internal/shared"
)

func newSessionFixture(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewSessionManager(client, time.Hour), mr
}

func TestSessionLifecycle(t *testing.T) {
	sm, _ := newSessionFixture(t)
	ctx := context.Background()

	userID := uuid.New()
	token, err := sm.Create(ctx, SessionData{UserID: userID})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	data, err := sm.Get(ctx, token)
	require.NoError(t, err)
	require.Equal(t, userID, data.UserID)
	require.Equal(t, uuid.Nil, data.OrgID)

	// Selecting an organization updates the payload behind the same token.
	orgID := uuid.New()
	require.NoError(t, sm.Update(ctx, token, SessionData{UserID: userID, OrgID: orgID, Role: shared.RoleAdmin}))

	data, err = sm.Get(ctx, token)
	require.NoError(t, err)
	require.Equal(t, orgID, data.OrgID)
	require.Equal(t, shared.RoleAdmin, data.Role)

	require.NoError(t, sm.Delete(ctx, token))
	_, err = sm.Get(ctx, token)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionUnknownToken(t *testing.T) {
	sm, _ := newSessionFixture(t)

	_, err := sm.Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrSessionNotFound)

	err = sm.Update(context.Background(), "nope", SessionData{UserID: uuid.New()})
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionExpires(t *testing.T) {
	sm, mr := newSessionFixture(t)
	ctx := context.Background()

	token, err := sm.Create(ctx, SessionData{UserID: uuid.New()})
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	_, err = sm.Get(ctx, token)
	require.ErrorIs(t, err, ErrSessionNotFound)
}
