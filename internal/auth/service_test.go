package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/duewell/duewell/internal/shared"
)

type memoryUsers struct {
	byEmail map[string]*User
}

func (r *memoryUsers) FindByEmail(ctx context.Context, email string) (*User, error) {
	u, ok := r.byEmail[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func newUserFixture(t *testing.T, password string, active bool) (*Service, *User) {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	u := &User{
		ID:           uuid.New(),
		Email:        "alex@example.com",
		Name:         "Alex",
		PasswordHash: hash,
		IsActive:     active,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	repo := &memoryUsers{byEmail: map[string]*User{u.Email: u}}
	return NewService(repo), u
}

func TestAuthenticate(t *testing.T) {
	svc, u := newUserFixture(t, "correct horse", true)
	ctx := context.Background()

	got, err := svc.Authenticate(ctx, "alex@example.com", "correct horse")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	// Email lookup is case-insensitive and trimmed.
	got, err = svc.Authenticate(ctx, "  ALEX@example.com ", "correct horse")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
}

func TestAuthenticateFailuresAreUniform(t *testing.T) {
	svc, _ := newUserFixture(t, "correct horse", true)
	ctx := context.Background()

	_, err := svc.Authenticate(ctx, "alex@example.com", "battery staple")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "correct horse")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	inactive, _ := newUserFixture(t, "correct horse", false)
	_, err = inactive.Authenticate(ctx, "alex@example.com", "correct horse")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}
