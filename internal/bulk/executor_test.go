package bulk

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/duewell/duewell/internal/shared"
)

func TestExecuteIsolatesItemFailures(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	res, err := Execute(context.Background(), []uuid.UUID{a, b, c}, 2, func(ctx context.Context, id uuid.UUID) error {
		if id == b {
			return errors.New("invalid state")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, res.Total)
	require.Equal(t, 2, res.Updated)
	require.Equal(t, 1, res.Failed)

	require.Len(t, res.Items, 3)
	require.Equal(t, a, res.Items[0].ID)
	require.Empty(t, res.Items[0].Error)
	require.Equal(t, b, res.Items[1].ID)
	require.Equal(t, "invalid state", res.Items[1].Error)
	require.Equal(t, c, res.Items[2].ID)
	require.Empty(t, res.Items[2].Error)
}

func TestExecuteEmptyIDs(t *testing.T) {
	_, err := Execute(context.Background(), nil, 0, func(ctx context.Context, id uuid.UUID) error {
		t.Fatal("fn must not run")
		return nil
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, shared.ErrValidation))
}

func TestExecuteAllFail(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	res, err := Execute(context.Background(), ids, 0, func(ctx context.Context, id uuid.UUID) error {
		return errors.New("nope")
	})
	require.NoError(t, err)
	require.Equal(t, 0, res.Updated)
	require.Equal(t, 2, res.Failed)
}
