package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidationErrorUnwraps(t *testing.T) {
	err := Invalid("amount", "must be positive")
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, "validation failed: amount: must be positive", err.Error())

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "amount", verr.Field)
}

func TestTransitionErrorUnwraps(t *testing.T) {
	err := &TransitionError{From: "CANCELLED", To: "PAID"}
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Equal(t, "invalid status transition CANCELLED -> PAID", err.Error())

	wrapped := fmt.Errorf("mark paid: %w", err)
	require.ErrorIs(t, wrapped, ErrInvalidTransition)
}

func TestUserSafeMessageHidesInternals(t *testing.T) {
	require.Equal(t, "The requested record was not found.", UserSafeMessage(ErrNotFound))
	require.Equal(t, "An unexpected error occurred.", UserSafeMessage(errors.New("pq: connection refused")))
	require.Empty(t, UserSafeMessage(nil))
}
