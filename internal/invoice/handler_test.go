package invoice

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/duewell/duewell/internal/shared"
)

func TestRespondClaimError(t *testing.T) {
	h := &Handler{}

	rec := httptest.NewRecorder()
	h.respondClaimError(rec, shared.ErrIdempotencyConflict)
	require.Equal(t, http.StatusConflict, rec.Code)

	// An unreachable store is an internal error, not a replay.
	rec = httptest.NewRecorder()
	h.respondClaimError(rec, errors.New("connection refused"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
