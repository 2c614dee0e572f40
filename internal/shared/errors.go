package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the entity is absent or belongs to another
	// organization. The two causes are indistinguishable on purpose.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied indicates the actor's role lacks the action.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidTransition indicates an illegal status change.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrConflict indicates a duplicate idempotency key or slug.
	ErrConflict = errors.New("conflict")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError carries the violated rule so callers can surface it.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// Unwrap makes errors.Is(err, ErrValidation) hold.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError for a field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// TransitionError reports an illegal status change with both endpoints.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// Unwrap makes errors.Is(err, ErrInvalidTransition) hold.
func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// UserSafeMessage returns a message safe to show to end users.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "The requested record was not found."
	case errors.Is(err, ErrPermissionDenied):
		return "You do not have permission to perform this action."
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidTransition):
		return err.Error()
	case errors.Is(err, ErrConflict):
		return "The request conflicts with an existing record."
	default:
		return "An unexpected error occurred."
	}
}
