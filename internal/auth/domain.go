// Package auth supplies the session layer: credential checks and
// redis-backed sessions carrying {userId, organizationId, role}. The core
// services trust this context verbatim and never re-authenticate.
package auth

import (
	"time"

	"github.com/google/uuid"
)

// User is an account that can sign in.
type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
