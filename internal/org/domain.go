// Package org provisions tenants: an organization plus its owning
// membership, created atomically and idempotently.
package org

import (
	"time"

	"github.com/google/uuid"

	"github.com/duewell/duewell/internal/shared"
)

// Organization is the tenant boundary. Every other entity is scoped to
// exactly one organization.
type Organization struct {
	ID              uuid.UUID
	Name            string
	Slug            string
	CountryCode     string
	DefaultCurrency string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Membership ties a user to an organization with a role.
type Membership struct {
	ID        uuid.UUID
	OrgID     uuid.UUID
	UserID    uuid.UUID
	Role      shared.Role
	CreatedAt time.Time
}

// CreateInput carries the fields for provisioning a tenant.
type CreateInput struct {
	UserID          uuid.UUID
	Name            string
	CountryCode     string
	DefaultCurrency string
	IdempotencyKey  string
}

// CreateResult reports the provisioned tenant. IsDuplicate marks a replay
// of a previously processed idempotency key; the original result is
// returned unchanged.
type CreateResult struct {
	Organization Organization
	Membership   Membership
	IsDuplicate  bool
}
