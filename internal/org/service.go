package org

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/duewell/duewell/internal/shared"
)

// slugAttempts bounds the numeric-suffix retry loop before falling back
// to a timestamp suffix.
const slugAttempts = 5

// RepositoryPort defines data access for tenant provisioning.
type RepositoryPort interface {
	// FindByIdempotencyKey returns the previously provisioned tenant for
	// the key, or shared.ErrNotFound.
	FindByIdempotencyKey(ctx context.Context, key string) (*Organization, *Membership, error)
	// SlugExists reports whether a slug is already taken.
	SlugExists(ctx context.Context, slug string) (bool, error)
	// CreateWithOwner persists the organization, its owner membership and
	// the idempotency key in one transaction. Returns shared.ErrConflict
	// wrapped errors on slug or key uniqueness violations.
	CreateWithOwner(ctx context.Context, o *Organization, m *Membership, idempotencyKey string) error
	// Memberships lists a user's memberships, used by the session layer.
	Memberships(ctx context.Context, userID uuid.UUID) ([]Membership, error)
	Get(ctx context.Context, id uuid.UUID) (*Organization, error)
}

// Service provisions tenants.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// CreateOrganizationWithOwner provisions a tenant. It is safe under
// concurrent duplicate submission: a second call carrying the same
// idempotency key returns the first result flagged IsDuplicate instead of
// creating a second tenant or erroring. The organization and its owning
// membership are created in a single transaction, so a tenant without an
// owner is never observable.
func (s *Service) CreateOrganizationWithOwner(ctx context.Context, input CreateInput) (*CreateResult, error) {
	if input.UserID == uuid.Nil {
		return nil, shared.Invalid("user_id", "user is required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, shared.Invalid("name", "organization name is required")
	}
	if strings.TrimSpace(input.IdempotencyKey) == "" {
		return nil, shared.Invalid("idempotency_key", "idempotency key is required")
	}
	currency := strings.ToUpper(strings.TrimSpace(input.DefaultCurrency))
	if currency == "" {
		return nil, shared.Invalid("default_currency", "default currency is required")
	}

	// Read-before-write duplicate check; the unique constraint on the key
	// catches the race where two submissions pass this check together.
	if existing, member, err := s.repo.FindByIdempotencyKey(ctx, input.IdempotencyKey); err == nil {
		return &CreateResult{Organization: *existing, Membership: *member, IsDuplicate: true}, nil
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	slug, err := s.availableSlug(ctx, name)
	if err != nil {
		return nil, err
	}

	now := s.now()
	organization := Organization{
		ID:              uuid.New(),
		Name:            name,
		Slug:            slug,
		CountryCode:     strings.ToUpper(strings.TrimSpace(input.CountryCode)),
		DefaultCurrency: currency,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	membership := Membership{
		ID:        uuid.New(),
		OrgID:     organization.ID,
		UserID:    input.UserID,
		Role:      shared.RoleOwner,
		CreatedAt: now,
	}

	if err := s.repo.CreateWithOwner(ctx, &organization, &membership, input.IdempotencyKey); err != nil {
		if errors.Is(err, shared.ErrConflict) {
			// Lost the race on the idempotency key: return the winner.
			if existing, member, ferr := s.repo.FindByIdempotencyKey(ctx, input.IdempotencyKey); ferr == nil {
				return &CreateResult{Organization: *existing, Membership: *member, IsDuplicate: true}, nil
			}
			return nil, err
		}
		return nil, err
	}
	return &CreateResult{Organization: organization, Membership: membership}, nil
}

// Get returns an organization by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Organization, error) {
	return s.repo.Get(ctx, id)
}

// Memberships lists a user's memberships.
func (s *Service) Memberships(ctx context.Context, userID uuid.UUID) ([]Membership, error) {
	return s.repo.Memberships(ctx, userID)
}

// availableSlug derives a free slug from name: the base slug first, then
// bounded numeric suffixes, finally a timestamp suffix that cannot
// realistically collide.
func (s *Service) availableSlug(ctx context.Context, name string) (string, error) {
	base := Slugify(name)
	if base == "" {
		base = "org"
	}
	candidate := base
	for i := 2; ; i++ {
		taken, err := s.repo.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		if i > slugAttempts+1 {
			return fmt.Sprintf("%s-%d", base, s.now().UnixMilli()), nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}
