package org

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/duewell/duewell/internal/shared"
)

type memoryRepo struct {
	orgs        map[uuid.UUID]*Organization
	memberships map[uuid.UUID]*Membership
	keys        map[string]uuid.UUID
	conflictOn  string // idempotency key that fakes a lost race
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		orgs:        make(map[uuid.UUID]*Organization),
		memberships: make(map[uuid.UUID]*Membership),
		keys:        make(map[string]uuid.UUID),
	}
}

func (r *memoryRepo) FindByIdempotencyKey(ctx context.Context, key string) (*Organization, *Membership, error) {
	orgID, ok := r.keys[key]
	if !ok {
		return nil, nil, shared.ErrNotFound
	}
	o := r.orgs[orgID]
	for _, m := range r.memberships {
		if m.OrgID == orgID {
			return o, m, nil
		}
	}
	return nil, nil, shared.ErrNotFound
}

func (r *memoryRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	for _, o := range r.orgs {
		if o.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) CreateWithOwner(ctx context.Context, o *Organization, m *Membership, key string) error {
	if r.conflictOn == key {
		// Simulate the unique-violation path: another request holding the
		// same key won the insert after our read-before-write check.
		winner := &Organization{ID: uuid.New(), Name: o.Name, Slug: "winner"}
		member := &Membership{ID: uuid.New(), OrgID: winner.ID, UserID: m.UserID, Role: shared.RoleOwner}
		r.orgs[winner.ID] = winner
		r.memberships[member.ID] = member
		r.keys[key] = winner.ID
		r.conflictOn = ""
		return fmt.Errorf("duplicate key: %w", shared.ErrConflict)
	}
	if _, exists := r.keys[key]; exists {
		return fmt.Errorf("duplicate key: %w", shared.ErrConflict)
	}
	r.orgs[o.ID] = o
	r.memberships[m.ID] = m
	r.keys[key] = o.ID
	return nil
}

func (r *memoryRepo) Memberships(ctx context.Context, userID uuid.UUID) ([]Membership, error) {
	var out []Membership
	for _, m := range r.memberships {
		if m.UserID == userID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *memoryRepo) Get(ctx context.Context, id uuid.UUID) (*Organization, error) {
	o, ok := r.orgs[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return o, nil
}

func validInput() CreateInput {
	return CreateInput{
		UserID:          uuid.New(),
		Name:            "Acme Corp",
		CountryCode:     "nl",
		DefaultCurrency: "eur",
		IdempotencyKey:  uuid.NewString(),
	}
}

func TestCreateOrganizationWithOwner(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)

	res, err := svc.CreateOrganizationWithOwner(context.Background(), validInput())
	require.NoError(t, err)
	require.False(t, res.IsDuplicate)
	require.Equal(t, "acme-corp", res.Organization.Slug)
	require.Equal(t, "NL", res.Organization.CountryCode)
	require.Equal(t, "EUR", res.Organization.DefaultCurrency)
	require.Equal(t, shared.RoleOwner, res.Membership.Role)
	require.Equal(t, res.Organization.ID, res.Membership.OrgID)
}

func TestCreateOrganizationValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	in := validInput()
	in.UserID = uuid.Nil
	_, err := svc.CreateOrganizationWithOwner(ctx, in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = validInput()
	in.Name = "  "
	_, err = svc.CreateOrganizationWithOwner(ctx, in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = validInput()
	in.IdempotencyKey = ""
	_, err = svc.CreateOrganizationWithOwner(ctx, in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = validInput()
	in.DefaultCurrency = ""
	_, err = svc.CreateOrganizationWithOwner(ctx, in)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDuplicateIdempotencyKeyReturnsOriginal(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	in := validInput()
	first, err := svc.CreateOrganizationWithOwner(ctx, in)
	require.NoError(t, err)

	in.Name = "Totally Different Name"
	second, err := svc.CreateOrganizationWithOwner(ctx, in)
	require.NoError(t, err)
	require.True(t, second.IsDuplicate)
	require.Equal(t, first.Organization.ID, second.Organization.ID)
	require.Equal(t, "Acme Corp", second.Organization.Name)
	require.Len(t, repo.orgs, 1)
}

func TestProvisioningRaceRecoversWinner(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	in := validInput()
	repo.conflictOn = in.IdempotencyKey

	res, err := svc.CreateOrganizationWithOwner(ctx, in)
	require.NoError(t, err)
	require.True(t, res.IsDuplicate)
	require.Equal(t, "winner", res.Organization.Slug)
	require.Len(t, repo.orgs, 1)
}

func TestSlugCollisionGetsNumericSuffix(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	in := validInput()
	_, err := svc.CreateOrganizationWithOwner(ctx, in)
	require.NoError(t, err)

	in2 := validInput()
	res, err := svc.CreateOrganizationWithOwner(ctx, in2)
	require.NoError(t, err)
	require.Equal(t, "acme-corp-2", res.Organization.Slug)

	in3 := validInput()
	res, err = svc.CreateOrganizationWithOwner(ctx, in3)
	require.NoError(t, err)
	require.Equal(t, "acme-corp-3", res.Organization.Slug)
}

func TestUnsluggableNameFallsBack(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)

	in := validInput()
	in.Name = "###"
	res, err := svc.CreateOrganizationWithOwner(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "org", res.Organization.Slug)
}
