package collection

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/duewell/duewell/internal/shared"
)

type memoryRepo struct {
	cases    map[uuid.UUID]*Case
	lastList ListFilter
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{cases: make(map[uuid.UUID]*Case)}
}

func (r *memoryRepo) Get(ctx context.Context, orgID, id uuid.UUID) (*Case, error) {
	c, ok := r.cases[id]
	if !ok || c.OrgID != orgID {
		return nil, shared.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memoryRepo) ActiveByInvoice(ctx context.Context, orgID, invoiceID uuid.UUID) (*Case, error) {
	for _, c := range r.cases {
		if c.OrgID == orgID && c.InvoiceID == invoiceID && c.Status != CaseClosed {
			cp := *c
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRepo) List(ctx context.Context, orgID uuid.UUID, f ListFilter) ([]Case, error) {
	r.lastList = f
	var out []Case
	for _, c := range r.cases {
		if c.OrgID != orgID {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.Stage != "" && c.Stage != f.Stage {
			continue
		}
		if f.ActionBefore != nil {
			if c.NextActionAt == nil || !c.NextActionAt.Before(*f.ActionBefore) {
				continue
			}
		}
		out = append(out, *c)
	}
	return out, nil
}

func (r *memoryRepo) Update(ctx context.Context, c *Case) error {
	if _, ok := r.cases[c.ID]; !ok {
		return shared.ErrNotFound
	}
	cp := *c
	r.cases[c.ID] = &cp
	return nil
}

func (r *memoryRepo) Create(ctx context.Context, c *Case) error {
	cp := *c
	r.cases[c.ID] = &cp
	return nil
}

func newServiceFixture() (*Service, *memoryRepo, shared.TenantContext) {
	repo := newMemoryRepo()
	svc := NewService(repo, NewCoordinator(DefaultPlaybook()), nil, nil)
	svc.now = func() time.Time { return testNow }
	tc := shared.TenantContext{OrgID: uuid.New(), ActorID: uuid.New(), Role: shared.RoleMember}
	return svc, repo, tc
}

func seed(repo *memoryRepo, tc shared.TenantContext, stage Stage, status CaseStatus) *Case {
	c := newTestCase(stage, status)
	c.OrgID = tc.OrgID
	cp := c
	repo.cases[c.ID] = &cp
	return &cp
}

func TestServiceAdvancePersists(t *testing.T) {
	svc, repo, tc := newServiceFixture()
	c := seed(repo, tc, StageInitial, CaseActive)

	got, err := svc.Advance(context.Background(), tc, c.ID)
	require.NoError(t, err)
	require.Equal(t, StageReminder1, got.Stage)
	require.Equal(t, StageReminder1, repo.cases[c.ID].Stage)
}

func TestServiceAdvanceInvalidLeavesStateUnchanged(t *testing.T) {
	svc, repo, tc := newServiceFixture()
	c := seed(repo, tc, StageEscalated, CaseActive)

	_, err := svc.Advance(context.Background(), tc, c.ID)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
	require.Equal(t, StageEscalated, repo.cases[c.ID].Stage)
}

func TestServicePauseResume(t *testing.T) {
	svc, repo, tc := newServiceFixture()
	c := seed(repo, tc, StageReminder1, CaseActive)
	ctx := context.Background()

	got, err := svc.Pause(ctx, tc, c.ID)
	require.NoError(t, err)
	require.Equal(t, CasePaused, got.Status)

	got, err = svc.Resume(ctx, tc, c.ID)
	require.NoError(t, err)
	require.Equal(t, CaseActive, got.Status)
	require.NotNil(t, got.NextActionAt)
}

func TestServiceViewerCannotMutate(t *testing.T) {
	svc, repo, tc := newServiceFixture()
	c := seed(repo, tc, StageInitial, CaseActive)
	tc.Role = shared.RoleViewer

	_, err := svc.Advance(context.Background(), tc, c.ID)
	require.ErrorIs(t, err, shared.ErrPermissionDenied)

	// Reads stay open to viewers.
	got, err := svc.Get(context.Background(), tc, c.ID)
	require.NoError(t, err)
	require.Equal(t, c.ID, got.ID)
}

func TestServiceCrossTenantMasking(t *testing.T) {
	svc, repo, tc := newServiceFixture()
	c := seed(repo, tc, StageInitial, CaseActive)

	other := shared.TenantContext{OrgID: uuid.New(), ActorID: uuid.New(), Role: shared.RoleAdmin}
	_, err := svc.Get(context.Background(), other, c.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestServiceListActionBefore(t *testing.T) {
	svc, repo, tc := newServiceFixture()

	due := seed(repo, tc, StageReminder1, CaseActive)
	at := testNow.AddDate(0, 0, -1)
	repo.cases[due.ID].NextActionAt = &at

	later := seed(repo, tc, StageReminder1, CaseActive)
	future := testNow.AddDate(0, 0, 5)
	repo.cases[later.ID].NextActionAt = &future

	cutoff := testNow
	got, err := svc.List(context.Background(), tc, ListFilter{ActionBefore: &cutoff})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, due.ID, got[0].ID)
}

func TestServiceUpdateSummary(t *testing.T) {
	svc, repo, tc := newServiceFixture()
	c := seed(repo, tc, StageInitial, CaseActive)

	got, err := svc.UpdateSummary(context.Background(), tc, c.ID, "spoke to their AP team")
	require.NoError(t, err)
	require.Equal(t, "spoke to their AP team", got.Summary)
	require.Equal(t, "spoke to their AP team", repo.cases[c.ID].Summary)
}
