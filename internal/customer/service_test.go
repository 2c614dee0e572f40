package customer

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/duewell/duewell/internal/shared"
)

type memoryRepo struct {
	companies map[uuid.UUID]*Company
	contacts  map[uuid.UUID]*Contact
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		companies: make(map[uuid.UUID]*Company),
		contacts:  make(map[uuid.UUID]*Contact),
	}
}

func (r *memoryRepo) CreateCompany(ctx context.Context, c *Company) error {
	cp := *c
	r.companies[c.ID] = &cp
	return nil
}

func (r *memoryRepo) GetCompany(ctx context.Context, orgID, id uuid.UUID) (*Company, error) {
	c, ok := r.companies[id]
	if !ok || c.OrgID != orgID {
		return nil, shared.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memoryRepo) ListCompanies(ctx context.Context, orgID uuid.UUID, p shared.Pagination) ([]Company, error) {
	var out []Company
	for _, c := range r.companies {
		if c.OrgID == orgID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *memoryRepo) UpdateCompany(ctx context.Context, c *Company) error {
	if _, ok := r.companies[c.ID]; !ok {
		return shared.ErrNotFound
	}
	cp := *c
	r.companies[c.ID] = &cp
	return nil
}

func (r *memoryRepo) CreateContact(ctx context.Context, c *Contact) error {
	cp := *c
	r.contacts[c.ID] = &cp
	return nil
}

func (r *memoryRepo) ListContacts(ctx context.Context, orgID, companyID uuid.UUID) ([]Contact, error) {
	var out []Contact
	for _, c := range r.contacts {
		if c.OrgID == orgID && c.CompanyID == companyID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func fixture() (*Service, *memoryRepo, shared.TenantContext) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	tc := shared.TenantContext{OrgID: uuid.New(), ActorID: uuid.New(), Role: shared.RoleMember}
	return svc, repo, tc
}

func TestCreateCompany(t *testing.T) {
	svc, _, tc := fixture()

	company, err := svc.CreateCompany(context.Background(), tc, CompanyInput{Name: "  Acme BV  ", Email: " ap@acme.example "})
	require.NoError(t, err)
	require.Equal(t, "Acme BV", company.Name)
	require.Equal(t, "ap@acme.example", company.Email)
	require.Equal(t, tc.OrgID, company.OrgID)

	_, err = svc.CreateCompany(context.Background(), tc, CompanyInput{Name: "   "})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateContactRequiresExistingCompany(t *testing.T) {
	svc, _, tc := fixture()
	ctx := context.Background()

	company, err := svc.CreateCompany(ctx, tc, CompanyInput{Name: "Acme BV"})
	require.NoError(t, err)

	contact, err := svc.CreateContact(ctx, tc, ContactInput{CompanyID: company.ID, Name: "Eva"})
	require.NoError(t, err)
	require.Equal(t, company.ID, contact.CompanyID)

	_, err = svc.CreateContact(ctx, tc, ContactInput{CompanyID: uuid.New(), Name: "Ghost"})
	require.ErrorIs(t, err, shared.ErrNotFound)

	// A company in another tenant surfaces the same way.
	other := shared.TenantContext{OrgID: uuid.New(), ActorID: uuid.New(), Role: shared.RoleMember}
	_, err = svc.CreateContact(ctx, other, ContactInput{CompanyID: company.ID, Name: "Intruder"})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestViewerCannotManageCustomers(t *testing.T) {
	svc, _, tc := fixture()
	tc.Role = shared.RoleViewer

	_, err := svc.CreateCompany(context.Background(), tc, CompanyInput{Name: "Acme BV"})
	require.ErrorIs(t, err, shared.ErrPermissionDenied)

	_, err = svc.ListCompanies(context.Background(), tc, shared.Pagination{})
	require.NoError(t, err)
}
