package customer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/duewell/duewell/internal/authz"
	"github.com/duewell/duewell/internal/shared"
)

// RepositoryPort defines data access for customer companies and contacts.
type RepositoryPort interface {
	CreateCompany(ctx context.Context, c *Company) error
	GetCompany(ctx context.Context, orgID, id uuid.UUID) (*Company, error)
	ListCompanies(ctx context.Context, orgID uuid.UUID, p shared.Pagination) ([]Company, error)
	UpdateCompany(ctx context.Context, c *Company) error
	CreateContact(ctx context.Context, c *Contact) error
	ListContacts(ctx context.Context, orgID, companyID uuid.UUID) ([]Contact, error)
}

// Service handles customer masterdata.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// CreateCompany adds a customer company.
func (s *Service) CreateCompany(ctx context.Context, tc shared.TenantContext, input CompanyInput) (*Company, error) {
	if err := s.gate(tc, authz.ActionCustomersManage); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, shared.Invalid("name", "company name is required")
	}
	now := s.now()
	company := &Company{
		ID:        uuid.New(),
		OrgID:     tc.OrgID,
		Name:      name,
		VATNumber: strings.TrimSpace(input.VATNumber),
		Email:     strings.TrimSpace(input.Email),
		Phone:     strings.TrimSpace(input.Phone),
		Notes:     input.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateCompany(ctx, company); err != nil {
		return nil, err
	}
	return company, nil
}

// GetCompany returns one company.
func (s *Service) GetCompany(ctx context.Context, tc shared.TenantContext, id uuid.UUID) (*Company, error) {
	if err := s.gate(tc, authz.ActionCustomersView); err != nil {
		return nil, err
	}
	return s.repo.GetCompany(ctx, tc.OrgID, id)
}

// ListCompanies returns companies for the organization. Exporters consume
// this listing directly.
func (s *Service) ListCompanies(ctx context.Context, tc shared.TenantContext, p shared.Pagination) ([]Company, error) {
	if err := s.gate(tc, authz.ActionCustomersView); err != nil {
		return nil, err
	}
	return s.repo.ListCompanies(ctx, tc.OrgID, p.Normalize())
}

// UpdateCompany edits a company.
func (s *Service) UpdateCompany(ctx context.Context, tc shared.TenantContext, id uuid.UUID, input CompanyInput) (*Company, error) {
	if err := s.gate(tc, authz.ActionCustomersManage); err != nil {
		return nil, err
	}
	company, err := s.repo.GetCompany(ctx, tc.OrgID, id)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		company.Name = name
	}
	company.VATNumber = strings.TrimSpace(input.VATNumber)
	company.Email = strings.TrimSpace(input.Email)
	company.Phone = strings.TrimSpace(input.Phone)
	company.Notes = input.Notes
	company.UpdatedAt = s.now()
	if err := s.repo.UpdateCompany(ctx, company); err != nil {
		return nil, err
	}
	return company, nil
}

// CreateContact adds a contact person under a company.
func (s *Service) CreateContact(ctx context.Context, tc shared.TenantContext, input ContactInput) (*Contact, error) {
	if err := s.gate(tc, authz.ActionCustomersManage); err != nil {
		return nil, err
	}
	if input.CompanyID == uuid.Nil {
		return nil, shared.Invalid("company_id", "company is required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, shared.Invalid("name", "contact name is required")
	}
	// Company lookup doubles as the tenant check.
	if _, err := s.repo.GetCompany(ctx, tc.OrgID, input.CompanyID); err != nil {
		return nil, err
	}
	now := s.now()
	contact := &Contact{
		ID:        uuid.New(),
		OrgID:     tc.OrgID,
		CompanyID: input.CompanyID,
		Name:      name,
		Email:     strings.TrimSpace(input.Email),
		Phone:     strings.TrimSpace(input.Phone),
		Position:  strings.TrimSpace(input.Position),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateContact(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

// ListContacts returns a company's contacts.
func (s *Service) ListContacts(ctx context.Context, tc shared.TenantContext, companyID uuid.UUID) ([]Contact, error) {
	if err := s.gate(tc, authz.ActionCustomersView); err != nil {
		return nil, err
	}
	return s.repo.ListContacts(ctx, tc.OrgID, companyID)
}

func (s *Service) gate(tc shared.TenantContext, action authz.Action) error {
	if !tc.Valid() {
		return errors.New("customer: tenant context required")
	}
	return authz.Require(tc.Role, action)
}
