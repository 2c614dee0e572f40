package customer

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duewell/duewell/internal/shared"
)

// Repository provides PostgreSQL backed persistence for customers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const companyColumns = `id, org_id, name, vat_number, email, phone, notes, created_at, updated_at`

func scanCompany(row pgx.Row) (*Company, error) {
	var c Company
	err := row.Scan(&c.ID, &c.OrgID, &c.Name, &c.VATNumber, &c.Email, &c.Phone, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// CreateCompany inserts a company.
func (r *Repository) CreateCompany(ctx context.Context, c *Company) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO customer_companies (`+companyColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		c.ID, c.OrgID, c.Name, c.VATNumber, c.Email, c.Phone, c.Notes, c.CreatedAt, c.UpdatedAt)
	return err
}

// GetCompany fetches a company scoped to the organization.
func (r *Repository) GetCompany(ctx context.Context, orgID, id uuid.UUID) (*Company, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+companyColumns+` FROM customer_companies WHERE org_id=$1 AND id=$2`, orgID, id)
	return scanCompany(row)
}

// ListCompanies returns companies ordered by name.
func (r *Repository) ListCompanies(ctx context.Context, orgID uuid.UUID, p shared.Pagination) ([]Company, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+companyColumns+` FROM customer_companies WHERE org_id=$1 ORDER BY name ASC LIMIT $2 OFFSET $3`,
		orgID, p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// UpdateCompany persists company edits scoped to the organization.
func (r *Repository) UpdateCompany(ctx context.Context, c *Company) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE customer_companies SET name=$3, vat_number=$4, email=$5, phone=$6, notes=$7, updated_at=$8
		 WHERE org_id=$1 AND id=$2`,
		c.OrgID, c.ID, c.Name, c.VATNumber, c.Email, c.Phone, c.Notes, c.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CreateContact inserts a contact.
func (r *Repository) CreateContact(ctx context.Context, c *Contact) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO customer_contacts (id, org_id, company_id, name, email, phone, position, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		c.ID, c.OrgID, c.CompanyID, c.Name, c.Email, c.Phone, c.Position, c.CreatedAt, c.UpdatedAt)
	return err
}

// ListContacts returns a company's contacts.
func (r *Repository) ListContacts(ctx context.Context, orgID, companyID uuid.UUID) ([]Contact, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, org_id, company_id, name, email, phone, position, created_at, updated_at
		 FROM customer_contacts WHERE org_id=$1 AND company_id=$2 ORDER BY name ASC`, orgID, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.OrgID, &c.CompanyID, &c.Name, &c.Email, &c.Phone, &c.Position, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
