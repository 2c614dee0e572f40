package org

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duewell/duewell/internal/platform/db"
	"github.com/duewell/duewell/internal/shared"
)

// Repository provides PostgreSQL backed persistence for organizations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const orgColumns = `id, name, slug, country_code, default_currency, created_at, updated_at`

func scanOrg(row pgx.Row) (*Organization, error) {
	var o Organization
	err := row.Scan(&o.ID, &o.Name, &o.Slug, &o.CountryCode, &o.DefaultCurrency, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

// Get fetches an organization by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Organization, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id=$1`, id)
	return scanOrg(row)
}

// SlugExists reports whether a slug is taken.
func (r *Repository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM organizations WHERE slug=$1)`, slug).Scan(&exists)
	return exists, err
}

// FindByIdempotencyKey returns the tenant provisioned under key.
func (r *Repository) FindByIdempotencyKey(ctx context.Context, key string) (*Organization, *Membership, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT o.id, o.name, o.slug, o.country_code, o.default_currency, o.created_at, o.updated_at,
		        m.id, m.org_id, m.user_id, m.role, m.created_at
		 FROM org_provisioning_keys k
		 JOIN organizations o ON o.id = k.org_id
		 JOIN memberships m ON m.org_id = o.id AND m.role = 'OWNER'
		 WHERE k.key = $1`, key)
	var (
		o Organization
		m Membership
	)
	err := row.Scan(&o.ID, &o.Name, &o.Slug, &o.CountryCode, &o.DefaultCurrency, &o.CreatedAt, &o.UpdatedAt,
		&m.ID, &m.OrgID, &m.UserID, &m.Role, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, shared.ErrNotFound
		}
		return nil, nil, err
	}
	return &o, &m, nil
}

// CreateWithOwner persists organization, owner membership and the
// idempotency key atomically. Uniqueness of slug and key is enforced by
// the database, which is what makes concurrent duplicates safe.
func (r *Repository) CreateWithOwner(ctx context.Context, o *Organization, m *Membership, idempotencyKey string) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO organizations (`+orgColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			o.ID, o.Name, o.Slug, o.CountryCode, o.DefaultCurrency, o.CreatedAt, o.UpdatedAt); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO memberships (id, org_id, user_id, role, created_at) VALUES ($1,$2,$3,$4,$5)`,
			m.ID, m.OrgID, m.UserID, m.Role, m.CreatedAt); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO org_provisioning_keys (key, org_id, created_at) VALUES ($1,$2,$3)`,
			idempotencyKey, o.ID, time.Now())
		return err
	})
	if err != nil && shared.IsUniqueViolation(err) {
		return fmt.Errorf("organization provisioning collision: %w", shared.ErrConflict)
	}
	return err
}

// Memberships lists a user's memberships.
func (r *Repository) Memberships(ctx context.Context, userID uuid.UUID) ([]Membership, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, org_id, user_id, role, created_at FROM memberships WHERE user_id=$1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.ID, &m.OrgID, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
