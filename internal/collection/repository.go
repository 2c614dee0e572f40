package collection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duewell/duewell/internal/shared"
)

// Repository provides PostgreSQL backed persistence for collection cases.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const caseColumns = `id, org_id, invoice_id, company_id, stage, status,
	last_communication_at, next_action_at, escalation_at, closed_at, summary,
	created_at, updated_at`

func scanCase(row pgx.Row) (*Case, error) {
	var c Case
	err := row.Scan(&c.ID, &c.OrgID, &c.InvoiceID, &c.CompanyID, &c.Stage, &c.Status,
		&c.LastCommunicationAt, &c.NextActionAt, &c.EscalationAt, &c.ClosedAt, &c.Summary,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Get fetches a case scoped to the organization.
func (r *Repository) Get(ctx context.Context, orgID, id uuid.UUID) (*Case, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+caseColumns+` FROM collection_cases WHERE org_id=$1 AND id=$2`, orgID, id)
	return scanCase(row)
}

// ActiveByInvoice fetches the single open case for an invoice, if any.
// Returns shared.ErrNotFound when no open case exists.
func (r *Repository) ActiveByInvoice(ctx context.Context, orgID, invoiceID uuid.UUID) (*Case, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+caseColumns+` FROM collection_cases
		 WHERE org_id=$1 AND invoice_id=$2 AND status <> 'CLOSED'`, orgID, invoiceID)
	return scanCase(row)
}

// List returns cases matching the filter, newest first.
func (r *Repository) List(ctx context.Context, orgID uuid.UUID, f ListFilter) ([]Case, error) {
	var (
		where = []string{"org_id=$1"}
		args  = []any{orgID}
	)
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	if f.Stage != "" {
		args = append(args, f.Stage)
		where = append(where, fmt.Sprintf("stage=$%d", len(args)))
	}
	if f.CompanyID != uuid.Nil {
		args = append(args, f.CompanyID)
		where = append(where, fmt.Sprintf("company_id=$%d", len(args)))
	}
	if f.ActionBefore != nil {
		args = append(args, *f.ActionBefore)
		where = append(where, fmt.Sprintf("next_action_at IS NOT NULL AND next_action_at <= $%d", len(args)))
	}
	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`SELECT %s FROM collection_cases WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		caseColumns, strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// ListActionDue returns active cases across all organizations whose next
// action is due at or before asOf. Feeds the reminder scan.
func (r *Repository) ListActionDue(ctx context.Context, asOf time.Time, limit int) ([]Case, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+caseColumns+` FROM collection_cases
		 WHERE status = $1 AND next_action_at IS NOT NULL AND next_action_at <= $2
		 ORDER BY next_action_at
		 LIMIT $3`,
		CaseActive, asOf, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Create inserts a new case.
func (r *Repository) Create(ctx context.Context, c *Case) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO collection_cases (`+caseColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		c.ID, c.OrgID, c.InvoiceID, c.CompanyID, c.Stage, c.Status,
		c.LastCommunicationAt, c.NextActionAt, c.EscalationAt, c.ClosedAt, c.Summary,
		c.CreatedAt, c.UpdatedAt)
	return err
}

// Update persists a case mutation scoped to the organization.
func (r *Repository) Update(ctx context.Context, c *Case) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE collection_cases SET stage=$3, status=$4, last_communication_at=$5,
		 next_action_at=$6, escalation_at=$7, closed_at=$8, summary=$9, updated_at=$10
		 WHERE org_id=$1 AND id=$2`,
		c.OrgID, c.ID, c.Stage, c.Status, c.LastCommunicationAt,
		c.NextActionAt, c.EscalationAt, c.ClosedAt, c.Summary, c.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
