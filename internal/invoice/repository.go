package invoice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duewell/duewell/internal/collection"
	"github.com/duewell/duewell/internal/platform/db"
	"github.com/duewell/duewell/internal/shared"
)

// Repository provides PostgreSQL backed persistence for invoices.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const invoiceColumns = `id, org_id, company_id, number, amount, currency,
	issue_date, due_date, status, expected_payment_date, date_origin,
	payment_promise_date, last_channel, last_result, notes,
	payment_reference, paid_at, cancel_reason, cancelled_at,
	created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.OrgID, &inv.CompanyID, &inv.Number, &inv.Amount, &inv.Currency,
		&inv.IssueDate, &inv.DueDate, &inv.Status, &inv.ExpectedPaymentDate, &inv.DateOrigin,
		&inv.PaymentPromiseDate, &inv.LastChannel, &inv.LastResult, &inv.Notes,
		&inv.PaymentReference, &inv.PaidAt, &inv.CancelReason, &inv.CancelledAt,
		&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// Create inserts a new invoice.
func (r *Repository) Create(ctx context.Context, inv *Invoice) error {
	_, err := r.pool.Exec(ctx, insertInvoiceSQL, invoiceArgs(inv)...)
	if err != nil && shared.IsUniqueViolation(err) {
		return fmt.Errorf("invoice number %s already exists: %w", inv.Number, shared.ErrConflict)
	}
	return err
}

const insertInvoiceSQL = `INSERT INTO invoices (` + invoiceColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`

func invoiceArgs(inv *Invoice) []any {
	return []any{
		inv.ID, inv.OrgID, inv.CompanyID, inv.Number, inv.Amount, inv.Currency,
		inv.IssueDate, inv.DueDate, inv.Status, inv.ExpectedPaymentDate, inv.DateOrigin,
		inv.PaymentPromiseDate, inv.LastChannel, inv.LastResult, inv.Notes,
		inv.PaymentReference, inv.PaidAt, inv.CancelReason, inv.CancelledAt,
		inv.CreatedAt, inv.UpdatedAt,
	}
}

// Get fetches an invoice scoped to the organization. Absence and
// cross-tenant access both return shared.ErrNotFound.
func (r *Repository) Get(ctx context.Context, orgID, id uuid.UUID) (*Invoice, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE org_id=$1 AND id=$2`, orgID, id)
	return scanInvoice(row)
}

// List returns invoices matching the filter, newest first.
func (r *Repository) List(ctx context.Context, orgID uuid.UUID, f ListFilter) ([]Invoice, error) {
	var (
		where = []string{"org_id=$1"}
		args  = []any{orgID}
	)
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	if f.CompanyID != uuid.Nil {
		args = append(args, f.CompanyID)
		where = append(where, fmt.Sprintf("company_id=$%d", len(args)))
	}
	if f.Overdue {
		where = append(where, "status='OVERDUE'")
	}
	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		invoiceColumns, strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

// ActiveCase fetches the open collection case for an invoice.
func (r *Repository) ActiveCase(ctx context.Context, orgID, invoiceID uuid.UUID) (*collection.Case, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, org_id, invoice_id, company_id, stage, status,
		        last_communication_at, next_action_at, escalation_at, closed_at, summary,
		        created_at, updated_at
		 FROM collection_cases
		 WHERE org_id=$1 AND invoice_id=$2 AND status <> 'CLOSED'`, orgID, invoiceID)
	var c collection.Case
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

// SaveTransition persists the invoice and its case change in a single
// transaction, so a transition fully applies or fully fails.
func (r *Repository) SaveTransition(ctx context.Context, inv *Invoice, kase *collection.Case, caseCreated bool) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE invoices SET amount=$3, currency=$4, status=$5,
			 expected_payment_date=$6, date_origin=$7, payment_promise_date=$8,
			 last_channel=$9, last_result=$10, notes=$11,
			 payment_reference=$12, paid_at=$13, cancel_reason=$14, cancelled_at=$15,
			 updated_at=$16
			 WHERE org_id=$1 AND id=$2`,
			inv.OrgID, inv.ID, inv.Amount, inv.Currency, inv.Status,
			inv.ExpectedPaymentDate, inv.DateOrigin, inv.PaymentPromiseDate,
			inv.LastChannel, inv.LastResult, inv.Notes,
			inv.PaymentReference, inv.PaidAt, inv.CancelReason, inv.CancelledAt,
			inv.UpdatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			// New invoice landing together with its first case.
			if _, err := tx.Exec(ctx, insertInvoiceSQL, invoiceArgs(inv)...); err != nil {
				if shared.IsUniqueViolation(err) {
					return fmt.Errorf("invoice number %s already exists: %w", inv.Number, shared.ErrConflict)
				}
				return err
			}
		}
		if kase == nil {
			return nil
		}
		if caseCreated {
			_, err = tx.Exec(ctx,
				`INSERT INTO collection_cases (id, org_id, invoice_id, company_id, stage, status,
				 last_communication_at, next_action_at, escalation_at, closed_at, summary, created_at, updated_at)
				 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
				kase.ID, kase.OrgID, kase.InvoiceID, kase.CompanyID, kase.Stage, kase.Status,
				kase.LastCommunicationAt, kase.NextActionAt, kase.EscalationAt, kase.ClosedAt, kase.Summary,
				kase.CreatedAt, kase.UpdatedAt)
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE collection_cases SET stage=$3, status=$4, last_communication_at=$5,
			 next_action_at=$6, escalation_at=$7, closed_at=$8, summary=$9, updated_at=$10
			 WHERE org_id=$1 AND id=$2`,
			kase.OrgID, kase.ID, kase.Stage, kase.Status, kase.LastCommunicationAt,
			kase.NextActionAt, kase.EscalationAt, kase.ClosedAt, kase.Summary, kase.UpdatedAt)
		return err
	})
}

// ListDueForOverdue finds invoices eligible for the overdue sweep across
// all organizations.
func (r *Repository) ListDueForOverdue(ctx context.Context, asOf time.Time, limit int) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices
		 WHERE status IN ('PENDING','PARTIALLY_PAID') AND due_date < $1
		 ORDER BY due_date ASC LIMIT $2`, asOf, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

// ListBrokenPromises finds open PROMISE_TO_PAY cases whose next action
// passed while the invoice remains unsettled.
func (r *Repository) ListBrokenPromises(ctx context.Context, asOf time.Time, limit int) ([]collection.Case, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.org_id, c.invoice_id, c.company_id, c.stage, c.status,
		        c.last_communication_at, c.next_action_at, c.escalation_at, c.closed_at, c.summary,
		        c.created_at, c.updated_at
		 FROM collection_cases c
		 JOIN invoices i ON i.id = c.invoice_id AND i.org_id = c.org_id
		 WHERE c.stage='PROMISE_TO_PAY' AND c.status='ACTIVE'
		   AND c.next_action_at IS NOT NULL AND c.next_action_at <= $1
		   AND i.status NOT IN ('PAID','CANCELLED')
		 ORDER BY c.next_action_at ASC LIMIT $2`, asOf, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []collection.Case
	for rows.Next() {
		var c collection.Case
		if err := rows.Scan(&c.ID, &c.OrgID, &c.InvoiceID, &c.CompanyID, &c.Stage, &c.Status,
			&c.LastCommunicationAt, &c.NextActionAt, &c.EscalationAt, &c.ClosedAt, &c.Summary,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
