package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/duewell/duewell/internal/authz"
	"github.com/duewell/duewell/internal/bulk"
	"github.com/duewell/duewell/internal/collection"
	"github.com/duewell/duewell/internal/shared"
)

// RepositoryPort defines data access for invoices and the case rows that
// change with them. Lookups are tenant-scoped: an invoice belonging to
// another organization surfaces as shared.ErrNotFound, indistinguishable
// from genuine absence.
type RepositoryPort interface {
	Create(ctx context.Context, inv *Invoice) error
	Get(ctx context.Context, orgID, id uuid.UUID) (*Invoice, error)
	List(ctx context.Context, orgID uuid.UUID, f ListFilter) ([]Invoice, error)
	ActiveCase(ctx context.Context, orgID, invoiceID uuid.UUID) (*collection.Case, error)
	// SaveTransition persists the invoice and, when non-nil, the case in a
	// single transaction. caseCreated distinguishes insert from update.
	SaveTransition(ctx context.Context, inv *Invoice, kase *collection.Case, caseCreated bool) error
	// ListDueForOverdue returns PENDING/PARTIALLY_PAID invoices across all
	// organizations whose due date passed before asOf. Used by the sweep.
	ListDueForOverdue(ctx context.Context, asOf time.Time, limit int) ([]Invoice, error)
	// ListBrokenPromises returns open PROMISE_TO_PAY cases whose promise
	// check is due and whose invoice remains unpaid.
	ListBrokenPromises(ctx context.Context, asOf time.Time, limit int) ([]collection.Case, error)
}

// Service owns invoice state transitions. Every operation gates on the
// permission matrix, runs the pure validators, then mutates; the invoice
// and any triggered case change commit in one transaction through the
// repository, so a transition either fully applies or fully fails.
type Service struct {
	repo   RepositoryPort
	cases  *collection.Coordinator
	audit  shared.Auditor
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, cases *collection.Coordinator, audit shared.Auditor, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAuditor{}
	}
	return &Service{repo: repo, cases: cases, audit: audit, logger: logger, now: time.Now}
}

// Create validates and persists a new invoice. New invoices start DRAFT or
// PENDING; a PENDING invoice immediately enters collections.
func (s *Service) Create(ctx context.Context, tc shared.TenantContext, input CreateInput) (*Invoice, error) {
	if err := s.gate(tc, authz.ActionInvoicesCreate); err != nil {
		return nil, err
	}

	status := input.Status
	if status == "" {
		status = StatusDraft
	}
	if status != StatusDraft && status != StatusPending {
		return nil, shared.Invalid("status", "new invoices start DRAFT or PENDING")
	}
	if input.CompanyID == uuid.Nil {
		return nil, shared.Invalid("company_id", "company is required")
	}
	number := NormalizeInvoiceNumber(input.Number)
	if !ValidInvoiceNumber(number) {
		return nil, shared.Invalid("number", "invoice number must be 1-50 characters of A-Z, 0-9, _ or -")
	}
	if !ValidAmount(input.Amount) {
		return nil, shared.Invalid("amount", "amount must be positive, at most 999999999.99, with at most 2 decimal places")
	}
	if !ValidCurrency(input.Currency) {
		return nil, shared.Invalid("currency", "unsupported currency code")
	}
	if err := ValidateInvoiceDates(input.IssueDate, input.DueDate, input.ExpectedPaymentDate); err != nil {
		return nil, err
	}
	if err := ValidateDateOrigin(input.ExpectedPaymentDate, input.DateOrigin); err != nil {
		return nil, err
	}

	now := s.now()
	inv := &Invoice{
		ID:                  uuid.New(),
		OrgID:               tc.OrgID,
		CompanyID:           input.CompanyID,
		Number:              number,
		Amount:              input.Amount,
		Currency:            NormalizeCurrency(input.Currency),
		IssueDate:           input.IssueDate,
		DueDate:             input.DueDate,
		Status:              status,
		ExpectedPaymentDate: input.ExpectedPaymentDate,
		DateOrigin:          input.DateOrigin,
		Notes:               input.Notes,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if status == StatusPending {
		kase := s.cases.NewCase(tc.OrgID, inv.ID, inv.CompanyID, now)
		if err := s.repo.SaveTransition(ctx, inv, &kase, true); err != nil {
			return nil, err
		}
		return inv, nil
	}
	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// Get returns a single invoice.
func (s *Service) Get(ctx context.Context, tc shared.TenantContext, id uuid.UUID) (*Invoice, error) {
	if err := s.gate(tc, authz.ActionInvoicesView); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, tc.OrgID, id)
}

// List returns invoices matching the filter. Exporters consume this as-is;
// formatting is entirely external.
func (s *Service) List(ctx context.Context, tc shared.TenantContext, f ListFilter) ([]Invoice, error) {
	if err := s.gate(tc, authz.ActionInvoicesView); err != nil {
		return nil, err
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	return s.repo.List(ctx, tc.OrgID, f)
}

// MarkAsPaid transitions the invoice to PAID and closes its open case.
func (s *Service) MarkAsPaid(ctx context.Context, tc shared.TenantContext, id uuid.UUID, paymentReference string) (*Invoice, error) {
	return s.transition(ctx, tc, id, authz.ActionInvoicesMarkPaid, "invoice.mark_paid", nil,
		func(inv *Invoice, now time.Time) error {
			if err := s.checkTransition(inv.Status, StatusPaid); err != nil {
				return err
			}
			inv.Status = StatusPaid
			inv.PaymentReference = paymentReference
			inv.PaidAt = &now
			return nil
		},
		func(kase collection.Case, now time.Time) (collection.Case, error) {
			return s.cases.Resolve(kase, "invoice paid", now), nil
		})
}

// RecordPartialPayment transitions the invoice to PARTIALLY_PAID.
func (s *Service) RecordPartialPayment(ctx context.Context, tc shared.TenantContext, id uuid.UUID, paymentReference string) (*Invoice, error) {
	return s.transition(ctx, tc, id, authz.ActionInvoicesMarkPaid, "invoice.partial_payment", nil,
		func(inv *Invoice, now time.Time) error {
			if err := s.checkTransition(inv.Status, StatusPartiallyPaid); err != nil {
				return err
			}
			inv.Status = StatusPartiallyPaid
			inv.PaymentReference = paymentReference
			return nil
		}, nil)
}

// Cancel transitions the invoice to CANCELLED. The reason is mandatory at
// this boundary, not just in the UI; CANCELLED is terminal.
func (s *Service) Cancel(ctx context.Context, tc shared.TenantContext, id uuid.UUID, reason string) (*Invoice, error) {
	if err := s.gate(tc, authz.ActionInvoicesCancel); err != nil {
		return nil, err
	}
	reason = trimmed(reason)
	if reason == "" {
		return nil, shared.Invalid("reason", "a cancellation reason is required")
	}
	return s.transition(ctx, tc, id, authz.ActionInvoicesCancel, "invoice.cancel",
		map[string]any{"reason": reason},
		func(inv *Invoice, now time.Time) error {
			if err := s.checkTransition(inv.Status, StatusCancelled); err != nil {
				return err
			}
			inv.Status = StatusCancelled
			inv.CancelReason = reason
			inv.CancelledAt = &now
			return nil
		},
		func(kase collection.Case, now time.Time) (collection.Case, error) {
			return s.cases.Resolve(kase, "invoice cancelled", now), nil
		})
}

// RevertToPending is the PAID -> PENDING reversal for misapplied payments.
// It is the only backward transition, requires the elevated tier and an
// audit reason, and reopens collections on the invoice.
func (s *Service) RevertToPending(ctx context.Context, tc shared.TenantContext, id uuid.UUID, reason string) (*Invoice, error) {
	if err := s.gate(tc, authz.ActionInvoicesRevertPaid); err != nil {
		return nil, err
	}
	reason = trimmed(reason)
	if reason == "" {
		return nil, shared.Invalid("reason", "a reversal reason is required")
	}
	inv, err := s.repo.Get(ctx, tc.OrgID, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkTransition(inv.Status, StatusPending); err != nil {
		return nil, err
	}
	now := s.now()
	inv.Status = StatusPending
	inv.PaymentReference = ""
	inv.PaidAt = nil
	inv.UpdatedAt = now

	kase, caseCreated, err := s.ensureCase(ctx, tc.OrgID, inv, now)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveTransition(ctx, inv, kase, caseCreated); err != nil {
		return nil, err
	}
	s.record(ctx, tc, "invoice.revert_paid", inv.ID, map[string]any{"reason": reason})
	return inv, nil
}

// UpdateExpectedPaymentDate sets or clears the expected payment date. The
// date and its origin travel together; clearing the date clears the
// origin. The previous value lands in the audit trail, and an open case is
// rescheduled around the new date.
func (s *Service) UpdateExpectedPaymentDate(ctx context.Context, tc shared.TenantContext, id uuid.UUID, date *time.Time, origin *DateOrigin, reason string) (*Invoice, error) {
	if err := s.gate(tc, authz.ActionInvoicesSetExpectedDate); err != nil {
		return nil, err
	}
	if err := ValidateDateOrigin(date, origin); err != nil {
		return nil, err
	}
	inv, err := s.repo.Get(ctx, tc.OrgID, id)
	if err != nil {
		return nil, err
	}
	if err := ValidateInvoiceDates(inv.IssueDate, inv.DueDate, date); err != nil {
		return nil, err
	}

	meta := map[string]any{"reason": trimmed(reason)}
	if inv.ExpectedPaymentDate != nil {
		meta["previous_date"] = inv.ExpectedPaymentDate.Format(time.RFC3339)
	}
	if inv.DateOrigin != nil {
		meta["previous_origin"] = string(*inv.DateOrigin)
	}

	now := s.now()
	inv.ExpectedPaymentDate = date
	inv.DateOrigin = origin
	inv.UpdatedAt = now

	kase, err := s.repo.ActiveCase(ctx, tc.OrgID, inv.ID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if kase != nil {
		updated := s.cases.Reschedule(*kase, date, now)
		kase = &updated
	}
	if err := s.repo.SaveTransition(ctx, inv, kase, false); err != nil {
		return nil, err
	}
	s.record(ctx, tc, "invoice.expected_date", inv.ID, meta)
	return inv, nil
}

// RecordPaymentPromise stores a customer's promise to pay and advances the
// linked case to PROMISE_TO_PAY. The promise may not lie in the past
// relative to the call's reference today.
func (s *Service) RecordPaymentPromise(ctx context.Context, tc shared.TenantContext, id uuid.UUID, promise time.Time, reason string) (*Invoice, error) {
	if err := s.gate(tc, authz.ActionInvoicesRecordPromise); err != nil {
		return nil, err
	}
	now := s.now()
	if !ValidPromiseDate(promise, now) {
		return nil, shared.Invalid("promise_date", "promise date must not be in the past")
	}
	inv, err := s.repo.Get(ctx, tc.OrgID, id)
	if err != nil {
		return nil, err
	}
	if inv.Status == StatusPaid || inv.Status == StatusCancelled {
		return nil, fmt.Errorf("cannot record a promise on a %s invoice: %w", inv.Status, shared.ErrInvalidTransition)
	}

	inv.PaymentPromiseDate = &promise
	inv.UpdatedAt = now

	kase, caseCreated, err := s.ensureCase(ctx, tc.OrgID, inv, now)
	if err != nil {
		return nil, err
	}
	promised, err := s.cases.PromiseRecorded(*kase, promise, now)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveTransition(ctx, inv, &promised, caseCreated); err != nil {
		return nil, err
	}
	s.record(ctx, tc, "invoice.payment_promise", inv.ID, map[string]any{
		"promise_date": promise.Format("2006-01-02"),
		"reason":       trimmed(reason),
	})
	return inv, nil
}

// RecordContactAttempt stamps the channel and result of the latest
// outreach on the invoice.
func (s *Service) RecordContactAttempt(ctx context.Context, tc shared.TenantContext, id uuid.UUID, channel, result string) (*Invoice, error) {
	if err := s.gate(tc, authz.ActionInvoicesUpdate); err != nil {
		return nil, err
	}
	channel = trimmed(channel)
	if channel == "" {
		return nil, shared.Invalid("channel", "contact channel is required")
	}
	inv, err := s.repo.Get(ctx, tc.OrgID, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	inv.LastChannel = channel
	inv.LastResult = trimmed(result)
	inv.UpdatedAt = now

	kase, err := s.repo.ActiveCase(ctx, tc.OrgID, inv.ID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if kase != nil {
		touched := s.cases.RecordCommunication(*kase, now)
		kase = &touched
	}
	if err := s.repo.SaveTransition(ctx, inv, kase, false); err != nil {
		return nil, err
	}
	return inv, nil
}

// UpdateAmount changes the invoice amount. Restricted to the admin tier.
func (s *Service) UpdateAmount(ctx context.Context, tc shared.TenantContext, id uuid.UUID, amount decimal.Decimal) (*Invoice, error) {
	if err := s.gate(tc, authz.ActionInvoicesUpdateAmount); err != nil {
		return nil, err
	}
	if !ValidAmount(amount) {
		return nil, shared.Invalid("amount", "amount must be positive, at most 999999999.99, with at most 2 decimal places")
	}
	inv, err := s.repo.Get(ctx, tc.OrgID, id)
	if err != nil {
		return nil, err
	}
	if inv.Status == StatusPaid || inv.Status == StatusCancelled {
		return nil, fmt.Errorf("amount is frozen once %s: %w", inv.Status, shared.ErrInvalidTransition)
	}
	meta := map[string]any{"previous_amount": inv.Amount.String(), "amount": amount.String()}
	inv.Amount = amount
	inv.UpdatedAt = s.now()
	if err := s.repo.SaveTransition(ctx, inv, nil, false); err != nil {
		return nil, err
	}
	s.record(ctx, tc, "invoice.update_amount", inv.ID, meta)
	return inv, nil
}

// UpdateNotes replaces the free-form notes.
func (s *Service) UpdateNotes(ctx context.Context, tc shared.TenantContext, id uuid.UUID, notes string) (*Invoice, error) {
	if err := s.gate(tc, authz.ActionInvoicesUpdate); err != nil {
		return nil, err
	}
	inv, err := s.repo.Get(ctx, tc.OrgID, id)
	if err != nil {
		return nil, err
	}
	inv.Notes = notes
	inv.UpdatedAt = s.now()
	if err := s.repo.SaveTransition(ctx, inv, nil, false); err != nil {
		return nil, err
	}
	return inv, nil
}

// BulkMarkAsPaid applies MarkAsPaid across the id set. Items fail
// independently; one CANCELLED invoice does not stall the rest.
func (s *Service) BulkMarkAsPaid(ctx context.Context, tc shared.TenantContext, ids []uuid.UUID, paymentReference string) (bulk.Result, error) {
	if err := s.gate(tc, authz.ActionInvoicesMarkPaid); err != nil {
		return bulk.Result{}, err
	}
	return bulk.Execute(ctx, ids, 0, func(ctx context.Context, id uuid.UUID) error {
		_, err := s.MarkAsPaid(ctx, tc, id, paymentReference)
		return err
	})
}

// BulkUpdateExpectedDates applies UpdateExpectedPaymentDate across the id set.
func (s *Service) BulkUpdateExpectedDates(ctx context.Context, tc shared.TenantContext, ids []uuid.UUID, date *time.Time, origin *DateOrigin, reason string) (bulk.Result, error) {
	if err := s.gate(tc, authz.ActionInvoicesSetExpectedDate); err != nil {
		return bulk.Result{}, err
	}
	if err := ValidateDateOrigin(date, origin); err != nil {
		return bulk.Result{}, err
	}
	return bulk.Execute(ctx, ids, 0, func(ctx context.Context, id uuid.UUID) error {
		_, err := s.UpdateExpectedPaymentDate(ctx, tc, id, date, origin, reason)
		return err
	})
}

func (s *Service) gate(tc shared.TenantContext, action authz.Action) error {
	if !tc.Valid() {
		return errors.New("invoice: tenant context required")
	}
	return authz.Require(tc.Role, action)
}

func (s *Service) checkTransition(from, to Status) error {
	if !ValidStatusTransition(from, to) {
		return &shared.TransitionError{From: string(from), To: string(to)}
	}
	return nil
}

// ensureCase returns the open case for the invoice, creating one when none
// exists. Creation is idempotent by construction: an existing ACTIVE case
// is returned as-is.
func (s *Service) ensureCase(ctx context.Context, orgID uuid.UUID, inv *Invoice, now time.Time) (*collection.Case, bool, error) {
	kase, err := s.repo.ActiveCase(ctx, orgID, inv.ID)
	if err == nil {
		return kase, false, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, false, err
	}
	created := s.cases.NewCase(orgID, inv.ID, inv.CompanyID, now)
	return &created, true, nil
}

// transition loads, gates, applies mutate, derives the case change and
// persists both atomically.
func (s *Service) transition(ctx context.Context, tc shared.TenantContext, id uuid.UUID, action authz.Action, auditAction string, meta map[string]any,
	mutate func(inv *Invoice, now time.Time) error,
	caseFn func(kase collection.Case, now time.Time) (collection.Case, error)) (*Invoice, error) {
	if err := s.gate(tc, action); err != nil {
		return nil, err
	}
	inv, err := s.repo.Get(ctx, tc.OrgID, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := mutate(inv, now); err != nil {
		return nil, err
	}
	inv.UpdatedAt = now

	var kase *collection.Case
	if caseFn != nil {
		existing, err := s.repo.ActiveCase(ctx, tc.OrgID, inv.ID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
		if existing != nil {
			updated, err := caseFn(*existing, now)
			if err != nil {
				return nil, err
			}
			kase = &updated
		}
	}
	if err := s.repo.SaveTransition(ctx, inv, kase, false); err != nil {
		return nil, err
	}
	s.record(ctx, tc, auditAction, inv.ID, meta)
	return inv, nil
}

func (s *Service) record(ctx context.Context, tc shared.TenantContext, action string, entityID uuid.UUID, meta map[string]any) {
	err := s.audit.Record(ctx, shared.AuditEntry{
		OrgID:    tc.OrgID,
		ActorID:  tc.ActorID,
		Action:   action,
		Entity:   "invoice",
		EntityID: entityID.String(),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record failed", slog.Any("error", err), slog.String("action", action))
	}
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
