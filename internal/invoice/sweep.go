package invoice

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/duewell/duewell/internal/shared"
)

// SweepResult summarises one sweep pass.
type SweepResult struct {
	Scanned int
	Updated int
	Failed  int
}

// SweepOverdue transitions PENDING and PARTIALLY_PAID invoices whose due
// date passed to OVERDUE and opens a collection case where none exists.
// This is a system operation invoked by the background worker, not a user
// mutation, so it runs without a tenant context; each invoice still
// mutates inside its own transaction.
func (s *Service) SweepOverdue(ctx context.Context, asOf time.Time, limit int) (SweepResult, error) {
	if limit <= 0 {
		limit = 500
	}
	due, err := s.repo.ListDueForOverdue(ctx, asOf, limit)
	if err != nil {
		return SweepResult{}, err
	}

	res := SweepResult{Scanned: len(due)}
	for i := range due {
		inv := due[i]
		if !ValidStatusTransition(inv.Status, StatusOverdue) {
			continue
		}
		inv.Status = StatusOverdue
		inv.UpdatedAt = asOf

		kase, caseCreated, err := s.ensureCase(ctx, inv.OrgID, &inv, asOf)
		if err != nil {
			res.Failed++
			s.warn("overdue sweep ensure case", err, inv.ID.String())
			continue
		}
		if err := s.repo.SaveTransition(ctx, &inv, kase, caseCreated); err != nil {
			res.Failed++
			s.warn("overdue sweep save", err, inv.ID.String())
			continue
		}
		res.Updated++
	}
	return res, nil
}

// SweepBrokenPromises escalates open PROMISE_TO_PAY cases whose promise
// check is due while the invoice remains unpaid.
func (s *Service) SweepBrokenPromises(ctx context.Context, asOf time.Time, limit int) (SweepResult, error) {
	if limit <= 0 {
		limit = 500
	}
	stale, err := s.repo.ListBrokenPromises(ctx, asOf, limit)
	if err != nil {
		return SweepResult{}, err
	}

	res := SweepResult{Scanned: len(stale)}
	for _, kase := range stale {
		inv, err := s.repo.Get(ctx, kase.OrgID, kase.InvoiceID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				continue
			}
			res.Failed++
			continue
		}
		escalated, err := s.cases.PromiseBroken(kase, asOf)
		if err != nil {
			res.Failed++
			continue
		}
		inv.PaymentPromiseDate = nil
		inv.UpdatedAt = asOf
		if err := s.repo.SaveTransition(ctx, inv, &escalated, false); err != nil {
			res.Failed++
			s.warn("broken promise sweep save", err, kase.ID.String())
			continue
		}
		res.Updated++
	}
	return res, nil
}

func (s *Service) warn(msg string, err error, id string) {
	if s.logger != nil {
		s.logger.Warn(msg, slog.Any("error", err), slog.String("id", id))
	}
}
