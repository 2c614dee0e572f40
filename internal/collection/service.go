package collection

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/duewell/duewell/internal/authz"
	"github.com/duewell/duewell/internal/shared"
)

// RepositoryPort defines data access for collection cases. Lookups are
// tenant-scoped: a case belonging to another organization must surface as
// shared.ErrNotFound.
type RepositoryPort interface {
	Get(ctx context.Context, orgID, id uuid.UUID) (*Case, error)
	ActiveByInvoice(ctx context.Context, orgID, invoiceID uuid.UUID) (*Case, error)
	List(ctx context.Context, orgID uuid.UUID, f ListFilter) ([]Case, error)
	Update(ctx context.Context, c *Case) error
	Create(ctx context.Context, c *Case) error
}

// ListFilter narrows case listings.
type ListFilter struct {
	Status       CaseStatus
	Stage        Stage
	CompanyID    uuid.UUID
	ActionBefore *time.Time
	shared.Pagination
}

// Service handles manual case operations. Invoice-driven case changes flow
// through the invoice lifecycle service instead, so they commit atomically
// with the invoice mutation.
type Service struct {
	repo        RepositoryPort
	coordinator *Coordinator
	audit       shared.Auditor
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, coordinator *Coordinator, audit shared.Auditor, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAuditor{}
	}
	return &Service{repo: repo, coordinator: coordinator, audit: audit, logger: logger, now: time.Now}
}

// Coordinator exposes the pure coordinator for composition by other services.
func (s *Service) Coordinator() *Coordinator { return s.coordinator }

// Get returns a single case.
func (s *Service) Get(ctx context.Context, tc shared.TenantContext, id uuid.UUID) (*Case, error) {
	if err := s.gate(tc, authz.ActionCasesView); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, tc.OrgID, id)
}

// List returns cases matching the filter. The reminder scheduler consumes
// this with ActionBefore to find due cases.
func (s *Service) List(ctx context.Context, tc shared.TenantContext, f ListFilter) ([]Case, error) {
	if err := s.gate(tc, authz.ActionCasesView); err != nil {
		return nil, err
	}
	f.Pagination = f.Pagination.Normalize()
	return s.repo.List(ctx, tc.OrgID, f)
}

// Advance manually escalates a case one step up the reminder ladder.
func (s *Service) Advance(ctx context.Context, tc shared.TenantContext, id uuid.UUID) (*Case, error) {
	return s.mutate(ctx, tc, id, authz.ActionCasesEscalate, "case.advance", func(c Case, now time.Time) (Case, error) {
		return s.coordinator.Advance(c, now)
	})
}

// Pause suspends a case.
func (s *Service) Pause(ctx context.Context, tc shared.TenantContext, id uuid.UUID) (*Case, error) {
	return s.mutate(ctx, tc, id, authz.ActionCasesPause, "case.pause", func(c Case, now time.Time) (Case, error) {
		return s.coordinator.Pause(c, now)
	})
}

// Resume re-activates a paused case.
func (s *Service) Resume(ctx context.Context, tc shared.TenantContext, id uuid.UUID) (*Case, error) {
	return s.mutate(ctx, tc, id, authz.ActionCasesPause, "case.resume", func(c Case, now time.Time) (Case, error) {
		return s.coordinator.Resume(c, now)
	})
}

// RecordCommunication stamps a contact attempt on the case.
func (s *Service) RecordCommunication(ctx context.Context, tc shared.TenantContext, id uuid.UUID) (*Case, error) {
	return s.mutate(ctx, tc, id, authz.ActionCasesUpdate, "case.communication", func(c Case, now time.Time) (Case, error) {
		return s.coordinator.RecordCommunication(c, now), nil
	})
}

// UpdateSummary replaces the case summary text.
func (s *Service) UpdateSummary(ctx context.Context, tc shared.TenantContext, id uuid.UUID, summary string) (*Case, error) {
	return s.mutate(ctx, tc, id, authz.ActionCasesUpdate, "case.summary", func(c Case, now time.Time) (Case, error) {
		c.Summary = summary
		c.UpdatedAt = now
		return c, nil
	})
}

func (s *Service) gate(tc shared.TenantContext, action authz.Action) error {
	if !tc.Valid() {
		return errors.New("collection: tenant context required")
	}
	return authz.Require(tc.Role, action)
}

func (s *Service) mutate(ctx context.Context, tc shared.TenantContext, id uuid.UUID, action authz.Action, auditAction string, fn func(Case, time.Time) (Case, error)) (*Case, error) {
	if err := s.gate(tc, action); err != nil {
		return nil, err
	}
	current, err := s.repo.Get(ctx, tc.OrgID, id)
	if err != nil {
		return nil, err
	}
	updated, err := fn(*current, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, err
	}
	if err := s.audit.Record(ctx, shared.AuditEntry{
		OrgID:    tc.OrgID,
		ActorID:  tc.ActorID,
		Action:   auditAction,
		Entity:   "collection_case",
		EntityID: id.String(),
		Meta:     map[string]any{"stage": updated.Stage, "status": updated.Status},
	}); err != nil && s.logger != nil {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
	return &updated, nil
}
