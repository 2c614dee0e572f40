package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/duewell/duewell/internal/collection"
	"github.com/duewell/duewell/internal/invoice"
	jobmetrics "github.com/duewell/duewell/internal/jobs"
	"github.com/duewell/duewell/internal/observability"
)

// CaseSource lists collection cases whose next action is due. The actual
// sending of reminders happens outside this system; the scan only surfaces
// what is due.
type CaseSource interface {
	ListActionDue(ctx context.Context, asOf time.Time, limit int) ([]collection.Case, error)
}

// SweepJob drives the invoice sweeps and the reminder scan from the queue.
type SweepJob struct {
	invoices *invoice.Service
	cases    CaseSource
	logger   *slog.Logger
	metrics  *jobmetrics.Metrics
	obs      *observability.Metrics
	now      func() time.Time
}

// NewSweepJob constructs a SweepJob. Metrics and cases may be nil; without
// a case source the reminder scan reports nothing due.
func NewSweepJob(invoices *invoice.Service, cases CaseSource, logger *slog.Logger, metrics *jobmetrics.Metrics, obs *observability.Metrics) *SweepJob {
	return &SweepJob{invoices: invoices, cases: cases, logger: logger, metrics: metrics, obs: obs, now: time.Now}
}

// HandleOverdue processes TaskInvoiceOverdueSweep tasks.
func (j *SweepJob) HandleOverdue(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("invoice_overdue_sweep")
	payload, err := j.payload(t)
	if err != nil {
		return tracker.End(asynq.SkipRetry)
	}
	res, err := j.invoices.SweepOverdue(ctx, payload.AsOf, payload.Limit)
	j.obs.ObserveSweep("overdue", res.Updated, res.Failed, err)
	j.report("overdue sweep", res, err)
	return tracker.End(err)
}

// HandlePromises processes TaskPromiseSweep tasks.
func (j *SweepJob) HandlePromises(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("promise_sweep")
	payload, err := j.payload(t)
	if err != nil {
		return tracker.End(asynq.SkipRetry)
	}
	res, err := j.invoices.SweepBrokenPromises(ctx, payload.AsOf, payload.Limit)
	j.obs.ObserveSweep("promise", res.Updated, res.Failed, err)
	j.report("promise sweep", res, err)
	return tracker.End(err)
}

// HandleReminders processes TaskReminderScan tasks: it logs every active
// case whose next action time has passed so downstream tooling can pick
// them up.
func (j *SweepJob) HandleReminders(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("reminder_scan")
	payload, err := j.payload(t)
	if err != nil {
		return tracker.End(asynq.SkipRetry)
	}
	if j.cases == nil {
		return tracker.End(nil)
	}
	due, err := j.cases.ListActionDue(ctx, payload.AsOf, payload.Limit)
	if err != nil {
		if j.logger != nil {
			j.logger.Error("reminder scan", slog.Any("error", err))
		}
		return tracker.End(err)
	}
	for _, c := range due {
		if j.logger == nil {
			break
		}
		j.logger.Info("reminder due",
			slog.String("case_id", c.ID.String()),
			slog.String("org_id", c.OrgID.String()),
			slog.String("invoice_id", c.InvoiceID.String()),
			slog.String("stage", string(c.Stage)),
			slog.Time("next_action_at", *c.NextActionAt))
	}
	if j.logger != nil {
		j.logger.Info("reminder scan", slog.Int("due", len(due)))
	}
	return tracker.End(nil)
}

func (j *SweepJob) payload(t *asynq.Task) (SweepPayload, error) {
	var payload SweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return payload, err
		}
	}
	if payload.AsOf.IsZero() {
		payload.AsOf = j.now().UTC()
	}
	return payload, nil
}

func (j *SweepJob) report(name string, res invoice.SweepResult, err error) {
	if j.logger == nil {
		return
	}
	if err != nil {
		j.logger.Error(name, slog.Any("error", err))
		return
	}
	j.logger.Info(name,
		slog.Int("scanned", res.Scanned),
		slog.Int("updated", res.Updated),
		slog.Int("failed", res.Failed))
}
