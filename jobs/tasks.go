// Package jobs runs the background sides of the collection process: the
// overdue sweep and the broken-promise sweep, on top of Asynq.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInvoiceOverdueSweep marks past-due invoices OVERDUE.
	TaskInvoiceOverdueSweep = "invoice:overdue_sweep"
	// TaskPromiseSweep escalates broken payment promises.
	TaskPromiseSweep = "invoice:promise_sweep"
	// TaskReminderScan surfaces cases whose next action is due.
	TaskReminderScan = "case:reminder_scan"
)

// SweepPayload bounds a single sweep run.
type SweepPayload struct {
	AsOf  time.Time `json:"as_of"`
	Limit int       `json:"limit"`
}

// NewOverdueSweepTask constructs the overdue sweep task. A zero AsOf means
// the handler uses its own clock.
func NewOverdueSweepTask(payload SweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceOverdueSweep, data), nil
}

// NewPromiseSweepTask constructs the broken-promise sweep task.
func NewPromiseSweepTask(payload SweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPromiseSweep, data), nil
}

// NewReminderScanTask constructs the reminder scan task.
func NewReminderScanTask(payload SweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReminderScan, data), nil
}
