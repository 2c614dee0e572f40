package collection

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/duewell/duewell/internal/shared"
)

// Coordinator derives case stage and schedule from invoice events. Its
// methods are pure state computations: they take the current case, return
// the updated copy and never touch storage, so callers can persist the
// result atomically alongside the invoice mutation that triggered it.
type Coordinator struct {
	playbook Playbook
}

// NewCoordinator constructs a Coordinator with the given playbook.
func NewCoordinator(playbook Playbook) *Coordinator {
	if playbook.StepOffsets == nil {
		playbook = DefaultPlaybook()
	}
	return &Coordinator{playbook: playbook}
}

// Playbook exposes the configured playbook.
func (co *Coordinator) Playbook() Playbook { return co.playbook }

// NewCase builds an ACTIVE case at INITIAL for an invoice that entered
// collections. Callers must first check no ACTIVE case exists.
func (co *Coordinator) NewCase(orgID, invoiceID, companyID uuid.UUID, now time.Time) Case {
	return Case{
		ID:           uuid.New(),
		OrgID:        orgID,
		InvoiceID:    invoiceID,
		CompanyID:    companyID,
		Stage:        StageInitial,
		Status:       CaseActive,
		NextActionAt: co.playbook.NextActionAt(StageInitial, now),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Resolve closes the case regardless of its current stage. This is the
// unconditional terminal edge taken on full payment or cancellation.
func (co *Coordinator) Resolve(c Case, summary string, now time.Time) Case {
	c.Stage = StageResolved
	c.Status = CaseClosed
	c.NextActionAt = nil
	c.ClosedAt = &now
	if summary != "" {
		c.Summary = summary
	}
	c.UpdatedAt = now
	return c
}

// PromiseRecorded moves the case to PROMISE_TO_PAY and schedules the
// promise check.
func (co *Coordinator) PromiseRecorded(c Case, promise time.Time, now time.Time) (Case, error) {
	if !c.Open() {
		return c, fmt.Errorf("case %s is closed: %w", c.ID, shared.ErrInvalidTransition)
	}
	c.Stage = StagePromiseToPay
	c.NextActionAt = co.playbook.PromiseCheckAt(promise)
	c.UpdatedAt = now
	return c, nil
}

// PromiseBroken escalates a case whose recorded promise was not kept.
// It is the only backward-looking reset in the stage sequence.
func (co *Coordinator) PromiseBroken(c Case, now time.Time) (Case, error) {
	if c.Stage != StagePromiseToPay || !c.Open() {
		return c, &shared.TransitionError{From: string(c.Stage), To: string(StageEscalated)}
	}
	c.Stage = StageEscalated
	c.EscalationAt = &now
	c.NextActionAt = co.playbook.NextActionAt(StageEscalated, now)
	c.UpdatedAt = now
	return c, nil
}

// Advance moves the case one step up the reminder ladder.
func (co *Coordinator) Advance(c Case, now time.Time) (Case, error) {
	if !c.Open() {
		return c, fmt.Errorf("case %s is closed: %w", c.ID, shared.ErrInvalidTransition)
	}
	next, ok := NextStage(c.Stage)
	if !ok {
		return c, &shared.TransitionError{From: string(c.Stage), To: "next"}
	}
	c.Stage = next
	if next == StageEscalated {
		c.EscalationAt = &now
	}
	c.NextActionAt = co.playbook.NextActionAt(next, now)
	c.UpdatedAt = now
	return c, nil
}

// Pause suspends reminder scheduling without losing stage.
func (co *Coordinator) Pause(c Case, now time.Time) (Case, error) {
	if c.Status != CaseActive {
		return c, &shared.TransitionError{From: string(c.Status), To: string(CasePaused)}
	}
	c.Status = CasePaused
	c.NextActionAt = nil
	c.UpdatedAt = now
	return c, nil
}

// Resume re-activates a paused case and reschedules from the current stage.
func (co *Coordinator) Resume(c Case, now time.Time) (Case, error) {
	if c.Status != CasePaused {
		return c, &shared.TransitionError{From: string(c.Status), To: string(CaseActive)}
	}
	c.Status = CaseActive
	c.NextActionAt = co.playbook.NextActionAt(c.Stage, now)
	c.UpdatedAt = now
	return c, nil
}

// RecordCommunication stamps a contact attempt on the case.
func (co *Coordinator) RecordCommunication(c Case, now time.Time) Case {
	c.LastCommunicationAt = &now
	c.UpdatedAt = now
	return c
}

// Reschedule pins the next action to an expected payment date. Promise
// scheduling wins over expected-date reschedules.
func (co *Coordinator) Reschedule(c Case, expected *time.Time, now time.Time) Case {
	if !c.Open() || c.Stage == StagePromiseToPay {
		return c
	}
	if expected == nil {
		c.NextActionAt = co.playbook.NextActionAt(c.Stage, now)
	} else {
		c.NextActionAt = expected
	}
	c.UpdatedAt = now
	return c
}
