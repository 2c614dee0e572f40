// Package collection tracks collections activity against invoices. A case
// walks a reminder/escalation sequence; stage changes are monotonic except
// for the broken-promise reset and the unconditional terminal edge taken
// when the invoice is paid or cancelled.
package collection

import (
	"time"

	"github.com/google/uuid"
)

// Stage is a case's position in the reminder/escalation sequence.
type Stage string

const (
	StageInitial      Stage = "INITIAL"
	StageReminder1    Stage = "REMINDER_1"
	StageReminder2    Stage = "REMINDER_2"
	StageEscalated    Stage = "ESCALATED"
	StagePromiseToPay Stage = "PROMISE_TO_PAY"
	StageResolved     Stage = "RESOLVED"
)

// CaseStatus enumerates case statuses.
type CaseStatus string

const (
	CaseActive CaseStatus = "ACTIVE"
	CasePaused CaseStatus = "PAUSED"
	CaseClosed CaseStatus = "CLOSED"
)

// Case is the workflow object tracking collections activity for one invoice.
// At most one ACTIVE case exists per invoice.
type Case struct {
	ID                  uuid.UUID
	OrgID               uuid.UUID
	InvoiceID           uuid.UUID
	CompanyID           uuid.UUID
	Stage               Stage
	Status              CaseStatus
	LastCommunicationAt *time.Time
	NextActionAt        *time.Time
	EscalationAt        *time.Time
	ClosedAt            *time.Time
	Summary             string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Open reports whether the case is still being worked.
func (c *Case) Open() bool {
	return c != nil && c.Status != CaseClosed
}

// advanceOrder is the manual escalation ladder. PROMISE_TO_PAY and
// RESOLVED are reached through their own events, never by Advance.
var advanceOrder = map[Stage]Stage{
	StageInitial:   StageReminder1,
	StageReminder1: StageReminder2,
	StageReminder2: StageEscalated,
}

// NextStage returns the stage Advance would move to, and whether a manual
// advance from s is legal.
func NextStage(s Stage) (Stage, bool) {
	next, ok := advanceOrder[s]
	return next, ok
}

// ValidStage reports whether s is a known stage.
func ValidStage(s Stage) bool {
	switch s {
	case StageInitial, StageReminder1, StageReminder2, StageEscalated, StagePromiseToPay, StageResolved:
		return true
	}
	return false
}
