// Package invoice owns the invoice lifecycle: status transitions, expected
// payment dates, payment promises and cancellation, together with the
// collection-case changes those mutations trigger.
package invoice

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status enumerates invoice statuses.
type Status string

const (
	StatusDraft         Status = "DRAFT"
	StatusPending       Status = "PENDING"
	StatusPartiallyPaid Status = "PARTIALLY_PAID"
	StatusOverdue       Status = "OVERDUE"
	StatusPaid          Status = "PAID"
	StatusCancelled     Status = "CANCELLED"
)

// transitions is the edge set of the status state machine, keyed by the
// current status. Any pair not listed is illegal. PAID -> PENDING is the
// single backward edge: misapplied payments must be correctable, so the
// reversal exists but sits behind the strictest permission tier and a
// mandatory reason. CANCELLED is terminal.
var transitions = map[Status][]Status{
	StatusDraft:         {StatusPending, StatusPaid, StatusCancelled},
	StatusPending:       {StatusPartiallyPaid, StatusPaid, StatusOverdue, StatusCancelled},
	StatusPartiallyPaid: {StatusPaid, StatusOverdue, StatusCancelled},
	StatusOverdue:       {StatusPaid, StatusCancelled},
	StatusPaid:          {StatusPending},
	StatusCancelled:     {},
}

// ValidStatus reports whether s is a known status.
func ValidStatus(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// DateOrigin records where an expected payment date came from.
type DateOrigin string

const (
	OriginCustomerPromise  DateOrigin = "CUSTOMER_PROMISE"
	OriginInternalEstimate DateOrigin = "INTERNAL_ESTIMATE"
	OriginPaymentPlan      DateOrigin = "PAYMENT_PLAN"
)

// ValidDateOrigin reports whether o is a known origin.
func ValidDateOrigin(o DateOrigin) bool {
	switch o {
	case OriginCustomerPromise, OriginInternalEstimate, OriginPaymentPlan:
		return true
	}
	return false
}

// Invoice model. Invoices are never hard-deleted; CANCELLED is terminal.
type Invoice struct {
	ID                  uuid.UUID
	OrgID               uuid.UUID
	CompanyID           uuid.UUID
	Number              string
	Amount              decimal.Decimal
	Currency            string
	IssueDate           time.Time
	DueDate             time.Time
	Status              Status
	ExpectedPaymentDate *time.Time
	DateOrigin          *DateOrigin
	PaymentPromiseDate  *time.Time
	LastChannel         string
	LastResult          string
	Notes               string
	PaymentReference    string
	PaidAt              *time.Time
	CancelReason        string
	CancelledAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// CreateInput carries the fields for a new invoice.
type CreateInput struct {
	CompanyID           uuid.UUID
	Number              string
	Amount              decimal.Decimal
	Currency            string
	IssueDate           time.Time
	DueDate             time.Time
	Status              Status // DRAFT or PENDING; defaults to DRAFT
	ExpectedPaymentDate *time.Time
	DateOrigin          *DateOrigin
	Notes               string
}

// ListFilter narrows invoice listings.
type ListFilter struct {
	Status    Status
	CompanyID uuid.UUID
	Overdue   bool
	Limit     int
	Offset    int
}
