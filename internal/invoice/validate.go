package invoice

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/duewell/duewell/internal/shared"
)

// maxAmount is the ceiling for invoice amounts.
var maxAmount = decimal.RequireFromString("999999999.99")

// currencies is the fixed allow-list. Input is matched case-insensitively
// and stored upper-cased.
var currencies = map[string]struct{}{
	"EUR": {}, "USD": {}, "GBP": {}, "CHF": {},
	"SEK": {}, "NOK": {}, "DKK": {}, "PLN": {},
	"CZK": {}, "CAD": {}, "AUD": {}, "JPY": {},
}

var invoiceNumberPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}$`)

// ValidAmount reports whether a is positive, at most 999,999,999.99 and
// has at most two fractional digits.
func ValidAmount(a decimal.Decimal) bool {
	if !a.IsPositive() || a.GreaterThan(maxAmount) {
		return false
	}
	// Equal after truncation means no digits beyond the second place.
	return a.Equal(a.Truncate(2))
}

// ValidCurrency reports membership in the currency allow-list.
func ValidCurrency(code string) bool {
	_, ok := currencies[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}

// NormalizeCurrency upper-cases a trimmed currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateInvoiceDates checks issue <= due and, when present,
// expected >= issue. The returned error names the violated rule.
func ValidateInvoiceDates(issue, due time.Time, expected *time.Time) error {
	if issue.IsZero() || due.IsZero() {
		return shared.Invalid("dates", "issue and due dates are required")
	}
	if due.Before(issue) {
		return shared.Invalid("due_date", "due date must not be before issue date")
	}
	if expected != nil && expected.Before(issue) {
		return shared.Invalid("expected_payment_date", "expected payment date must not be before issue date")
	}
	return nil
}

// ValidPromiseDate reports whether promise, at day granularity, falls on
// or after today.
func ValidPromiseDate(promise, today time.Time) bool {
	return !day(promise).Before(day(today))
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ValidateDateOrigin enforces that origin is set iff the expected payment
// date is set.
func ValidateDateOrigin(expected *time.Time, origin *DateOrigin) error {
	switch {
	case expected != nil && origin == nil:
		return shared.Invalid("date_origin", "date origin is required when an expected payment date is set")
	case expected == nil && origin != nil:
		return shared.Invalid("date_origin", "date origin must be empty without an expected payment date")
	case origin != nil && !ValidDateOrigin(*origin):
		return shared.Invalid("date_origin", "unknown date origin")
	}
	return nil
}

// ValidStatusTransition is a pure table lookup over the status edge set.
func ValidStatusTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NormalizeInvoiceNumber trims, collapses inner whitespace and upper-cases
// an invoice number.
func NormalizeInvoiceNumber(number string) string {
	fields := strings.Fields(number)
	return strings.ToUpper(strings.Join(fields, ""))
}

// ValidInvoiceNumber reports whether number matches [A-Za-z0-9_-]{1,50}.
func ValidInvoiceNumber(number string) bool {
	return invoiceNumberPattern.MatchString(number)
}
