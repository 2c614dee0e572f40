// Package customer holds the companies invoices are raised against and
// their contact people.
package customer

import (
	"time"

	"github.com/google/uuid"
)

// Company is a customer organization being collected from.
type Company struct {
	ID        uuid.UUID
	OrgID     uuid.UUID
	Name      string
	VATNumber string
	Email     string
	Phone     string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Contact is a person at a customer company.
type Contact struct {
	ID        uuid.UUID
	OrgID     uuid.UUID
	CompanyID uuid.UUID
	Name      string
	Email     string
	Phone     string
	Position  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CompanyInput carries create/update fields for a company.
type CompanyInput struct {
	Name      string
	VATNumber string
	Email     string
	Phone     string
	Notes     string
}

// ContactInput carries create/update fields for a contact.
type ContactInput struct {
	CompanyID uuid.UUID
	Name      string
	Email     string
	Phone     string
	Position  string
}
