package shared

import (
	"net/url"
	"strconv"
)

// Pagination clamps list queries to sane bounds.
type Pagination struct {
	Limit  int
	Offset int
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Normalize applies defaults and caps.
func (p Pagination) Normalize() Pagination {
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// PaginationFromQuery reads limit/offset query parameters. Bad values fall
// back to defaults via Normalize.
func PaginationFromQuery(q url.Values) Pagination {
	var p Pagination
	p.Limit, _ = strconv.Atoi(q.Get("limit"))
	p.Offset, _ = strconv.Atoi(q.Get("offset"))
	return p.Normalize()
}
