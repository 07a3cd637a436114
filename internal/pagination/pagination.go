package pagination

import (
	"strconv"
	"strings"
)

// Limits applied to list queries.
const (
	DefaultLimit = 20
	MaxLimit     = 200
)

// Params is an offset/limit window.
type Params struct {
	Offset int
	Limit  int
}

// Page describes where a window sits in the full result set.
type Page struct {
	Total   int64 `json:"total"`
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasNext bool  `json:"has_next"`
	HasPrev bool  `json:"has_prev"`
}

// Normalize clamps the window to sane bounds.
func (p Params) Normalize() Params {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// NewPage builds the page descriptor for a window over total rows.
func NewPage(p Params, total int64) Page {
	p = p.Normalize()
	return Page{
		Total:   total,
		Page:    p.Offset/p.Limit + 1,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasNext: int64(p.Offset+p.Limit) < total,
		HasPrev: p.Offset > 0,
	}
}

// Parse reads limit/offset, or page/page_size, from raw query values.
func Parse(get func(string) string) Params {
	limit := atoi(get("limit"))
	if limit <= 0 {
		limit = atoi(get("page_size"))
	}
	p := Params{Limit: limit, Offset: atoi(get("offset"))}
	p = p.Normalize()
	if page := atoi(get("page")); page > 0 && strings.TrimSpace(get("offset")) == "" {
		p.Offset = (page - 1) * p.Limit
	}
	return p
}

func atoi(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return n
}
