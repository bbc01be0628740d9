package catalog

import "encoding/json"

// DefaultPageSize is used when no positive limit is configured.
const DefaultPageSize = 20

// Query is the current list filter.
type Query struct {
	SearchTerm string `json:"searchTerm"`
	Limit      int    `json:"limit"`
	Offset     int    `json:"offset"`
}

// normalized clamps limit and offset into their valid ranges.
func (q Query) normalized(defaultLimit int) Query {
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// Pagination describes the most recently loaded page.
type Pagination struct {
	Total  int `json:"total"`
	Count  int `json:"count"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// HasMore reports whether records exist past the loaded page.
func (p Pagination) HasMore() bool {
	return p.Offset+p.Count < p.Total
}

// TotalPages is ceil(total / limit).
func (p Pagination) TotalPages() int {
	if p.Limit <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

// CurrentPage is the 1-based page that contains offset.
func (p Pagination) CurrentPage() int {
	if p.Limit <= 0 {
		return 1
	}
	return p.Offset/p.Limit + 1
}

// IsEmpty reports whether the loaded page has no records.
func (p Pagination) IsEmpty() bool {
	return p.Count == 0
}

// MarshalJSON includes the derived fields so clients don't recompute them.
func (p Pagination) MarshalJSON() ([]byte, error) {
	type plain Pagination
	return json.Marshal(struct {
		plain
		HasMore     bool `json:"hasMore"`
		TotalPages  int  `json:"totalPages"`
		CurrentPage int  `json:"currentPage"`
	}{plain(p), p.HasMore(), p.TotalPages(), p.CurrentPage()})
}

// offsetForPage returns the offset of 1-based page n.
func offsetForPage(n, limit int) int {
	if n < 1 {
		n = 1
	}
	return (n - 1) * limit
}
