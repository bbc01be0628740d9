package catalog

import (
	"errors"
	"fmt"
)

// Query returns the current query.
func (e *Engine) Query() Query {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.query
}

// queryChangedLocked abandons any load in flight so its response, computed
// for the previous query, is dropped.
func (e *Engine) queryChangedLocked() {
	e.gen++
	e.loading = false
}

// SetSearchTerm changes the name filter and rewinds to the first page.
func (e *Engine) SetSearchTerm(term string) Query {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.query.SearchTerm = term
	e.query.Offset = 0
	e.queryChangedLocked()
	return e.query
}

// ClearSearch removes the name filter and rewinds to the first page.
func (e *Engine) ClearSearch() Query {
	return e.SetSearchTerm("")
}

// NextPage advances the offset by one page when more records exist.
func (e *Engine) NextPage() Query {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.query = e.query.normalized(e.pageSize)
	if e.pagination.HasMore() {
		e.query.Offset += e.query.Limit
	}
	e.queryChangedLocked()
	return e.query
}

// PreviousPage moves the offset back one page, stopping at zero.
func (e *Engine) PreviousPage() Query {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.query = e.query.normalized(e.pageSize)
	e.query.Offset = max(0, e.query.Offset-e.query.Limit)
	e.queryChangedLocked()
	return e.query
}

// GoToPage jumps to 1-based page n. Values below 1 mean the first page.
func (e *Engine) GoToPage(n int) Query {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.query = e.query.normalized(e.pageSize)
	e.query.Offset = offsetForPage(n, e.query.Limit)
	e.queryChangedLocked()
	return e.query
}

// SetOffset sets the raw offset. Negative values mean zero.
func (e *Engine) SetOffset(n int) Query {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.query.Offset = n
	e.query = e.query.normalized(e.pageSize)
	e.queryChangedLocked()
	return e.query
}

// SetLimit changes the page size and rewinds to the first page.
// Non-positive values restore the configured size.
func (e *Engine) SetLimit(n int) Query {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.query.Limit = n
	e.query.Offset = 0
	e.query = e.query.normalized(e.pageSize)
	e.queryChangedLocked()
	return e.query
}

// SaveSearchState stores the current query and returns a token for it.
func (e *Engine) SaveSearchState() (string, error) {
	if e.sessions == nil {
		return "", errors.New("catalog: sessions not configured")
	}
	return e.sessions.Save(e.Query())
}

// RestoreSearchState replaces the current query with the one saved under
// token. The caller reloads the page afterwards.
func (e *Engine) RestoreSearchState(token string) (Query, error) {
	if e.sessions == nil {
		return Query{}, errors.New("catalog: sessions not configured")
	}
	q, err := e.sessions.Restore(token)
	if err != nil {
		return Query{}, fmt.Errorf("catalog: restore: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.query = q.normalized(e.pageSize)
	e.queryChangedLocked()
	return e.query, nil
}
