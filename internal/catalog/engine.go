// Package catalog reconciles the local overlay with the remote source into
// the list a client sees, and owns the query and selection state.
package catalog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/roster/internal/models"
	"github.com/starford/roster/internal/overlay"
	"github.com/starford/roster/internal/remote"
)

// Messages published in State.Error.
const (
	MsgRemoteDegraded = "remote unavailable, showing local only"
	MsgLoadFailed     = "load failed"
	MsgLoadMoreFailed = "load more failed"
	MsgSelectFailed   = "failed to load character"
)

// Event kinds passed to a Notifier.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
	EventLoaded  = "loaded"
)

// Notifier is told about state changes. id is zero for EventLoaded.
// It is never called with the engine lock held.
type Notifier func(kind string, id int)

// Deps holds the engine's collaborators and tuning.
type Deps struct {
	Overlay  *overlay.Store
	Remote   remote.Source
	Sessions *Sessions
	Logger   *slog.Logger
	Notify   Notifier

	PageSize int
	// SimulatedLatency delays mutations to mimic a server round-trip.
	SimulatedLatency time.Duration
	// RemoteTimeout bounds each remote call. Zero means the caller's ctx only.
	RemoteTimeout time.Duration
}

// State is a consistent copy of everything a client renders.
type State struct {
	Records    []models.Character `json:"records"`
	Pagination Pagination         `json:"pagination"`
	Query      Query              `json:"query"`
	Loading    bool               `json:"loading"`
	Error      string             `json:"error,omitempty"`
	Warning    string             `json:"warning,omitempty"`
	Selected   *models.Character  `json:"selected,omitempty"`
}

// IsEmpty reports whether no records are displayed.
func (s State) IsEmpty() bool { return len(s.Records) == 0 }

// Engine is safe for concurrent use. The lock is never held across a
// remote call or an overlay write; responses that arrive after a newer load
// started or after the query changed are dropped.
type Engine struct {
	overlay  *overlay.Store
	remote   remote.Source
	sessions *Sessions
	logger   *slog.Logger
	notify   Notifier

	pageSize int
	latency  time.Duration
	timeout  time.Duration
	now      func() time.Time

	mu         sync.Mutex
	gen        uint64
	query      Query
	records    []models.Character
	pagination Pagination
	loading    bool
	lastError  string
	warning    string
	selected   *models.Character
	// issued is the lowest local id Create handed out, so ids whose overlay
	// write is still in flight are not reused.
	issued int
}

// New creates an engine with an empty list and the default query.
func New(d Deps) *Engine {
	if d.PageSize <= 0 {
		d.PageSize = DefaultPageSize
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Notify == nil {
		d.Notify = func(string, int) {}
	}
	return &Engine{
		overlay:    d.Overlay,
		remote:     d.Remote,
		sessions:   d.Sessions,
		logger:     d.Logger,
		notify:     d.Notify,
		pageSize:   d.PageSize,
		latency:    d.SimulatedLatency,
		timeout:    d.RemoteTimeout,
		now:        time.Now,
		query:      Query{Limit: d.PageSize},
		records:    []models.Character{},
		pagination: Pagination{Limit: d.PageSize},
	}
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() State {
	s := State{
		Records:    cloneAll(e.records),
		Pagination: e.pagination,
		Query:      e.query,
		Loading:    e.loading,
		Error:      e.lastError,
		Warning:    e.warning,
	}
	if e.selected != nil {
		c := e.selected.Clone()
		s.Selected = &c
	}
	return s
}

// LoadPage replaces the displayed list with the page described by the
// current query. Remote failures degrade to local-only results and are
// reported in State.Error rather than returned.
func (e *Engine) LoadPage(ctx context.Context) State {
	e.mu.Lock()
	e.gen++
	gen := e.gen
	q := e.query.normalized(e.pageSize)
	e.loading = true
	e.lastError = ""
	e.mu.Unlock()

	local := filterLocal(e.overlay.All(), q.SearchTerm, e.overlay.IsTombstoned)
	page, err := e.fetchPage(ctx, q.Limit, q.Offset, q.SearchTerm)
	tombstoned := setOf(e.overlay.Tombstones())

	e.mu.Lock()
	if gen != e.gen {
		e.logger.Debug("catalog: dropped stale page", slog.Uint64("gen", gen))
		s := e.snapshotLocked()
		e.mu.Unlock()
		return s
	}
	e.loading = false
	switch {
	case err != nil && len(local) > 0:
		e.logger.Warn("catalog: remote page failed, serving local records",
			slog.String("source", e.remote.Name()), slog.String("error", err.Error()))
		e.records = local
		e.pagination = Pagination{Total: len(local), Count: len(local), Limit: q.Limit, Offset: q.Offset}
		e.lastError = MsgRemoteDegraded
	case err != nil:
		e.logger.Error("catalog: load failed",
			slog.String("source", e.remote.Name()), slog.String("error", err.Error()))
		e.records = []models.Character{}
		e.pagination = Pagination{Limit: q.Limit, Offset: q.Offset}
		e.lastError = MsgLoadFailed
	default:
		merged := mergePage(local, page.Results, tombstoned.has)
		e.records = merged
		e.pagination = Pagination{
			Total:  page.Total + len(local),
			Count:  len(merged),
			Limit:  q.Limit,
			Offset: q.Offset,
		}
	}
	e.query.Limit, e.query.Offset = q.Limit, q.Offset
	s := e.snapshotLocked()
	e.mu.Unlock()

	e.notify(EventLoaded, 0)
	return s
}

// LoadMore appends the next page to the displayed list. It does nothing
// when the last page reports no more records. On failure the list is kept.
func (e *Engine) LoadMore(ctx context.Context) State {
	e.mu.Lock()
	if !e.pagination.HasMore() {
		s := e.snapshotLocked()
		e.mu.Unlock()
		return s
	}
	e.gen++
	gen := e.gen
	q := e.query.normalized(e.pageSize)
	next := q.Offset + q.Limit
	e.loading = true
	e.lastError = ""
	e.mu.Unlock()

	local := filterLocal(e.overlay.All(), q.SearchTerm, e.overlay.IsTombstoned)
	page, err := e.fetchPage(ctx, q.Limit, next, q.SearchTerm)
	tombstoned := setOf(e.overlay.Tombstones())

	e.mu.Lock()
	if gen != e.gen {
		e.logger.Debug("catalog: dropped stale page", slog.Uint64("gen", gen))
		s := e.snapshotLocked()
		e.mu.Unlock()
		return s
	}
	e.loading = false
	if err != nil {
		e.logger.Warn("catalog: load more failed",
			slog.Int("offset", next), slog.String("error", err.Error()))
		e.lastError = MsgLoadMoreFailed
		s := e.snapshotLocked()
		e.mu.Unlock()
		return s
	}

	displayed := idsOf(e.records)
	shadow := idsOf(local)
	for _, c := range e.records {
		if c.Origin.IsLocal() {
			shadow[c.ID] = struct{}{}
		}
	}
	survivors := survivingRemote(page.Results, shadow, tombstoned.has)

	e.records = append(e.records, withoutIDs(local, displayed)...)
	e.records = append(e.records, withoutIDs(survivors, displayed)...)
	e.query.Offset = next
	// Count covers the whole remote window so HasMore turns false once the
	// remote side is exhausted, even when some of it was shadowed.
	e.pagination = Pagination{
		Total:  page.Total + len(local),
		Count:  len(local) + len(page.Results),
		Limit:  q.Limit,
		Offset: next,
	}
	s := e.snapshotLocked()
	e.mu.Unlock()

	e.notify(EventLoaded, 0)
	return s
}

func (e *Engine) fetchPage(ctx context.Context, limit, offset int, term string) (models.Page, error) {
	ctx, cancel := e.remoteContext(ctx)
	defer cancel()
	return e.remote.FetchPage(ctx, limit, offset, term)
}

func (e *Engine) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout > 0 {
		return context.WithTimeout(ctx, e.timeout)
	}
	return context.WithCancel(ctx)
}

// simulateLatency waits for the configured mutation delay or ctx.
func (e *Engine) simulateLatency(ctx context.Context) error {
	if e.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(e.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
