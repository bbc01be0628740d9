package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/starford/roster/internal/apperr"
	"github.com/starford/roster/internal/models"
)

// DefaultComicsLimit is used by Comics when limit is not positive.
const DefaultComicsLimit = 10

// Outcome describes how a mutation was applied.
type Outcome struct {
	// Persisted is true when the overlay write succeeded.
	Persisted bool `json:"persisted"`
	// Simulated is true for edits of remote records, which live in memory only.
	Simulated bool `json:"simulated,omitempty"`
	// Warning is set when the change is visible but was not saved.
	Warning string `json:"warning,omitempty"`
}

func outcomeOf(err error) Outcome {
	if err != nil {
		return Outcome{Warning: err.Error()}
	}
	return Outcome{Persisted: true}
}

// Create adds a local character. It gets an id below every local id in
// use, is saved to the overlay and is shown first in the list.
func (e *Engine) Create(ctx context.Context, draft models.Character) (models.Character, Outcome, error) {
	draft = normalizeDraft(draft)
	if err := validateDraft(draft); err != nil {
		return models.Character{}, Outcome{}, err
	}
	if err := e.simulateLatency(ctx); err != nil {
		return models.Character{}, Outcome{}, err
	}

	rec := draft.Clone()
	overlayMin := e.overlay.MinID()
	e.mu.Lock()
	rec.ID = e.nextLocalIDLocked(overlayMin)
	e.mu.Unlock()

	rec.Origin = models.OriginLocal
	rec.Modified = e.now().UTC()
	if rec.Thumbnail != nil && rec.Thumbnail.Path == "" {
		rec.Thumbnail = nil
	}
	rec.ResourceURI = ""
	rec.Comics = models.EmptyCollection()
	rec.Series = models.EmptyCollection()
	rec.Stories = models.EmptyCollection()
	rec.Events = models.EmptyCollection()
	rec.URLs = []models.URL{}

	perr := e.overlay.Upsert(rec)

	e.mu.Lock()
	e.records = append([]models.Character{rec.Clone()}, e.records...)
	e.pagination.Total++
	e.pagination.Count++
	sel := rec.Clone()
	e.selected = &sel
	out := outcomeOf(perr)
	e.warning = out.Warning
	e.mu.Unlock()

	e.logMutation("create", rec.ID, perr)
	e.notify(EventCreated, rec.ID)
	return rec, out, nil
}

// nextLocalIDLocked returns one below the smallest local id known to the
// overlay, the displayed list or an earlier create, or -1 when there are none.
func (e *Engine) nextLocalIDLocked(overlayMin int) int {
	lowest := min(overlayMin, e.issued, 0)
	for _, c := range e.records {
		if c.Origin.IsLocal() && c.ID < lowest {
			lowest = c.ID
		}
	}
	if e.selected != nil && e.selected.Origin.IsLocal() && e.selected.ID < lowest {
		lowest = e.selected.ID
	}
	e.issued = lowest - 1
	return e.issued
}

// Update edits an existing character. Local records and records already in
// the overlay are saved; remote records are changed in memory only.
func (e *Engine) Update(ctx context.Context, rec models.Character) (models.Character, Outcome, error) {
	rec = normalizeDraft(rec)
	if err := validateDraft(rec); err != nil {
		return models.Character{}, Outcome{}, err
	}
	if err := e.simulateLatency(ctx); err != nil {
		return models.Character{}, Outcome{}, err
	}

	stored, inOverlay := e.overlay.Get(rec.ID)
	base, known := stored, inOverlay
	if !known {
		e.mu.Lock()
		base, known = e.displayedLocked(rec.ID)
		e.mu.Unlock()
	}
	if !known {
		return models.Character{}, Outcome{}, fmt.Errorf("catalog: character %d: %w", rec.ID, apperr.ErrNotFound)
	}

	merged := applyEdit(base, rec)
	merged.Modified = e.now().UTC()

	var out Outcome
	var perr error
	if inOverlay || rec.Origin.IsLocal() || base.Origin.IsLocal() {
		merged.Origin = models.OriginLocal
		perr = e.overlay.Upsert(merged)
		out = outcomeOf(perr)
	} else {
		merged.Origin = models.OriginRemote
		out = Outcome{Simulated: true}
	}

	e.mu.Lock()
	if i := indexByID(e.records, merged.ID); i >= 0 {
		e.records[i] = merged.Clone()
	}
	if e.selected != nil && e.selected.ID == merged.ID {
		sel := merged.Clone()
		e.selected = &sel
	}
	e.warning = out.Warning
	e.mu.Unlock()

	e.logMutation("update", merged.ID, perr)
	e.notify(EventUpdated, merged.ID)
	return merged, out, nil
}

// applyEdit copies the editable fields of edit onto base. Provenance and
// pass-through metadata left empty in edit keep the stored values.
func applyEdit(base, edit models.Character) models.Character {
	out := base.Clone()
	out.Name = edit.Name
	out.Description = edit.Description
	if edit.Thumbnail != nil {
		if edit.Thumbnail.Path == "" {
			out.Thumbnail = nil
		} else {
			t := *edit.Thumbnail
			out.Thumbnail = &t
		}
	}
	if edit.ResourceURI != "" {
		out.ResourceURI = edit.ResourceURI
	}
	out.Comics = pickCollection(base.Comics, edit.Comics)
	out.Series = pickCollection(base.Series, edit.Series)
	out.Stories = pickCollection(base.Stories, edit.Stories)
	out.Events = pickCollection(base.Events, edit.Events)
	if edit.URLs != nil {
		out.URLs = slices.Clone(edit.URLs)
	}
	return out
}

func pickCollection(stored, edit models.Collection) models.Collection {
	if edit.Items == nil && edit.Available == 0 && edit.Returned == 0 && edit.CollectionURI == "" {
		return stored
	}
	return edit
}

// Delete hides a character. Overlay records are removed, anything else is
// tombstoned. Deleting twice is a no-op.
func (e *Engine) Delete(ctx context.Context, id int) (Outcome, error) {
	if err := e.simulateLatency(ctx); err != nil {
		return Outcome{}, err
	}

	_, inOverlay := e.overlay.Get(id)
	e.mu.Lock()
	tombstone := !inOverlay && e.isRemoteIDLocked(id)
	e.mu.Unlock()

	var perr error
	switch {
	case inOverlay:
		perr = e.overlay.Remove(id)
	case tombstone:
		perr = e.overlay.Tombstone(id)
	}

	e.mu.Lock()
	if i := indexByID(e.records, id); i >= 0 {
		e.records = append(e.records[:i:i], e.records[i+1:]...)
		if e.pagination.Total > 0 {
			e.pagination.Total--
		}
		if e.pagination.Count > 0 {
			e.pagination.Count--
		}
	}
	if e.selected != nil && e.selected.ID == id {
		e.selected = nil
	}
	out := outcomeOf(perr)
	e.warning = out.Warning
	e.mu.Unlock()

	e.logMutation("delete", id, perr)
	e.notify(EventDeleted, id)
	return out, nil
}

// isRemoteIDLocked decides whether an id not in the overlay belongs to the
// remote dataset. The displayed or selected record's origin wins; unknown
// ids fall back to the allocation rule that local ids are negative.
func (e *Engine) isRemoteIDLocked(id int) bool {
	if c, ok := e.displayedLocked(id); ok {
		return !c.Origin.IsLocal()
	}
	return id >= 0
}

func (e *Engine) displayedLocked(id int) (models.Character, bool) {
	if i := indexByID(e.records, id); i >= 0 {
		return e.records[i].Clone(), true
	}
	if e.selected != nil && e.selected.ID == id {
		return e.selected.Clone(), true
	}
	return models.Character{}, false
}

func (e *Engine) logMutation(op string, id int, perr error) {
	if perr != nil {
		e.logger.Warn("catalog: change not persisted",
			slog.String("op", op), slog.Int("id", id), slog.String("error", perr.Error()))
		return
	}
	e.logger.Info("catalog: "+op, slog.Int("id", id))
}

// Select makes a character the current selection. Local records resolve
// from the overlay; remote ones are fetched unless tombstoned.
func (e *Engine) Select(ctx context.Context, id int) (models.Character, error) {
	c, err := e.Get(ctx, id)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			e.lastError = MsgSelectFailed
		}
		return models.Character{}, err
	}
	sel := c.Clone()
	e.selected = &sel
	return c, nil
}

// Get resolves a character without changing the selection.
func (e *Engine) Get(ctx context.Context, id int) (models.Character, error) {
	if c, ok := e.overlay.Get(id); ok {
		return c, nil
	}
	if e.overlay.IsTombstoned(id) {
		return models.Character{}, fmt.Errorf("catalog: character %d: %w", id, apperr.ErrNotFound)
	}

	e.mu.Lock()
	c, ok := e.displayedLocked(id)
	e.mu.Unlock()
	if ok {
		return c, nil
	}

	ctx, cancel := e.remoteContext(ctx)
	defer cancel()
	return e.remote.FetchByID(ctx, id)
}

// ClearSelection drops the current selection.
func (e *Engine) ClearSelection() {
	e.mu.Lock()
	e.selected = nil
	e.mu.Unlock()
}

// Comics lists comics featuring a character. Local characters have none.
func (e *Engine) Comics(ctx context.Context, id, limit int) ([]models.ComicSummary, error) {
	if limit <= 0 {
		limit = DefaultComicsLimit
	}
	if _, ok := e.overlay.Get(id); ok {
		return []models.ComicSummary{}, nil
	}
	if e.overlay.IsTombstoned(id) {
		return nil, fmt.Errorf("catalog: character %d: %w", id, apperr.ErrNotFound)
	}
	e.mu.Lock()
	local := !e.isRemoteIDLocked(id)
	e.mu.Unlock()
	if local {
		return []models.ComicSummary{}, nil
	}

	ctx, cancel := e.remoteContext(ctx)
	defer cancel()
	return e.remote.FetchComics(ctx, id, limit)
}

// Export returns the overlay records as a JSON array.
func (e *Engine) Export() ([]byte, error) {
	return e.overlay.Export()
}
