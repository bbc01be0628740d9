package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/starford/roster/internal/apperr"
	"github.com/starford/roster/internal/models"
)

// Fixture serves a fixed character list, e.g. a snapshot of the remote API,
// so the catalog can run offline.
type Fixture struct {
	characters []models.Character

	mu  sync.Mutex
	err error
}

// NewFixture returns a source over characters.
func NewFixture(characters []models.Character) *Fixture {
	cs := make([]models.Character, len(characters))
	for i, c := range characters {
		cs[i] = c.Clone()
	}
	return &Fixture{characters: tagRemote(cs)}
}

// LoadFixture reads a JSON array of characters from path.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixture: read %s: %w", path, err)
	}
	var cs []models.Character
	if err := json.Unmarshal(data, &cs); err != nil {
		return nil, fmt.Errorf("fixture: decode %s: %w", path, err)
	}
	return NewFixture(cs), nil
}

// Fail makes every subsequent call return err wrapped as unavailable;
// nil restores normal operation.
func (f *Fixture) Fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// Name identifies the source in logs.
func (f *Fixture) Name() string { return "fixture" }

func (f *Fixture) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("fixture: %w: %w", apperr.ErrRemoteUnavailable, err)
	}
	f.mu.Lock()
	failErr := f.err
	f.mu.Unlock()
	if failErr != nil {
		return fmt.Errorf("fixture: %w: %w", apperr.ErrRemoteUnavailable, failErr)
	}
	return nil
}

// FetchPage implements Source with a case-insensitive name prefix match.
func (f *Fixture) FetchPage(ctx context.Context, limit, offset int, nameStartsWith string) (models.Page, error) {
	if err := f.check(ctx); err != nil {
		return models.Page{}, err
	}
	prefix := strings.ToLower(nameStartsWith)
	var matched []models.Character
	for _, c := range f.characters {
		if prefix == "" || strings.HasPrefix(strings.ToLower(c.Name), prefix) {
			matched = append(matched, c)
		}
	}
	page := models.Page{Results: []models.Character{}, Total: len(matched)}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) || limit <= 0 {
		return page, nil
	}
	end := min(offset+limit, len(matched))
	for _, c := range matched[offset:end] {
		page.Results = append(page.Results, c.Clone())
	}
	return page, nil
}

// FetchByID implements Source.
func (f *Fixture) FetchByID(ctx context.Context, id int) (models.Character, error) {
	if err := f.check(ctx); err != nil {
		return models.Character{}, err
	}
	for _, c := range f.characters {
		if c.ID == id {
			return c.Clone(), nil
		}
	}
	return models.Character{}, fmt.Errorf("fixture: character %d: %w", id, apperr.ErrNotFound)
}

// FetchComics implements Source from the character's comics collection.
func (f *Fixture) FetchComics(ctx context.Context, id, limit int) ([]models.ComicSummary, error) {
	c, err := f.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}
	out := []models.ComicSummary{}
	for _, item := range c.Comics.Items {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, models.ComicSummary{Title: item.Name})
	}
	return out, nil
}

var _ Source = (*Fixture)(nil)
