// Package remote implements read-only character sources.
package remote

import (
	"context"

	"github.com/starford/roster/internal/models"
)

// Source is the read-only remote dataset. Every returned character has
// origin remote. Failures wrap apperr.ErrRemoteUnavailable, except a
// missing id which wraps apperr.ErrNotFound. Calls are single-shot.
type Source interface {
	Name() string
	// FetchPage returns one page of characters whose name starts with
	// nameStartsWith (all when empty) and the total number of matches.
	FetchPage(ctx context.Context, limit, offset int, nameStartsWith string) (models.Page, error)
	// FetchByID returns a single character.
	FetchByID(ctx context.Context, id int) (models.Character, error)
	// FetchComics returns up to limit comics featuring the character.
	FetchComics(ctx context.Context, id, limit int) ([]models.ComicSummary, error)
}

func tagRemote(cs []models.Character) []models.Character {
	for i := range cs {
		cs[i].Origin = models.OriginRemote
	}
	return cs
}
