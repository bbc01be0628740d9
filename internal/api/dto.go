package api

import (
	"github.com/starford/roster/internal/catalog"
	"github.com/starford/roster/internal/models"
	"github.com/starford/roster/internal/thumbnail"
)

// CharacterDTO is a character with its resolved image URL.
type CharacterDTO struct {
	models.Character
	ThumbnailURL string `json:"thumbnailUrl" example:"https://i.annihil.us/u/prod/marvel/i/mg/c/e0/535fecbbb9784/standard_xlarge.jpg"`
}

// StateResponse is the list view returned by every query endpoint.
type StateResponse struct {
	Records    []CharacterDTO     `json:"records" validate:"required"`
	Pagination catalog.Pagination `json:"pagination" validate:"required"`
	Query      catalog.Query      `json:"query" validate:"required"`
	Loading    bool               `json:"loading"`
	Error      string             `json:"error,omitempty" example:"remote unavailable, showing local only"`
	Warning    string             `json:"warning,omitempty"`
	Selected   *CharacterDTO      `json:"selected,omitempty"`
}

// MutationResponse is a created or updated character plus how it was stored.
type MutationResponse struct {
	CharacterDTO
	Persisted bool   `json:"persisted"`
	Simulated bool   `json:"simulated,omitempty"`
	Warning   string `json:"warning,omitempty"`
}

// CharacterRequest is the create/update body. Omitted collections keep
// their stored values on update.
type CharacterRequest = models.Character

// SearchRequest is the body of POST /query/search.
type SearchRequest struct {
	SearchTerm string `json:"searchTerm" example:"spider"`
}

// SessionResponse carries a saved search token.
type SessionResponse struct {
	Token string `json:"token" example:"1b4e28ba-2fa1-11d2-883f-0016d3cca427" validate:"required"`
}

// ComicsResponse wraps the comics featuring a character.
type ComicsResponse struct {
	Comics []models.ComicSummary `json:"comics" validate:"required"`
}

func toDTO(r thumbnail.Resolver, c models.Character) CharacterDTO {
	return CharacterDTO{Character: c, ThumbnailURL: r.URL(c.Thumbnail)}
}

func toStateResponse(r thumbnail.Resolver, s catalog.State) StateResponse {
	out := StateResponse{
		Records:    make([]CharacterDTO, 0, len(s.Records)),
		Pagination: s.Pagination,
		Query:      s.Query,
		Loading:    s.Loading,
		Error:      s.Error,
		Warning:    s.Warning,
	}
	for _, c := range s.Records {
		out.Records = append(out.Records, toDTO(r, c))
	}
	if s.Selected != nil {
		sel := toDTO(r, *s.Selected)
		out.Selected = &sel
	}
	return out
}

func toMutationResponse(r thumbnail.Resolver, c models.Character, o catalog.Outcome) MutationResponse {
	return MutationResponse{
		CharacterDTO: toDTO(r, c),
		Persisted:    o.Persisted,
		Simulated:    o.Simulated,
		Warning:      o.Warning,
	}
}
