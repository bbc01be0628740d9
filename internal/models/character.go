// Package models defines the domain types for the character catalog.
package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// Origin records where a character came from.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "api"
)

// UnmarshalJSON accepts "remote" as an alias of "api".
func (o *Origin) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "local":
		*o = OriginLocal
	case "api", "remote":
		*o = OriginRemote
	case "":
		*o = ""
	default:
		return fmt.Errorf("models: unknown origin %q", s)
	}
	return nil
}

// IsLocal reports whether the record is owned by the overlay.
func (o Origin) IsLocal() bool { return o == OriginLocal }

// Thumbnail is the image reference of a character.
type Thumbnail struct {
	Path      string `json:"path"`
	Extension string `json:"extension"`
}

// CollectionItem is one entry of a pass-through collection.
type CollectionItem struct {
	ResourceURI string `json:"resourceURI"`
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
}

// Collection is opaque metadata (comics, series, stories, events).
type Collection struct {
	Available     int              `json:"available"`
	Returned      int              `json:"returned"`
	CollectionURI string           `json:"collectionURI"`
	Items         []CollectionItem `json:"items"`
}

// URL is an external link attached to a character.
type URL struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Character is the catalog entity.
type Character struct {
	ID          int        `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Modified    time.Time  `json:"modified"`
	Thumbnail   *Thumbnail `json:"thumbnail,omitempty"`
	ResourceURI string     `json:"resourceURI,omitempty"`
	Comics      Collection `json:"comics"`
	Series      Collection `json:"series"`
	Stories     Collection `json:"stories"`
	Events      Collection `json:"events"`
	URLs        []URL      `json:"urls"`
	Origin      Origin     `json:"source"`
}

// Clone returns a deep copy so callers can't alias engine or overlay state.
func (c Character) Clone() Character {
	out := c
	if c.Thumbnail != nil {
		t := *c.Thumbnail
		out.Thumbnail = &t
	}
	out.Comics = c.Comics.clone()
	out.Series = c.Series.clone()
	out.Stories = c.Stories.clone()
	out.Events = c.Events.clone()
	out.URLs = slices.Clone(c.URLs)
	return out
}

func (c Collection) clone() Collection {
	c.Items = slices.Clone(c.Items)
	return c
}

// EmptyCollection is the default for locally created characters.
func EmptyCollection() Collection {
	return Collection{Items: []CollectionItem{}}
}

// Page is one slice of remote results and the remote total.
type Page struct {
	Results []Character `json:"results"`
	Total   int         `json:"total"`
}

// ComicSummary is a lightweight comic entry returned for a character.
type ComicSummary struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Thumbnail   *Thumbnail `json:"thumbnail,omitempty"`
}
