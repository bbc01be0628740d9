package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/roster/internal/apperr"
	"github.com/starford/roster/internal/storage"
)

const sessionKeyPrefix = "session/"

type savedSession struct {
	Query   Query     `json:"query"`
	SavedAt time.Time `json:"savedAt"`
}

// Sessions stores search state under opaque tokens so a client can
// continue where it left off.
type Sessions struct {
	provider storage.Provider
	now      func() time.Time
}

// NewSessions creates a session store on top of p.
func NewSessions(p storage.Provider) *Sessions {
	return &Sessions{provider: p, now: time.Now}
}

// Save persists q and returns its token.
func (s *Sessions) Save(q Query) (string, error) {
	token := uuid.NewString()
	data, err := json.Marshal(savedSession{Query: q, SavedAt: s.now().UTC()})
	if err != nil {
		return "", err
	}
	if err := s.provider.Put(sessionKeyPrefix+token, data); err != nil {
		return "", fmt.Errorf("sessions: save: %w: %w", apperr.ErrPersistence, err)
	}
	return token, nil
}

// Restore returns the query saved under token.
func (s *Sessions) Restore(token string) (Query, error) {
	id, err := uuid.Parse(token)
	if err != nil {
		return Query{}, fmt.Errorf("sessions: token %q: %w", token, apperr.ErrNotFound)
	}
	data, err := s.provider.Get(sessionKeyPrefix + id.String())
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Query{}, fmt.Errorf("sessions: token %q: %w", token, apperr.ErrNotFound)
		}
		return Query{}, err
	}
	var saved savedSession
	if err := json.Unmarshal(data, &saved); err != nil {
		return Query{}, fmt.Errorf("sessions: decode %q: %w", token, err)
	}
	return saved.Query, nil
}
