// Package overlay keeps the locally created and edited characters plus the
// tombstoned remote ids, persisted through a storage.Provider.
package overlay

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/roster/internal/apperr"
	"github.com/starford/roster/internal/checksum"
	"github.com/starford/roster/internal/models"
	"github.com/starford/roster/internal/storage"
)

// Storage keys. Each holds an independent JSON array.
const (
	RecordsKey    = "records"
	TombstonesKey = "tombstones"
)

// Store is the overlay of local records and tombstones.
//
// Every mutation updates memory first and then persists the whole affected
// collection. A failed write is logged and reported as apperr.ErrPersistence;
// the in-memory change is kept either way.
type Store struct {
	mu         sync.Mutex
	provider   storage.Provider
	logger     *slog.Logger
	records    []models.Character
	tombstones []int
	tombSet    map[int]struct{}
	sums       map[string]string // last loaded/saved checksum per key
}

// Open loads the overlay from provider. Missing keys and corrupt payloads
// load as empty collections.
func Open(provider storage.Provider, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		provider: provider,
		logger:   logger,
		tombSet:  make(map[int]struct{}),
		sums:     make(map[string]string),
	}
	s.mu.Lock()
	s.load(false)
	s.mu.Unlock()
	return s
}

// load must be called with mu held. It reports whether anything differed
// from the previously loaded payloads. With keepOnCorrupt set, a payload
// that exists but does not decode leaves the in-memory collection as is;
// an external editor may be halfway through writing it.
func (s *Store) load(keepOnCorrupt bool) bool {
	var records []models.Character
	recSum, recOK := s.readKey(RecordsKey, &records)
	var tombs []int
	tombSum, tombOK := s.readKey(TombstonesKey, &tombs)

	keepRecords := keepOnCorrupt && !recOK && recSum != ""
	keepTombs := keepOnCorrupt && !tombOK && tombSum != ""

	changed := false
	if !keepRecords {
		changed = changed || recSum != s.sums[RecordsKey]
		s.sums[RecordsKey] = recSum
		if !recOK {
			records = nil
		}
		s.setRecords(records)
	}
	if !keepTombs {
		changed = changed || tombSum != s.sums[TombstonesKey]
		s.sums[TombstonesKey] = tombSum
		if !tombOK {
			tombs = nil
		}
		s.setTombstones(tombs)
	}
	return changed
}

func (s *Store) setRecords(records []models.Character) {
	s.records = s.records[:0]
	seen := make(map[int]struct{}, len(records))
	for _, r := range records {
		if _, dup := seen[r.ID]; dup {
			s.logger.Warn("overlay: duplicate record id dropped", slog.Int("id", r.ID))
			continue
		}
		seen[r.ID] = struct{}{}
		r.Origin = models.OriginLocal
		s.records = append(s.records, r)
	}
}

func (s *Store) setTombstones(tombs []int) {
	s.tombstones = s.tombstones[:0]
	s.tombSet = make(map[int]struct{}, len(tombs))
	for _, id := range tombs {
		if _, dup := s.tombSet[id]; dup {
			continue
		}
		s.tombSet[id] = struct{}{}
		s.tombstones = append(s.tombstones, id)
	}
}

// readKey decodes key into dst and returns the payload checksum. ok is
// false when the key is missing or unreadable.
func (s *Store) readKey(key string, dst any) (sum string, ok bool) {
	data, err := s.provider.Get(key)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			s.logger.Error("overlay: read failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		return "", false
	}
	sum = checksum.Sum(data)
	if err := json.Unmarshal(data, dst); err != nil {
		s.logger.Error("overlay: corrupt payload",
			slog.String("key", key), slog.String("error", err.Error()))
		return sum, false
	}
	return sum, true
}

// Reload re-reads both collections from the provider and reports whether
// they changed since the last load or save. Undecodable payloads are
// ignored until a valid one replaces them.
func (s *Store) Reload() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(true)
}

// All returns every local record in insertion order.
func (s *Store) All() []models.Character {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Character, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	return out
}

// Len returns the number of local records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Get returns the local record with id.
func (s *Store) Get(id int) (models.Character, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.records[i].Clone(), true
	}
	return models.Character{}, false
}

// MinID returns the most negative local id, or 0 when there is none.
func (s *Store) MinID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	minID := 0
	for _, r := range s.records {
		if r.ID < minID {
			minID = r.ID
		}
	}
	return minID
}

// Upsert inserts c, or replaces the record with the same id in place.
// The stored copy always has origin local.
func (s *Store) Upsert(c models.Character) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c = c.Clone()
	c.Origin = models.OriginLocal
	if i := s.indexOf(c.ID); i >= 0 {
		s.records[i] = c
	} else {
		s.records = append(s.records, c)
	}
	return s.save(RecordsKey, s.records)
}

// Remove deletes the record with id. Missing ids are a no-op.
func (s *Store) Remove(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return nil
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
	return s.save(RecordsKey, s.records)
}

// IsTombstoned reports whether id must be suppressed from results.
func (s *Store) IsTombstoned(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tombSet[id]
	return ok
}

// Tombstone marks a remote id as deleted. Repeated calls are a no-op.
func (s *Store) Tombstone(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tombSet[id]; ok {
		return nil
	}
	s.tombSet[id] = struct{}{}
	s.tombstones = append(s.tombstones, id)
	return s.save(TombstonesKey, s.tombstones)
}

// Tombstones returns the tombstoned ids in the order they were added.
func (s *Store) Tombstones() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.tombstones...)
}

// Export returns the local records as an indented JSON array.
func (s *Store) Export() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.records
	if records == nil {
		records = []models.Character{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("overlay: export: %w", err)
	}
	return data, nil
}

func (s *Store) indexOf(id int) int {
	for i, r := range s.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// save must be called with mu held.
func (s *Store) save(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("overlay: encode failed", slog.String("key", key), slog.String("error", err.Error()))
		return fmt.Errorf("overlay: encode %s: %w: %w", key, apperr.ErrPersistence, err)
	}
	if err := s.provider.Put(key, data); err != nil {
		s.logger.Error("overlay: save failed", slog.String("key", key), slog.String("error", err.Error()))
		return fmt.Errorf("overlay: save %s: %w: %w", key, apperr.ErrPersistence, err)
	}
	s.sums[key] = checksum.Sum(data)
	return nil
}
