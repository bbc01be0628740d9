package catalog

import (
	"strings"

	"github.com/starford/roster/internal/models"
)

type idSet map[int]struct{}

func (s idSet) has(id int) bool {
	_, ok := s[id]
	return ok
}

func idsOf(cs []models.Character) idSet {
	out := make(idSet, len(cs))
	for _, c := range cs {
		out[c.ID] = struct{}{}
	}
	return out
}

func setOf(ids []int) idSet {
	out := make(idSet, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

// filterLocal keeps the overlay records that aren't tombstoned and whose
// name contains term, case-insensitively. An empty term keeps everything.
func filterLocal(records []models.Character, term string, tombstoned func(int) bool) []models.Character {
	needle := strings.ToLower(term)
	out := make([]models.Character, 0, len(records))
	for _, r := range records {
		if tombstoned(r.ID) {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(r.Name), needle) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// survivingRemote drops remote records shadowed by a local id or tombstoned,
// and duplicates within the remote page itself.
func survivingRemote(remote []models.Character, shadow idSet, tombstoned func(int) bool) []models.Character {
	out := make([]models.Character, 0, len(remote))
	seen := make(idSet, len(remote))
	for _, r := range remote {
		if shadow.has(r.ID) || tombstoned(r.ID) || seen.has(r.ID) {
			continue
		}
		seen[r.ID] = struct{}{}
		r.Origin = models.OriginRemote
		out = append(out, r)
	}
	return out
}

// mergePage concatenates local records (first) and the surviving remote ones.
func mergePage(local, remote []models.Character, tombstoned func(int) bool) []models.Character {
	survivors := survivingRemote(remote, idsOf(local), tombstoned)
	out := make([]models.Character, 0, len(local)+len(survivors))
	out = append(out, local...)
	return append(out, survivors...)
}

// withoutIDs returns the records whose id isn't in skip.
func withoutIDs(cs []models.Character, skip idSet) []models.Character {
	out := make([]models.Character, 0, len(cs))
	for _, c := range cs {
		if !skip.has(c.ID) {
			out = append(out, c)
		}
	}
	return out
}

func indexByID(cs []models.Character, id int) int {
	for i, c := range cs {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func cloneAll(cs []models.Character) []models.Character {
	out := make([]models.Character, len(cs))
	for i, c := range cs {
		out[i] = c.Clone()
	}
	return out
}
