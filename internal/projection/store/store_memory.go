package store

import (
	"context"
	"sort"
	"sync"

	"progression/internal/projection"
	rm "progression/internal/projection/models"
	"progression/pkg/platform/sentinel"
)

type docKey struct {
	model rm.Model
	id    string
}

// InMemory holds documents in a map. Writes for the same document serialize
// on the lock, so the version check and the write are atomic.
type InMemory struct {
	mu   sync.RWMutex
	docs map[docKey]rm.Document
}

func NewInMemory() *InMemory {
	return &InMemory{docs: make(map[docKey]rm.Document)}
}

func (s *InMemory) Upsert(_ context.Context, doc rm.Document) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := docKey{model: doc.Model, id: doc.ID}
	if current, ok := s.docs[k]; ok && current.Version >= doc.Version {
		return false, nil
	}
	doc.Body = append([]byte(nil), doc.Body...)
	s.docs[k] = doc
	return true, nil
}

func (s *InMemory) Get(_ context.Context, model rm.Model, id string) (rm.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[docKey{model: model, id: id}]
	if !ok {
		return rm.Document{}, sentinel.ErrNotFound
	}
	doc.Body = append([]byte(nil), doc.Body...)
	return doc, nil
}

type indexedCase struct {
	version int64
	entries []rm.SearchEntry
}

// InMemorySearch is a linear-scan search index.
type InMemorySearch struct {
	mu    sync.RWMutex
	cases map[string]indexedCase
}

func NewInMemorySearch() *InMemorySearch {
	return &InMemorySearch{cases: make(map[string]indexedCase)}
}

func (s *InMemorySearch) Replace(_ context.Context, caseID string, version int64, entries []rm.SearchEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.cases[caseID]; ok && current.version >= version {
		return false, nil
	}
	s.cases[caseID] = indexedCase{version: version, entries: append([]rm.SearchEntry(nil), entries...)}
	return true, nil
}

func (s *InMemorySearch) Search(_ context.Context, q rm.SearchQuery) ([]rm.SearchEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []rm.SearchEntry
	for _, c := range s.cases {
		for _, e := range c.entries {
			if projection.Matches(e, q) {
				out = append(out, e)
			}
		}
	}
	SortEntries(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// SortEntries orders results by last name, first name, then URN.
func SortEntries(es []rm.SearchEntry) {
	sort.Slice(es, func(i, j int) bool {
		a, b := es[i], es[j]
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		if a.URN != b.URN {
			return a.URN < b.URN
		}
		return a.DefendantID.String() < b.DefendantID.String()
	})
}
