package store

import (
	"context"
	"sort"
	"sync"

	"progression/internal/aggregate"
	"progression/internal/parking"
	id "progression/pkg/domain"
)

type recordKey struct {
	eventID id.EventID
	kind    parking.Kind
}

// InMemory keeps records in a map guarded by a mutex.
type InMemory struct {
	mu      sync.RWMutex
	records map[recordKey]parking.Record
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[recordKey]parking.Record)}
}

func (s *InMemory) Save(_ context.Context, r parking.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := recordKey{eventID: r.EventID, kind: r.Kind}
	if existing, ok := s.records[k]; ok {
		r.Attempts = existing.Attempts + 1
	}
	s.records[k] = r
	return nil
}

// List returns records oldest first.
func (s *InMemory) List(_ context.Context, f parking.Filter) ([]parking.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []parking.Record
	for _, r := range s.records {
		if f.Kind != "" && r.Kind != f.Kind {
			continue
		}
		out = append(out, r)
	}
	sortRecords(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *InMemory) Waiting(_ context.Context, key aggregate.Key) ([]parking.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []parking.Record
	for _, r := range s.records {
		if r.Kind == parking.KindParked && r.WaitingFor != nil && *r.WaitingFor == key {
			out = append(out, r)
		}
	}
	sortRecords(out)
	return out, nil
}

func (s *InMemory) Remove(_ context.Context, eventID id.EventID, kind parking.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, recordKey{eventID: eventID, kind: kind})
	return nil
}

func sortRecords(rs []parking.Record) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].RecordedAt.Equal(rs[j].RecordedAt) {
			return rs[i].RecordedAt.Before(rs[j].RecordedAt)
		}
		return rs[i].EventID.String() < rs[j].EventID.String()
	})
}
