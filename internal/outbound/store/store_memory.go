package store

import (
	"context"
	"sync"
	"time"

	"progression/internal/outbound"
	"progression/pkg/platform/sentinel"
)

// InMemory keeps the outbox in staging order.
type InMemory struct {
	mu      sync.Mutex
	entries map[string]*outbound.Entry
	order   []string
}

func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[string]*outbound.Entry)}
}

func (s *InMemory) Stage(_ context.Context, entries []outbound.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if _, ok := s.entries[e.ID]; ok {
			continue
		}
		e := e
		if e.NextAttemptAt.IsZero() {
			e.NextAttemptAt = e.CreatedAt
		}
		s.entries[e.ID] = &e
		s.order = append(s.order, e.ID)
	}
	return nil
}

func (s *InMemory) Release(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if e, ok := s.entries[id]; ok && e.Status == outbound.StatusStaged {
			e.Status = outbound.StatusPending
		}
	}
	return nil
}

func (s *InMemory) ReleaseStaged(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	released := 0
	for _, id := range s.order {
		e := s.entries[id]
		if e.Status == outbound.StatusStaged && e.CreatedAt.Before(cutoff) {
			e.Status = outbound.StatusPending
			released++
		}
	}
	return released, nil
}

func (s *InMemory) Due(_ context.Context, now time.Time, limit int) ([]outbound.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []outbound.Entry
	blocked := map[string]bool{}
	for _, id := range s.order {
		e := s.entries[id]
		agg := e.Key.String()
		switch {
		case e.Status == outbound.StatusStaged:
			blocked[agg] = true
		case e.Status != outbound.StatusPending:
		case e.NextAttemptAt.After(now):
			blocked[agg] = true
		case !blocked[agg]:
			out = append(out, *e)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemory) MarkPublished(_ context.Context, id string, at time.Time) error {
	return s.update(id, func(e *outbound.Entry) {
		e.Status = outbound.StatusPublished
		e.Attempts++
		e.LastError = ""
		e.PublishedAt = &at
	})
}

func (s *InMemory) MarkRetry(_ context.Context, id string, attempts int, lastErr string, next time.Time) error {
	return s.update(id, func(e *outbound.Entry) {
		e.Attempts = attempts
		e.LastError = lastErr
		e.NextAttemptAt = next
	})
}

func (s *InMemory) MarkDead(_ context.Context, id string, attempts int, lastErr string) error {
	return s.update(id, func(e *outbound.Entry) {
		e.Status = outbound.StatusDead
		e.Attempts = attempts
		e.LastError = lastErr
	})
}

func (s *InMemory) List(_ context.Context, status outbound.Status, limit int) ([]outbound.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []outbound.Entry
	for _, id := range s.order {
		e := s.entries[id]
		if status != "" && e.Status != status {
			continue
		}
		out = append(out, *e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemory) update(id string, fn func(e *outbound.Entry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	fn(e)
	return nil
}
