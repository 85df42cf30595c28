package store

import (
	"context"
	"sync"
	"time"

	"progression/pkg/requestcontext"
)

// InMemory keeps processed-event markers in a map with expiry times.
type InMemory struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[string]time.Time)}
}

func (s *InMemory) Seen(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expires, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	if !requestcontext.Now(ctx).Before(expires) {
		delete(s.entries, key)
		return false, nil
	}
	return true, nil
}

func (s *InMemory) Mark(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = requestcontext.Now(ctx).Add(ttl)
	return nil
}

// Prune drops expired markers and returns how many were removed.
func (s *InMemory) Prune(ctx context.Context) int {
	now := requestcontext.Now(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, expires := range s.entries {
		if !now.Before(expires) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}
