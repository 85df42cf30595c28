package store

import (
	"context"
	"sort"
	"sync"

	"progression/internal/aggregate"
	"progression/pkg/platform/sentinel"
)

// InMemoryStore keeps snapshots in a map. Commit is atomic per key under the
// lock; RunInTx makes a group of commits atomic by undoing them on error.
type InMemoryStore struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data map[aggregate.Key]aggregate.Snapshot
}

type undoKey struct{}

// undoLog holds the state each key had before the transaction touched it. A
// nil snapshot means the key did not exist.
type undoLog map[aggregate.Key]*aggregate.Snapshot

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{data: make(map[aggregate.Key]aggregate.Snapshot)}
}

func (s *InMemoryStore) Load(_ context.Context, key aggregate.Key) (aggregate.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.data[key]
	if !ok {
		return aggregate.Snapshot{}, sentinel.ErrNotFound
	}
	snap.Data = append([]byte(nil), snap.Data...)
	return snap, nil
}

func (s *InMemoryStore) Commit(ctx context.Context, key aggregate.Key, expected int64, data []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.data[key]
	switch {
	case expected == 0 && exists:
		return 0, aggregate.ErrVersionConflict
	case expected != 0 && (!exists || current.Version != expected):
		return 0, aggregate.ErrVersionConflict
	}
	if undo, ok := ctx.Value(undoKey{}).(undoLog); ok {
		if _, recorded := undo[key]; !recorded {
			if exists {
				prev := current
				undo[key] = &prev
			} else {
				undo[key] = nil
			}
		}
	}
	next := expected + 1
	s.data[key] = aggregate.Snapshot{Key: key, Version: next, Data: append([]byte(nil), data...)}
	return next, nil
}

func (s *InMemoryStore) List(_ context.Context, kind aggregate.Kind) ([]aggregate.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []aggregate.Snapshot
	for k, snap := range s.data {
		if k.Kind == kind {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out, nil
}

// RunInTx serializes transactions and restores every key fn committed when fn
// fails.
func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(undoKey{}).(undoLog); ok {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	undo := undoLog{}
	err := fn(context.WithValue(ctx, undoKey{}, undo))
	if err == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, prev := range undo {
		if prev == nil {
			delete(s.data, key)
			continue
		}
		s.data[key] = *prev
	}
	return err
}
