// Package aggregate holds versioned aggregate snapshots and the unit of work
// that mutates them under optimistic concurrency.
package aggregate

import (
	"context"
	"errors"
	"fmt"

	"progression/pkg/platform/sentinel"
)

// Kind names an aggregate root type.
type Kind string

const (
	KindCase            Kind = "prosecution_case"
	KindHearing         Kind = "hearing"
	KindApplication     Kind = "court_application"
	KindMasterDefendant Kind = "master_defendant"
	KindLinkGroup       Kind = "link_group"
)

// Key addresses one aggregate.
type Key struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

func (k Key) String() string { return string(k.Kind) + "/" + k.ID }

// IsZero reports whether the key addresses nothing.
func (k Key) IsZero() bool { return k.Kind == "" || k.ID == "" }

// Less orders keys by id, then kind. Commits follow this order.
func (k Key) Less(o Key) bool {
	if k.ID != o.ID {
		return k.ID < o.ID
	}
	return k.Kind < o.Kind
}

// Snapshot is the persisted state of an aggregate at a version.
type Snapshot struct {
	Key     Key
	Version int64
	Data    []byte
}

// Store persists snapshots. Commit with expected version 0 creates the aggregate.
type Store interface {
	Load(ctx context.Context, key Key) (Snapshot, error)
	Commit(ctx context.Context, key Key, expected int64, data []byte) (int64, error)
	List(ctx context.Context, kind Kind) ([]Snapshot, error)
}

// ErrVersionConflict is returned when the stored version moved since load.
var ErrVersionConflict = fmt.Errorf("aggregate version conflict: %w", sentinel.ErrConflict)

// MissingError reports an aggregate that does not exist yet. Events usually hit
// this when they arrive ahead of the event that creates the aggregate.
type MissingError struct {
	Key Key
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Key.Kind, e.Key.ID)
}

func (e *MissingError) Is(target error) bool {
	return target == sentinel.ErrNotFound
}

// AsMissing extracts the missing aggregate key from err.
func AsMissing(err error) (Key, bool) {
	var me *MissingError
	if errors.As(err, &me) {
		return me.Key, true
	}
	return Key{}, false
}
