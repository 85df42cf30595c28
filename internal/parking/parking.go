// Package parking keeps every inbound event the engine could not apply: events
// parked while they wait for an aggregate to appear, and events dead-lettered
// as rejected, conflicting or unroutable.
package parking

import (
	"context"
	"time"

	"progression/internal/aggregate"
	"progression/internal/events"
	id "progression/pkg/domain"
)

// Kind classifies a record.
type Kind string

const (
	// KindParked events are replayed once the aggregate they wait for exists.
	KindParked     Kind = "PARKED"
	KindRejected   Kind = "REJECTED"
	KindConflict   Kind = "CONFLICT"
	KindUnroutable Kind = "UNROUTABLE"
)

// Kinds lists every kind in display order.
var Kinds = []Kind{KindParked, KindRejected, KindConflict, KindUnroutable}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Record is one parked or dead-lettered event. Records are keyed by event id
// and kind; saving the same pair again bumps Attempts.
type Record struct {
	EventID     id.EventID          `json:"eventId"`
	Kind        Kind                `json:"kind"`
	EventType   events.Type         `json:"eventType"`
	WaitingFor  *aggregate.Key      `json:"waitingFor,omitempty"`
	Reason      string              `json:"reason"`
	Envelope    events.Envelope     `json:"envelope"`
	Correlation map[string][]string `json:"correlation,omitempty"`
	Attempts    int                 `json:"attempts"`
	RecordedAt  time.Time           `json:"recordedAt"`
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Kind  Kind
	Limit int
}

// Store persists records.
type Store interface {
	Save(ctx context.Context, r Record) error
	List(ctx context.Context, f Filter) ([]Record, error)
	// Waiting returns parked records waiting for key.
	Waiting(ctx context.Context, key aggregate.Key) ([]Record, error)
	Remove(ctx context.Context, eventID id.EventID, kind Kind) error
}

// NewRecord fills the envelope derived fields of a record.
func NewRecord(kind Kind, env events.Envelope, reason string, now time.Time) Record {
	return Record{
		EventID:    env.ID,
		Kind:       kind,
		EventType:  env.Type,
		Reason:     reason,
		Envelope:   env,
		Attempts:   1,
		RecordedAt: now.UTC(),
	}
}
