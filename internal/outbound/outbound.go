// Package outbound turns outbound intents into outbox entries and relays them
// to downstream consumers at least once.
//
// Entries are staged in the same transaction as the aggregate commit, released
// once the read models are written, and only released entries are published.
package outbound

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	"progression/internal/aggregate"
	"progression/internal/events"
)

// Status is the delivery state of an entry.
type Status string

const (
	StatusStaged    Status = "STAGED"
	StatusPending   Status = "PENDING"
	StatusPublished Status = "PUBLISHED"
	StatusDead      Status = "DEAD"
)

// Entry is one outbound event waiting for, or done with, delivery.
type Entry struct {
	ID               string              `json:"id"`
	Type             events.OutboundType `json:"eventType"`
	Key              aggregate.Key       `json:"aggregate"`
	AggregateVersion int64               `json:"aggregateVersion"`
	Subject          string              `json:"subject,omitempty"`
	Payload          json.RawMessage     `json:"payload"`
	Status           Status              `json:"status"`
	Attempts         int                 `json:"attempts"`
	LastError        string              `json:"lastError,omitempty"`
	NextAttemptAt    time.Time           `json:"nextAttemptAt"`
	CreatedAt        time.Time           `json:"createdAt"`
	PublishedAt      *time.Time          `json:"publishedAt,omitempty"`
}

// Store is the outbox.
type Store interface {
	// Stage appends entries whose id is not already present.
	Stage(ctx context.Context, entries []Entry) error
	// Release makes staged entries publishable.
	Release(ctx context.Context, ids []string) error
	// ReleaseStaged releases entries staged before cutoff and reports how many.
	ReleaseStaged(ctx context.Context, cutoff time.Time) (int, error)
	// Due returns publishable entries in staging order, leaving out entries
	// queued behind an earlier entry of the same aggregate that is backing off.
	Due(ctx context.Context, now time.Time, limit int) ([]Entry, error)
	MarkPublished(ctx context.Context, id string, at time.Time) error
	MarkRetry(ctx context.Context, id string, attempts int, lastErr string, next time.Time) error
	MarkDead(ctx context.Context, id string, attempts int, lastErr string) error
	List(ctx context.Context, status Status, limit int) ([]Entry, error)
}

// EntryID identifies an outbound event by what it describes, so processing the
// same commit twice stages the same id.
func EntryID(t events.OutboundType, key aggregate.Key, version int64, subject string) string {
	h := sha256.New()
	for _, part := range []string{string(t), key.String(), strconv.FormatInt(version, 10), subject} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Message is what a sink publishes.
type Message struct {
	ID       string
	Type     events.OutboundType
	Key      string
	Version  int64
	Payload  json.RawMessage
	Attempts int
}

func messageFor(e Entry) Message {
	return Message{
		ID:       e.ID,
		Type:     e.Type,
		Key:      e.Key.ID,
		Version:  e.AggregateVersion,
		Payload:  e.Payload,
		Attempts: e.Attempts,
	}
}
