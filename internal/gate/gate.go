// Package gate decides whether an inbound envelope should be applied: it
// decodes and validates the event, finds the aggregate it belongs to and
// checks the processed-event store for earlier deliveries.
//
// The gate never retries. Markers are written by Acknowledge only after the
// event has been applied, so a crash between apply and acknowledge leads to a
// redelivery that the aggregate handlers treat as a no-op.
package gate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"progression/internal/events"
	"progression/internal/gate/metrics"
	"progression/pkg/requestcontext"
)

// Outcome is the gate's verdict on an envelope.
type Outcome string

const (
	Accept     Outcome = "accept"
	Duplicate  Outcome = "duplicate"
	Unroutable Outcome = "unroutable"
)

const (
	defaultDedupeWindow  = 72 * time.Hour
	defaultHashRetention = 90 * 24 * time.Hour
)

// Store records processed-event markers with a time to live.
type Store interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string, ttl time.Duration) error
}

// Result carries the decoded event with the verdict. Event and Correlation
// are set for Accept and Duplicate.
type Result struct {
	Outcome     Outcome
	Event       events.Event
	Correlation events.Correlation
	Reason      string
}

// Gate is the event deduplication and correlation gate.
type Gate struct {
	store         Store
	logger        *slog.Logger
	metrics       *metrics.Metrics
	dedupeWindow  time.Duration
	hashRetention time.Duration
}

// Option configures the Gate.
type Option func(*Gate)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) { g.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

// WithDedupeWindow sets how long event ids are remembered.
func WithDedupeWindow(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.dedupeWindow = d
		}
	}
}

// WithHashRetention sets how long content hashes are remembered.
func WithHashRetention(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.hashRetention = d
		}
	}
}

func New(store Store, opts ...Option) *Gate {
	g := &Gate{
		store:         store,
		logger:        slog.Default(),
		dedupeWindow:  defaultDedupeWindow,
		hashRetention: defaultHashRetention,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Ingest classifies an envelope. A malformed envelope returns a validation
// error and no result.
func (g *Gate) Ingest(ctx context.Context, env events.Envelope) (Result, error) {
	evt, err := events.Decode(env)
	if errors.Is(err, events.ErrUnknownType) {
		return g.verdict(ctx, env, Result{Outcome: Unroutable, Reason: err.Error()}), nil
	}
	if err != nil {
		g.metrics.IncOutcome("malformed", string(env.Type))
		return Result{}, err
	}

	corr := evt.Correlate()
	if corr.Primary.IsZero() {
		return g.verdict(ctx, env, Result{Outcome: Unroutable, Event: evt, Correlation: corr, Reason: "missing correlation key"}), nil
	}

	key := g.idKey(corr, env)
	if g.pastWindow(ctx, env) {
		key = g.hashKey(corr, env)
	}
	seen, err := g.store.Seen(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("check processed event: %w", err)
	}
	if seen {
		return g.verdict(ctx, env, Result{Outcome: Duplicate, Event: evt, Correlation: corr}), nil
	}
	return g.verdict(ctx, env, Result{Outcome: Accept, Event: evt, Correlation: corr}), nil
}

// Acknowledge records the envelope as applied: by id for the dedupe window,
// and by content hash for the longer hash retention.
func (g *Gate) Acknowledge(ctx context.Context, env events.Envelope, corr events.Correlation) error {
	if err := g.store.Mark(ctx, g.idKey(corr, env), g.dedupeWindow); err != nil {
		return fmt.Errorf("mark processed event: %w", err)
	}
	if err := g.store.Mark(ctx, g.hashKey(corr, env), g.hashRetention); err != nil {
		return fmt.Errorf("mark processed content: %w", err)
	}
	return nil
}

func (g *Gate) verdict(ctx context.Context, env events.Envelope, r Result) Result {
	g.metrics.IncOutcome(string(r.Outcome), string(env.Type))
	switch r.Outcome {
	case Duplicate:
		g.logger.DebugContext(ctx, "duplicate event skipped", "event_id", env.ID, "type", env.Type)
	case Unroutable:
		g.logger.WarnContext(ctx, "unroutable event", "event_id", env.ID, "type", env.Type, "reason", r.Reason)
	}
	return r
}

// pastWindow reports whether the event is too old for its id marker to still
// exist.
func (g *Gate) pastWindow(ctx context.Context, env events.Envelope) bool {
	if env.OccurredAt.IsZero() {
		return false
	}
	return requestcontext.Now(ctx).Sub(env.OccurredAt) > g.dedupeWindow
}

func (g *Gate) idKey(corr events.Correlation, env events.Envelope) string {
	return "gate:evt:" + corr.Primary.String() + ":" + env.ID.String()
}

func (g *Gate) hashKey(corr events.Correlation, env events.Envelope) string {
	return "gate:hash:" + corr.Primary.String() + ":" + ContentHash(env)
}

// ContentHash identifies an envelope by type and payload, ignoring its id.
func ContentHash(env events.Envelope) string {
	h := sha256.New()
	h.Write([]byte(env.Type))
	h.Write([]byte{0})
	h.Write(env.Payload)
	return hex.EncodeToString(h.Sum(nil))
}
