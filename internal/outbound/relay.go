package outbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"progression/internal/outbound/metrics"
	"progression/pkg/platform/circuit"
)

// Sink delivers messages downstream.
type Sink interface {
	Publish(ctx context.Context, msg Message) error
	// DeadLetter hands over a message that exhausted its attempts.
	DeadLetter(ctx context.Context, msg Message, reason string) error
}

var errBreakerOpen = errors.New("sink circuit breaker open")

// Relay publishes released outbox entries. Failed entries back off
// exponentially and are dead-lettered after the maximum attempts; while the
// sink keeps failing the circuit breaker pauses publishing altogether.
type Relay struct {
	store   Store
	sink    Sink
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
	wake    chan struct{}

	pollInterval   time.Duration
	batchSize      int
	maxAttempts    int
	baseBackoff    time.Duration
	maxBackoff     time.Duration
	publishTimeout time.Duration
	stagedGrace    time.Duration
}

type RelayOption func(*Relay)

func WithLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) RelayOption {
	return func(r *Relay) { r.metrics = m }
}

func WithBreaker(b *circuit.Breaker) RelayOption {
	return func(r *Relay) {
		if b != nil {
			r.breaker = b
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) RelayOption {
	return func(r *Relay) {
		if now != nil {
			r.now = now
		}
	}
}

func WithPollInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithMaxAttempts(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithBackoff sets the first retry delay and its cap.
func WithBackoff(base, max time.Duration) RelayOption {
	return func(r *Relay) {
		if base > 0 {
			r.baseBackoff = base
		}
		if max >= r.baseBackoff {
			r.maxBackoff = max
		}
	}
}

func WithPublishTimeout(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.publishTimeout = d
		}
	}
}

// WithStagedGrace sets how long a staged entry may wait for its release
// before a sweep releases it.
func WithStagedGrace(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.stagedGrace = d
		}
	}
}

func NewRelay(store Store, sink Sink, opts ...RelayOption) *Relay {
	r := &Relay{
		store:          store,
		sink:           sink,
		logger:         slog.Default(),
		tracer:         otel.Tracer("progression/outbound"),
		now:            time.Now,
		wake:           make(chan struct{}, 1),
		pollInterval:   500 * time.Millisecond,
		batchSize:      100,
		maxAttempts:    10,
		baseBackoff:    time.Second,
		maxBackoff:     5 * time.Minute,
		publishTimeout: 5 * time.Second,
		stagedGrace:    time.Minute,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.breaker == nil {
		r.breaker = circuit.New("outbox-sink", circuit.WithCooldown(r.baseBackoff))
	}
	return r
}

// Notify wakes the relay early. It never blocks.
func (r *Relay) Notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	r.logger.InfoContext(ctx, "outbox relay started", "poll_interval", r.pollInterval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return nil
		case <-ticker.C:
		case <-r.wake:
		}
		if _, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
			r.logger.ErrorContext(ctx, "outbox relay pass failed", "error", err)
		}
	}
}

// Drain publishes due entries until none are left or the breaker opens, and
// reports how many were published.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	published := 0
	for {
		due, err := r.store.Due(ctx, r.now(), r.batchSize)
		if err != nil {
			return published, fmt.Errorf("load due entries: %w", err)
		}
		if len(due) == 0 {
			return published, nil
		}
		n, err := r.publishBatch(ctx, due)
		published += n
		if errors.Is(err, errBreakerOpen) {
			return published, nil
		}
		if err != nil {
			return published, err
		}
		if n == 0 {
			return published, nil
		}
	}
}

// Sweep releases entries whose release was lost, refreshes the backlog gauge
// and drains.
func (r *Relay) Sweep(ctx context.Context) error {
	released, err := r.store.ReleaseStaged(ctx, r.now().Add(-r.stagedGrace))
	if err != nil {
		return fmt.Errorf("release staged entries: %w", err)
	}
	if released > 0 {
		r.logger.WarnContext(ctx, "released orphaned outbox entries", "count", released)
	}
	if _, err := r.Drain(ctx); err != nil {
		return err
	}
	pending, err := r.store.List(ctx, StatusPending, 0)
	if err != nil {
		return fmt.Errorf("count pending entries: %w", err)
	}
	r.metrics.SetBacklog(len(pending))
	return nil
}

// publishBatch stops at the first breaker rejection. Once an entry of an
// aggregate fails, later entries of that aggregate in the batch wait so the
// aggregate's events stay in order.
func (r *Relay) publishBatch(ctx context.Context, entries []Entry) (int, error) {
	published := 0
	blocked := map[string]bool{}
	for _, e := range entries {
		if blocked[e.Key.String()] {
			continue
		}
		if !r.breaker.Allow() {
			r.metrics.SetBreakerOpen(true)
			return published, errBreakerOpen
		}
		ok, err := r.publish(ctx, e)
		if err != nil {
			return published, err
		}
		if ok {
			published++
			continue
		}
		blocked[e.Key.String()] = true
	}
	return published, nil
}

// publish makes one attempt. A false result with no error means the attempt
// failed and the entry was rescheduled or dead-lettered.
func (r *Relay) publish(ctx context.Context, e Entry) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "outbox.publish", trace.WithAttributes(
		attribute.String("outbox.id", e.ID),
		attribute.String("outbox.type", string(e.Type)),
		attribute.String("aggregate.key", e.Key.String()),
		attribute.Int("outbox.attempt", e.Attempts+1),
	))
	defer span.End()

	msg := messageFor(e)
	msg.Attempts = e.Attempts + 1
	pubCtx, cancel := context.WithTimeout(ctx, r.publishTimeout)
	pubErr := r.sink.Publish(pubCtx, msg)
	cancel()

	if pubErr == nil {
		if _, change := r.breaker.RecordSuccess(); change.Closed {
			r.metrics.SetBreakerOpen(false)
			r.logger.InfoContext(ctx, "outbox sink recovered")
		}
		if err := r.store.MarkPublished(ctx, e.ID, r.now()); err != nil {
			return false, fmt.Errorf("mark published: %w", err)
		}
		r.metrics.IncPublished(string(e.Type))
		return true, nil
	}

	span.RecordError(pubErr)
	span.SetStatus(codes.Error, pubErr.Error())
	if _, change := r.breaker.RecordFailure(); change.Opened {
		r.metrics.SetBreakerOpen(true)
		r.logger.WarnContext(ctx, "outbox sink circuit opened", "error", pubErr)
	}

	attempts := e.Attempts + 1
	if attempts >= r.maxAttempts {
		if err := r.sink.DeadLetter(ctx, msg, pubErr.Error()); err != nil {
			r.logger.ErrorContext(ctx, "dead-letter publish failed", "outbox_id", e.ID, "error", err)
		}
		if err := r.store.MarkDead(ctx, e.ID, attempts, pubErr.Error()); err != nil {
			return false, fmt.Errorf("mark dead: %w", err)
		}
		r.metrics.IncDeadLettered(string(e.Type))
		r.logger.ErrorContext(ctx, "outbound event dead-lettered",
			"outbox_id", e.ID, "type", e.Type, "aggregate", e.Key.String(), "attempts", attempts, "error", pubErr)
		return false, nil
	}

	next := r.now().Add(r.delay(attempts))
	if err := r.store.MarkRetry(ctx, e.ID, attempts, pubErr.Error(), next); err != nil {
		return false, fmt.Errorf("mark retry: %w", err)
	}
	r.metrics.IncRetried(string(e.Type))
	r.logger.WarnContext(ctx, "outbound publish failed, will retry",
		"outbox_id", e.ID, "type", e.Type, "attempts", attempts, "next_attempt_at", next, "error", pubErr)
	return false, nil
}

// delay is the wait before attempt n+1: base, doubling, capped at max.
func (r *Relay) delay(attempts int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.baseBackoff
	b.MaxInterval = r.maxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	d := b.NextBackOff()
	for i := 1; i < attempts; i++ {
		d = b.NextBackOff()
	}
	return d
}
