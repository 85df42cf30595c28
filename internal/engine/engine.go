// Package engine drives inbound events through the gate, the aggregate
// handlers, the projection writer and the outbox, and accounts for every event
// it is given: applied, skipped as a no-op, parked or dead-lettered.
//
// Per event:
//
//	gate.Ingest -> handler -> derived.Recompute -> commit + stage outbox (one tx)
//	  -> projections -> release outbox -> gate.Acknowledge -> wake parked events
//
// An event that references an aggregate that does not exist yet is retried a
// few times with backoff and then parked against that aggregate. Creating the
// aggregate replays it.
package engine

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

	"progression/internal/aggregate"
	"progression/internal/derived"
	"progression/internal/engine/metrics"
	"progression/internal/events"
	"progression/internal/gate"
	"progression/internal/outbound"
	"progression/internal/parking"
	id "progression/pkg/domain"
	dErrors "progression/pkg/domain-errors"
	"progression/pkg/platform/sentinel"
	txcontext "progression/pkg/platform/tx"
	"progression/pkg/requestcontext"
)

// Disposition is what became of an inbound event.
type Disposition string

const (
	DispositionApplied Disposition = "applied"
	// DispositionNoop covers duplicates and events that changed nothing.
	DispositionNoop Disposition = "noop"
	// DispositionTransient events are parked for replay.
	DispositionTransient  Disposition = "transient"
	DispositionMalformed  Disposition = "malformed"
	DispositionConflict   Disposition = "conflict"
	DispositionUnroutable Disposition = "unroutable"
)

// Result reports the handling of one event.
type Result struct {
	EventID     id.EventID
	Type        events.Type
	Disposition Disposition
	Reason      string
	// WaitingFor is set for parked events that wait on a missing aggregate.
	WaitingFor *aggregate.Key
	Changed    []aggregate.Key
	Created    []aggregate.Key
	// Staged counts the outbound events this event produced.
	Staged int
}

// Gate classifies envelopes and records them once applied.
type Gate interface {
	Ingest(ctx context.Context, env events.Envelope) (gate.Result, error)
	Acknowledge(ctx context.Context, env events.Envelope, corr events.Correlation) error
}

// Projector writes read models for committed snapshots.
type Projector interface {
	Apply(ctx context.Context, snaps []aggregate.Snapshot) error
}

// HandlerSource is a domain service exposing its event handlers.
type HandlerSource interface {
	Handlers() map[events.Type]events.Handler
}

// Notifier is woken when outbound events are released.
type Notifier interface {
	Notify()
}

type noopNotifier struct{}

func (noopNotifier) Notify() {}

// Engine processes inbound envelopes. It is safe for concurrent use; aggregate
// versions serialize writers of the same aggregate.
type Engine struct {
	aggregates aggregate.Store
	gate       Gate
	parked     parking.Store
	projector  Projector
	outbox     outbound.Store
	handlers   map[events.Type]events.Handler

	runner   txcontext.Runner
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	now      func() time.Time

	commitAttempts   int
	orderingAttempts int
	orderingBackoff  time.Duration
	youthAge         int
}

// Option configures the Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithTxRunner makes the aggregate commit and the outbox staging of one event
// atomic.
func WithTxRunner(r txcontext.Runner) Option {
	return func(e *Engine) {
		if r != nil {
			e.runner = r
		}
	}
}

// WithNotifier sets who is woken when outbound events are released.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithCommitAttempts bounds reload-and-reapply rounds after a version conflict.
func WithCommitAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.commitAttempts = n
		}
	}
}

// WithOrderingRetries sets how often an event that references a missing
// aggregate is tried before it is parked, and the first wait between tries.
func WithOrderingRetries(attempts int, initial time.Duration) Option {
	return func(e *Engine) {
		if attempts > 0 {
			e.orderingAttempts = attempts
		}
		if initial > 0 {
			e.orderingBackoff = initial
		}
	}
}

func WithYouthAge(years int) Option {
	return func(e *Engine) {
		if years > 0 {
			e.youthAge = years
		}
	}
}

// New wires the engine. Every event type may be owned by one service only.
func New(
	aggregates aggregate.Store,
	g Gate,
	parked parking.Store,
	projector Projector,
	outbox outbound.Store,
	services []HandlerSource,
	opts ...Option,
) (*Engine, error) {
	if aggregates == nil {
		return nil, errors.New("aggregate store is required")
	}
	if g == nil {
		return nil, errors.New("gate is required")
	}
	if parked == nil {
		return nil, errors.New("parking store is required")
	}
	if projector == nil {
		return nil, errors.New("projector is required")
	}
	if outbox == nil {
		return nil, errors.New("outbox store is required")
	}

	e := &Engine{
		aggregates:       aggregates,
		gate:             g,
		parked:           parked,
		projector:        projector,
		outbox:           outbox,
		handlers:         make(map[events.Type]events.Handler),
		runner:           txcontext.NoopRunner{},
		notifier:         noopNotifier{},
		logger:           slog.Default(),
		tracer:           otel.Tracer("progression/engine"),
		now:              time.Now,
		commitAttempts:   5,
		orderingAttempts: 4,
		orderingBackoff:  200 * time.Millisecond,
		youthAge:         derived.DefaultYouthAge,
	}
	for _, svc := range services {
		for t, h := range svc.Handlers() {
			if _, dup := e.handlers[t]; dup {
				return nil, fmt.Errorf("event type %s has two handlers", t)
			}
			e.handlers[t] = h
		}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Handles reports whether an event type has a handler.
func (e *Engine) Handles(t events.Type) bool {
	_, ok := e.handlers[t]
	return ok
}

// Process applies one envelope. The returned error is reserved for
// infrastructure failures, after which the envelope must be offered again;
// every other outcome is reported in the Result.
func (e *Engine) Process(ctx context.Context, env events.Envelope) (Result, error) {
	res, err := e.process(ctx, env, e.orderingAttempts, false)
	if err != nil {
		return res, err
	}
	e.wake(ctx, res.Created)
	return res, nil
}

func (e *Engine) process(ctx context.Context, env events.Envelope, attempts int, replaying bool) (Result, error) {
	start := e.now()
	ctx = requestcontext.WithTime(ctx, start)
	ctx = requestcontext.WithEventID(ctx, env.ID.String())
	ctx, span := e.tracer.Start(ctx, "engine.process", trace.WithAttributes(
		attribute.String("event.id", env.ID.String()),
		attribute.String("event.type", string(env.Type)),
		attribute.Bool("event.replay", replaying),
	))
	defer span.End()

	res, err := e.handle(ctx, env, attempts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.ErrorContext(ctx, "event processing failed", "event_id", env.ID, "type", env.Type, "error", err)
		return Result{EventID: env.ID, Type: env.Type}, err
	}
	if replaying && res.Disposition != DispositionTransient {
		if err := e.parked.Remove(ctx, env.ID, parking.KindParked); err != nil {
			return res, fmt.Errorf("remove parked event: %w", err)
		}
	}
	span.SetAttributes(attribute.String("event.disposition", string(res.Disposition)))
	e.metrics.ObserveProcessed(string(res.Disposition), string(env.Type), e.now().Sub(start))
	return res, nil
}

func (e *Engine) handle(ctx context.Context, env events.Envelope, attempts int) (Result, error) {
	verdict, err := e.gate.Ingest(ctx, env)
	if err != nil {
		if isMalformed(err) {
			return e.deadLetter(ctx, parking.KindRejected, env, events.Correlation{}, err)
		}
		return Result{}, fmt.Errorf("ingest event: %w", err)
	}
	switch verdict.Outcome {
	case gate.Duplicate:
		return Result{EventID: env.ID, Type: env.Type, Disposition: DispositionNoop, Reason: "duplicate"}, nil
	case gate.Unroutable:
		return e.deadLetter(ctx, parking.KindUnroutable, env, verdict.Correlation, errors.New(verdict.Reason))
	}

	handler, ok := e.handlers[env.Type]
	if !ok {
		return e.deadLetter(ctx, parking.KindUnroutable, env, verdict.Correlation, fmt.Errorf("no handler for %s", env.Type))
	}

	out, err := e.applyWithRetry(ctx, env, verdict.Event, handler, attempts)
	if err != nil {
		return e.fail(ctx, env, verdict.Correlation, err)
	}
	if err := e.finish(ctx, env, verdict.Correlation, out); err != nil {
		return Result{}, err
	}

	res := Result{EventID: env.ID, Type: env.Type, Disposition: DispositionNoop, Staged: len(out.staged)}
	for _, c := range out.changes {
		res.Changed = append(res.Changed, c.Key)
		if c.Created {
			res.Created = append(res.Created, c.Key)
		}
	}
	if len(out.changes) > 0 {
		res.Disposition = DispositionApplied
	}
	e.logger.DebugContext(ctx, "event processed",
		"event_id", env.ID, "type", env.Type, "disposition", res.Disposition,
		"changed", len(res.Changed), "staged", res.Staged)
	return res, nil
}

// fail turns a handler error into a disposition. Errors that are neither
// ordering, conflict nor validation problems are returned for redelivery.
func (e *Engine) fail(ctx context.Context, env events.Envelope, corr events.Correlation, err error) (Result, error) {
	if key, ok := aggregate.AsMissing(err); ok {
		return e.park(ctx, env, corr, &key, err)
	}
	if errors.Is(err, aggregate.ErrVersionConflict) {
		return e.park(ctx, env, corr, nil, err)
	}
	if isMalformed(err) {
		return e.deadLetter(ctx, parking.KindRejected, env, corr, err)
	}
	if isConflict(err) {
		return e.deadLetter(ctx, parking.KindConflict, env, corr, err)
	}
	return Result{}, fmt.Errorf("apply %s: %w", env.Type, err)
}

func isMalformed(err error) bool {
	return dErrors.Is(err, dErrors.CodeValidation) ||
		dErrors.Is(err, dErrors.CodeBadRequest) ||
		dErrors.Is(err, dErrors.CodeInvalidInput)
}

func isConflict(err error) bool {
	return dErrors.Is(err, dErrors.CodeConflict) ||
		dErrors.Is(err, dErrors.CodeInvariantViolation) ||
		errors.Is(err, sentinel.ErrConflict)
}

// applied is the outcome of one successful transaction.
type applied struct {
	changes   []aggregate.Change
	snapshots []aggregate.Snapshot
	staged    []string
}

// applyWithRetry retries ordering failures and lost version races with
// exponential backoff. Anything else stops at once.
func (e *Engine) applyWithRetry(ctx context.Context, env events.Envelope, evt events.Event, handler events.Handler, attempts int) (applied, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.orderingBackoff
	policy.MaxElapsedTime = 0
	retries := uint64(0)
	if attempts > 1 {
		retries = uint64(attempts - 1)
	}

	var out applied
	op := func() error {
		var err error
		out, err = e.apply(ctx, env, evt, handler)
		if err == nil {
			return nil
		}
		if _, missing := aggregate.AsMissing(err); missing || errors.Is(err, aggregate.ErrVersionConflict) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		e.metrics.IncOrderingRetry()
		e.logger.DebugContext(ctx, "event not yet applicable, retrying",
			"event_id", env.ID, "type", env.Type, "wait", wait, "error", err)
	}
	err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(policy, retries), ctx), notify)
	return out, err
}

// apply runs the handler and commits under optimistic concurrency. Outbound
// entries are staged in the same transaction as the aggregate writes.
func (e *Engine) apply(ctx context.Context, env events.Envelope, evt events.Event, handler events.Handler) (applied, error) {
	var out applied
	err := aggregate.Mutate(ctx, e.aggregates, e.commitAttempts, func(ctx context.Context, ws *aggregate.Workspace) error {
		out = applied{}
		return e.runner.RunInTx(ctx, func(ctx context.Context) error {
			intents, err := handler(ctx, ws, evt)
			if err != nil {
				return err
			}
			now := requestcontext.Now(ctx)
			for _, c := range ws.Cases() {
				derived.Recompute(c, now, e.youthAge)
			}
			changes, err := ws.Commit(ctx)
			if err != nil {
				return err
			}
			snaps := ws.Snapshots()
			entries := e.entries(ctx, env, intents, changes, snaps, now)
			if len(entries) > 0 {
				if err := e.outbox.Stage(ctx, entries); err != nil {
					return fmt.Errorf("stage outbound events: %w", err)
				}
			}
			out = applied{changes: changes, snapshots: snaps}
			for _, entry := range entries {
				out.staged = append(out.staged, entry.ID)
			}
			return nil
		})
	})
	return out, err
}

// entries builds the outbound events of a commit. Intents on aggregates the
// commit did not change are dropped: their events went out with the commit
// that made the change.
func (e *Engine) entries(ctx context.Context, env events.Envelope, intents []events.Intent, changes []aggregate.Change, snaps []aggregate.Snapshot, now time.Time) []outbound.Entry {
	if len(intents) == 0 || len(changes) == 0 {
		return nil
	}
	changed := make(map[aggregate.Key]bool, len(changes))
	for _, c := range changes {
		changed[c.Key] = true
	}
	byKey := make(map[aggregate.Key]aggregate.Snapshot, len(snaps))
	for _, s := range snaps {
		byKey[s.Key] = s
	}

	var out []outbound.Entry
	seen := map[string]bool{}
	for _, in := range intents {
		if !changed[in.Key] {
			continue
		}
		entry, err := outbound.Build(in, byKey[in.Key])
		if err != nil {
			e.logger.WarnContext(ctx, "outbound event skipped",
				"event_id", env.ID, "outbound_type", in.Type, "aggregate", in.Key.String(), "subject", in.Subject, "error", err)
			continue
		}
		if seen[entry.ID] {
			continue
		}
		seen[entry.ID] = true
		entry.CreatedAt = now
		entry.NextAttemptAt = now
		out = append(out, entry)
	}
	return out
}

// finish runs once the transaction is durable. A failure here is returned so
// the envelope is offered again; reprocessing it changes nothing and repeats
// these steps.
func (e *Engine) finish(ctx context.Context, env events.Envelope, corr events.Correlation, out applied) error {
	if err := e.projector.Apply(ctx, out.snapshots); err != nil {
		return fmt.Errorf("write projections: %w", err)
	}
	if len(out.staged) > 0 {
		if err := e.outbox.Release(ctx, out.staged); err != nil {
			return fmt.Errorf("release outbound events: %w", err)
		}
		e.notifier.Notify()
	}
	if err := e.gate.Acknowledge(ctx, env, corr); err != nil {
		return fmt.Errorf("acknowledge event: %w", err)
	}
	return nil
}

func (e *Engine) park(ctx context.Context, env events.Envelope, corr events.Correlation, waiting *aggregate.Key, cause error) (Result, error) {
	rec := parking.NewRecord(parking.KindParked, env, cause.Error(), e.now())
	rec.WaitingFor = waiting
	rec.Correlation = corr.Attrs()
	if err := e.parked.Save(ctx, rec); err != nil {
		return Result{}, fmt.Errorf("park event: %w", err)
	}
	attrs := []any{"event_id", env.ID, "type", env.Type, "reason", cause.Error()}
	if waiting != nil {
		attrs = append(attrs, "waiting_for", waiting.String())
	}
	e.logger.InfoContext(ctx, "event parked", attrs...)
	return Result{EventID: env.ID, Type: env.Type, Disposition: DispositionTransient, Reason: cause.Error(), WaitingFor: waiting}, nil
}

func (e *Engine) deadLetter(ctx context.Context, kind parking.Kind, env events.Envelope, corr events.Correlation, cause error) (Result, error) {
	rec := parking.NewRecord(kind, env, cause.Error(), e.now())
	rec.Correlation = corr.Attrs()
	if err := e.parked.Save(ctx, rec); err != nil {
		return Result{}, fmt.Errorf("record dead letter: %w", err)
	}
	e.logger.WarnContext(ctx, "event dead-lettered",
		"event_id", env.ID, "type", env.Type, "kind", kind, "reason", cause.Error(), "correlation", rec.Correlation)
	return Result{EventID: env.ID, Type: env.Type, Disposition: dispositionFor(kind), Reason: cause.Error()}, nil
}

func dispositionFor(kind parking.Kind) Disposition {
	switch kind {
	case parking.KindRejected:
		return DispositionMalformed
	case parking.KindConflict:
		return DispositionConflict
	case parking.KindUnroutable:
		return DispositionUnroutable
	default:
		return DispositionTransient
	}
}
