package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"progression/internal/engine/metrics"
	"progression/internal/events"
	"progression/internal/parking"
	dErrors "progression/pkg/domain-errors"
)

var (
	ErrQueueFull   = dErrors.New(dErrors.CodeUnavailable, "event queue is full")
	ErrPoolStopped = dErrors.New(dErrors.CodeUnavailable, "event pool is stopped")
)

// Processor applies one envelope.
type Processor interface {
	Process(ctx context.Context, env events.Envelope) (Result, error)
}

type outcome struct {
	res Result
	err error
}

type job struct {
	ctx  context.Context
	env  events.Envelope
	done chan outcome
}

// Pool feeds envelopes to a fixed number of workers through a bounded queue.
type Pool struct {
	processor Processor
	queue     chan job
	workers   int
	retryFor  time.Duration
	parked    parking.Store
	logger    *slog.Logger
	metrics   *metrics.Metrics

	mu      sync.RWMutex
	stopped bool
}

type PoolOption func(*Pool)

func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) { p.logger = logger }
}

func WithPoolMetrics(m *metrics.Metrics) PoolOption {
	return func(p *Pool) { p.metrics = m }
}

// WithRetryFor bounds how long a submitted envelope is retried after
// infrastructure failures.
func WithRetryFor(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.retryFor = d
		}
	}
}

// WithPoolParking parks submitted envelopes that still fail once the retries
// run out, so scheduled or manual replay picks them up.
func WithPoolParking(store parking.Store) PoolOption {
	return func(p *Pool) { p.parked = store }
}

func NewPool(processor Processor, workers, queueSize int, opts ...PoolOption) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	p := &Pool{
		processor: processor,
		queue:     make(chan job, queueSize),
		workers:   workers,
		retryFor:  time.Minute,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit queues an envelope without waiting for it. Infrastructure failures are
// retried in the background; the caller's cancellation does not stop the job.
func (p *Pool) Submit(ctx context.Context, env events.Envelope) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.queue <- job{ctx: context.WithoutCancel(ctx), env: env}:
		p.metrics.SetQueueDepth(len(p.queue))
		return nil
	default:
		p.metrics.IncQueueRejected()
		return ErrQueueFull
	}
}

// Do queues an envelope and waits for its result. The envelope is tried once;
// the caller owns retries.
func (p *Pool) Do(ctx context.Context, env events.Envelope) (Result, error) {
	done := make(chan outcome, 1)
	if err := p.enqueue(ctx, job{ctx: ctx, env: env, done: done}); err != nil {
		return Result{}, err
	}
	select {
	case out := <-done:
		return out.res, out.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (p *Pool) enqueue(ctx context.Context, j job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.queue <- j:
		p.metrics.SetQueueDepth(len(p.queue))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the workers and blocks until ctx is cancelled. Queued envelopes
// are processed before Run returns.
func (p *Pool) Run(ctx context.Context) error {
	g := new(errgroup.Group)
	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			for j := range p.queue {
				p.metrics.SetQueueDepth(len(p.queue))
				p.run(j)
			}
			return nil
		})
	}
	p.logger.InfoContext(ctx, "event pool started", "workers", p.workers, "queue_size", cap(p.queue))

	<-ctx.Done()
	p.mu.Lock()
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	err := g.Wait()
	p.logger.Info("event pool stopped")
	return err
}

func (p *Pool) run(j job) {
	if j.done != nil {
		res, err := p.processor.Process(j.ctx, j.env)
		j.done <- outcome{res: res, err: err}
		return
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = p.retryFor
	err := backoff.RetryNotify(func() error {
		_, err := p.processor.Process(j.ctx, j.env)
		return err
	}, policy, func(err error, wait time.Duration) {
		p.logger.WarnContext(j.ctx, "event processing failed, retrying", "event_id", j.env.ID, "type", j.env.Type, "wait", wait, "error", err)
	})
	if err != nil {
		p.park(j, err)
	}
}

func (p *Pool) park(j job, cause error) {
	if p.parked == nil {
		p.logger.ErrorContext(j.ctx, "event dropped after retries", "event_id", j.env.ID, "type", j.env.Type, "error", cause)
		return
	}
	ctx, cancel := context.WithTimeout(j.ctx, 10*time.Second)
	defer cancel()
	rec := parking.NewRecord(parking.KindParked, j.env, "retries exhausted: "+cause.Error(), time.Now())
	if err := p.parked.Save(ctx, rec); err != nil {
		p.logger.ErrorContext(ctx, "event dropped after retries, parking failed",
			"event_id", j.env.ID, "type", j.env.Type, "error", cause, "park_error", err)
		return
	}
	p.logger.WarnContext(ctx, "event parked after retries", "event_id", j.env.ID, "type", j.env.Type, "error", cause)
}
