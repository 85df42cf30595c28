// Package app assembles the engine and its backends from configuration. Every
// backend whose connection setting is empty falls back to its in-memory
// implementation, so the whole system runs without infrastructure locally.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"progression/internal/aggregate"
	aggstore "progression/internal/aggregate/store"
	"progression/internal/engine"
	enginemetrics "progression/internal/engine/metrics"
	"progression/internal/events"
	"progression/internal/gate"
	gatemetrics "progression/internal/gate/metrics"
	gatestore "progression/internal/gate/store"
	hearingservice "progression/internal/hearing/service"
	identityservice "progression/internal/identity/service"
	"progression/internal/outbound"
	outmetrics "progression/internal/outbound/metrics"
	outstore "progression/internal/outbound/store"
	"progression/internal/parking"
	parkingstore "progression/internal/parking/store"
	"progression/internal/platform/config"
	"progression/internal/platform/kafka/producer"
	"progression/internal/platform/mongo"
	"progression/internal/platform/postgres"
	"progression/internal/platform/redis"
	"progression/internal/projection"
	projstore "progression/internal/projection/store"
	prosecutionservice "progression/internal/prosecution/service"
	"progression/pkg/platform/circuit"
	pstrings "progression/pkg/platform/strings"
	txcontext "progression/pkg/platform/tx"
)

// App holds the assembled engine with every backend it runs on.
type App struct {
	Config config.Config
	Logger *slog.Logger

	DB       *sql.DB
	Redis    *redis.Client
	Mongo    *mongo.Client
	Producer *producer.Producer

	Aggregates aggregate.Store
	Parked     parking.Store
	Outbox     outbound.Store
	Docs       projection.Store
	Search     projection.SearchIndex
	Dedupe     gate.Store

	Writer *projection.Writer
	Relay  *outbound.Relay
	Engine *engine.Engine
	Pool   *engine.Pool
}

// Option tweaks assembly.
type Option func(*options)

type options struct {
	metrics bool
}

// WithMetrics registers the Prometheus collectors. Only one App per process
// may do so.
func WithMetrics() Option {
	return func(o *options) { o.metrics = true }
}

// Build connects every configured backend and wires the engine. Close must be
// called even when Build fails part way.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	a := &App{Config: cfg, Logger: logger}

	var err error
	if a.DB, err = postgres.Open(ctx, cfg.Postgres); err != nil {
		return a, err
	}
	if a.DB != nil {
		if err := postgres.Migrate(ctx, a.DB); err != nil {
			return a, err
		}
	}
	if a.Redis, err = redis.New(ctx, cfg.Redis); err != nil {
		return a, err
	}
	if a.Mongo, err = mongo.New(ctx, cfg.Mongo); err != nil {
		return a, err
	}
	if len(cfg.Kafka.Brokers) > 0 {
		if a.Producer, err = producer.New(cfg.Kafka.Brokers); err != nil {
			return a, err
		}
	}

	var runner txcontext.Runner
	if a.DB != nil {
		a.Aggregates = aggstore.NewPostgres(a.DB)
		a.Parked = parkingstore.NewPostgres(a.DB)
		a.Outbox = outstore.NewPostgres(a.DB)
		a.Search = projstore.NewPostgresSearch(a.DB)
		runner = txcontext.SQLRunner{DB: a.DB}
	} else {
		mem := aggstore.NewInMemory()
		a.Aggregates = mem
		a.Parked = parkingstore.NewInMemory()
		a.Outbox = outstore.NewInMemory()
		a.Search = projstore.NewInMemorySearch()
		runner = mem
	}
	if a.Mongo != nil {
		a.Docs = projstore.NewMongo(a.Mongo.DB)
	} else {
		a.Docs = projstore.NewInMemory()
	}
	if a.Redis != nil {
		a.Dedupe = gatestore.NewRedis(a.Redis.Client)
	} else {
		a.Dedupe = gatestore.NewInMemory()
	}
	logger.Info("backends selected",
		"postgres", a.DB != nil,
		"redis", a.Redis != nil,
		"mongo", a.Mongo != nil,
		"kafka", a.Producer != nil,
	)

	var (
		em *enginemetrics.Metrics
		gm *gatemetrics.Metrics
		om *outmetrics.Metrics
	)
	if o.metrics {
		em, gm, om = enginemetrics.New(), gatemetrics.New(), outmetrics.New()
	}

	a.Writer = projection.NewWriter(a.Docs, a.Search, projection.WithLogger(logger))

	var sink outbound.Sink = outbound.NewLogSink(logger)
	if a.Producer != nil {
		sink = outbound.NewKafkaSink(a.Producer, cfg.Kafka.OutboundPrefix, cfg.Kafka.DeadLetterTopic)
	}
	a.Relay = outbound.NewRelay(a.Outbox, sink,
		outbound.WithLogger(logger),
		outbound.WithMetrics(om),
		outbound.WithBreaker(circuit.New("outbox-sink", circuit.WithCooldown(cfg.Outbox.BaseBackoff))),
		outbound.WithPollInterval(cfg.Outbox.PollInterval),
		outbound.WithBatchSize(cfg.Outbox.BatchSize),
		outbound.WithMaxAttempts(cfg.Outbox.MaxAttempts),
		outbound.WithBackoff(cfg.Outbox.BaseBackoff, cfg.Outbox.MaxBackoff),
		outbound.WithPublishTimeout(cfg.Outbox.PublishTimeout),
	)

	g := gate.New(a.Dedupe,
		gate.WithLogger(logger),
		gate.WithMetrics(gm),
		gate.WithDedupeWindow(cfg.Engine.DedupeWindow),
		gate.WithHashRetention(cfg.Engine.HashRetention),
	)
	services := []engine.HandlerSource{
		prosecutionservice.New(prosecutionservice.WithLogger(logger)),
		hearingservice.New(hearingservice.WithLogger(logger)),
		identityservice.New(identityservice.WithLogger(logger)),
	}
	a.Engine, err = engine.New(a.Aggregates, g, a.Parked, a.Writer, a.Outbox, services,
		engine.WithLogger(logger),
		engine.WithMetrics(em),
		engine.WithTxRunner(runner),
		engine.WithNotifier(a.Relay),
		engine.WithCommitAttempts(cfg.Engine.CommitAttempts),
		engine.WithOrderingRetries(cfg.Engine.OrderingAttempts, cfg.Engine.OrderingBackoff),
		engine.WithYouthAge(cfg.Engine.YouthAge),
	)
	if err != nil {
		return a, fmt.Errorf("wire engine: %w", err)
	}
	a.Pool = engine.NewPool(a.Engine, cfg.Engine.Workers, cfg.Engine.QueueSize,
		engine.WithPoolLogger(logger),
		engine.WithPoolMetrics(em),
		engine.WithPoolParking(a.Parked),
	)
	return a, nil
}

// RebuildProjections replays every stored aggregate into the read models. It
// is needed when the aggregates outlive the projections, as with durable
// aggregates and in-memory read models.
func (a *App) RebuildProjections(ctx context.Context) error {
	if a.DB == nil || a.Mongo != nil {
		return nil
	}
	n, err := a.Writer.Rebuild(ctx, a.Aggregates)
	if err != nil {
		return fmt.Errorf("rebuild projections: %w", err)
	}
	a.Logger.InfoContext(ctx, "projections rebuilt", "aggregates", n)
	return nil
}

// Topics lists every topic the process reads or writes.
func (a *App) Topics() []string {
	k := a.Config.Kafka
	topics := append([]string{}, k.InboundTopics...)
	for _, t := range events.OutboundTypes {
		topics = append(topics, k.OutboundPrefix+string(t))
	}
	topics = append(topics, k.DeadLetterTopic)
	if k.CommandTopic != "" {
		topics = append(topics, k.CommandTopic)
	}
	return pstrings.DedupeAndTrim(topics)
}

// PruneDedupe drops expired dedupe markers. Redis expires its own.
func (a *App) PruneDedupe(ctx context.Context) error {
	if mem, ok := a.Dedupe.(*gatestore.InMemory); ok {
		if n := mem.Prune(ctx); n > 0 {
			a.Logger.DebugContext(ctx, "pruned dedupe markers", "count", n)
		}
	}
	return nil
}

func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Producer != nil {
		a.Producer.Close()
	}
	if a.Mongo != nil {
		errs = append(errs, a.Mongo.Close(ctx))
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
