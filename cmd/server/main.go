package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"progression/internal/app"
	commandhandler "progression/internal/command/handler"
	"progression/internal/engine"
	httpapi "progression/internal/http"
	"progression/internal/ingest"
	"progression/internal/platform/config"
	"progression/internal/platform/httpserver"
	"progression/internal/platform/kafka/admin"
	"progression/internal/platform/kafka/consumer"
	"progression/internal/platform/logger"
	"progression/internal/platform/metrics"
	"progression/internal/platform/scheduler"
	queryhandler "progression/internal/query/handler"
	queryservice "progression/internal/query/service"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("progression stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	a, err := app.Build(ctx, cfg, log, app.WithMetrics())
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			log.Warn("closing backends", "error", err)
		}
	}()
	if err != nil {
		return err
	}
	if err := a.RebuildProjections(ctx); err != nil {
		return err
	}

	var cons *consumer.Consumer
	if a.Producer != nil {
		if cfg.Kafka.ProvisionTopics {
			if err := admin.EnsureTopics(ctx, a.Producer.Client(), cfg.Kafka.TopicPartitions, cfg.Kafka.ReplicationFactor, a.Topics()...); err != nil {
				return err
			}
		}
		router := ingest.NewRouter(log, nil)
		router.Register(ingest.NewEnvelopeHandler(a.Pool, log), cfg.Kafka.InboundTopics...)
		cons, err = consumer.New(consumer.Config{
			Brokers: cfg.Kafka.Brokers,
			Group:   cfg.Kafka.ConsumerGroup,
			Topics:  cfg.Kafka.InboundTopics,
		}, router, consumer.WithLogger(log))
		if err != nil {
			return err
		}
	}

	// Commands go through the command topic when there is a broker so they are
	// ordered with the rest of the inbound stream.
	var submitter commandhandler.Submitter = a.Pool
	if a.Producer != nil && cfg.Kafka.CommandTopic != "" {
		submitter = ingest.NewCommandPublisher(a.Producer, cfg.Kafka.CommandTopic)
	}

	checks := map[string]httpapi.HealthCheck{}
	if a.DB != nil {
		checks["postgres"] = a.DB.PingContext
	}
	if a.Redis != nil {
		checks["redis"] = a.Redis.Health
	}
	if a.Mongo != nil {
		checks["mongo"] = a.Mongo.Health
	}
	if a.Producer != nil {
		checks["kafka"] = a.Producer.Ping
	}
	handler := httpapi.NewRouter(httpapi.Deps{
		Logger:  log,
		Metrics: metrics.New(),
		Surfaces: []httpapi.Surface{
			commandhandler.New(submitter, a.Engine, log),
			queryhandler.New(queryservice.New(a.Docs, a.Search, a.Parked, queryservice.WithLogger(log)), log),
		},
		Checks: checks,
	})
	srv := httpserver.New(cfg.Server.Addr, handler)

	sched := scheduler.New(scheduler.WithLogger(log))
	if err := registerJobs(sched, cfg, a); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Pool.Run(gctx) })
	g.Go(func() error { return a.Relay.Run(gctx) })
	g.Go(func() error { return sched.Run(gctx) })
	if cons != nil {
		g.Go(func() error { return cons.Run(gctx) })
	}
	g.Go(func() error {
		log.Info("starting progression", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func registerJobs(sched *scheduler.Scheduler, cfg config.Config, a *app.App) error {
	if err := sched.Register("parked-replay", cfg.Scheduler.ParkedReplaySpec, func(ctx context.Context) error {
		report, err := a.Engine.ReplayParked(ctx, engine.ReplayFilter{})
		if err != nil {
			return err
		}
		if report.Replayed > 0 {
			a.Logger.InfoContext(ctx, "parked events replayed",
				"replayed", report.Replayed, "resolved", report.Resolved,
				"still_parked", report.StillParked, "failed", report.Failed)
		}
		return nil
	}); err != nil {
		return err
	}
	if err := sched.Register("dedupe-prune", cfg.Scheduler.DedupePruneSpec, a.PruneDedupe); err != nil {
		return err
	}
	return sched.Register("outbox-sweep", cfg.Scheduler.OutboxSweepSpec, a.Relay.Sweep)
}
