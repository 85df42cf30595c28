// Command progressionctl operates a running deployment from the shell: it
// inspects and replays parked events, lists the outbox backlog and feeds
// envelopes straight into the engine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"progression/internal/app"
	"progression/internal/platform/config"
	"progression/internal/platform/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	log := logger.NewWithWriter(os.Stderr, cfg.LogLevel, "text")
	build := func(ctx context.Context) (*app.App, error) {
		return app.Build(ctx, cfg, log)
	}
	if err := newRootCmd(build).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
