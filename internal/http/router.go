package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"progression/internal/platform/metrics"
	"progression/internal/platform/middleware"
	dErrors "progression/pkg/domain-errors"
	"progression/pkg/platform/httputil"
	"progression/pkg/platform/middleware/metadata"
	"progression/pkg/platform/middleware/requesttime"
)

// Surface registers its routes on the router. The command and query handlers
// both satisfy it.
type Surface interface {
	Register(r chi.Router)
}

// HealthCheck reports whether one backend is reachable.
type HealthCheck func(ctx context.Context) error

// Deps is what the router needs from main.
type Deps struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Surfaces []Surface
	Checks   map[string]HealthCheck
}

// NewRouter wires the middleware chain, the operational endpoints and every
// API surface. Handlers stay thin and delegate to services.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(metadata.RequestID)
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger, deps.Metrics))
	r.Use(requesttime.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readiness(deps.Checks))
	r.Handle("/metrics", promhttp.Handler())

	for _, s := range deps.Surfaces {
		s.Register(r)
	}
	return r
}

func readiness(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{}
		healthy := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status[name] = err.Error()
				healthy = false
				continue
			}
			status[name] = "ok"
		}
		if !healthy {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "backend not ready"))
			return
		}
		httputil.WriteJSON(w, http.StatusOK, status)
	}
}
