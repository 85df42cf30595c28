package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"progression/pkg/platform/httputil"
	"progression/pkg/requestcontext"
)

type echoSurface struct{}

func (echoSurface) Register(r chi.Router) {
	r.Get("/echo", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"requestId": requestcontext.RequestID(r.Context()),
			"hasTime":   !requestcontext.Now(r.Context()).IsZero(),
		})
	})
}

func newRouter(checks map[string]HealthCheck) http.Handler {
	return NewRouter(Deps{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Surfaces: []Surface{echoSurface{}},
		Checks:   checks,
	})
}

func TestNewRouter(t *testing.T) {
	t.Run("surfaces see request id and time", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/echo", nil)
		req.Header.Set("X-Request-ID", "req-42")
		rr := httptest.NewRecorder()
		newRouter(nil).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "req-42", rr.Header().Get("X-Request-ID"))
		assert.JSONEq(t, `{"requestId":"req-42","hasTime":true}`, rr.Body.String())
	})

	t.Run("readiness fails when a backend is down", func(t *testing.T) {
		r := newRouter(map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		})
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})

	t.Run("readiness with healthy backends", func(t *testing.T) {
		r := newRouter(map[string]HealthCheck{"postgres": func(context.Context) error { return nil }})
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"postgres":"ok"}`, rr.Body.String())
	})
}
