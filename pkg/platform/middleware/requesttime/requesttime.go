// Package requesttime provides middleware for request-scoped time.
// Every operation within one HTTP request sees the same "now", so derived
// values such as custody days spent are consistent within a response.
package requesttime

import (
	"net/http"
	"time"

	"progression/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request
// and stores it in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
