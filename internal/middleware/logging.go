// Package middleware provides the HTTP middleware chain wrapping every
// route: CORS, access logging, metrics, and panic recovery into the error
// envelope.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/catalystcommunity/enginectl/internal/metrics"
)

// statusResponseWriter wraps http.ResponseWriter to capture the status code
// for logging and metrics after the handler returns.
type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// AccessLog logs and records metrics for every request, keyed by the
// matched route template (set by gorilla/mux before the handler runs).
func AccessLog(routeLabel func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sw, r)

			duration := time.Since(start).Seconds()
			route := routeLabel(r)
			statusStr := strconv.Itoa(sw.statusCode)

			metrics.RecordAPIRequest(r.Method, route, statusStr)
			metrics.RecordAPIRequestDuration(r.Method, route, duration)

			logging.Log.
				WithField("method", r.Method).
				WithField("path", r.URL.Path).
				WithField("status", sw.statusCode).
				WithField("duration_ms", duration*1000).
				Debug("handled request")
		})
	}
}

// Recover converts a panicking handler into a 500 error envelope instead of
// crashing the server, matching the handler-boundary error policy (spec §7
// "programmer error -> 500 with generic message, fully logged").
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.Log.WithField("panic", rec).WithField("path", r.URL.Path).Error("handler panicked")
				WriteError(w, http.StatusInternalServerError, "Internal server error", "")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
