package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/emadnahed/flakeid/internal/metrics"
)

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Metrics returns a middleware that records Prometheus metrics.
func Metrics() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)

			metrics.InFlightRequests.Inc()
			defer metrics.InFlightRequests.Dec()

			next.ServeHTTP(rw, r)

			metrics.RecordRequest(r.Method, routeLabel(r), rw.statusCode, time.Since(start))
		})
	}
}

// routeLabel prefers the pattern the mux matched, which ServeMux records on
// the request, and falls back to normalizePath.
func routeLabel(r *http.Request) string {
	if r.Pattern != "" {
		if _, path, ok := strings.Cut(r.Pattern, " "); ok {
			return path
		}
		return r.Pattern
	}
	return normalizePath(r.URL.Path)
}

// normalizePath normalizes the URL path for metrics labels.
// This prevents high cardinality from dynamic path segments.
func normalizePath(path string) string {
	switch {
	case path == "/health" || path == "/ready" || path == "/metrics":
		return path
	case path == "/docs" || path == "/docs/openapi.yaml":
		return path
	case path == "/api/v1/ids" || path == "/api/v1/snowflake-info" || path == "/api/v1/products":
		return path
	case path == "/api/v1/products/low-stock" || path == "/api/v1/products/popular":
		return path
	case strings.HasPrefix(path, "/api/v1/ids/"):
		return "/api/v1/ids/{id}"
	case strings.HasPrefix(path, "/api/v1/products/"):
		return "/api/v1/products/{id}"
	default:
		return "/other"
	}
}
