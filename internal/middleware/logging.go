package middleware

import (
	"net/http"
	"time"

	"github.com/emadnahed/flakeid/pkg/logger"
)

// Logging attaches a request-scoped logger to the context and writes one
// access log line per request. It expects RequestID and ClientIP to run
// before it.
func Logging(log *logger.Logger) Middleware {
	if log == nil {
		log = logger.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()

			reqLog := log.With(
				"request_id", GetRequestID(ctx),
				"client_ip", GetClientIP(ctx),
			)
			rw := newResponseWriter(w)

			next.ServeHTTP(rw, r.WithContext(logger.NewContext(ctx, reqLog)))

			keyvals := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.statusCode,
				"bytes", rw.written,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			switch {
			case rw.statusCode >= http.StatusInternalServerError:
				reqLog.Error("request completed", keyvals...)
			case rw.statusCode >= http.StatusBadRequest:
				reqLog.Warn("request completed", keyvals...)
			default:
				reqLog.Info("request completed", keyvals...)
			}
		})
	}
}
