package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/emadnahed/flakeid/internal/ratelimit"
	"github.com/emadnahed/flakeid/pkg/logger"
)

// CostFunc returns how many tokens a request spends.
type CostFunc func(r *http.Request) int

// RateLimitConfig holds configuration for the rate limit middleware.
type RateLimitConfig struct {
	// Cost defaults to one token per request.
	Cost   CostFunc
	Logger *logger.Logger
}

// RateLimitResponse is the JSON response for rate limited requests.
type RateLimitResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	RetryAfter int    `json:"retry_after"`
}

// RateLimit charges each request against the caller's budget, keyed by the
// client IP stored by ClientIP. Limiter errors let the request through.
func RateLimit(limiter ratelimit.Limiter, cfg RateLimitConfig) Middleware {
	cost := cfg.Cost
	if cost == nil {
		cost = func(*http.Request) int { return 1 }
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + GetClientIP(r.Context())
			if key == "ip:" {
				key = "ip:" + hostOnly(r.RemoteAddr)
			}

			result, err := limiter.AllowN(r.Context(), key, cost(r))
			if err != nil {
				log.Warn("rate limiter unavailable", "error", err.Error())
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

			if !result.Allowed {
				writeRateLimited(w, result.RetryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeRateLimited writes the 429 response. Retry-After is omitted when
// waiting would not help.
func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	seconds := 0
	if retryAfter > 0 {
		seconds = int(math.Ceil(retryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(RateLimitResponse{
		Error:      "rate limit exceeded",
		Code:       "RATE_LIMIT_EXCEEDED",
		RetryAfter: seconds,
	})
}
