package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/emadnahed/flakeid/internal/ratelimit"
)

// MockLimiter is a mock implementation of ratelimit.Limiter.
type MockLimiter struct {
	mock.Mock
}

func (m *MockLimiter) AllowN(ctx context.Context, key string, n int) (*ratelimit.Result, error) {
	args := m.Called(ctx, key, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ratelimit.Result), args.Error(1)
}

func (m *MockLimiter) Reset(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockLimiter) Close() error {
	return m.Called().Error(0)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit(t *testing.T) {
	t.Run("allowed request carries headers", func(t *testing.T) {
		limiter := new(MockLimiter)
		limiter.On("AllowN", mock.Anything, "ip:192.168.1.1", 1).
			Return(&ratelimit.Result{Allowed: true, Remaining: 9, Limit: 10}, nil)

		handler := New(ClientIP(false, nil), RateLimit(limiter, RateLimitConfig{})).Then(okHandler())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "9", rec.Header().Get("X-RateLimit-Remaining"))
		limiter.AssertExpectations(t)
	})

	t.Run("cost function decides the charge", func(t *testing.T) {
		limiter := new(MockLimiter)
		limiter.On("AllowN", mock.Anything, mock.Anything, 250).
			Return(&ratelimit.Result{Allowed: true, Limit: 1000, Remaining: 750}, nil)

		cost := func(r *http.Request) int { return 250 }
		handler := RateLimit(limiter, RateLimitConfig{Cost: cost})(okHandler())
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/ids?count=250", nil))

		limiter.AssertExpectations(t)
	})

	t.Run("denied request gets 429", func(t *testing.T) {
		limiter := new(MockLimiter)
		limiter.On("AllowN", mock.Anything, mock.Anything, 1).
			Return(&ratelimit.Result{Allowed: false, Limit: 10, RetryAfter: 1500 * time.Millisecond}, nil)

		rec := httptest.NewRecorder()
		RateLimit(limiter, RateLimitConfig{})(okHandler()).
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("Retry-After"))

		var resp RateLimitResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "RATE_LIMIT_EXCEEDED", resp.Code)
		assert.Equal(t, 2, resp.RetryAfter)
	})

	t.Run("oversized cost has no Retry-After", func(t *testing.T) {
		limiter := new(MockLimiter)
		limiter.On("AllowN", mock.Anything, mock.Anything, mock.Anything).
			Return(&ratelimit.Result{Allowed: false, Limit: 10, Remaining: 10}, nil)

		rec := httptest.NewRecorder()
		RateLimit(limiter, RateLimitConfig{})(okHandler()).
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Empty(t, rec.Header().Get("Retry-After"))
	})

	t.Run("limiter error fails open", func(t *testing.T) {
		limiter := new(MockLimiter)
		limiter.On("AllowN", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("limiter down"))

		rec := httptest.NewRecorder()
		RateLimit(limiter, RateLimitConfig{})(okHandler()).
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("works with the memory limiter", func(t *testing.T) {
		limiter := ratelimit.NewMemoryLimiter(ratelimit.Config{Rate: 0.001, Burst: 2})
		defer limiter.Close()

		handler := New(ClientIP(false, nil), RateLimit(limiter, RateLimitConfig{})).Then(okHandler())
		codes := make([]int, 0, 3)
		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "203.0.113.5:80"
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			codes = append(codes, rec.Code)
		}
		assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	})
}
