package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/clockbridge/clockbridge/internal/cache"
	"github.com/clockbridge/clockbridge/internal/metrics"
	"github.com/clockbridge/clockbridge/internal/model"
	"github.com/clockbridge/clockbridge/internal/testutil"
)

type stubLimiter struct {
	mu     sync.Mutex
	result *cache.RateLimitResult
	err    error
	ips    []string
}

func (s *stubLimiter) CheckIPRateLimit(ctx context.Context, ip string, ratePerMinute, burst int) (*cache.RateLimitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ips = append(s.ips, ip)
	return s.result, s.err
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitIP_Allowed(t *testing.T) {
	t.Parallel()

	limiter := &stubLimiter{result: &cache.RateLimitResult{Allowed: true, Remaining: 4, ResetAt: time.Now().Add(time.Second)}}
	var called bool
	handler := RateLimitIP(RateLimitConfig{
		Logger:            testutil.DiscardLogger(),
		Limiter:           limiter,
		Enabled:           true,
		RequestsPerMinute: 30,
		Burst:             5,
	})(okHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/attendance", nil)
	req.RemoteAddr = "10.1.2.3:51234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called || rec.Code != http.StatusOK {
		t.Fatalf("request should pass, status %d", rec.Code)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "4" {
		t.Errorf("X-RateLimit-Remaining = %q, want 4", got)
	}
	if len(limiter.ips) != 1 || limiter.ips[0] != "10.1.2.3" {
		t.Errorf("limiter saw %v, want [10.1.2.3]", limiter.ips)
	}
}

func TestRateLimitIP_Rejected(t *testing.T) {
	t.Parallel()

	recorder := metrics.NewInMemory()
	limiter := &stubLimiter{result: &cache.RateLimitResult{Allowed: false, RetryAfter: 2 * time.Second, ResetAt: time.Now()}}
	var called bool
	handler := RateLimitIP(RateLimitConfig{
		Logger:            testutil.DiscardLogger(),
		Limiter:           limiter,
		Metrics:           recorder,
		Enabled:           true,
		RequestsPerMinute: 30,
		Burst:             5,
	})(okHandler(&called))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))

	if called {
		t.Fatal("rejected request reached the handler")
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}

	var env model.Envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Success || env.Message != "rate limit exceeded" {
		t.Errorf("unexpected envelope: %+v", env)
	}
	if recorder.Snapshot().RequestsRejected != 1 {
		t.Errorf("RequestsRejected = %d, want 1", recorder.Snapshot().RequestsRejected)
	}
}

func TestRateLimitIP_FailOpen(t *testing.T) {
	t.Parallel()

	limiter := &stubLimiter{err: errors.New("redis: connection refused")}
	var called bool
	handler := RateLimitIP(RateLimitConfig{
		Logger:  testutil.DiscardLogger(),
		Limiter: limiter,
		Enabled: true,
	})(okHandler(&called))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/attendance", nil))

	if !called || rec.Code != http.StatusOK {
		t.Errorf("limiter failure must not block requests, status %d", rec.Code)
	}
}

func TestRateLimitIP_Disabled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  RateLimitConfig
	}{
		{"disabled", RateLimitConfig{Limiter: &stubLimiter{err: errors.New("unused")}}},
		{"no_limiter", RateLimitConfig{Enabled: true}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var called bool
			handler := RateLimitIP(tt.cfg)(okHandler(&called))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/attendance", nil))

			if !called {
				t.Error("handler not called")
			}
			if rec.Header().Get("X-RateLimit-Limit") != "" {
				t.Error("rate limit headers set while disabled")
			}
		})
	}
}
