package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeLimiter struct {
	counts map[string]int64
	scopes []string
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{counts: map[string]int64{}}
}

func (f *fakeLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	f.counts[scope]++
	f.scopes = append(f.scopes, scope)
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func TestRateLimitBlocksAfterLimit(t *testing.T) {
	store := newFakeLimiter()
	policy := RateLimitPolicy{Name: "verify", Limit: 2, Window: time.Minute}
	handler := RateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/cart/verify-payment", nil)
		req = req.WithContext(WithUserID(req.Context(), "user-1"))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		codes = append(codes, resp.Code)
		if i == 2 && resp.Header().Get("Retry-After") != "60" {
			t.Fatalf("expected Retry-After 60 got %q", resp.Header().Get("Retry-After"))
		}
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("expected first two requests allowed, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on third request got %d", codes[2])
	}
	if store.scopes[0] != "verify:user-1" {
		t.Fatalf("unexpected scope %s", store.scopes[0])
	}
}

func TestRateLimitFallsBackToClientIP(t *testing.T) {
	store := newFakeLimiter()
	policy := RateLimitPolicy{Name: "verify", Limit: 5, Window: time.Minute}
	handler := RateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if len(store.scopes) != 1 || store.scopes[0] != "verify:203.0.113.9" {
		t.Fatalf("unexpected scopes %v", store.scopes)
	}
}

func TestRateLimitDisabledPassesThrough(t *testing.T) {
	store := newFakeLimiter()
	handler := RateLimit(RateLimitPolicy{Name: "verify"}, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", resp.Code)
	}
	if len(store.scopes) != 0 {
		t.Fatalf("limiter should not be consulted when disabled")
	}
}
