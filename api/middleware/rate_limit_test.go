package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeRateStore struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{counts: map[string]int64{}}
}

func (f *fakeRateStore) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeRateStore) RateLimitKey(policy, subject string) string {
	return "rl:" + policy + ":" + subject
}

func TestRateLimitBlocksAfterLimit(t *testing.T) {
	store := newFakeRateStore()
	handler := RateLimit(NewRateLimitPolicy("upload", time.Minute, 2), store, nil)(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/abcxyz/upload", nil)
		req = req.WithContext(WithUserID(req.Context(), "7"))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)

		if i < 2 && resp.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200 got %d", i, resp.Code)
		}
		if i == 2 {
			if resp.Code != http.StatusTooManyRequests {
				t.Fatalf("expected 429 got %d", resp.Code)
			}
			if resp.Header().Get("Retry-After") != "60" {
				t.Fatalf("unexpected Retry-After %q", resp.Header().Get("Retry-After"))
			}
		}
	}
	if store.counts["rl:upload:user:7"] != 3 {
		t.Fatalf("expected per-user key, got %v", store.counts)
	}
}

func TestRateLimitFallsBackToClientIP(t *testing.T) {
	store := newFakeRateStore()
	handler := RateLimit(NewRateLimitPolicy("forecast", time.Minute, 5), store, nil)(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.9, 10.0.0.1")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if store.counts["rl:forecast:ip:10.0.0.9"] != 1 {
		t.Fatalf("expected ip key, got %v", store.counts)
	}
}

func TestRateLimitDisabledAndStoreErrors(t *testing.T) {
	resp := httptest.NewRecorder()
	RateLimit(NewRateLimitPolicy("upload", time.Minute, 0), newFakeRateStore(), nil)(okHandler()).
		ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("disabled policy should pass through, got %d", resp.Code)
	}

	failing := newFakeRateStore()
	failing.err = errors.New("redis down")
	resp = httptest.NewRecorder()
	RateLimit(NewRateLimitPolicy("upload", time.Minute, 1), failing, nil)(okHandler()).
		ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}
