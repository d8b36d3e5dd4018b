package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, perMinute, burst int) (*Limiter, *time.Time) {
	t.Helper()
	rl := NewLimiter(Config{RequestsPerMinute: perMinute, Burst: burst, CleanupInterval: time.Hour, IdleTimeout: time.Minute})
	t.Cleanup(rl.Stop)
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestAllowBurstThenRefill(t *testing.T) {
	rl, now := newTestLimiter(t, 60, 3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Fatal("fourth request should be limited")
	}
	if !rl.Allow("5.6.7.8") {
		t.Fatal("other clients have their own bucket")
	}

	*now = now.Add(time.Second)
	if !rl.Allow("1.2.3.4") {
		t.Fatal("one token should refill after a second at 60/min")
	}
}

func TestCleanupForgetsIdleClients(t *testing.T) {
	rl, now := newTestLimiter(t, 60, 1)
	rl.Allow("a")
	*now = now.Add(30 * time.Second)
	rl.Allow("b")
	*now = now.Add(45 * time.Second)

	if removed := rl.cleanupStaleEntries(); removed != 1 {
		t.Fatalf("expected 1 stale client removed, got %d", removed)
	}
	if rl.ActiveClients() != 1 {
		t.Fatalf("expected 1 active client, got %d", rl.ActiveClients())
	}
}

func TestMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 60, 1)
	h := rl.Middleware(func(*http.Request) string { return "k" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first request: got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	rl := NewLimiter(Config{})
	rl.Stop()
	rl.Stop()
}
