package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, perMinute int) (*Limiter, *time.Time) {
	t.Helper()
	rl := NewLimiter(Config{RequestsPerMinute: perMinute, CleanupInterval: time.Hour})
	t.Cleanup(rl.Stop)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestLimiterWindow(t *testing.T) {
	rl, now := newTestLimiter(t, 3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("user:1") {
			t.Fatalf("request %d should pass", i+1)
		}
	}
	if rl.Allow("user:1") {
		t.Fatal("fourth request in the window should be limited")
	}
	if !rl.Allow("user:2") {
		t.Error("other callers have their own window")
	}
	if d := rl.RetryAfter("user:1"); d != time.Minute {
		t.Errorf("RetryAfter = %v, want 1m", d)
	}

	*now = now.Add(time.Minute)
	if !rl.Allow("user:1") {
		t.Error("window should reset after a minute")
	}
	if m := rl.GetMetrics(); m.Rejected != 1 || m.ClientCount != 2 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestLimiterCleanup(t *testing.T) {
	rl, now := newTestLimiter(t, 5)
	rl.Allow("old")
	*now = now.Add(11 * time.Minute)
	rl.Allow("fresh")

	rl.cleanupStaleEntries()
	if m := rl.GetMetrics(); m.ClientCount != 1 {
		t.Errorf("client count = %d, want 1", m.ClientCount)
	}
}

func TestLimiterDefaults(t *testing.T) {
	rl := NewLimiter(Config{})
	defer rl.Stop()
	if rl.requestsPerMinute != DefaultConfig().RequestsPerMinute {
		t.Errorf("requestsPerMinute = %d", rl.requestsPerMinute)
	}
	rl.Stop()
}

func TestMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 1)
	h := rl.Middleware(
		func(r *http.Request) string { return r.Header.Get("X-User-ID") },
		nil,
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
		req.Header.Set("X-User-ID", "7")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := send(); rec.Code != http.StatusNoContent {
		t.Fatalf("first status = %d", rec.Code)
	}
	rec := send()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "61" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
}
