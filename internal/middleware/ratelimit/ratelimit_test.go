package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, perMinute int) (*Limiter, *time.Time) {
	t.Helper()
	rl := NewLimiter(Config{RequestsPerMinute: perMinute})
	t.Cleanup(rl.Stop)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestAllowWithinWindow(t *testing.T) {
	rl, now := newTestLimiter(t, 3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("request %d refused", i+1)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Fatal("fourth request in window allowed")
	}
	if !rl.Allow("5.6.7.8") {
		t.Fatal("other client refused")
	}

	*now = now.Add(61 * time.Second)
	if !rl.Allow("1.2.3.4") {
		t.Fatal("request in new window refused")
	}
	if got := rl.GetMetrics(); got.TotalHits != 1 || got.ClientCount != 2 {
		t.Fatalf("unexpected metrics %+v", got)
	}
}

func TestCleanupStaleEntries(t *testing.T) {
	rl, now := newTestLimiter(t, 10)
	rl.Allow("a")
	*now = now.Add(11 * time.Minute)
	rl.Allow("b")

	if removed := rl.cleanupStaleEntries(); removed != 1 {
		t.Fatalf("removed %d, want 1", removed)
	}
	if rl.ActiveClients() != 1 {
		t.Fatalf("active clients = %d", rl.ActiveClients())
	}
}

func TestMiddlewareOnlyLimitsMutations(t *testing.T) {
	rl, _ := newTestLimiter(t, 1)
	h := rl.Middleware(func(*http.Request) string { return "ip" }, nil, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 5; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/banks", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("GET %d limited", i)
		}
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/banks", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("first POST status = %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/banks/1", nil))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second mutation status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Fatal("Retry-After not set")
	}
}
