package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pfm/internal/log"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var seen string
	h := NewMiddleware(nil, nil).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.HasPrefix(seen, "req_") || len(seen) != len("req_")+16 {
		t.Fatalf("unexpected request id %q", seen)
	}
	if rr.Header().Get(HeaderRequestID) != seen {
		t.Fatalf("response header %q does not match %q", rr.Header().Get(HeaderRequestID), seen)
	}
}

func TestMiddlewareKeepsUpstreamID(t *testing.T) {
	var seen string
	m := NewMiddleware(func(*http.Request) string { return "10.0.0.1" }, nil)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "upstream-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "upstream-1" {
		t.Fatalf("request id = %q, want upstream-1", seen)
	}
	if got := m.GetMetrics().TotalRequests; got != 1 {
		t.Fatalf("TotalRequests = %d, want 1", got)
	}
}

func TestMiddlewareLogsCompletion(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelInfo, Output: &buf})
	h := NewMiddleware(nil, logger).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/banks", nil)
	req.Header.Set(HeaderRequestID, "upstream-2")
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, want := range []string{"HTTP request completed", "component=trace", "request_id=upstream-2", "status_code=200"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log missing %q: %s", want, out)
		}
	}
}

func TestGenerateRequestIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := GenerateRequestID()
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
