package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"pfm/internal/api"
	"pfm/internal/core"
)

func TestEndpoint(t *testing.T) {
	tests := map[string]string{
		"/banks":                         "/banks",
		"/banks/12":                      "/banks/:id",
		"/bank-accounts/3/restore":       "/bank-accounts/:id/restore",
		"/transactions/user/7/recent":    "/transactions/user/:id/recent",
		"/bank-accounts/owner/42?page=1": "/bank-accounts/owner/:id?page=1",
	}
	for in, want := range tests {
		if got := Endpoint(in); got != want {
			t.Errorf("Endpoint(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestObserveAPI(t *testing.T) {
	m := New()
	m.ObserveAPI(http.MethodGet, "/banks/1", 200, time.Millisecond, nil)
	m.ObserveAPI(http.MethodGet, "/banks/2", 200, time.Millisecond, nil)
	m.ObserveAPI(http.MethodPost, "/banks", 0, time.Millisecond, errors.New("dial tcp: refused"))
	m.ObserveAPI(http.MethodDelete, "/banks/3", 0, time.Millisecond, &api.Error{Status: 404})

	if got := testutil.ToFloat64(m.APIRequestsTotal.WithLabelValues("GET", "/banks/:id", "200")); got != 2 {
		t.Fatalf("GET count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.APIRequestsTotal.WithLabelValues("POST", "/banks", "error")); got != 1 {
		t.Fatalf("error count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.APIRequestsTotal.WithLabelValues("DELETE", "/banks/:id", "404")); got != 1 {
		t.Fatalf("404 count = %v, want 1", got)
	}
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /banks/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := m.Middleware(mux)

	for _, path := range []string{"/banks/1", "/banks/2"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "GET /banks/{id}", "204")); got != 2 {
		t.Fatalf("route count = %v, want 2", got)
	}
}

func TestHandlerExposesGauges(t *testing.T) {
	m := New()
	m.Gauge("list_cache_entries", "Cached lists", func() float64 { return 3 })
	m.RateLimited.Inc()

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	for _, want := range []string{"pfm_list_cache_entries 3", "pfm_rate_limited_total 1", "go_goroutines"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

type nopRecorder struct{ calls int }

func (n *nopRecorder) Record(context.Context, core.Identity, string, string, int64, string, error) {
	n.calls++
}

func TestRecordingCountsOutcomes(t *testing.T) {
	m := New()
	next := &nopRecorder{}
	rec := m.Recording(next)

	rec.Record(context.Background(), core.Identity{}, core.ResourceBank, core.ActionCreate, 1, "", nil)
	rec.Record(context.Background(), core.Identity{}, core.ResourceBank, core.ActionCreate, 0, "", errors.New("boom"))

	if next.calls != 2 {
		t.Fatalf("next called %d times", next.calls)
	}
	if got := testutil.ToFloat64(m.ActivityRecorded.WithLabelValues("bank", "create", "failure")); got != 1 {
		t.Fatalf("failure count = %v", got)
	}
}
