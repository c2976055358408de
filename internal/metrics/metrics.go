// Package metrics exposes Prometheus metrics for the web front end: calls
// made to the finance API, requests served, and a few live gauges.
package metrics

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pfm/internal/api"
)

const namespace = "pfm"

var numericSegment = regexp.MustCompile(`/\d+`)

// Metrics owns its registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	ActivityRecorded *prometheus.CounterVec
	RateLimited      prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		APIRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Calls made to the finance API",
			},
			[]string{"method", "endpoint", "status"},
		),
		APIRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "Latency of calls made to the finance API",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Requests served by the web front end",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Latency of requests served by the web front end",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		ActivityRecorded: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "activity_recorded_total",
				Help:      "Mutations journaled, by resource and outcome",
			},
			[]string{"resource", "action", "outcome"},
		),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Mutating requests refused by the rate limiter",
		}),
	}
}

// Registry is where every pfm collector lives.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Gauge registers a gauge read from fn at scrape time, e.g. cache sizes.
func (m *Metrics) Gauge(name, help string, fn func() float64) {
	promauto.With(m.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn)
}

// Endpoint folds numeric path segments so /banks/7 and /banks/8 share a series.
func Endpoint(path string) string {
	return numericSegment.ReplaceAllString(path, "/:id")
}

// ObserveAPI is an api.Observer.
func (m *Metrics) ObserveAPI(method, path string, status int, elapsed time.Duration, err error) {
	label := strconv.Itoa(status)
	if status == 0 {
		label = "error"
		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			label = strconv.Itoa(apiErr.Status)
		}
	}
	endpoint := Endpoint(path)
	m.APIRequestsTotal.WithLabelValues(method, endpoint, label).Inc()
	m.APIRequestDuration.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}


// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records every request under the route pattern the mux matched.
// It must wrap the mux directly so the pattern is visible.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
