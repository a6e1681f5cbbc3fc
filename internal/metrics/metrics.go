package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login outcome label values
const (
	OutcomeSuccess        = "success"
	OutcomeInvalidInput   = "invalid_input"
	OutcomeUnauthorized   = "unauthorized"
	OutcomeForbidden      = "forbidden"
	OutcomeRateLimited    = "rate_limited"
	OutcomeInfrastructure = "infrastructure_error"
)

// Metrics holds the service's collectors and the registry they live in
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	loginAttempts *prometheus.CounterVec
	lockouts      prometheus.Counter
	sweptAttempts prometheus.Counter
}

// New builds a private registry with the Go and process collectors plus
// the HTTP and login collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latencies in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		loginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_login_attempts_total",
				Help: "Login attempts by outcome.",
			},
			[]string{"outcome"},
		),
		lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_lockouts_total",
			Help: "Accounts whose failure window reached the limit.",
		}),
		sweptAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_login_attempts_swept_total",
			Help: "Attempt log rows deleted by the retention sweeper.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.loginAttempts,
		m.lockouts,
		m.sweptAttempts,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// LoginOutcome counts one login attempt. Safe on a nil receiver.
func (m *Metrics) LoginOutcome(outcome string) {
	if m == nil {
		return
	}
	m.loginAttempts.WithLabelValues(outcome).Inc()
}

// Lockout counts one account reaching its failure limit. Safe on a nil receiver.
func (m *Metrics) Lockout() {
	if m == nil {
		return
	}
	m.lockouts.Inc()
}

// AttemptsSwept adds n deleted attempt rows. Safe on a nil receiver.
func (m *Metrics) AttemptsSwept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sweptAttempts.Add(float64(n))
}

// Instrument records in-flight count, totals and latency per chi route
// pattern. Unmatched paths share one label so clients cannot grow the
// label set.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		code := strconv.Itoa(status)

		m.httpRequestDuration.WithLabelValues(r.Method, route, code).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(r.Method, route, code).Inc()
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
