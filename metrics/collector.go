// Package metrics exposes Prometheus metrics for hook lifecycle phases and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Path is where Handler is mounted.
const Path = "/metrics"

// Collector holds the service metrics on its own registry so several services
// can live in one test binary.
type Collector struct {
	registry *prometheus.Registry

	// HookSetupDuration tracks setup latency per hook and result
	HookSetupDuration *prometheus.HistogramVec

	// HookTeardownFailures counts swallowed teardown failures per hook
	HookTeardownFailures *prometheus.CounterVec

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewCollector creates a collector for service. Go runtime and process
// collectors are registered alongside.
func NewCollector(service string) *Collector {
	reg := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	c := &Collector{
		registry: reg,
		HookSetupDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "moneykeeper_hook_setup_duration_seconds",
				Help:        "Hook setup duration in seconds",
				ConstLabels: constLabels,
				Buckets:     []float64{0.005, 0.05, 0.25, 1, 5, 15, 30},
			},
			[]string{"hook", "result"},
		),
		HookTeardownFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "moneykeeper_hook_teardown_failures_total",
				Help:        "Hook teardown failures",
				ConstLabels: constLabels,
			},
			[]string{"hook"},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "moneykeeper_http_requests_total",
				Help:        "HTTP requests by method, route and status",
				ConstLabels: constLabels,
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "moneykeeper_http_request_duration_seconds",
				Help:        "HTTP request duration in seconds",
				ConstLabels: constLabels,
				Buckets:     prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	reg.MustRegister(
		c.HookSetupDuration,
		c.HookTeardownFailures,
		c.RequestsTotal,
		c.RequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// SetupDone records a hook setup.
func (c *Collector) SetupDone(hook string, took time.Duration, err error) {
	c.HookSetupDuration.WithLabelValues(hook, result(err)).Observe(took.Seconds())
}

// TeardownDone records a hook teardown. Only failures are counted.
func (c *Collector) TeardownDone(hook string, _ time.Duration, err error) {
	if err != nil {
		c.HookTeardownFailures.WithLabelValues(hook).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Middleware records request count and latency. The route label is the chi
// route pattern, so path parameters do not explode cardinality.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(ww, r)

		route := routePattern(r)
		c.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.status)).Inc()
		c.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
