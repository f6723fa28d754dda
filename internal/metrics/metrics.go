// Package metrics exposes Prometheus collectors for the mock server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mockserver"

// Metrics holds the server's collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	generation    *prometheus.CounterVec
	mocks         prometheus.Gauge
	configChanges *prometheus.CounterVec
	adminRequests *prometheus.CounterVec
}

// New registers all collectors on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Requests served by the mock surface",
			},
			[]string{"method", "matched", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Time to answer a mock request, including configured delays",
				Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"matched"},
		),
		generation: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_errors_total",
				Help:      "Dynamic response generations that fell back to the static response",
			},
			[]string{"mock_id"},
		),
		mocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mocks",
			Help:      "Registered mocks",
		}),
		configChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_changes_total",
				Help:      "Mock registrations, updates and deletions",
			},
			[]string{"operation", "result"},
		),
		adminRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "admin_requests_total",
				Help:      "Requests to the admin API",
			},
			[]string{"route", "status"},
		),
	}

	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.generation,
		m.mocks,
		m.configChanges,
		m.adminRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying gatherer
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRequest records one request against the mock surface
func (m *Metrics) ObserveRequest(method string, matched bool, status int, d time.Duration) {
	if m == nil {
		return
	}
	matchedLabel := strconv.FormatBool(matched)
	m.requests.WithLabelValues(method, matchedLabel, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(matchedLabel).Observe(d.Seconds())
}

// GenerationError counts a fallback to the static response
func (m *Metrics) GenerationError(mockID string) {
	if m == nil {
		return
	}
	m.generation.WithLabelValues(mockID).Inc()
}

// SetMockCount updates the registered mock gauge
func (m *Metrics) SetMockCount(n int) {
	if m == nil {
		return
	}
	m.mocks.Set(float64(n))
}

// ConfigChange counts an admin mutation. result is "ok", "invalid",
// "conflict", "not_found" or "error".
func (m *Metrics) ConfigChange(operation, result string) {
	if m == nil {
		return
	}
	m.configChanges.WithLabelValues(operation, result).Inc()
}

// Middleware counts admin API requests by route template
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.adminRequests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
