package bridge

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the router's collectors on a private registry, so that
// several bridges in one process (tests, restarts) never collide on the
// global one.
type Metrics struct {
	registry *prometheus.Registry

	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

// NewMetrics creates and registers the router metrics plus Go runtime
// collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devbridge_requests_total",
				Help: "Requests handled by the bridge, by endpoint and outcome.",
			},
			[]string{"endpoint", "outcome"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "devbridge_request_duration_seconds",
				Help:    "Request handling latency by endpoint.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "devbridge_requests_in_flight",
			Help: "Requests currently being handled.",
		}),
	}

	m.registry.MustRegister(
		m.Requests,
		m.Duration,
		m.InFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// middleware records one observation per request. The outcome is the
// error kind set by the handler, or "ok".
func (m *Metrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.InFlight.Inc()
		start := time.Now()

		c.Next()

		m.InFlight.Dec()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.Requests.WithLabelValues(endpoint, outcome(c)).Inc()
		m.Duration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}
