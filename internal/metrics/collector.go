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

const unmatchedRoute = "unmatched"

// Collector owns the Prometheus registry and the application metrics.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	Claims           *prometheus.CounterVec
	CapsulesSealed   prometheus.Counter
	CapsulesUnlocked prometheus.Counter
	KeysImported     prometheus.Counter
	StreamClients    prometheus.Gauge
}

// NewCollector creates a collector with its own registry under namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	collector := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Claims: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tile_claims_total",
				Help:      "Tile claim attempts by outcome",
			},
			[]string{"outcome"},
		),
		CapsulesSealed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "capsules_sealed_total",
				Help:      "Total number of time capsules sealed",
			},
		),
		CapsulesUnlocked: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "capsules_unlocked_total",
				Help:      "Total number of time capsules observed unlocking",
			},
		),
		KeysImported: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "license_keys_imported_total",
				Help:      "Total number of license keys added to the store",
			},
		),
		StreamClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stream_clients",
				Help:      "Currently connected event stream clients",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collector.HTTPRequests,
		collector.HTTPDuration,
		collector.Claims,
		collector.CapsulesSealed,
		collector.CapsulesUnlocked,
		collector.KeysImported,
		collector.StreamClients,
	)

	return collector
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Middleware records request counts and latency keyed by the matched route.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ginContext *gin.Context) {
		if c == nil {
			ginContext.Next()
			return
		}
		started := time.Now()
		ginContext.Next()

		route := ginContext.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		method := ginContext.Request.Method
		status := strconv.Itoa(ginContext.Writer.Status())
		c.HTTPRequests.WithLabelValues(method, route, status).Inc()
		c.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(started).Seconds())
	}
}

// RecordClaim counts a claim attempt under outcome.
func (c *Collector) RecordClaim(outcome string) {
	if c == nil {
		return
	}
	c.Claims.WithLabelValues(outcome).Inc()
}

// RecordCapsuleSealed counts a sealed capsule.
func (c *Collector) RecordCapsuleSealed() {
	if c == nil {
		return
	}
	c.CapsulesSealed.Inc()
}

// RecordCapsulesUnlocked counts capsules reported by the sweeper.
func (c *Collector) RecordCapsulesUnlocked(count int) {
	if c == nil || count <= 0 {
		return
	}
	c.CapsulesUnlocked.Add(float64(count))
}

// RecordKeysImported counts keys added to the store.
func (c *Collector) RecordKeysImported(count int) {
	if c == nil || count <= 0 {
		return
	}
	c.KeysImported.Add(float64(count))
}

// StreamOpened tracks a connected stream client. The returned func releases it.
func (c *Collector) StreamOpened() func() {
	if c == nil {
		return func() {}
	}
	c.StreamClients.Inc()
	return c.StreamClients.Dec
}
