package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exports gateway metrics to Prometheus. It implements core.MetricsCollector.
type Collector struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	catalogFetches   *prometheus.CounterVec
	catalogDuration  *prometheus.HistogramVec
	cacheEvents      *prometheus.CounterVec
	admissionWait    prometheus.Histogram
	admissionDelayed prometheus.Counter
}

// NewCollector creates a collector on its own registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poe2openai_http_requests_total",
				Help: "Total HTTP requests by route and status code",
			},
			[]string{"route", "status"},
		),

		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "poe2openai_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),

		catalogFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poe2openai_catalog_fetches_total",
				Help: "Upstream catalog fetches by retrieval mode and result",
			},
			[]string{"mode", "result"},
		),

		catalogDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "poe2openai_catalog_fetch_duration_seconds",
				Help:    "Upstream catalog fetch latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
			},
			[]string{"mode"},
		),

		cacheEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "poe2openai_catalog_cache_events_total",
				Help: "Catalog cache lookups by outcome (hit, miss, shared)",
			},
			[]string{"event"},
		),

		admissionWait: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "poe2openai_admission_wait_seconds",
				Help:    "Time callers spent delayed by the global admission gate",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
			},
		),

		admissionDelayed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "poe2openai_admission_delayed_total",
				Help: "Number of calls the admission gate delayed",
			},
		),
	}
}

// RecordHTTPRequest records one served request.
func (c *Collector) RecordHTTPRequest(route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordCatalogFetch records one upstream catalog call.
func (c *Collector) RecordCatalogFetch(mode string, err error, duration time.Duration) {
	result := "success"
	if err != nil {
		result = "error"
	}
	c.catalogFetches.WithLabelValues(mode, result).Inc()
	if duration > 0 {
		c.catalogDuration.WithLabelValues(mode).Observe(duration.Seconds())
	}
}

// RecordCacheHit records a fast-path cache read.
func (c *Collector) RecordCacheHit() {
	c.cacheEvents.WithLabelValues("hit").Inc()
}

// RecordCacheMiss records a lookup that triggered an upstream fetch.
func (c *Collector) RecordCacheMiss() {
	c.cacheEvents.WithLabelValues("miss").Inc()
}

// RecordCacheShared records a waiter that adopted another caller's fetch result.
func (c *Collector) RecordCacheShared() {
	c.cacheEvents.WithLabelValues("shared").Inc()
}

// RecordAdmissionWait records time spent in the admission gate.
func (c *Collector) RecordAdmissionWait(duration time.Duration) {
	c.admissionWait.Observe(duration.Seconds())
	if duration > time.Millisecond {
		c.admissionDelayed.Inc()
	}
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
