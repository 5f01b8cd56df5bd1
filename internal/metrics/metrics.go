// Package metrics provides Prometheus instrumentation for the image
// server: request counts/latency by API version and status, cache
// hit/miss/ratio per tier, active in-flight requests, and compression
// effectiveness on the variant cache.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
)

// Metrics holds every registered collector for one server process.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	cacheHitsTotal   *prometheus.CounterVec
	cacheMissesTotal *prometheus.CounterVec
	cacheHitRatio    *prometheus.GaugeVec

	activeRequests prometheus.Gauge
	errorsTotal    *prometheus.CounterVec

	cacheCompressionRatio        *prometheus.HistogramVec
	cacheBytesSavedTotal         *prometheus.CounterVec
	cacheDecompressionErrorTotal *prometheus.CounterVec

	logger      *zap.Logger
	httpHandler func(*fasthttp.RequestCtx)
}

// New creates a Metrics instance registered against the default
// Prometheus registerer.
func New(namespace string, logger *zap.Logger) *Metrics {
	return NewWithRegistry(namespace, prometheus.DefaultRegisterer, logger)
}

// NewWithRegistry creates a Metrics instance against a caller-supplied
// registry, so tests don't collide on prometheus.DefaultRegisterer.
func NewWithRegistry(namespace string, registerer prometheus.Registerer, logger *zap.Logger) *Metrics {
	m := &Metrics{logger: logger}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "image",
			Name:      "requests_total",
			Help:      "Total number of image/info requests processed",
		},
		[]string{"api_version", "kind", "status"}, // kind: image, info, dzi
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "image",
			Name:      "request_duration_seconds",
			Help:      "Time taken to process image/info requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"api_version", "kind", "status"},
	)

	m.cacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"tier"}, // tier: variant, info, heap_info
	)

	m.cacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"tier"},
	)

	m.cacheHitRatio = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hit_ratio",
			Help:      "Cache hit ratio (0-1) for each tier",
		},
		[]string{"tier"},
	)

	m.activeRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "image",
			Name:      "active_requests",
			Help:      "Number of currently in-flight image/info requests",
		},
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "image",
			Name:      "errors_total",
			Help:      "Total number of errors by IIIF error kind",
		},
		[]string{"kind"},
	)

	m.cacheCompressionRatio = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "compression_ratio",
			Help:      "Compression ratio (compressed_size / original_size) for variant cache writes",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
		[]string{"algorithm"},
	)

	m.cacheBytesSavedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "bytes_saved_total",
			Help:      "Total bytes saved by variant cache compression",
		},
		[]string{"algorithm"},
	)

	m.cacheDecompressionErrorTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "decompression_errors_total",
			Help:      "Total decompression failures reading a cached variant",
		},
		[]string{"algorithm"},
	)

	registerer.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.cacheHitsTotal,
		m.cacheMissesTotal,
		m.cacheHitRatio,
		m.activeRequests,
		m.errorsTotal,
		m.cacheCompressionRatio,
		m.cacheBytesSavedTotal,
		m.cacheDecompressionErrorTotal,
	)

	gatherer, ok := registerer.(prometheus.Gatherer)
	if !ok {
		gatherer = prometheus.DefaultGatherer
	}
	m.httpHandler = fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	logger.Debug("metrics initialized")
	return m
}

// RecordRequest records one completed request with its timing.
func (m *Metrics) RecordRequest(apiVersion, kind, status string, duration time.Duration) {
	m.requestsTotal.WithLabelValues(apiVersion, kind, status).Inc()
	m.requestDuration.WithLabelValues(apiVersion, kind, status).Observe(duration.Seconds())
}

// RecordCacheHit records a cache hit for tier and refreshes its ratio.
func (m *Metrics) RecordCacheHit(tier string) {
	m.cacheHitsTotal.WithLabelValues(tier).Inc()
	m.updateCacheHitRatio(tier)
}

// RecordCacheMiss records a cache miss for tier and refreshes its ratio.
func (m *Metrics) RecordCacheMiss(tier string) {
	m.cacheMissesTotal.WithLabelValues(tier).Inc()
	m.updateCacheHitRatio(tier)
}

func (m *Metrics) updateCacheHitRatio(tier string) {
	hits := m.counterValue(m.cacheHitsTotal.WithLabelValues(tier))
	misses := m.counterValue(m.cacheMissesTotal.WithLabelValues(tier))
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.WithLabelValues(tier).Set(hits / total)
	}
}

func (m *Metrics) counterValue(counter prometheus.Counter) float64 {
	metric := &dto.Metric{}
	if err := counter.Write(metric); err != nil {
		m.logger.Warn("failed to read counter value", zap.Error(err))
		return 0
	}
	return metric.GetCounter().GetValue()
}

// RecordError records an error by its IIIF error kind (e.g. "not_found").
func (m *Metrics) RecordError(kind string) {
	m.errorsTotal.WithLabelValues(kind).Inc()
}

// IncActiveRequests increments the in-flight request gauge.
func (m *Metrics) IncActiveRequests() { m.activeRequests.Inc() }

// DecActiveRequests decrements the in-flight request gauge.
func (m *Metrics) DecActiveRequests() { m.activeRequests.Dec() }

// RecordCompressionRatio records the compressed/original size ratio of a
// variant cache write.
func (m *Metrics) RecordCompressionRatio(algorithm string, ratio float64) {
	m.cacheCompressionRatio.WithLabelValues(algorithm).Observe(ratio)
}

// RecordBytesSaved records bytes saved by variant cache compression.
func (m *Metrics) RecordBytesSaved(algorithm string, bytesSaved int64) {
	if bytesSaved > 0 {
		m.cacheBytesSavedTotal.WithLabelValues(algorithm).Add(float64(bytesSaved))
	}
}

// RecordDecompressionError records a failed variant cache decompression,
// which forces a cache miss and re-render.
func (m *Metrics) RecordDecompressionError(algorithm string) {
	m.cacheDecompressionErrorTotal.WithLabelValues(algorithm).Inc()
}

// ServeHTTP exposes the registered metrics in the Prometheus exposition
// format.
func (m *Metrics) ServeHTTP(ctx *fasthttp.RequestCtx) {
	m.httpHandler(ctx)
}
