package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

func TestMetrics_Recording(t *testing.T) {
	logger := zap.NewNop()
	registry := prometheus.NewRegistry()
	m := NewWithRegistry("iiifcore", registry, logger)

	m.RecordRequest("v2", "image", "success", time.Millisecond*150)
	m.RecordRequest("v3", "info", "not_found", time.Millisecond*5)

	m.RecordCacheHit("variant")
	m.RecordCacheMiss("info")

	m.RecordError("not_found")

	m.IncActiveRequests()
	m.IncActiveRequests()
	m.DecActiveRequests()

	m.RecordCompressionRatio("zstd", 0.4)
	m.RecordBytesSaved("zstd", 2048)
	m.RecordDecompressionError("s2")

	assert.NotNil(t, m)
}

func TestMetrics_HTTPEndpoint(t *testing.T) {
	logger := zap.NewNop()
	registry := prometheus.NewRegistry()
	m := NewWithRegistry("iiifcore", registry, logger)

	m.RecordRequest("v2", "image", "success", time.Millisecond*100)
	m.RecordCacheHit("variant")

	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetRequestURI("/metrics")
	ctx.Request.Header.SetMethod("GET")

	m.ServeHTTP(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Header.Peek("Content-Type")), "text/plain")

	body := string(ctx.Response.Body())
	assert.Contains(t, body, "iiifcore_image_requests_total")
	assert.Contains(t, body, "iiifcore_cache_hits_total")
	assert.Contains(t, body, "# HELP")
	assert.Contains(t, body, "# TYPE")
}

func TestMetrics_CacheHitRatioZeroWhenNoSamples(t *testing.T) {
	logger := zap.NewNop()
	registry := prometheus.NewRegistry()
	m := NewWithRegistry("iiifcore", registry, logger)
	// first sample for this tier (a hit, no misses yet); updateCacheHitRatio must not panic
	m.RecordCacheHit("heap_info")
	assert.NotNil(t, m)
}
