package httpapi

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments named in spec §6, grounded on
// the client_golang promauto pattern the pack's repos use for self-registration.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal        prometheus.Counter
	BytesServedTotal     prometheus.Counter
	CacheHitsTotal        prometheus.Counter
	CacheMissesTotal      prometheus.Counter
	CacheHitRatio         prometheus.Gauge
	ActiveStreams         prometheus.Gauge
	TranscodeOpsTotal     prometheus.Counter
	ErrorsTotal           *prometheus.CounterVec
	ServerUptimeSeconds   prometheus.GaugeFunc

	startedAt time.Time

	lastCacheHits   atomic.Int64
	lastCacheMisses atomic.Int64
}

// NewMetrics builds and registers a fresh instrument set.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	startedAt := time.Now()

	m := &Metrics{
		registry: reg,
		startedAt: startedAt,
		RequestsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "hls_requests_total", Help: "Total HTTP requests served.",
		}),
		BytesServedTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "hls_bytes_served_total", Help: "Total response bytes served.",
		}),
		CacheHitsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "hls_cache_hits_total", Help: "Segment/init/playlist cache hits.",
		}),
		CacheMissesTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "hls_cache_misses_total", Help: "Segment/init/playlist cache misses.",
		}),
		CacheHitRatio: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "hls_cache_hit_ratio", Help: "Cumulative cache hit ratio.",
		}),
		ActiveStreams: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "hls_active_streams", Help: "Number of indexed sources currently registered.",
		}),
		TranscodeOpsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "hls_transcode_operations_total", Help: "Audio transcode operations performed.",
		}),
		ErrorsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hls_errors_total", Help: "Errors by kind.",
		}, []string{"kind"}),
	}
	m.ServerUptimeSeconds = promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "hls_server_uptime_seconds", Help: "Seconds since server start.",
	}, func() float64 { return time.Since(m.startedAt).Seconds() })

	return m
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RefreshCacheRatio recomputes hls_cache_hit_ratio from hit/miss counts.
func (m *Metrics) RefreshCacheRatio(hits, misses int64) {
	total := hits + misses
	if total == 0 {
		m.CacheHitRatio.Set(0)
		return
	}
	m.CacheHitRatio.Set(float64(hits) / float64(total))
}

// syncCacheCounters advances the hls_cache_hits_total / hls_cache_misses_total
// counters by the delta since the last observation of the cache's own
// cumulative (monotonic) hit/miss counts — internal/cache owns the
// authoritative counts, this just mirrors them onto real prometheus.Counters
// instead of exposing a Gauge for an always-increasing quantity.
func (m *Metrics) syncCacheCounters(hits, misses int64) {
	if prev := m.lastCacheHits.Swap(hits); hits > prev {
		m.CacheHitsTotal.Add(float64(hits - prev))
	}
	if prev := m.lastCacheMisses.Swap(misses); misses > prev {
		m.CacheMissesTotal.Add(float64(misses - prev))
	}
}
