package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/oncall-board-api/internal/models"
)

// Intent outcomes recorded by ObserveIntent.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	intents         *prometheus.CounterVec
	batchDuration   *prometheus.HistogramVec
	broadcasts      *prometheus.CounterVec
	viewers         *prometheus.GaugeVec

	requestCount         uint64
	requestDurationTotal uint64
	cacheHitCount        uint64
	cacheMissCount       uint64
	acceptedCount        uint64
	rejectedCount        uint64
	broadcastSent        uint64
	broadcastFailed      uint64

	viewerMu     sync.Mutex
	viewerCounts map[string]int64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "schedule_cache_latency_seconds",
		Help:    "Latency of schedule cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schedule_cache_hits_total",
		Help: "Total schedule cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schedule_cache_misses_total",
		Help: "Total schedule cache misses",
	})

	intents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "availability_intents_total",
		Help: "Claim and unclaim intents by track, kind and outcome",
	}, []string{"track", "kind", "outcome"})

	batchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "availability_batch_duration_seconds",
		Help:    "Time spent applying one availability batch",
		Buckets: prometheus.DefBuckets,
	}, []string{"track"})

	broadcasts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_broadcasts_total",
		Help: "Change notifications published by track and result",
	}, []string{"track", "result"})

	viewers := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "schedule_viewers",
		Help: "Connected websocket viewers per topic on this instance",
	}, []string{"topic"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHits, cacheMisses,
		intents, batchDuration, broadcasts, viewers, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		intents:         intents,
		batchDuration:   batchDuration,
		broadcasts:      broadcasts,
		viewers:         viewers,
		viewerCounts:    make(map[string]int64),
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records a schedule cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
		return
	}
	m.cacheMisses.Inc()
	atomic.AddUint64(&m.cacheMissCount, 1)
}

// ObserveIntent counts one applied intent.
func (m *MetricsService) ObserveIntent(track models.Track, claimed bool, outcome string) {
	if m == nil {
		return
	}
	kind := "unclaim"
	if claimed {
		kind = "claim"
	}
	m.intents.WithLabelValues(string(track), kind, outcome).Inc()
	switch outcome {
	case OutcomeAccepted:
		atomic.AddUint64(&m.acceptedCount, 1)
	case OutcomeRejected:
		atomic.AddUint64(&m.rejectedCount, 1)
	}
}

// ObserveBatch records how long a batch took to apply.
func (m *MetricsService) ObserveBatch(track models.Track, duration time.Duration) {
	if m == nil {
		return
	}
	m.batchDuration.WithLabelValues(string(track)).Observe(duration.Seconds())
}

// ObserveBroadcast counts a change notification publish attempt.
func (m *MetricsService) ObserveBroadcast(track models.Track, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.broadcasts.WithLabelValues(string(track), "failed").Inc()
		atomic.AddUint64(&m.broadcastFailed, 1)
		return
	}
	m.broadcasts.WithLabelValues(string(track), "sent").Inc()
	atomic.AddUint64(&m.broadcastSent, 1)
}

// SetViewers records the number of connected viewers of topic.
func (m *MetricsService) SetViewers(topic string, connections int) {
	if m == nil {
		return
	}
	m.viewers.WithLabelValues(topic).Set(float64(connections))
	m.viewerMu.Lock()
	m.viewerCounts[topic] = int64(connections)
	m.viewerMu.Unlock()
}

// Snapshot returns aggregated metrics suitable for the admin API.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}
	var cacheRatio float64
	if hits+misses > 0 {
		cacheRatio = float64(hits) / float64(hits+misses)
	}

	m.viewerMu.Lock()
	viewers := make(map[string]int64, len(m.viewerCounts))
	for topic, n := range m.viewerCounts {
		viewers[topic] = n
	}
	m.viewerMu.Unlock()

	return models.SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		CacheHitRatio:            cacheRatio,
		IntentsAccepted:          atomic.LoadUint64(&m.acceptedCount),
		IntentsRejected:          atomic.LoadUint64(&m.rejectedCount),
		BroadcastsSent:           atomic.LoadUint64(&m.broadcastSent),
		BroadcastsFailed:         atomic.LoadUint64(&m.broadcastFailed),
		Viewers:                  viewers,
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
