package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic, the
// report cache and ledger mutations.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	ledgerPayments        prometheus.Counter
	ledgerAmountApplied   prometheus.Counter
	ledgerEntriesInserted *prometheus.CounterVec
	ledgerEntriesDeleted  *prometheus.CounterVec
	ledgerOpDuration      *prometheus.HistogramVec

	cacheHitCount  uint64
	cacheMissCount uint64
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
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	ledgerPayments := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_payments_total",
		Help: "Total teacher payments applied",
	})

	ledgerAmountApplied := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_amount_applied_total",
		Help: "Sum of payment amounts consumed by pending entries",
	})

	ledgerEntriesInserted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_entries_inserted_total",
		Help: "Accounting entries inserted",
	}, []string{"status"})

	ledgerEntriesDeleted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_entries_deleted_total",
		Help: "Pending accounting entries deleted",
	}, []string{"reason"})

	ledgerOpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_operation_duration_seconds",
		Help:    "Duration of ledger operations including the teacher lock wait",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		requestDuration, requestTotal,
		cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		ledgerPayments, ledgerAmountApplied, ledgerEntriesInserted, ledgerEntriesDeleted, ledgerOpDuration,
		goroutines,
	)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:              registry,
		handler:               handler,
		requestDuration:       requestDuration,
		requestTotal:          requestTotal,
		cacheLatency:          cacheLatency,
		cacheWrite:            cacheWrite,
		cacheHitRatio:         cacheHitRatio,
		cacheHits:             cacheHits,
		cacheMisses:           cacheMisses,
		ledgerPayments:        ledgerPayments,
		ledgerAmountApplied:   ledgerAmountApplied,
		ledgerEntriesInserted: ledgerEntriesInserted,
		ledgerEntriesDeleted:  ledgerEntriesDeleted,
		ledgerOpDuration:      ledgerOpDuration,
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

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordPayment counts an applied payment and the amount it consumed.
func (m *MetricsService) RecordPayment(applied float64) {
	if m == nil {
		return
	}
	m.ledgerPayments.Inc()
	if applied > 0 {
		m.ledgerAmountApplied.Add(applied)
	}
}

// RecordEntriesInserted counts inserted entries by status.
func (m *MetricsService) RecordEntriesInserted(status string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ledgerEntriesInserted.WithLabelValues(status).Add(float64(n))
}

// RecordEntriesDeleted counts deleted pending entries by cause.
func (m *MetricsService) RecordEntriesDeleted(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ledgerEntriesDeleted.WithLabelValues(reason).Add(float64(n))
}

// ObserveLedgerOperation records the duration of a ledger operation.
func (m *MetricsService) ObserveLedgerOperation(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ledgerOpDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}
