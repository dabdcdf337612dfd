// Package metrics exposes Prometheus collectors for sync, query and enrichment.
package metrics

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "userindex"

// Sync sources.
const (
	SourceBulk    = "bulk"
	SourceCapture = "capture"
	SourceWrite   = "write"
	SourcePurge   = "purge"
)

var (
	SyncOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_operations_total",
			Help:      "Index writes by source, operation and result",
		},
		[]string{"source", "op", "result"},
	)

	BulkSyncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bulk_sync_duration_seconds",
			Help:      "Duration of full bulk synchronization runs",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
		},
	)

	CaptureState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capture_state",
			Help:      "Current change capture state (1 for the active state)",
		},
		[]string{"state"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Query engine latency by mode",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"mode"},
	)

	QueryCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_candidates",
			Help:      "Number of scored candidates per search",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	EnrichmentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_total",
			Help:      "Picture URL resolutions by result",
		},
		[]string{"result"}, // "ok" / "error" / "empty"
	)

	URLCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "url_cache_total",
			Help:      "Signed URL cache hits and misses",
		},
		[]string{"backend", "result"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)
)

var registerOnce sync.Once

// Register registers all collectors with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			SyncOperationsTotal,
			BulkSyncDuration,
			CaptureState,
			QueryDuration,
			QueryCandidates,
			EnrichmentTotal,
			URLCacheTotal,
			httpRequestDuration,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Result maps an error to a result label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// HTTPObserver records request durations. It satisfies server.RequestObserver.
type HTTPObserver struct{}

func (HTTPObserver) ObserveRequest(method, pattern string, status int, seconds float64) {
	if pattern == "" {
		pattern = "unmatched"
	}
	httpRequestDuration.WithLabelValues(method, pattern, strconv.Itoa(status)).Observe(seconds)
}
