package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/backtrackers-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic, the listing cache and the item lifecycle.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	cacheWrite      prometheus.Histogram
	cacheLookups    *prometheus.CounterVec
	itemsCreated    *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	promotions      *prometheus.CounterVec
	decisions       *prometheus.CounterVec
	mediaUploads    *prometheus.CounterVec
	blobDeleteFails prometheus.Counter
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache writes",
			Buckets: prometheus.DefBuckets,
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Listing cache lookups by result",
		}, []string{"result"}),
		itemsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "items_created_total",
			Help: "Items reported per kind",
		}, []string{"kind"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "item_transitions_total",
			Help: "Status transitions applied per kind and target status",
		}, []string{"kind", "to"}),
		promotions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "item_promotions_total",
			Help: "Lost to found promotions by outcome",
		}, []string{"result"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "verification_decisions_total",
			Help: "Verification challenges decided per outcome",
		}, []string{"status"}),
		mediaUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "media_uploads_total",
			Help: "Image uploads by result",
		}, []string{"result"}),
		blobDeleteFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "media_delete_failures_total",
			Help: "Best-effort image deletions that failed",
		}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal, m.cacheLatency, m.cacheWrite,
		m.cacheLookups, m.itemsCreated, m.transitions, m.promotions, m.decisions, m.mediaUploads, m.blobDeleteFails, goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
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

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
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

// RecordCacheOperation records a cache lookup outcome.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveCacheWrite records latency for cache set operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

func (m *MetricsService) ItemCreated(kind models.ItemKind) {
	if m == nil {
		return
	}
	m.itemsCreated.WithLabelValues(string(kind)).Inc()
}

func (m *MetricsService) ItemTransitioned(kind models.ItemKind, to models.ItemStatus) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(kind), string(to)).Inc()
}

// ItemPromoted counts promotions; partial means the found record exists but the lost one could not be removed.
func (m *MetricsService) ItemPromoted(partial bool) {
	if m == nil {
		return
	}
	result := "ok"
	if partial {
		result = "partial"
	}
	m.promotions.WithLabelValues(result).Inc()
}

func (m *MetricsService) VerificationDecided(status models.VerificationStatus) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(string(status)).Inc()
}

func (m *MetricsService) MediaUploaded(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.mediaUploads.WithLabelValues(result).Inc()
}

func (m *MetricsService) MediaDeleteFailed() {
	if m == nil {
		return
	}
	m.blobDeleteFails.Inc()
}
