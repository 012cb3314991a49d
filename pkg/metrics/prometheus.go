// Package metrics provides Prometheus metrics for the breed identification service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Intake
	uploadsAccepted prometheus.Counter
	uploadsRejected *prometheus.CounterVec
	uploadBytes     prometheus.Histogram

	// Identification runs
	runsStarted       prometheus.Counter
	runsCompleted     prometheus.Counter
	runsStale         prometheus.Counter
	processingLatency prometheus.Histogram
	predictionsByTier *prometheus.CounterVec

	// Catalog
	catalogSearches    prometheus.Counter
	catalogResultCount prometheus.Histogram

	// Sessions and notices
	activeSessions  prometheus.Gauge
	sessionsExpired prometheus.Counter
	noticeQueueSize prometheus.Gauge
	noticesSent     *prometheus.CounterVec
	noticesDropped  prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "breedid",
		subsystem:        "identify",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	m.uploadsAccepted = m.counter("uploads_accepted_total", "Total number of images accepted into a session")
	m.uploadsRejected = m.counterVec("uploads_rejected_total", "Total number of rejected or ignored uploads by reason", "reason")
	m.uploadBytes = m.histogram("upload_bytes", "Size of accepted uploads in bytes",
		prometheus.ExponentialBuckets(1024, 4, 9))

	m.runsStarted = m.counter("runs_started_total", "Total number of identification runs scheduled")
	m.runsCompleted = m.counter("runs_completed_total", "Total number of identification runs whose results were applied")
	m.runsStale = m.counter("runs_stale_total", "Total number of completions discarded because the session moved on")
	m.processingLatency = m.histogram("processing_latency_milliseconds",
		"Wall time between scheduling a run and applying its results", []float64{100, 500, 1000, 2000, 3000, 3500, 5000, 10000})
	m.predictionsByTier = m.counterVec("predictions_total", "Predictions produced, by confidence tier", "tier")

	m.catalogSearches = m.counter("catalog_searches_total", "Total number of catalog queries")
	m.catalogResultCount = m.histogram("catalog_result_count", "Number of breeds returned per catalog query",
		[]float64{0, 1, 2, 3, 5, 8, 10, 20})

	m.activeSessions = m.gauge("active_sessions", "Number of identification sessions currently held")
	m.sessionsExpired = m.counter("sessions_expired_total", "Total number of sessions evicted after inactivity")
	m.noticeQueueSize = m.gauge("notice_queue_size", "Current number of notices waiting for dispatch")
	m.noticesSent = m.counterVec("notices_dispatched_total", "Notices delivered to sessions, by kind", "kind")
	m.noticesDropped = m.counter("notices_dropped_total", "Notices dropped because the queue was full or closed")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.errorsByEndpoint = m.counterVec("http_errors_total", "HTTP error responses by endpoint and error type",
		"endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Current number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100})
}

// RecordUploadAccepted counts an accepted upload of the given size.
func RecordUploadAccepted(size int64) {
	globalManager.uploadsAccepted.Inc()
	globalManager.uploadBytes.Observe(float64(size))
}

// RecordUploadRejected counts a rejected or silently ignored upload.
func RecordUploadRejected(reason string) {
	globalManager.uploadsRejected.WithLabelValues(reason).Inc()
}

// RecordRunStarted counts a scheduled identification run.
func RecordRunStarted() {
	globalManager.runsStarted.Inc()
}

// RecordRunCompleted counts an applied run and its latency.
func RecordRunCompleted(latencyMs float64) {
	globalManager.runsCompleted.Inc()
	globalManager.processingLatency.Observe(latencyMs)
}

// RecordRunStale counts a discarded completion.
func RecordRunStale() {
	globalManager.runsStale.Inc()
}

// RecordPrediction counts a prediction by its confidence tier.
func RecordPrediction(tier string) {
	globalManager.predictionsByTier.WithLabelValues(tier).Inc()
}

// RecordCatalogSearch counts a catalog query and its result size.
func RecordCatalogSearch(results int) {
	globalManager.catalogSearches.Inc()
	globalManager.catalogResultCount.Observe(float64(results))
}

// UpdateActiveSessions sets the number of live sessions.
func UpdateActiveSessions(count int) {
	globalManager.activeSessions.Set(float64(count))
}

// RecordSessionExpired counts an evicted session.
func RecordSessionExpired() {
	globalManager.sessionsExpired.Inc()
}

// UpdateNoticeQueueSize sets the notice backlog.
func UpdateNoticeQueueSize(size int) {
	globalManager.noticeQueueSize.Set(float64(size))
}

// RecordNoticeDispatched counts a delivered notice.
func RecordNoticeDispatched(kind string) {
	globalManager.noticesSent.WithLabelValues(kind).Inc()
}

// RecordNoticeDropped counts a notice that never reached its session.
func RecordNoticeDropped() {
	globalManager.noticesDropped.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error response for an endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the current heap allocation.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the current goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
