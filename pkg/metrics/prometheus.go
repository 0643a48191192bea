// Package metrics provides Prometheus metrics for the duel ranking service.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// latencyBuckets are millisecond buckets for in-memory operations.
var latencyBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100} //nolint:gochecknoglobals // shared bucket layout

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Voting
	votesAccepted prometheus.Counter
	votesRejected *prometheus.CounterVec

	// Pair selection
	pairsIssued        prometheus.Counter
	selectionLatency   prometheus.Histogram
	selectionFallbacks prometheus.Counter

	// Rating store
	storeApplyLatency prometheus.Histogram
	storeQueryLatency prometheus.Histogram
	itemsTotal        prometheus.Gauge

	// Leaderboard view
	leaderboardRefreshes    prometheus.Counter
	leaderboardBuildLatency prometheus.Histogram
	leaderboardBroadcasts   prometheus.Counter

	// Sessions and transport
	sessionsActive prometheus.Gauge
	wsMessages     *prometheus.CounterVec

	// Persistence
	persistWrites      prometheus.Counter
	persistErrors      *prometheus.CounterVec
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueErrors prometheus.Counter
	workerCount        prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

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
		namespace:        "duel",
		subsystem:        "ranking",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
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
func (m *Manager) initializeMetrics() {
	m.votesAccepted = m.counter("votes_accepted_total", "Votes applied to the rating store")
	m.votesRejected = m.counterVec("votes_rejected_total", "Votes rejected before reaching the store, by reason", "reason")

	m.pairsIssued = m.counter("pairs_issued_total", "Pairings issued to sessions")
	m.selectionLatency = m.histogram("selection_latency_milliseconds", "Pair selection latency in milliseconds", latencyBuckets)
	m.selectionFallbacks = m.counter("selection_fallbacks_total", "Partner draws that fell back to the nearest rated item")

	m.storeApplyLatency = m.histogram("store_apply_latency_milliseconds", "Rating store applyResult latency in milliseconds", m.histogramBuckets)
	m.storeQueryLatency = m.histogram("store_query_latency_milliseconds", "Rating store read latency in milliseconds", latencyBuckets)
	m.itemsTotal = m.gauge("items_total", "Items held by the rating store")

	m.leaderboardRefreshes = m.counter("leaderboard_refreshes_total", "Leaderboard snapshots published")
	m.leaderboardBuildLatency = m.histogram("leaderboard_build_latency_milliseconds", "Leaderboard snapshot build time in milliseconds", latencyBuckets)
	m.leaderboardBroadcasts = m.counter("leaderboard_broadcasts_total", "Leaderboard updates pushed to subscribed sessions")

	m.sessionsActive = m.gauge("sessions_active", "Currently connected sessions")
	m.wsMessages = m.counterVec("ws_messages_total", "Websocket messages by direction and event", "direction", "event")

	m.persistWrites = m.counter("persist_writes_total", "Vote results written to durable storage")
	m.persistErrors = m.counterVec("persist_errors_total", "Durable storage failures by operation", "op")
	m.queueSize = m.gauge("persist_queue_size", "Results waiting for write-behind persistence")
	m.queueCapacity = m.gauge("persist_queue_capacity", "Capacity of the write-behind queue")
	m.queueEnqueueErrors = m.counter("persist_queue_enqueue_errors_total", "Results the write-behind queue refused")
	m.workerCount = m.gauge("persist_worker_count", "Write-behind workers running")

	m.httpRequests = promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "http_requests_total",
		Help: "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordVoteAccepted increments the accepted votes counter.
func RecordVoteAccepted() {
	globalManager.votesAccepted.Inc()
}

// RecordVoteRejected increments the rejected votes counter for reason.
func RecordVoteRejected(reason string) {
	globalManager.votesRejected.WithLabelValues(reason).Inc()
}

// RecordPairIssued increments the issued pairings counter.
func RecordPairIssued() {
	globalManager.pairsIssued.Inc()
}

// RecordSelectionLatency records pair selection latency in milliseconds.
func RecordSelectionLatency(latencyMs float64) {
	globalManager.selectionLatency.Observe(latencyMs)
}

// RecordSelectionFallback increments the nearest-neighbour fallback counter.
func RecordSelectionFallback() {
	globalManager.selectionFallbacks.Inc()
}

// RecordStoreApplyLatency records applyResult latency in milliseconds.
func RecordStoreApplyLatency(latencyMs float64) {
	globalManager.storeApplyLatency.Observe(latencyMs)
}

// RecordStoreQueryLatency records store read latency in milliseconds.
func RecordStoreQueryLatency(latencyMs float64) {
	globalManager.storeQueryLatency.Observe(latencyMs)
}

// UpdateItemsTotal sets the number of items in the store.
func UpdateItemsTotal(count int) {
	globalManager.itemsTotal.Set(float64(count))
}

// RecordLeaderboardRefresh increments the snapshot publication counter.
func RecordLeaderboardRefresh() {
	globalManager.leaderboardRefreshes.Inc()
}

// RecordLeaderboardBuildLatency records snapshot build time in milliseconds.
func RecordLeaderboardBuildLatency(latencyMs float64) {
	globalManager.leaderboardBuildLatency.Observe(latencyMs)
}

// RecordLeaderboardBroadcast increments the push counter.
func RecordLeaderboardBroadcast() {
	globalManager.leaderboardBroadcasts.Inc()
}

// UpdateSessionsActive sets the number of connected sessions.
func UpdateSessionsActive(count int) {
	globalManager.sessionsActive.Set(float64(count))
}

// RecordWSMessage counts one websocket message. direction is "in" or "out".
func RecordWSMessage(direction, event string) {
	globalManager.wsMessages.WithLabelValues(direction, event).Inc()
}

// RecordPersistWrite increments the durable write counter.
func RecordPersistWrite() {
	globalManager.persistWrites.Inc()
}

// RecordPersistError counts a durable storage failure for op.
func RecordPersistError(op string) {
	globalManager.persistErrors.WithLabelValues(op).Inc()
}

// UpdateQueueSize sets the write-behind queue depth.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the write-behind queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueueError increments the refused enqueue counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the number of write-behind workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
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

// Register adds an extra collector to the service registry. Failures wrap
// ErrRegister.
func Register(c prometheus.Collector) error {
	if err := customRegistry.Register(c); err != nil {
		return fmt.Errorf("%w: %w", ErrRegister, err)
	}
	return nil
}
