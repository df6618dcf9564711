// Package metrics provides Prometheus metrics for the epidash service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Data source
	fetchTotal     *prometheus.CounterVec
	fetchLatency   prometheus.Histogram
	rowsSkipped    *prometheus.CounterVec
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheEntries   prometheus.Gauge
	breakerState   *prometheus.GaugeVec
	regionsTotal   prometheus.Gauge
	datesTotal     prometheus.Gauge
	geometriesKept prometheus.Gauge

	// Animation
	framesRendered  prometheus.Counter
	frameLatency    prometheus.Histogram
	animationRuns   *prometheus.CounterVec
	animationActive prometheus.Gauge
	animationIndex  prometheus.Gauge

	// Frame queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueue       prometheus.Counter
	queueDequeue       prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Render workers
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP and websocket
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	websocketClients    prometheus.Gauge
	websocketMessages   prometheus.Counter

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "epidash",
		subsystem:        "dashboard",
		histogramBuckets: prometheus.DefBuckets,
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.fetchTotal = m.counterVec("fetch_total", "CSV fetches by outcome", "outcome")
	m.fetchLatency = m.histogram("fetch_latency_milliseconds", "CSV fetch latency in milliseconds",
		[]float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000})
	m.rowsSkipped = m.counterVec("rows_skipped_total", "Malformed upstream rows skipped", "reason")
	m.cacheHits = m.counter("cache_hits_total", "Table cache hits")
	m.cacheMisses = m.counter("cache_misses_total", "Table cache misses")
	m.cacheEntries = m.gauge("cache_entries", "Tables currently cached")
	m.breakerState = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "fetch_breaker_state", Help: "Fetch circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"name"})
	m.regionsTotal = m.gauge("regions_total", "Aggregated regions loaded")
	m.datesTotal = m.gauge("dates_total", "Date columns in the aligned time series")
	m.geometriesKept = m.gauge("geometries_total", "Country geometries kept after the drop predicate")

	m.framesRendered = m.counter("frames_rendered_total", "Animation frames acknowledged by the renderer")
	m.frameLatency = m.histogram("frame_latency_milliseconds", "Time from frame projection to render acknowledgment", m.histogramBuckets)
	m.animationRuns = m.counterVec("animation_runs_total", "Animation runs by outcome", "outcome")
	m.animationActive = m.gauge("animation_active", "1 while an animation is running")
	m.animationIndex = m.gauge("animation_date_index", "Date index of the last published frame")

	m.queueSize = m.gauge("frame_queue_size", "Frames waiting for a render worker")
	m.queueCapacity = m.gauge("frame_queue_capacity", "Maximum frame queue capacity")
	m.queueUtilization = m.gauge("frame_queue_utilization_ratio", "Frame queue utilization ratio")
	m.queueEnqueue = m.counter("frame_queue_enqueue_total", "Frames enqueued")
	m.queueDequeue = m.counter("frame_queue_dequeue_total", "Frames dequeued")
	m.queueEnqueueErrors = m.counter("frame_queue_enqueue_errors_total", "Frames rejected by the queue")

	m.workerActiveCount = m.gauge("render_worker_count", "Render workers running")
	m.workerProcessingLatency = m.histogram("render_latency_milliseconds", "Render worker latency in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("render_errors_total", "Render failures")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_request_duration_milliseconds", Help: "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.websocketClients = m.gauge("websocket_clients", "Connected websocket clients")
	m.websocketMessages = m.counter("websocket_messages_total", "Messages queued to websocket clients")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Errors by type", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Data source.

// RecordFetch counts a fetch with its outcome ("ok", "error", "rejected") and latency.
func RecordFetch(outcome string, latencyMs float64) {
	globalManager.fetchTotal.WithLabelValues(outcome).Inc()
	globalManager.fetchLatency.Observe(latencyMs)
}

// RecordRowsSkipped adds n skipped rows for reason.
func RecordRowsSkipped(reason string, n int) {
	if n > 0 {
		globalManager.rowsSkipped.WithLabelValues(reason).Add(float64(n))
	}
}

// RecordCacheHit increments the cache hit counter.
func RecordCacheHit() { globalManager.cacheHits.Inc() }

// RecordCacheMiss increments the cache miss counter.
func RecordCacheMiss() { globalManager.cacheMisses.Inc() }

// UpdateCacheEntries sets the number of cached tables.
func UpdateCacheEntries(n int) { globalManager.cacheEntries.Set(float64(n)) }

// UpdateBreakerState records the state of a named circuit breaker.
func UpdateBreakerState(name string, state float64) {
	globalManager.breakerState.WithLabelValues(name).Set(state)
}

// UpdateRegionsTotal sets the aggregated region count.
func UpdateRegionsTotal(n int) { globalManager.regionsTotal.Set(float64(n)) }

// UpdateDatesTotal sets the date column count.
func UpdateDatesTotal(n int) { globalManager.datesTotal.Set(float64(n)) }

// UpdateGeometriesTotal sets the number of kept geometries.
func UpdateGeometriesTotal(n int) { globalManager.geometriesKept.Set(float64(n)) }

// Animation.

// RecordFrameRendered counts an acknowledged frame and its latency.
func RecordFrameRendered(latencyMs float64) {
	globalManager.framesRendered.Inc()
	globalManager.frameLatency.Observe(latencyMs)
}

// RecordAnimationRun counts a finished run ("completed", "cancelled", "failed").
func RecordAnimationRun(outcome string) {
	globalManager.animationRuns.WithLabelValues(outcome).Inc()
}

// UpdateAnimationActive flags whether an animation is running.
func UpdateAnimationActive(active bool) {
	if active {
		globalManager.animationActive.Set(1)
		return
	}
	globalManager.animationActive.Set(0)
}

// UpdateAnimationIndex sets the last published date index.
func UpdateAnimationIndex(i int) { globalManager.animationIndex.Set(float64(i)) }

// Frame queue.

// UpdateQueueSize sets the current frame queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum frame queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the frame queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueue.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeue.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// Render workers.

// UpdateWorkerActiveCount sets the number of render workers.
func UpdateWorkerActiveCount(count int) { globalManager.workerActiveCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records render latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the render error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// HTTP and websocket.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateWebsocketClients sets the connected websocket client count.
func UpdateWebsocketClients(n int) { globalManager.websocketClients.Set(float64(n)) }

// RecordWebsocketMessage counts a message queued to a websocket client.
func RecordWebsocketMessage() { globalManager.websocketMessages.Inc() }

// Errors.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
