// Package metrics provides Prometheus metrics for the fitrep service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Import line outcomes.
const (
	LineImported  = "imported"
	LineSkipped   = "skipped"
	LineDuplicate = "duplicate"
)

// Manager manages all Prometheus metrics for the fitrep service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Import pipeline
	importsTotal       *prometheus.CounterVec
	importLines        *prometheus.CounterVec
	averageMismatches  prometheus.Counter
	importDuration     prometheus.Histogram
	reconstructions    *prometheus.CounterVec
	reconstructionDiff prometheus.Histogram

	// Cohort statistics
	cohortRecomputes        prometheus.Counter
	cohortRecomputeDuration prometheus.Histogram
	cohortCount             prometheus.Gauge

	// Repository
	recordsTotal      prometheus.Gauge
	persistTotal      *prometheus.CounterVec
	persistDuration   prometheus.Histogram
	repositoryLatency *prometheus.HistogramVec

	// Queue and workers
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	queueEnqueued prometheus.Counter
	queueRejected *prometheus.CounterVec
	workerCount   prometheus.Gauge
	jobLatency    prometheus.Histogram
	jobsByStatus  *prometheus.CounterVec

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
		namespace:        "fitrep",
		subsystem:        "",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) opts(name, help string) prometheus.Opts {
	return prometheus.Opts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) hist(name, help string, buckets []float64) prometheus.HistogramOpts {
	if buckets == nil {
		buckets = m.histogramBuckets
	}
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
		Buckets:     buckets,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	msBuckets := []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000}

	m.importsTotal = auto.NewCounterVec(prometheus.CounterOpts(m.opts("imports_total", "Bulk import batches by result")), []string{"result"})
	m.importLines = auto.NewCounterVec(prometheus.CounterOpts(m.opts("import_lines_total", "Extract lines by outcome")), []string{"outcome"})
	m.averageMismatches = auto.NewCounter(prometheus.CounterOpts(m.opts("import_average_mismatch_total", "Imported averages diverging from the reconstructed vector")))
	m.importDuration = auto.NewHistogram(m.hist("import_duration_ms", "Bulk import batch duration in milliseconds", msBuckets))
	m.reconstructions = auto.NewCounterVec(prometheus.CounterOpts(m.opts("reconstructions_total", "Attribute reconstructions by convergence")), []string{"converged"})
	m.reconstructionDiff = auto.NewHistogram(m.hist("reconstruction_deviation", "Absolute deviation between target and reconstructed average",
		[]float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.25, 0.5}))

	m.cohortRecomputes = auto.NewCounter(prometheus.CounterOpts(m.opts("cohort_recomputes_total", "Cohort statistics recomputations")))
	m.cohortRecomputeDuration = auto.NewHistogram(m.hist("cohort_recompute_duration_ms", "Cohort recomputation duration in milliseconds", msBuckets))
	m.cohortCount = auto.NewGauge(prometheus.GaugeOpts(m.opts("cohorts", "Number of grade cohorts with cached statistics")))

	m.recordsTotal = auto.NewGauge(prometheus.GaugeOpts(m.opts("records", "Evaluation records held by the store")))
	m.persistTotal = auto.NewCounterVec(prometheus.CounterOpts(m.opts("persist_total", "Store persistence attempts by result")), []string{"result"})
	m.persistDuration = auto.NewHistogram(m.hist("persist_duration_ms", "Store persistence duration in milliseconds", msBuckets))
	m.repositoryLatency = auto.NewHistogramVec(m.hist("repository_latency_ms", "Repository operation latency in milliseconds", msBuckets), []string{"op"})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts(m.opts("queue_size", "Import jobs waiting in the queue")))
	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts(m.opts("queue_capacity", "Import job queue capacity")))
	m.queueEnqueued = auto.NewCounter(prometheus.CounterOpts(m.opts("queue_enqueued_total", "Import jobs accepted by the queue")))
	m.queueRejected = auto.NewCounterVec(prometheus.CounterOpts(m.opts("queue_rejected_total", "Import jobs rejected by the queue")), []string{"reason"})
	m.workerCount = auto.NewGauge(prometheus.GaugeOpts(m.opts("workers", "Import workers running")))
	m.jobLatency = auto.NewHistogram(m.hist("job_latency_ms", "Import job processing latency in milliseconds", msBuckets))
	m.jobsByStatus = auto.NewCounterVec(prometheus.CounterOpts(m.opts("jobs_total", "Import jobs by final status")), []string{"status"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts(m.opts("http_requests_total", "HTTP requests by endpoint")), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.hist("http_request_duration_ms", "HTTP request duration in milliseconds", msBuckets), []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts(m.opts("errors_total", "Errors by component and type")), []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts(m.opts("system_memory_bytes", "Allocated heap bytes")))
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts(m.opts("system_goroutines", "Number of goroutines")))
	m.systemGCPauseTime = auto.NewHistogram(m.hist("system_gc_pause_ms", "Average GC pause in milliseconds", msBuckets))
}

// Global helper functions.

func RecordImport(result string) {
	globalManager.importsTotal.WithLabelValues(result).Inc()
}

func RecordImportLines(outcome string, n int) {
	if n > 0 {
		globalManager.importLines.WithLabelValues(outcome).Add(float64(n))
	}
}

func RecordAverageMismatch() {
	globalManager.averageMismatches.Inc()
}

func RecordImportDuration(ms float64) {
	globalManager.importDuration.Observe(ms)
}

func RecordReconstruction(converged bool, deviation float64) {
	label := "false"
	if converged {
		label = "true"
	}
	globalManager.reconstructions.WithLabelValues(label).Inc()
	globalManager.reconstructionDiff.Observe(deviation)
}

func RecordCohortRecompute(ms float64) {
	globalManager.cohortRecomputes.Inc()
	globalManager.cohortRecomputeDuration.Observe(ms)
}

func UpdateCohortCount(n int) {
	globalManager.cohortCount.Set(float64(n))
}

func UpdateRecordsTotal(n int) {
	globalManager.recordsTotal.Set(float64(n))
}

func RecordPersist(result string, ms float64) {
	globalManager.persistTotal.WithLabelValues(result).Inc()
	globalManager.persistDuration.Observe(ms)
}

func RecordRepositoryLatency(op string, ms float64) {
	globalManager.repositoryLatency.WithLabelValues(op).Observe(ms)
}

func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

func RecordQueueRejected(reason string) {
	globalManager.queueRejected.WithLabelValues(reason).Inc()
}

func UpdateWorkerCount(n int) {
	globalManager.workerCount.Set(float64(n))
}

func RecordJob(status string, ms float64) {
	globalManager.jobsByStatus.WithLabelValues(status).Inc()
	globalManager.jobLatency.Observe(ms)
}

func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the registry the global manager writes to.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
