// Package metrics provides Prometheus metrics for the nutriagenda service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Assessment metrics
	assessmentsTotal   *prometheus.CounterVec
	assessmentLatency  prometheus.Histogram
	validationFailures *prometheus.CounterVec
	bodyFatMethod      *prometheus.CounterVec
	trendRequests      *prometheus.CounterVec
	reportsAssembled   prometheus.Counter
	chartsRendered     *prometheus.CounterVec
	exportsTotal       prometheus.Counter

	// Import pipeline
	importsAccepted  prometheus.Counter
	importsDuplicate prometheus.Counter
	importsFailed    *prometheus.CounterVec
	amqpDeliveries   *prometheus.CounterVec

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueue       prometheus.Counter
	queueDequeue       prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Repository
	repositoryMeasurements prometheus.Gauge
	repositorySaveLatency  prometheus.Histogram
	repositoryQueryLatency prometheus.Histogram
	repositoryErrors       *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "nutriagenda",
		subsystem:        "assessment",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}
}

func (m *Manager) gauge(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogram(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of collectors
	auto := promauto.With(m.registry)

	m.assessmentsTotal = auto.NewCounterVec(m.counter("assessments_total",
		"Assessments computed, by caller"), []string{"source"})
	m.assessmentLatency = auto.NewHistogram(m.histogram("assessment_latency_milliseconds",
		"Time to validate and assess one measurement"))
	m.validationFailures = auto.NewCounterVec(m.counter("validation_failures_total",
		"Rejected fields, by field name"), []string{"field"})
	m.bodyFatMethod = auto.NewCounterVec(m.counter("body_fat_method_total",
		"Body-fat estimates, by method (none when not derivable)"), []string{"method"})
	m.trendRequests = auto.NewCounterVec(m.counter("trend_requests_total",
		"Trend analyses, by outcome"), []string{"outcome"})
	m.reportsAssembled = auto.NewCounter(m.counter("reports_assembled_total",
		"Reports assembled"))
	m.chartsRendered = auto.NewCounterVec(m.counter("charts_rendered_total",
		"Charts rendered, by metric"), []string{"metric"})
	m.exportsTotal = auto.NewCounter(m.counter("csv_exports_total",
		"CSV exports written"))

	m.importsAccepted = auto.NewCounter(m.counter("imports_accepted_total",
		"Imported measurements stored"))
	m.importsDuplicate = auto.NewCounter(m.counter("imports_duplicate_total",
		"Imported measurements skipped as duplicates"))
	m.importsFailed = auto.NewCounterVec(m.counter("imports_failed_total",
		"Imported measurements dropped, by reason"), []string{"reason"})
	m.amqpDeliveries = auto.NewCounterVec(m.counter("amqp_deliveries_total",
		"AMQP deliveries, by outcome"), []string{"outcome"})

	m.queueSize = auto.NewGauge(m.gauge("queue_size", "Jobs waiting in the import queue"))
	m.queueCapacity = auto.NewGauge(m.gauge("queue_capacity", "Import queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gauge("queue_utilization_ratio", "Import queue size / capacity"))
	m.queueEnqueue = auto.NewCounter(m.counter("queue_enqueue_total", "Jobs enqueued"))
	m.queueDequeue = auto.NewCounter(m.counter("queue_dequeue_total", "Jobs dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counter("queue_enqueue_errors_total", "Enqueue attempts rejected"))

	m.workerCount = auto.NewGauge(m.gauge("worker_count", "Import workers running"))
	m.workerActiveCount = auto.NewGauge(m.gauge("worker_active_count", "Import workers busy with a job"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogram("worker_processing_latency_milliseconds",
		"Time to process one import job"))
	m.workerErrors = auto.NewCounter(m.counter("worker_errors_total", "Import jobs that failed"))

	m.repositoryMeasurements = auto.NewGauge(m.gauge("repository_measurements",
		"Measurements held by the store"))
	m.repositorySaveLatency = auto.NewHistogram(m.histogram("repository_save_latency_milliseconds",
		"Store write latency"))
	m.repositoryQueryLatency = auto.NewHistogram(m.histogram("repository_query_latency_milliseconds",
		"Store read latency"))
	m.repositoryErrors = auto.NewCounterVec(m.counter("repository_errors_total",
		"Store errors, by operation"), []string{"op"})

	m.httpRequests = auto.NewCounterVec(m.counter("http_requests_total",
		"HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogram("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds"), []string{"endpoint", "method", "status_code"})
	m.errorsByEndpoint = auto.NewCounterVec(m.counter("errors_by_endpoint_total",
		"HTTP error responses by endpoint"), []string{"endpoint", "method", "error_type"})

	sys := func(name, help string) prometheus.GaugeOpts {
		o := m.gauge(name, help)
		o.Subsystem = "system"
		return o
	}
	m.systemMemoryUsage = auto.NewGauge(sys("memory_usage_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(sys("goroutine_count", "Running goroutines"))
	gcOpts := m.histogram("gc_pause_milliseconds", "Average GC pause")
	gcOpts.Subsystem = "system"
	m.systemGCPauseTime = auto.NewHistogram(gcOpts)
}

// RecordAssessment counts one assessment from source ("api", "preview", "import").
func RecordAssessment(source string) {
	globalManager.assessmentsTotal.WithLabelValues(source).Inc()
}

// RecordAssessmentLatency records assessment latency in milliseconds.
func RecordAssessmentLatency(latencyMs float64) {
	globalManager.assessmentLatency.Observe(latencyMs)
}

// RecordValidationFailure counts a rejected field.
func RecordValidationFailure(field string) {
	globalManager.validationFailures.WithLabelValues(field).Inc()
}

// RecordBodyFatMethod counts which estimator ran. Empty means none.
func RecordBodyFatMethod(method string) {
	if method == "" {
		method = "none"
	}
	globalManager.bodyFatMethod.WithLabelValues(method).Inc()
}

// RecordTrendRequest counts a trend analysis ("summary" or "insufficient").
func RecordTrendRequest(outcome string) {
	globalManager.trendRequests.WithLabelValues(outcome).Inc()
}

// RecordReportAssembled counts an assembled report.
func RecordReportAssembled() {
	globalManager.reportsAssembled.Inc()
}

// RecordChartRendered counts a rendered chart.
func RecordChartRendered(metric string) {
	globalManager.chartsRendered.WithLabelValues(metric).Inc()
}

// RecordCSVExport counts a CSV export.
func RecordCSVExport() {
	globalManager.exportsTotal.Inc()
}

// RecordImportAccepted counts a stored import.
func RecordImportAccepted() {
	globalManager.importsAccepted.Inc()
}

// RecordImportDuplicate counts a skipped duplicate import.
func RecordImportDuplicate() {
	globalManager.importsDuplicate.Inc()
}

// RecordImportFailed counts a dropped import.
func RecordImportFailed(reason string) {
	globalManager.importsFailed.WithLabelValues(reason).Inc()
}

// RecordAMQPDelivery counts a broker delivery by outcome ("ack", "nack", "reject").
func RecordAMQPDelivery(outcome string) {
	globalManager.amqpDeliveries.WithLabelValues(outcome).Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueue.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeue.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// IncWorkerActive marks a worker busy.
func IncWorkerActive() {
	globalManager.workerActiveCount.Inc()
}

// DecWorkerActive marks a worker idle.
func DecWorkerActive() {
	globalManager.workerActiveCount.Dec()
}

// RecordWorkerProcessingLatency records job latency in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// UpdateRepositoryMeasurements sets the stored measurement count.
func UpdateRepositoryMeasurements(count int) {
	globalManager.repositoryMeasurements.Set(float64(count))
}

// RecordRepositorySaveLatency records store write latency.
func RecordRepositorySaveLatency(latencyMs float64) {
	globalManager.repositorySaveLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records store read latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// RecordRepositoryError counts a failed store operation.
func RecordRepositoryError(op string) {
	globalManager.repositoryErrors.WithLabelValues(op).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error response.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the allocated heap size in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records the average GC pause in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
