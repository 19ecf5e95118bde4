// Package metrics provides Prometheus metrics for the listening-test service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Submission outcomes used as label values.
const (
	OutcomeStored    = "stored"
	OutcomeInvalid   = "invalid"
	OutcomeDuplicate = "duplicate"
	OutcomeExpired   = "expired"
	OutcomeFailed    = "failed"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Collection
	submissions    *prometheus.CounterVec
	recordsWritten *prometheus.CounterVec
	activeSessions prometheus.Gauge
	stimulusItems  *prometheus.GaugeVec
	pagesServed    *prometheus.CounterVec

	// Aggregation
	aggregations        prometheus.Counter
	aggregationErrors   prometheus.Counter
	aggregationLatency  prometheus.Histogram
	aggregationRecords  prometheus.Gauge
	resultFilesLoaded   prometheus.Gauge
	resultFileReadError prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByType     *prometheus.CounterVec
	errorRateByEndpoint *prometheus.CounterVec
	errorLatency        *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "listeval",
		subsystem:        "",
		histogramBuckets: prometheus.DefBuckets,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// RefreshInterval is how often gauge updaters should sample.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// RefreshInterval of the global manager.
func RefreshInterval() time.Duration { return globalManager.refreshInterval }

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
		Buckets:     buckets,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one block per metric
	auto := promauto.With(m.registry)

	m.submissions = auto.NewCounterVec(
		m.counterOpts("submissions_total", "Form submissions by survey and outcome"),
		[]string{"survey", "outcome"},
	)
	m.recordsWritten = auto.NewCounterVec(
		m.counterOpts("records_written_total", "Rating records persisted to result files"),
		[]string{"survey"},
	)
	m.activeSessions = auto.NewGauge(
		m.gaugeOpts("active_sessions", "Form sessions waiting for submission"),
	)
	m.stimulusItems = auto.NewGaugeVec(
		m.gaugeOpts("stimulus_items", "Comparison items discovered per survey"),
		[]string{"survey"},
	)
	m.pagesServed = auto.NewCounterVec(
		m.counterOpts("pages_served_total", "Rendered rating forms per survey"),
		[]string{"survey"},
	)

	m.aggregations = auto.NewCounter(
		m.counterOpts("aggregations_total", "Completed results aggregations"),
	)
	m.aggregationErrors = auto.NewCounter(
		m.counterOpts("aggregation_errors_total", "Failed results aggregations"),
	)
	m.aggregationLatency = auto.NewHistogram(
		m.histogramOpts("aggregation_latency_milliseconds", "Time to load and aggregate result files", m.histogramBuckets),
	)
	m.aggregationRecords = auto.NewGauge(
		m.gaugeOpts("aggregation_records", "Rating records seen by the last aggregation"),
	)
	m.resultFilesLoaded = auto.NewGauge(
		m.gaugeOpts("result_files", "Result files read by the last aggregation"),
	)
	m.resultFileReadError = auto.NewCounter(
		m.counterOpts("result_file_errors_total", "Result files that could not be decoded"),
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByType = auto.NewCounterVec(
		m.counterOpts("errors_by_type_total", "Errors by type and severity"),
		[]string{"error_type", "severity"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Errors by endpoint, method and type"),
		[]string{"endpoint", "method", "error_type"},
	)
	m.errorLatency = auto.NewHistogramVec(
		m.histogramOpts("error_latency_milliseconds", "Latency of operations that failed", m.histogramBuckets),
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(
		m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"),
	)
	m.systemGoroutineCount = auto.NewGauge(
		m.gaugeOpts("system_goroutine_count", "Number of goroutines"),
	)
	m.systemGCPauseTime = auto.NewHistogram(
		m.histogramOpts("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
			[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}),
	)
}

// RecordSubmission counts a form submission with its outcome.
func RecordSubmission(survey, outcome string) {
	globalManager.submissions.WithLabelValues(survey, outcome).Inc()
}

// RecordRecordsWritten adds persisted rating records.
func RecordRecordsWritten(survey string, n int) {
	globalManager.recordsWritten.WithLabelValues(survey).Add(float64(n))
}

// UpdateActiveSessions sets the number of pending form sessions.
func UpdateActiveSessions(n int) {
	globalManager.activeSessions.Set(float64(n))
}

// UpdateStimulusItems sets the discovered item count for a survey.
func UpdateStimulusItems(survey string, n int) {
	globalManager.stimulusItems.WithLabelValues(survey).Set(float64(n))
}

// RecordPageServed counts a rendered form.
func RecordPageServed(survey string) {
	globalManager.pagesServed.WithLabelValues(survey).Inc()
}

// RecordAggregation records a successful aggregation run.
func RecordAggregation(latencyMs float64, records, files int) {
	globalManager.aggregations.Inc()
	globalManager.aggregationLatency.Observe(latencyMs)
	globalManager.aggregationRecords.Set(float64(records))
	globalManager.resultFilesLoaded.Set(float64(files))
}

// RecordAggregationError increments the aggregation error counter.
func RecordAggregationError() {
	globalManager.aggregationErrors.Inc()
}

// RecordResultFileError counts an undecodable result file.
func RecordResultFileError() {
	globalManager.resultFileReadError.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
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
