// Package metrics provides Prometheus metrics for the N-STED inference service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// latencyBuckets cover a few milliseconds of preprocessing up to multi-second
// full-recording inference.
var latencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000} //nolint:gochecknoglobals // read-only defaults

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Pipeline metrics
	uploads             *prometheus.CounterVec
	rejectedRecordings  *prometheus.CounterVec
	preprocessLatency   prometheus.Histogram
	inferenceLatency    prometheus.Histogram
	pipelineLatency     prometheus.Histogram
	trialsSegmented     prometheus.Counter
	trialsInferred      prometheus.Counter
	recordingSamples    prometheus.Histogram
	predictionsByClass  *prometheus.CounterVec
	modelParameters     prometheus.Gauge
	artifactWrites      prometheus.Counter
	artifactWriteErrors prometheus.Counter

	// Store metrics
	resultsStored     prometheus.Counter
	resultsTotal      prometheus.Gauge
	storeErrors       prometheus.Counter
	storeQueryLatency prometheus.Histogram

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System metrics
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
		namespace:        "nsted",
		subsystem:        "inference",
		histogramBuckets: latencyBuckets,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.uploads = auto.NewCounterVec(m.counterOpts("uploads_total",
		"Total number of uploaded recordings by outcome"), []string{"outcome"})
	m.rejectedRecordings = auto.NewCounterVec(m.counterOpts("rejected_recordings_total",
		"Recordings rejected before inference, by reason"), []string{"reason"})
	m.preprocessLatency = auto.NewHistogram(m.histogramOpts("preprocess_latency_milliseconds",
		"Standardization and segmentation latency in milliseconds", m.histogramBuckets))
	m.inferenceLatency = auto.NewHistogram(m.histogramOpts("trial_inference_latency_milliseconds",
		"Model forward pass latency per trial in milliseconds", m.histogramBuckets))
	m.pipelineLatency = auto.NewHistogram(m.histogramOpts("pipeline_latency_milliseconds",
		"End-to-end upload processing latency in milliseconds", m.histogramBuckets))
	m.trialsSegmented = auto.NewCounter(m.counterOpts("trials_segmented_total",
		"Total number of trials produced by segmentation"))
	m.trialsInferred = auto.NewCounter(m.counterOpts("trials_inferred_total",
		"Total number of trials run through the model"))
	m.recordingSamples = auto.NewHistogram(m.histogramOpts("recording_samples",
		"Per-channel sample count of uploaded recordings",
		prometheus.ExponentialBuckets(256, 2, 12)))
	m.predictionsByClass = auto.NewCounterVec(m.counterOpts("predictions_total",
		"Classification labels produced, by class"), []string{"class"})
	m.modelParameters = auto.NewGauge(m.gaugeOpts("model_parameters",
		"Number of scalar parameters in the loaded model"))
	m.artifactWrites = auto.NewCounter(m.counterOpts("artifact_writes_total",
		"Channel-average artifacts written"))
	m.artifactWriteErrors = auto.NewCounter(m.counterOpts("artifact_write_errors_total",
		"Channel-average artifact write failures"))

	m.resultsStored = auto.NewCounter(m.counterOpts("results_stored_total",
		"Inference results persisted to the result store"))
	m.resultsTotal = auto.NewGauge(m.gaugeOpts("results",
		"Number of results currently held in the result store"))
	m.storeErrors = auto.NewCounter(m.counterOpts("store_errors_total",
		"Result store operation failures"))
	m.storeQueryLatency = auto.NewHistogram(m.histogramOpts("store_query_latency_milliseconds",
		"Result store query latency in milliseconds", m.histogramBuckets))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total",
		"Errors by component and error type"), []string{"component", "error_type"})
	m.errorRateByType = auto.NewCounterVec(m.counterOpts("errors_by_type_total",
		"Errors by type and severity"), []string{"error_type", "severity"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total",
		"Errors by HTTP endpoint"), []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_bytes",
		"Heap bytes allocated by the process"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutines",
		"Number of live goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_milliseconds",
		"Average GC pause in milliseconds", prometheus.DefBuckets))
}

// Pipeline recorders.

func RecordUpload(outcome string) {
	globalManager.uploads.WithLabelValues(outcome).Inc()
}

func RecordRejectedRecording(reason string) {
	globalManager.rejectedRecordings.WithLabelValues(reason).Inc()
}

func RecordPreprocessLatency(latencyMs float64) {
	globalManager.preprocessLatency.Observe(latencyMs)
}

func RecordInferenceLatency(latencyMs float64) {
	globalManager.inferenceLatency.Observe(latencyMs)
	globalManager.trialsInferred.Inc()
}

func RecordPipelineLatency(latencyMs float64) {
	globalManager.pipelineLatency.Observe(latencyMs)
}

func RecordTrialsSegmented(count int) {
	globalManager.trialsSegmented.Add(float64(count))
}

func RecordRecordingSamples(samples int) {
	globalManager.recordingSamples.Observe(float64(samples))
}

func RecordPrediction(class string) {
	globalManager.predictionsByClass.WithLabelValues(class).Inc()
}

func UpdateModelParameters(count int) {
	globalManager.modelParameters.Set(float64(count))
}

func RecordArtifactWrite() {
	globalManager.artifactWrites.Inc()
}

func RecordArtifactWriteError() {
	globalManager.artifactWriteErrors.Inc()
}

// Store recorders.

func RecordResultStored() {
	globalManager.resultsStored.Inc()
}

func UpdateResultsTotal(count int) {
	globalManager.resultsTotal.Set(float64(count))
}

func RecordStoreError() {
	globalManager.storeErrors.Inc()
}

func RecordStoreQueryLatency(latencyMs float64) {
	globalManager.storeQueryLatency.Observe(latencyMs)
}

// HTTP recorders.

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error recorders.

func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System recorders.

func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
