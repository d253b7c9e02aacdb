// Package metrics provides Prometheus metrics for the gigledger coordination layer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels shared by ledger and publish metrics.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeRejected = "rejected"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Ledger interaction
	ledgerQueries          *prometheus.CounterVec
	ledgerQueryLatency     *prometheus.HistogramVec
	ledgerTransactions     *prometheus.CounterVec
	ledgerSubmitLatency    *prometheus.HistogramVec
	confirmationLatency    *prometheus.HistogramVec
	rejectedTransactions   *prometheus.CounterVec
	missingEvents          *prometheus.CounterVec
	gatewayInitializations prometheus.Counter
	uninitializedCalls     prometheus.Counter

	// Fan-out reads
	fanoutBatchSize prometheus.Histogram
	fanoutInflight  prometheus.Gauge
	fanoutErrors    prometheus.Counter

	// Supporting infrastructure
	journalErrors         *prometheus.CounterVec
	publishedEvents       *prometheus.CounterVec
	idempotencyDuplicates prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegisterer(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "gigledger",
		subsystem:        "ledger",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		enabled:          true,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	m.ledgerQueries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("queries_total"),
		Help:        "Total number of read-only ledger calls by contract, method and outcome",
		ConstLabels: labels,
	}, []string{"contract", "method", "outcome"})

	m.ledgerQueryLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("query_latency_milliseconds"),
		Help:        "Latency of read-only ledger calls in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	}, []string{"contract", "method"})

	m.ledgerTransactions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("transactions_total"),
		Help:        "Total number of submitted ledger transactions by contract, method and outcome",
		ConstLabels: labels,
	}, []string{"contract", "method", "outcome"})

	m.ledgerSubmitLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("submit_latency_milliseconds"),
		Help:        "Time to hand a signed transaction to the ledger node in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	}, []string{"contract", "method"})

	m.confirmationLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("confirmation_latency_milliseconds"),
		Help:        "Time between submission and confirmation of a transaction in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	}, []string{"contract", "method"})

	m.rejectedTransactions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("rejected_transactions_total"),
		Help:        "Transactions the ledger refused or reverted",
		ConstLabels: labels,
	}, []string{"contract", "method"})

	m.missingEvents = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("missing_events_total"),
		Help:        "Confirmed transactions whose receipt lacked the expected event",
		ConstLabels: labels,
	}, []string{"event"})

	m.gatewayInitializations = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("gateway_initializations_total"),
		Help:        "Number of times the gateway bound its contracts",
		ConstLabels: labels,
	})

	m.uninitializedCalls = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("uninitialized_calls_total"),
		Help:        "Calls rejected because the gateway was not initialized",
		ConstLabels: labels,
	})

	m.fanoutBatchSize = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("fanout_batch_size"),
		Help:        "Number of reads issued per batch fan-out",
		Buckets:     []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		ConstLabels: labels,
	})

	m.fanoutInflight = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("fanout_inflight"),
		Help:        "Reads currently in flight across all fan-outs",
		ConstLabels: labels,
	})

	m.fanoutErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("fanout_errors_total"),
		Help:        "Fan-outs aborted by a failed read",
		ConstLabels: labels,
	})

	m.journalErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("journal_errors_total"),
		Help:        "Submission journal writes that failed",
		ConstLabels: labels,
	}, []string{"status"})

	m.publishedEvents = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("published_events_total"),
		Help:        "Domain events published after confirmation by routing key and outcome",
		ConstLabels: labels,
	}, []string{"routing_key", "outcome"})

	m.idempotencyDuplicates = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("idempotency_duplicates_total"),
		Help:        "Write requests refused because their idempotency key was already used",
		ConstLabels: labels,
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_requests_total"),
			Help:        "Total number of HTTP requests by endpoint and method",
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_request_duration_milliseconds"),
			Help:        "HTTP request duration in milliseconds",
			Buckets:     m.histogramBuckets,
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("errors_by_component_total"),
			Help:        "Errors by component and error type",
			ConstLabels: labels,
		},
		[]string{"component", "error_type"},
	)

	m.errorRateByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("errors_by_endpoint_total"),
			Help:        "HTTP errors by endpoint, method and error type",
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_memory_usage_bytes"),
		Help:        "System memory usage in bytes",
		ConstLabels: labels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_goroutine_count"),
		Help:        "Number of goroutines",
		ConstLabels: labels,
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_gc_pause_time_milliseconds"),
		Help:        "GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: labels,
	})
}

// RecordLedgerQuery records a read-only ledger call.
func RecordLedgerQuery(contract, method, outcome string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.ledgerQueries.WithLabelValues(contract, method, outcome).Inc()
	globalManager.ledgerQueryLatency.WithLabelValues(contract, method).Observe(latencyMs)
}

// RecordLedgerSubmit records how long handing a transaction to the node took.
func RecordLedgerSubmit(contract, method string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.ledgerSubmitLatency.WithLabelValues(contract, method).Observe(latencyMs)
}

// RecordLedgerTransaction records the final outcome of a transaction.
func RecordLedgerTransaction(contract, method, outcome string) {
	if !globalManager.enabled {
		return
	}
	globalManager.ledgerTransactions.WithLabelValues(contract, method, outcome).Inc()
	if outcome == OutcomeRejected {
		globalManager.rejectedTransactions.WithLabelValues(contract, method).Inc()
	}
}

// RecordConfirmationLatency records submission-to-confirmation time.
func RecordConfirmationLatency(contract, method string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.confirmationLatency.WithLabelValues(contract, method).Observe(latencyMs)
}

// RecordMissingEvent increments the missing event counter.
func RecordMissingEvent(event string) {
	globalManager.missingEvents.WithLabelValues(event).Inc()
}

// RecordGatewayInitialization increments the gateway initialization counter.
func RecordGatewayInitialization() {
	globalManager.gatewayInitializations.Inc()
}

// RecordUninitializedCall increments the uninitialized call counter.
func RecordUninitializedCall() {
	globalManager.uninitializedCalls.Inc()
}

// RecordFanoutBatch records the size of one batch fan-out.
func RecordFanoutBatch(size int) {
	globalManager.fanoutBatchSize.Observe(float64(size))
}

// AddFanoutInflight moves the in-flight read gauge by delta.
func AddFanoutInflight(delta int) {
	globalManager.fanoutInflight.Add(float64(delta))
}

// RecordFanoutError increments the aborted fan-out counter.
func RecordFanoutError() {
	globalManager.fanoutErrors.Inc()
}

// RecordJournalError increments the journal failure counter.
func RecordJournalError(status string) {
	globalManager.journalErrors.WithLabelValues(status).Inc()
}

// RecordPublishedEvent records a post-confirmation publish attempt.
func RecordPublishedEvent(routingKey, outcome string) {
	globalManager.publishedEvents.WithLabelValues(routingKey, outcome).Inc()
}

// RecordIdempotencyDuplicate increments the duplicate write counter.
func RecordIdempotencyDuplicate() {
	globalManager.idempotencyDuplicates.Inc()
}

// RecordHTTPRequest increments the HTTP requests counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent increments error rate by component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint increments error rate by endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the current memory usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the current goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Since returns the milliseconds elapsed since start, the unit every latency metric uses.
func Since(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
