// Package metrics provides Prometheus metrics collection for the
// orchestrator process.
package metrics

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the orchestrator.
type Metrics struct {
	// HTTP metrics (control plane, C11)
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Error metrics
	ErrorsTotal *prometheus.CounterVec

	// Test lifecycle metrics (dispatcher C8 / supervisor C7)
	TestsSubmittedTotal *prometheus.CounterVec
	TestsCompletedTotal *prometheus.CounterVec
	TestDuration        *prometheus.HistogramVec
	QueueDepth          prometheus.Gauge
	ActiveTests         prometheus.Gauge

	// Credential resolution metrics (secretsadapter C2 / credmap C3)
	CredentialResolutionsTotal    *prometheus.CounterVec
	CredentialResolutionDuration  *prometheus.HistogramVec

	// Message bus worker metrics (busworkers C4/C5)
	RecordsProducedTotal *prometheus.CounterVec
	RecordsConsumedTotal *prometheus.CounterVec
	WorkerLag            *prometheus.GaugeVec

	// Circuit breaker state (resilience C10)
	CircuitBreakerState *prometheus.GaugeVec

	// Process health
	ServiceUptime prometheus.Gauge
	ServiceInfo   *prometheus.GaugeVec
}

// New creates a Metrics instance registered against the default registerer.
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered against registerer,
// which may be nil (collectors created but not exported) for unit tests that
// instantiate several Metrics in the same process.
func NewWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of control-plane HTTP requests",
			},
			[]string{"service", "method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Control-plane HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"service", "method", "path"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of control-plane HTTP requests being processed",
			},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "errors_total",
				Help: "Total number of errors by kind",
			},
			[]string{"service", "kind", "operation"},
		),

		TestsSubmittedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tests_submitted_total",
				Help: "Total number of test runs submitted to the dispatcher",
			},
			[]string{"service"},
		),
		TestsCompletedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tests_completed_total",
				Help: "Total number of test runs that reached a terminal state",
			},
			[]string{"service", "outcome"},
		),
		TestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "test_duration_seconds",
				Help:    "Wall-clock duration of a test run from admission to teardown",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"service"},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "dispatcher_queue_depth",
				Help: "Current number of test runs waiting for admission",
			},
		),
		ActiveTests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "active_tests",
				Help: "Current number of test runs executing",
			},
		),

		CredentialResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credential_resolutions_total",
				Help: "Total number of per-topic credential resolutions against the secret service",
			},
			[]string{"service", "status"},
		),
		CredentialResolutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credential_resolution_duration_seconds",
				Help:    "Duration of a secret-service call plus mapping pipeline",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"service"},
		),

		RecordsProducedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bus_records_produced_total",
				Help: "Total number of records produced to the message bus",
			},
			[]string{"service", "topic", "status"},
		),
		RecordsConsumedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bus_records_consumed_total",
				Help: "Total number of records consumed from the message bus",
			},
			[]string{"service", "topic"},
		),
		WorkerLag: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bus_worker_lag",
				Help: "Consumer lag, in records, per topic/partition worker",
			},
			[]string{"service", "topic"},
		),

		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"service", "target"},
		),

		ServiceUptime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "service_uptime_seconds",
				Help: "Process uptime in seconds",
			},
		),
		ServiceInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "service_info",
				Help: "Process information",
			},
			[]string{"service", "version", "environment"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.RequestsTotal,
			m.RequestDuration,
			m.RequestsInFlight,
			m.ErrorsTotal,
			m.TestsSubmittedTotal,
			m.TestsCompletedTotal,
			m.TestDuration,
			m.QueueDepth,
			m.ActiveTests,
			m.CredentialResolutionsTotal,
			m.CredentialResolutionDuration,
			m.RecordsProducedTotal,
			m.RecordsConsumedTotal,
			m.WorkerLag,
			m.CircuitBreakerState,
			m.ServiceUptime,
			m.ServiceInfo,
		)
	}

	m.ServiceInfo.WithLabelValues(serviceName, "1.0.0", getEnvironment()).Set(1)

	return m
}

// RecordHTTPRequest records a control-plane HTTP request.
func (m *Metrics) RecordHTTPRequest(service, method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(service, method, path, status).Inc()
	m.RequestDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// RecordError records an error by kind and operation.
func (m *Metrics) RecordError(service, kind, operation string) {
	m.ErrorsTotal.WithLabelValues(service, kind, operation).Inc()
}

// RecordTestSubmitted records a test run admitted to the dispatcher queue.
func (m *Metrics) RecordTestSubmitted(service string) {
	m.TestsSubmittedTotal.WithLabelValues(service).Inc()
}

// RecordTestCompleted records a test run reaching a terminal state
// (outcome is one of "passed", "failed", "error", "cancelled").
func (m *Metrics) RecordTestCompleted(service, outcome string, duration time.Duration) {
	m.TestsCompletedTotal.WithLabelValues(service, outcome).Inc()
	m.TestDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// SetQueueDepth sets the current dispatcher admission queue depth.
func (m *Metrics) SetQueueDepth(depth int) {
	m.QueueDepth.Set(float64(depth))
}

// SetActiveTests sets the current number of executing test runs.
func (m *Metrics) SetActiveTests(count int) {
	m.ActiveTests.Set(float64(count))
}

// RecordCredentialResolution records a secret-service call outcome
// ("ok", "unauthorized", "forbidden", "transient", "exhausted").
func (m *Metrics) RecordCredentialResolution(service, status string, duration time.Duration) {
	m.CredentialResolutionsTotal.WithLabelValues(service, status).Inc()
	m.CredentialResolutionDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordProduced records a message-bus produce attempt outcome.
func (m *Metrics) RecordProduced(service, topic, status string) {
	m.RecordsProducedTotal.WithLabelValues(service, topic, status).Inc()
}

// RecordConsumed records a message consumed from topic.
func (m *Metrics) RecordConsumed(service, topic string) {
	m.RecordsConsumedTotal.WithLabelValues(service, topic).Inc()
}

// SetWorkerLag sets the current consumer lag for topic.
func (m *Metrics) SetWorkerLag(service, topic string, lag int64) {
	m.WorkerLag.WithLabelValues(service, topic).Set(float64(lag))
}

// SetCircuitBreakerState sets the gauge for a named external target
// (0=closed, 1=half-open, 2=open) — callers pass resilience.State.String()
// mapped to its numeric form via CircuitStateValue.
func (m *Metrics) SetCircuitBreakerState(service, target string, value float64) {
	m.CircuitBreakerState.WithLabelValues(service, target).Set(value)
}

// CircuitStateValue maps a circuit breaker state name to the numeric value
// SetCircuitBreakerState expects.
func CircuitStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// UpdateUptime updates the service uptime gauge.
func (m *Metrics) UpdateUptime(startTime time.Time) {
	m.ServiceUptime.Set(time.Since(startTime).Seconds())
}

// IncrementInFlight increments the in-flight HTTP requests counter.
func (m *Metrics) IncrementInFlight() { m.RequestsInFlight.Inc() }

// DecrementInFlight decrements the in-flight HTTP requests counter.
func (m *Metrics) DecrementInFlight() { m.RequestsInFlight.Dec() }

func getEnvironment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("ORCHESTRATOR_ENV")))
	if env == "" {
		return "development"
	}
	return env
}

// Enabled returns whether Prometheus metrics should be exposed.
//
// Defaults:
// - production: disabled unless explicitly enabled via METRICS_ENABLED
// - non-production: enabled unless explicitly disabled via METRICS_ENABLED
func Enabled() bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("METRICS_ENABLED")))
	if raw == "" {
		return getEnvironment() != "production"
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

var (
	globalMetrics *Metrics
	globalMu      sync.Mutex
)

// Init initializes the global metrics instance.
func Init(serviceName string) *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New(serviceName)
	}
	return globalMetrics
}

// Global returns the global metrics instance, creating one if needed.
func Global() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New("unknown")
	}
	return globalMetrics
}
