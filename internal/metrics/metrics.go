package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP request metrics for the status API server
var (
	// HTTPRequestDuration tracks the duration of HTTP requests
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests by method, path, and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestsTotal counts the total number of HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)
)

// Sweep driver metrics
var (
	// SweepsStarted counts sweeps started, by execution mode (local, remote)
	SweepsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_started_total",
			Help: "Total number of QPS sweeps started by execution mode",
		},
		[]string{"mode"},
	)

	// SweepsCompleted counts finished sweeps by final status
	SweepsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_completed_total",
			Help: "Total number of QPS sweeps finished by final status",
		},
		[]string{"status"},
	)

	// GeneratorInvocations counts load-generator invocations by phase and outcome
	GeneratorInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_generator_invocations_total",
			Help: "Load generator invocations by phase (warmup, run) and outcome",
		},
		[]string{"phase", "outcome"},
	)

	// GeneratorDuration tracks how long a single generator invocation takes
	GeneratorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sweep_generator_duration_seconds",
			Help:    "Duration of load generator invocations by phase",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17min
		},
		[]string{"phase"},
	)

	// ProbeAttempts counts endpoint readiness probe attempts by outcome
	ProbeAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_probe_attempts_total",
			Help: "Endpoint readiness probe attempts by outcome",
		},
		[]string{"outcome"},
	)
)

// Helper functions for common metric operations

// RecordSweepStarted increments the sweep started counter
func RecordSweepStarted(mode string) {
	SweepsStarted.WithLabelValues(mode).Inc()
}

// RecordSweepCompleted increments the sweep completed counter
func RecordSweepCompleted(status string) {
	SweepsCompleted.WithLabelValues(status).Inc()
}

// RecordGeneratorInvocation records one generator invocation with its duration
func RecordGeneratorInvocation(phase, outcome string, duration time.Duration) {
	GeneratorInvocations.WithLabelValues(phase, outcome).Inc()
	GeneratorDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// RecordProbeAttempt increments the probe attempt counter
func RecordProbeAttempt(outcome string) {
	ProbeAttempts.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest records the duration and increments the counter for an HTTP request
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}
