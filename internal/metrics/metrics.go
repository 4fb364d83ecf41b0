// Package metrics provides Prometheus instrumentation for the acquisition
// host: session outcomes, per-phase timing, transfer volume, and the
// monitoring HTTP endpoints.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the acquisition host.
type Metrics struct {
	// Session metrics
	SessionsStarted   prometheus.Counter
	SessionsCompleted prometheus.Counter
	SessionFailures   *prometheus.CounterVec
	SessionDuration   prometheus.Histogram
	PhaseDuration     *prometheus.HistogramVec

	// Transfer metrics
	BytesTransferred prometheus.Counter
	SamplesAcquired  prometheus.Counter
	FooterMismatches prometheus.Counter

	// Monitoring HTTP metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "acq_sessions_started_total",
			Help: "Total number of acquisition sessions started",
		}),
		SessionsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "acq_sessions_completed_total",
			Help: "Total number of acquisition sessions that returned a full sample buffer",
		}),
		SessionFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "acq_session_failures_total",
			Help: "Total number of failed acquisition sessions by phase",
		}, []string{"phase"}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "acq_session_duration_seconds",
			Help:    "End-to-end duration of acquisition sessions",
			Buckets: prometheus.ExponentialBuckets(1, 2, 9), // 1s to ~4 minutes
		}),
		PhaseDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "acq_phase_duration_seconds",
			Help:    "Duration of individual protocol phases",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
		}, []string{"phase"}),

		BytesTransferred: promauto.NewCounter(prometheus.CounterOpts{
			Name: "acq_transfer_bytes_total",
			Help: "Total payload bytes received during data transfers",
		}),
		SamplesAcquired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "acq_samples_acquired_total",
			Help: "Total sample pairs decoded from completed sessions",
		}),
		FooterMismatches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "acq_footer_mismatches_total",
			Help: "Total data transfers that ended with a malformed stream-end marker",
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "acq_http_requests_total",
			Help: "Total number of monitoring HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "acq_http_request_duration_seconds",
			Help:    "Duration of monitoring HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordSessionStarted increments the sessions started counter.
func (m *Metrics) RecordSessionStarted() {
	m.SessionsStarted.Inc()
}

// RecordSessionCompleted records a successful session and its duration.
func (m *Metrics) RecordSessionCompleted(durationSeconds float64, samples int) {
	m.SessionsCompleted.Inc()
	m.SessionDuration.Observe(durationSeconds)
	m.SamplesAcquired.Add(float64(samples))
}

// RecordSessionFailure records a failed session and the phase it failed in.
func (m *Metrics) RecordSessionFailure(phase string, durationSeconds float64) {
	m.SessionFailures.WithLabelValues(phase).Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordPhase records the duration of one protocol phase.
func (m *Metrics) RecordPhase(phase string, durationSeconds float64) {
	m.PhaseDuration.WithLabelValues(phase).Observe(durationSeconds)
}

// RecordTransfer records received payload bytes.
func (m *Metrics) RecordTransfer(bytes int) {
	m.BytesTransferred.Add(float64(bytes))
}

// RecordFooterMismatch counts a non-fatal stream-end marker mismatch.
func (m *Metrics) RecordFooterMismatch() {
	m.FooterMismatches.Inc()
}

// RecordHTTPRequest records a monitoring HTTP request.
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}
