// Package metrics exposes the worker's Prometheus instruments and the
// HTTP handler that serves them.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for RequestsTotal
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
)

var (
	// Dispatch metrics
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drp_worker_requests_total",
			Help: "Total number of requests handled by request type and outcome",
		},
		[]string{"request_type", "outcome"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "drp_worker_request_duration_seconds",
			Help:    "Time spent in a request handler in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"request_type"},
	)

	// Transfer metrics
	TransferBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drp_worker_transfer_bytes_total",
			Help: "File bytes moved by copy requests, by direction (in or out)",
		},
		[]string{"direction"},
	)

	// Execute metrics
	ExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drp_worker_executions_total",
			Help: "Child processes run, by whether they exited zero",
		},
		[]string{"result"},
	)

	// Connection metrics
	WorkerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "drp_worker_state",
			Help: "Dispatch loop state (0 = connecting, 1 = serving, 2 = closed, 3 = fatal)",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(TransferBytesTotal)
	prometheus.MustRegister(ExecutionsTotal)
	prometheus.MustRegister(WorkerState)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed time for histogram observations
type Timer struct {
	start time.Time
}

// NewTimer starts a timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the time since the timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed seconds on o
func (t *Timer) ObserveDuration(o prometheus.Observer) {
	o.Observe(t.Duration().Seconds())
}

// ObserveDurationVec records the elapsed seconds on the labelled series
func (t *Timer) ObserveDurationVec(vec *prometheus.HistogramVec, labels ...string) {
	vec.WithLabelValues(labels...).Observe(t.Duration().Seconds())
}
