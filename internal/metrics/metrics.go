// package metrics exposes upload queue activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the collectors for one process. Each Registry is independent, so tests can create as many as they like.
type Registry struct {
	reg *prometheus.Registry
}

// NewRegistry creates a registry with the Go runtime and process collectors installed.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Registry{reg: reg}
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// QueueMetrics records upload attempts, drops and queue depth.
//
// It satisfies the queue's Recorder contract.
type QueueMetrics struct {
	attempts        *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	exhausted       prometheus.Counter
	skipped         *prometheus.CounterVec
	pending         prometheus.Gauge
	inFlight        prometheus.Gauge
}

// NewQueueMetrics registers the queue collectors on r.
func NewQueueMetrics(r *Registry) *QueueMetrics {
	f := promauto.With(r.reg)

	return &QueueMetrics{
		attempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voxup_upload_attempts_total",
				Help: "Total number of upload attempts by outcome",
			},
			[]string{"outcome"},
		),
		attemptDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "voxup_upload_attempt_duration_milliseconds",
				Help: "Duration of upload attempts in milliseconds",
				Buckets: []float64{
					50,    // 50ms - short clips on a fast link
					250,   // 250ms
					1000,  // 1s
					5000,  // 5s
					15000, // 15s - long recordings
					60000, // 1m
				},
			},
			[]string{"outcome"},
		),
		exhausted: f.NewCounter(
			prometheus.CounterOpts{
				Name: "voxup_upload_exhausted_total",
				Help: "Total number of items dropped after using every attempt",
			},
		),
		skipped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voxup_upload_skipped_total",
				Help: "Total number of items dropped before dispatch by reason",
			},
			[]string{"reason"},
		),
		pending: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "voxup_queue_pending",
				Help: "Current number of items awaiting dispatch",
			},
		),
		inFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "voxup_queue_in_flight",
				Help: "Current number of uploads in progress",
			},
		),
	}
}

func (m *QueueMetrics) ObserveAttempt(outcome string, d time.Duration) {
	m.attempts.WithLabelValues(outcome).Inc()
	m.attemptDuration.WithLabelValues(outcome).Observe(float64(d.Milliseconds()))
}

func (m *QueueMetrics) IncExhausted() {
	m.exhausted.Inc()
}

func (m *QueueMetrics) IncSkipped(reason string) {
	m.skipped.WithLabelValues(reason).Inc()
}

func (m *QueueMetrics) SetQueue(pending, inFlight int) {
	m.pending.Set(float64(pending))
	m.inFlight.Set(float64(inFlight))
}
