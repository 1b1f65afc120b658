package remote

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts engine activity in a private registry.
type Metrics struct {
	registry    *prometheus.Registry
	attempts    *prometheus.CounterVec
	failedHosts *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewMetrics registers the engine collectors in a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "installer",
				Subsystem: "remote",
				Name:      "attempts_total",
				Help:      "Remote attempts by operation and outcome.",
			},
			[]string{"op", "outcome"},
		),
		failedHosts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "installer",
				Subsystem: "remote",
				Name:      "failed_hosts_total",
				Help:      "Hosts that exhausted their retry budget.",
			},
			[]string{"op"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "installer",
				Subsystem: "remote",
				Name:      "attempt_duration_seconds",
				Help:      "Duration of single remote attempts.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"op"},
		),
	}
	m.registry.MustRegister(m.attempts, m.failedHosts, m.duration)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// WriteTextfile writes the current values in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) observeAttempt(op, outcome string, seconds float64) {
	m.attempts.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(seconds)
}

func (m *Metrics) hostFailed(op string) {
	m.failedHosts.WithLabelValues(op).Inc()
}
