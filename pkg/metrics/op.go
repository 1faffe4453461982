package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func (m *Manager) initOpMetrics(cfg Config) {
	m.opSubmissions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "op_submissions_total",
			Help: "Total number of operations submitted",
		},
	)

	m.opRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "op_rejections_total",
			Help: "Total number of operations rejected at submit",
		},
	)

	m.opDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "op_duration_seconds",
			Help:    "Operation execution duration in seconds",
			Buckets: cfg.OpDurationBuckets,
		},
		[]string{"status"},
	)

	m.opRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "op_running",
			Help: "Current number of running operations",
		},
	)

	m.registry.MustRegister(m.opSubmissions)
	m.registry.MustRegister(m.opRejections)
	m.registry.MustRegister(m.opDuration)
	m.registry.MustRegister(m.opRunning)
}

// RecordSubmitted records an accepted operation submission.
func (m *Manager) RecordSubmitted() {
	if !m.enabled {
		return
	}
	m.opSubmissions.Inc()
}

// RecordRejected records a rejected operation submission.
func (m *Manager) RecordRejected() {
	if !m.enabled {
		return
	}
	m.opRejections.Inc()
}

// RecordFinished records a finished operation with its final status.
func (m *Manager) RecordFinished(status string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.opDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// IncRunning increments the running operations gauge.
func (m *Manager) IncRunning() {
	if !m.enabled {
		return
	}
	m.opRunning.Inc()
}

// DecRunning decrements the running operations gauge.
func (m *Manager) DecRunning() {
	if !m.enabled {
		return
	}
	m.opRunning.Dec()
}
