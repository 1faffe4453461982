package metrics

import "github.com/prometheus/client_golang/prometheus"

func (m *Manager) initRelayMetrics() {
	m.relayPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_published_total",
			Help: "Total number of cancellation requests published",
		},
		[]string{"mode"},
	)

	m.relayDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_delivered_total",
			Help: "Total number of cancellation requests delivered to bindings",
		},
		[]string{"mode"},
	)

	m.relayFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_failures_total",
			Help: "Total number of relay failures",
		},
		[]string{"mode", "reason"},
	)

	m.relayBindings = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_bindings",
			Help: "Current number of bound operations",
		},
		[]string{"mode"},
	)

	m.registry.MustRegister(m.relayPublished)
	m.registry.MustRegister(m.relayDelivered)
	m.registry.MustRegister(m.relayFailures)
	m.registry.MustRegister(m.relayBindings)
}

// RecordPublished records a published cancellation request.
func (m *Manager) RecordPublished(mode string) {
	if !m.enabled {
		return
	}
	m.relayPublished.WithLabelValues(mode).Inc()
}

// RecordDelivered records a cancellation request delivered to a binding.
func (m *Manager) RecordDelivered(mode string) {
	if !m.enabled {
		return
	}
	m.relayDelivered.WithLabelValues(mode).Inc()
}

// RecordFailed records a relay failure.
func (m *Manager) RecordFailed(mode string, reason string) {
	if !m.enabled {
		return
	}
	m.relayFailures.WithLabelValues(mode, reason).Inc()
}

// RecordBindings records the current number of bound operations.
func (m *Manager) RecordBindings(mode string, count int) {
	if !m.enabled {
		return
	}
	m.relayBindings.WithLabelValues(mode).Set(float64(count))
}
