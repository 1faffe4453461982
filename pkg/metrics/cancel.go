package metrics

import "github.com/prometheus/client_golang/prometheus"

func (m *Manager) initCancelMetrics() {
	m.cancelInstalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cancel_handler_installs_total",
			Help: "Total number of cancellation handler installations",
		},
		[]string{"reused"},
	)

	m.cancelEmits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cancel_emits_total",
			Help: "Total number of cancellation signal emissions",
		},
		[]string{"delivered"},
	)

	m.cancelClears = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cancel_handler_clears_total",
			Help: "Total number of cancellation handler clears",
		},
	)

	m.cancelStates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cancel_states_total",
			Help: "Total number of cancellation states created",
		},
		[]string{"connected"},
	)

	m.registry.MustRegister(m.cancelInstalls)
	m.registry.MustRegister(m.cancelEmits)
	m.registry.MustRegister(m.cancelClears)
	m.registry.MustRegister(m.cancelStates)
}

// RecordInstall records a handler installation on a slot.
func (m *Manager) RecordInstall(reused bool) {
	if !m.enabled {
		return
	}
	m.cancelInstalls.WithLabelValues(boolLabel(reused)).Inc()
}

// RecordEmit records a signal emission.
func (m *Manager) RecordEmit(delivered bool) {
	if !m.enabled {
		return
	}
	m.cancelEmits.WithLabelValues(boolLabel(delivered)).Inc()
}

// RecordClear records a handler clear.
func (m *Manager) RecordClear() {
	if !m.enabled {
		return
	}
	m.cancelClears.Inc()
}

// RecordStateCreated records a cancellation state creation.
func (m *Manager) RecordStateCreated(connected bool) {
	if !m.enabled {
		return
	}
	m.cancelStates.WithLabelValues(boolLabel(connected)).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
