package relay

import "sync"

// MetricsRecorder defines metrics hooks for relay operations.
type MetricsRecorder interface {
	RecordPublished(mode string)
	RecordDelivered(mode string)
	RecordFailed(mode string, reason string)
	RecordBindings(mode string, count int)
}

type nopMetrics struct{}

func (n *nopMetrics) RecordPublished(mode string)             {}
func (n *nopMetrics) RecordDelivered(mode string)             {}
func (n *nopMetrics) RecordFailed(mode string, reason string) {}
func (n *nopMetrics) RecordBindings(mode string, count int)   {}

var (
	metricsMu sync.RWMutex
	metrics   MetricsRecorder = &nopMetrics{}
)

// SetMetricsRecorder sets the package-level relay metrics recorder.
// Passing nil restores the no-op recorder.
func SetMetricsRecorder(recorder MetricsRecorder) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if recorder == nil {
		metrics = &nopMetrics{}
		return
	}
	metrics = recorder
}

func metricsRecorder() MetricsRecorder {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return metrics
}
