package cancel

import "sync"

// MetricsRecorder defines metrics hooks for the cancellation primitive.
type MetricsRecorder interface {
	// RecordInstall records a handler installation. reused is true when
	// the previous handler's box allocation was reused.
	RecordInstall(reused bool)

	// RecordEmit records a signal emission. delivered is true when a
	// handler was invoked.
	RecordEmit(delivered bool)

	// RecordClear records a slot clear that released a handler.
	RecordClear()

	// RecordStateCreated records a State construction. connected is
	// false for pass-through states built from unconnected slots.
	RecordStateCreated(connected bool)
}

type nopMetrics struct{}

func (n *nopMetrics) RecordInstall(reused bool)         {}
func (n *nopMetrics) RecordEmit(delivered bool)         {}
func (n *nopMetrics) RecordClear()                      {}
func (n *nopMetrics) RecordStateCreated(connected bool) {}

var (
	metricsMu sync.RWMutex
	metrics   MetricsRecorder = &nopMetrics{}
)

// SetMetricsRecorder sets the package-level metrics recorder. Passing nil
// restores the no-op recorder.
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
