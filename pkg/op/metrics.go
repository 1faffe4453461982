package op

import (
	"sync"
	"time"
)

// MetricsRecorder defines metrics hooks for the operation runtime.
type MetricsRecorder interface {
	RecordSubmitted()
	RecordRejected()
	RecordFinished(status string, duration time.Duration)
	IncRunning()
	DecRunning()
}

type nopMetrics struct{}

func (n *nopMetrics) RecordSubmitted()                                     {}
func (n *nopMetrics) RecordRejected()                                      {}
func (n *nopMetrics) RecordFinished(status string, duration time.Duration) {}
func (n *nopMetrics) IncRunning()                                          {}
func (n *nopMetrics) DecRunning()                                          {}

var (
	metricsMu sync.RWMutex
	metrics   MetricsRecorder = &nopMetrics{}
)

// SetMetricsRecorder sets the package-level operation metrics recorder.
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
