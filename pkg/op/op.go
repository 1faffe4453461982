// Package op provides the asynchronous operation runtime: a worker-pool
// runner, a registry of in-flight operations, and per-operation
// cancellation handles bound through a relay.
package op

import "time"

// Status represents the lifecycle state of an operation.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusCancelled
)

// String returns the string representation of Status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status is a final state.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Record holds the tracked state of one operation.
type Record struct {
	ID          string
	Name        string
	Status      Status
	Error       string
	SubmittedAt time.Time
	StartedAt   time.Time
	EndedAt     time.Time
}
