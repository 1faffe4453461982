package op

import "fmt"

// NotFoundError is returned when an operation ID is unknown.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("operation %s not found", e.ID)
}

// RunnerClosedError is returned when submitting to a closed runner.
type RunnerClosedError struct{}

func (e *RunnerClosedError) Error() string {
	return "runner is closed"
}

// QueueFullError is returned when the submit queue is at capacity.
type QueueFullError struct {
	Capacity int
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("submit queue is full (capacity: %d)", e.Capacity)
}

// IsNotFoundError returns true if the error is a NotFoundError.
func IsNotFoundError(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// IsRunnerClosedError returns true if the error is a RunnerClosedError.
func IsRunnerClosedError(err error) bool {
	_, ok := err.(*RunnerClosedError)
	return ok
}

// IsQueueFullError returns true if the error is a QueueFullError.
func IsQueueFullError(err error) bool {
	_, ok := err.(*QueueFullError)
	return ok
}
