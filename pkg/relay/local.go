package relay

import (
	"context"
	"fmt"
	"sync"
)

// Local is an in-process Relay implementation. Requests published to it
// are emitted synchronously on the caller's goroutine, under the target
// binding's serialization.
type Local struct {
	mu       sync.RWMutex
	bindings map[string]*Binding
	closed   bool
}

// NewLocal creates a new in-process relay.
func NewLocal() *Local {
	return &Local{
		bindings: make(map[string]*Binding),
	}
}

// Bind creates a root signal binding for the given operation ID.
func (l *Local) Bind(_ context.Context, opID string) (*Binding, error) {
	if opID == "" {
		return nil, fmt.Errorf("operation id cannot be empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, fmt.Errorf("relay is closed")
	}
	if _, exists := l.bindings[opID]; exists {
		return nil, fmt.Errorf("operation %s already bound", opID)
	}

	b := newBinding()
	l.bindings[opID] = b
	metricsRecorder().RecordBindings("local", len(l.bindings))
	return b, nil
}

// Publish emits the target operation's root signal. Unknown operation IDs
// are silently dropped.
func (l *Local) Publish(_ context.Context, req *Request) error {
	if req == nil {
		metricsRecorder().RecordFailed("local", "nil_request")
		return fmt.Errorf("request cannot be nil")
	}
	if req.OperationID == "" {
		metricsRecorder().RecordFailed("local", "empty_operation_id")
		return fmt.Errorf("request operation_id cannot be empty")
	}

	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		metricsRecorder().RecordFailed("local", "relay_closed")
		return fmt.Errorf("relay is closed")
	}
	b, ok := l.bindings[req.OperationID]
	l.mu.RUnlock()

	metricsRecorder().RecordPublished("local")
	if !ok {
		return nil // nothing bound, silently drop
	}

	b.Emit()
	metricsRecorder().RecordDelivered("local")
	return nil
}

// Release closes and forgets the binding for the given operation ID.
func (l *Local) Release(opID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.bindings[opID]
	if !ok {
		return nil
	}

	b.Close()
	delete(l.bindings, opID)
	metricsRecorder().RecordBindings("local", len(l.bindings))
	return nil
}

// Close shuts down the relay and closes all bindings.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true
	for opID, b := range l.bindings {
		b.Close()
		delete(l.bindings, opID)
	}
	metricsRecorder().RecordBindings("local", 0)
	return nil
}

// Healthy returns true if the relay is not closed.
func (l *Local) Healthy() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return !l.closed
}
