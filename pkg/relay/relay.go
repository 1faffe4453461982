// Package relay routes cancellation requests to the root signals of named
// in-flight operations.
//
// A relay owns one root [github.com/klaxon/klaxon/pkg/cancel.Signal] per
// bound operation, wrapped in a [Binding] that serializes slot mutation
// and emission, the execution-context guarantee the cancel package
// requires from its surroundings. The Local relay delivers requests
// in-process; the Redis relay carries them across processes over pub/sub
// so any node can cancel an operation running on another.
package relay

import (
	"context"
	"time"
)

// Request is a cancellation request addressed to a named operation. The
// reason and origin are observability metadata consumed at the boundary;
// they are never threaded through signal emission itself.
type Request struct {
	// OperationID identifies the target operation.
	OperationID string `json:"operation_id"`

	// Reason is a human-readable explanation for the cancellation.
	Reason string `json:"reason,omitempty"`

	// Origin identifies the node or actor that issued the request.
	Origin string `json:"origin,omitempty"`

	// SentAt is the timestamp when the request was issued.
	SentAt time.Time `json:"sent_at"`
}

// Relay delivers cancellation requests to bound operations.
type Relay interface {
	// Bind creates and owns a root signal for the given operation ID and
	// returns its binding. Binding an already-bound ID is an error.
	Bind(ctx context.Context, opID string) (*Binding, error)

	// Publish routes a cancellation request to the target operation's
	// root signal. Publishing to an unknown operation is not an error;
	// the request is silently dropped.
	Publish(ctx context.Context, req *Request) error

	// Release closes and forgets the binding for the given operation ID.
	// Releasing an unknown ID is a no-op.
	Release(opID string) error

	// Close shuts down the relay and releases all bindings.
	Close() error

	// Healthy returns true if the relay is operational.
	Healthy() bool
}
