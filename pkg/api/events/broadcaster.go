// Package events provides non-blocking fan-out of operation lifecycle
// events to in-process subscribers, typically websocket streams.
package events

import (
	"sync"
	"time"

	"github.com/klaxon/klaxon/pkg/op"
)

// Event is the canonical event payload broadcast to websocket subscribers.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Broadcaster broadcasts events to in-process subscribers.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// NewBroadcaster creates a broadcaster instance.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe subscribes to events with a buffered channel.
func (b *Broadcaster) Subscribe(buffer int) chan Event {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; !ok {
		return
	}
	delete(b.subscribers, ch)
	close(ch)
}

// Broadcast broadcasts a generic event to all subscribers.
func (b *Broadcaster) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	subs := make([]chan Event, 0, len(b.subscribers))
	for ch := range b.subscribers {
		subs = append(subs, ch)
	}
	b.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			// Drop on overflow to keep broadcasters non-blocking.
		}
	}
}

// BroadcastOperationState emits an operation lifecycle event.
func (b *Broadcaster) BroadcastOperationState(eventType string, rec *op.Record) {
	payload := map[string]any{
		"operation_id": rec.ID,
		"name":         rec.Name,
		"status":       rec.Status.String(),
		"submitted_at": rec.SubmittedAt.UTC().Format(time.RFC3339Nano),
	}
	if rec.Error != "" {
		payload["error"] = rec.Error
	}
	if !rec.StartedAt.IsZero() {
		payload["started_at"] = rec.StartedAt.UTC().Format(time.RFC3339Nano)
	}
	if !rec.EndedAt.IsZero() {
		payload["ended_at"] = rec.EndedAt.UTC().Format(time.RFC3339Nano)
	}

	b.Broadcast(Event{
		Type:    eventType,
		Payload: payload,
	})
}

// BroadcastCancelRequested emits a cancellation request event.
func (b *Broadcaster) BroadcastCancelRequested(id, reason string) {
	payload := map[string]any{
		"operation_id": id,
	}
	if reason != "" {
		payload["reason"] = reason
	}

	b.Broadcast(Event{
		Type:    "operation.cancel_requested",
		Payload: payload,
	})
}

// Close closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, ch)
	}
}

// Sink adapts a Broadcaster to the runner's event sink interface.
type Sink struct {
	b *Broadcaster
}

// NewSink creates a runner event sink backed by the broadcaster.
func NewSink(b *Broadcaster) *Sink {
	return &Sink{b: b}
}

// OperationSubmitted broadcasts an operation.submitted event.
func (s *Sink) OperationSubmitted(rec *op.Record) {
	s.b.BroadcastOperationState("operation.submitted", rec)
}

// OperationStarted broadcasts an operation.started event.
func (s *Sink) OperationStarted(rec *op.Record) {
	s.b.BroadcastOperationState("operation.started", rec)
}

// OperationFinished broadcasts an operation.finished event.
func (s *Sink) OperationFinished(rec *op.Record) {
	s.b.BroadcastOperationState("operation.finished", rec)
}

// OperationCancelRequested broadcasts an operation.cancel_requested event.
func (s *Sink) OperationCancelRequested(id, reason string) {
	s.b.BroadcastCancelRequested(id, reason)
}
