package op

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/klaxon/klaxon/pkg/relay"
)

// EventSink receives operation lifecycle notifications. Implementations
// must not block; the runner calls them inline.
type EventSink interface {
	OperationSubmitted(rec *Record)
	OperationStarted(rec *Record)
	OperationFinished(rec *Record)
	OperationCancelRequested(id, reason string)
}

type nopSink struct{}

func (nopSink) OperationSubmitted(rec *Record)             {}
func (nopSink) OperationStarted(rec *Record)               {}
func (nopSink) OperationFinished(rec *Record)              {}
func (nopSink) OperationCancelRequested(id, reason string) {}

// Option configures a Runner.
type Option func(*Runner)

// WithEventSink sets the lifecycle event sink.
func WithEventSink(sink EventSink) Option {
	return func(r *Runner) {
		if sink != nil {
			r.events = sink
		}
	}
}

// WithOrigin sets the origin stamped on cancellation requests issued
// through this runner.
func WithOrigin(origin string) Option {
	return func(r *Runner) {
		r.origin = origin
	}
}

type task struct {
	id     string
	name   string
	fn     Operation
	handle *Handle
}

// Runner executes operations on a fixed pool of workers. Every operation
// gets a root cancellation binding from the relay before it is queued, so
// a cancel request racing the queue is latched and observed the moment
// the operation starts.
type Runner struct {
	workers   int
	queueSize int
	queue     chan *task
	registry  *Registry
	rel       relay.Relay
	origin    string
	events    EventSink

	running  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRunner creates a runner with the given worker count and queue size.
func NewRunner(rel relay.Relay, workers, queueSize int, opts ...Option) *Runner {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	r := &Runner{
		workers:   workers,
		queueSize: queueSize,
		queue:     make(chan *task, queueSize),
		registry:  NewRegistry(),
		rel:       rel,
		events:    nopSink{},
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the runner's operation registry.
func (r *Runner) Registry() *Registry {
	return r.registry
}

// Start launches the worker pool.
func (r *Runner) Start() {
	if r.running.Load() {
		return
	}
	r.running.Store(true)
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
}

// Submit registers and enqueues an operation, returning its ID.
func (r *Runner) Submit(ctx context.Context, name string, fn Operation) (string, error) {
	if fn == nil {
		return "", fmt.Errorf("operation cannot be nil")
	}
	if !r.running.Load() {
		return "", &RunnerClosedError{}
	}

	id := uuid.New().String()
	binding, err := r.rel.Bind(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to bind operation: %w", err)
	}

	rec := &Record{
		ID:          id,
		Name:        name,
		Status:      StatusPending,
		SubmittedAt: time.Now(),
	}
	r.registry.add(rec)

	t := &task{id: id, name: name, fn: fn, handle: newHandle(id, binding, binding.NewState())}
	select {
	case r.queue <- t:
	default:
		_ = r.rel.Release(id)
		r.registry.setStatus(id, StatusFailed)
		r.registry.setError(id, "submit queue full")
		metricsRecorder().RecordRejected()
		return "", &QueueFullError{Capacity: r.queueSize}
	}

	metricsRecorder().RecordSubmitted()
	// The registry owns rec now and a worker may already be mutating it;
	// hand the sink a snapshot, never the live record.
	if snap, err := r.registry.Get(id); err == nil {
		r.events.OperationSubmitted(snap)
	}
	return id, nil
}

// Cancel publishes a cancellation request for the given operation through
// the relay, so it reaches the owning node even in distributed setups.
// Cancelling an operation that has already finished is a harmless no-op.
func (r *Runner) Cancel(ctx context.Context, id, reason string) error {
	if _, err := r.registry.Get(id); err != nil {
		return err
	}

	r.events.OperationCancelRequested(id, reason)
	return r.rel.Publish(ctx, &relay.Request{
		OperationID: id,
		Reason:      reason,
		Origin:      r.origin,
		SentAt:      time.Now(),
	})
}

// Close stops accepting work and waits for in-flight operations to
// finish. Queued operations are still executed; their handles observe
// any cancellation emitted before or during the drain.
func (r *Runner) Close() {
	r.stopOnce.Do(func() {
		r.running.Store(false)
		close(r.stopCh)
		r.wg.Wait()
	})
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for {
		select {
		case t := <-r.queue:
			r.execute(t)
		case <-r.stopCh:
			// Drain what is already queued, then exit.
			for {
				select {
				case t := <-r.queue:
					r.execute(t)
				default:
					return
				}
			}
		}
	}
}

func (r *Runner) execute(t *task) {
	r.registry.setStatus(t.id, StatusRunning)
	metricsRecorder().IncRunning()
	defer metricsRecorder().DecRunning()

	if rec, err := r.registry.Get(t.id); err == nil {
		r.events.OperationStarted(rec)
	}

	h := t.handle
	start := time.Now()
	err := r.run(t, h)

	status := StatusCompleted
	switch {
	case h.Cancelled():
		status = StatusCancelled
	case err != nil:
		status = StatusFailed
	}
	if err != nil {
		r.registry.setError(t.id, err.Error())
	}
	r.registry.setStatus(t.id, status)
	_ = r.rel.Release(t.id)
	metricsRecorder().RecordFinished(status.String(), time.Since(start))

	if rec, getErr := r.registry.Get(t.id); getErr == nil {
		r.events.OperationFinished(rec)
	}
}

// run invokes the operation, converting a panic into an error so one
// misbehaving operation cannot take down a worker.
func (r *Runner) run(t *task, h *Handle) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("operation panicked: %v", rec)
		}
	}()
	return t.fn(h)
}
