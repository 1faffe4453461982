package cancel

// handlerBox owns the type-erased zero-argument callable installed through
// a slot. The box allocation outlives individual handlers: replacing the
// handler through an occupied slot rebinds the existing box instead of
// allocating a fresh one. Composed operations that re-install their
// cancellation handler on every step (a retry loop, a chained read) would
// otherwise churn the allocator once per step.
type handlerBox struct {
	fn func()
}

// invoke calls the wrapped callable.
func (b *handlerBox) invoke() {
	b.fn()
}

// rebind replaces the callable, keeping the allocation. The previous
// callable is disposed of before the new one becomes visible; it is never
// invoked again.
func (b *handlerBox) rebind(fn func()) {
	b.fn = fn
}

// Signal is a cancellation signal with a single slot.
//
// A freshly constructed Signal has no handler; Emit on it is a no-op. At
// most one handler is installed at any time, and installing a new one
// always supersedes the previous. The zero value is not usable; construct
// with NewSignal.
type Signal struct {
	box    *handlerBox
	closed bool
}

// NewSignal creates a new cancellation signal with an empty slot.
func NewSignal() *Signal {
	return &Signal{}
}

// Emit invokes the slot's handler, if one is installed. Emitting with no
// handler installed, or after Close, is a valid no-op. Emit does not block
// on the handler's downstream effects.
func (s *Signal) Emit() {
	if s.closed || s.box == nil {
		metricsRecorder().RecordEmit(false)
		return
	}
	metricsRecorder().RecordEmit(true)
	s.box.invoke()
}

// Slot returns the single slot associated with the signal. Repeated calls
// return equal slots referencing the same storage; installing through any
// of them replaces what the others see.
//
// The signal must remain open for as long as the slot may be used to
// install handlers; slot operations on a closed signal fail with
// ErrSignalClosed.
func (s *Signal) Slot() Slot {
	return Slot{sig: s}
}

// Close releases any installed handler without invoking it and marks the
// signal closed. Cancellation must be emitted explicitly before Close if
// delivery is required. Close is idempotent; Emit after Close is a no-op
// and slot installs after Close fail cleanly.
func (s *Signal) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.box = nil
}
