package op

import (
	"time"

	"github.com/klaxon/klaxon/pkg/cancel"
	"github.com/klaxon/klaxon/pkg/relay"
)

// Operation is the unit of work the runner executes. The handle carries
// the operation's cancellation surface; implementations should poll
// h.Cancelled at resumption points and unwind early when it reports true.
type Operation func(h *Handle) error

// Handle is the per-operation cancellation surface handed to a running
// operation. It wraps the operation's root relay binding, so every slot
// mutation and emission it performs is serialized against concurrent
// cancellation from other goroutines.
type Handle struct {
	id      string
	binding *relay.Binding
	root    cancel.State
}

// newHandle wraps a binding whose root state was already derived. The
// runner derives the state at submit time, so a cancellation that lands
// while the operation is still queued is latched rather than lost.
func newHandle(id string, b *relay.Binding, root cancel.State) *Handle {
	return &Handle{
		id:      id,
		binding: b,
		root:    root,
	}
}

// ID returns the operation's identifier.
func (h *Handle) ID() string {
	return h.id
}

// Cancelled reports whether cancellation has reached this operation. The
// latch is monotonic.
func (h *Handle) Cancelled() bool {
	return h.binding.Cancelled(h.root)
}

// Slot returns the operation's cancellation slot, to be handed to a
// nested asynchronous operation.
//
// A handler installed through this slot runs with the handle's binding
// mutex held and must not call back into the handle (Cancel, Cancelled,
// Derive, CancelledState); that self-deadlocks. Latch a flag or close a
// channel instead.
func (h *Handle) Slot() cancel.Slot {
	return h.root.Slot()
}

// Derive chains a new cancellation state from parent under the handle's
// serialization. Use the returned state's Slot for the next nesting
// level and query its latch through Cancelled on this handle's binding.
func (h *Handle) Derive(parent cancel.Slot) cancel.State {
	return h.binding.Derive(parent)
}

// CancelledState reports st.Cancelled() under the handle's
// serialization, for states obtained from Derive.
func (h *Handle) CancelledState(st cancel.State) bool {
	return h.binding.Cancelled(st)
}

// Cancel emits the operation's root signal locally, bypassing the relay.
// The deadline watchdog uses this; external cancellers go through the
// relay so the request also reaches remote nodes.
func (h *Handle) Cancel() {
	h.binding.Emit()
}

// Deadline arms a watchdog that cancels the operation when d elapses.
// Disarm the returned watchdog once the guarded step completes.
func (h *Handle) Deadline(d time.Duration) *Watchdog {
	return &Watchdog{timer: time.AfterFunc(d, h.Cancel)}
}

// Watchdog is an armed cancellation deadline.
type Watchdog struct {
	timer *time.Timer
}

// Disarm stops the watchdog. It reports false if the deadline already
// fired.
func (w *Watchdog) Disarm() bool {
	return w.timer.Stop()
}
