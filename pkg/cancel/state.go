package cancel

// State chains cancellation through composed operations.
//
// Constructed from a parent slot, a State owns a private child signal and
// installs into the parent a forwarding handler that latches the cancelled
// flag and re-emits the child. Handing the child slot to a nested
// operation lets a single emit at the outermost signal propagate through
// every nesting level, while each level independently observes whether
// cancellation has been seen.
//
// A State built from an unconnected slot is a permanent pass-through: its
// Slot is unconnected and Cancelled is always false. Cancellation simply
// cannot propagate through a caller that never offered a slot.
type State struct {
	impl *stateImpl
}

type stateImpl struct {
	child     *Signal
	cancelled bool
}

// forward is the handler a State installs into its parent slot.
func (im *stateImpl) forward() {
	im.cancelled = true
	im.child.Emit()
}

// NewState derives a new cancellation state from parent, replacing any
// handler previously installed there. If parent is unconnected, or its
// signal has already been closed, the returned State is the pass-through
// no-op described on State.
func NewState(parent Slot) State {
	if !parent.IsConnected() {
		metricsRecorder().RecordStateCreated(false)
		return State{}
	}
	im := &stateImpl{child: NewSignal()}
	if err := parent.Install(im.forward); err != nil {
		metricsRecorder().RecordStateCreated(false)
		return State{}
	}
	metricsRecorder().RecordStateCreated(true)
	return State{impl: im}
}

// Slot returns the child signal's slot, to be handed to the nested
// operation. Repeatable and side-effect-free.
func (s State) Slot() Slot {
	if s.impl == nil {
		return Slot{}
	}
	return s.impl.child.Slot()
}

// Cancelled reports whether the parent signal has emitted through this
// state. The flag is monotonic: once true it stays true, so an emission
// is never lost to a later check after a suspension point.
func (s State) Cancelled() bool {
	return s.impl != nil && s.impl.cancelled
}
