package cancel

import "errors"

// ErrSignalClosed is returned by Slot.Install when the slot's signal has
// been closed.
var ErrSignalClosed = errors.New("cancel: signal is closed")

// Slot is a non-owning handle to the single handler storage location of
// one Signal.
//
// Slots are comparable values: two slots are equal iff they were produced
// by the same signal. Two zero-value (unconnected) slots compare equal to
// each other; this represents "no cancellation point" as a single
// canonical value and is documented, relied-upon behavior.
//
// A slot holds no ownership. It is only usable while its signal is open;
// after Signal.Close, Install fails with ErrSignalClosed and Clear is a
// no-op.
type Slot struct {
	sig *Signal
}

// Install installs fn as the slot's handler, superseding any handler
// previously installed through this or an equal slot. The previous
// handler is disposed of before fn is installed and is never invoked
// afterwards; its box allocation is retained and reused for fn. The
// replacement is atomic: the slot is never observed half-installed.
//
// Install panics if the slot is unconnected: a caller holding a slot it
// believes is connected has a bug that must not be silently ignored. It
// panics on a nil fn for the same reason. If the signal has been closed
// it returns ErrSignalClosed and installs nothing.
func (s Slot) Install(fn func()) error {
	if s.sig == nil {
		panic("cancel: Install on unconnected slot")
	}
	if fn == nil {
		panic("cancel: Install with nil handler")
	}
	if s.sig.closed {
		return ErrSignalClosed
	}
	if s.sig.box != nil {
		s.sig.box.rebind(fn)
		metricsRecorder().RecordInstall(true)
		return nil
	}
	s.sig.box = &handlerBox{fn: fn}
	metricsRecorder().RecordInstall(false)
	return nil
}

// Clear removes and disposes of the installed handler, releasing its box.
// Clear is idempotent and a no-op on an unconnected slot or a slot whose
// signal is closed or empty.
func (s Slot) Clear() {
	if s.sig == nil || s.sig.closed || s.sig.box == nil {
		return
	}
	s.sig.box = nil
	metricsRecorder().RecordClear()
}

// IsConnected reports whether the slot references a signal.
func (s Slot) IsConnected() bool {
	return s.sig != nil
}

// HasHandler reports whether the slot is connected and a handler is
// currently installed.
func (s Slot) HasHandler() bool {
	return s.sig != nil && !s.sig.closed && s.sig.box != nil
}
