// Package cancel provides a single-subscriber cooperative cancellation
// primitive for in-flight asynchronous operations.
//
// A [Signal] is the emission point for one cancellation source. It produces
// a [Slot], a cheap handle through which exactly one zero-argument handler
// can be installed, replaced or cleared. Emitting the signal invokes the
// installed handler, if any. A [State] chains signals for composed
// operations: constructed from a parent slot, it installs a forwarding
// handler that latches a cancelled flag and re-emits its own child signal,
// so a single emit at the outermost scope reaches every nesting level.
//
// The package performs no internal locking. All mutation and emission for
// a given signal must be serialized by the surrounding execution model;
// unsynchronized concurrent access from independent goroutines is the
// caller's bug. See [github.com/klaxon/klaxon/pkg/relay] for a binding
// layer that provides that serialization for named operations.
package cancel
