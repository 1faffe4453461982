package relay

import (
	"sync"

	"github.com/klaxon/klaxon/pkg/cancel"
)

// Binding wraps the root cancellation signal of one bound operation and
// serializes all access to it. The cancel package itself is lock-free by
// contract; the binding is the "surrounding execution model" that makes
// emission from a canceller goroutine safe against slot mutation from the
// operation's own goroutine.
//
// The serialization is a single non-reentrant mutex, and Emit holds it
// for the whole handler chain. A handler installed through a slot of
// this binding must therefore never call back into the binding (Emit,
// NewState, Derive, Cancelled); doing so self-deadlocks. Handlers
// should only latch flags, close channels, or hand work to another
// goroutine.
type Binding struct {
	mu     sync.Mutex
	sig    *cancel.Signal
	closed bool
}

func newBinding() *Binding {
	return &Binding{sig: cancel.NewSignal()}
}

// Emit emits the root signal. Emitting a closed binding is a no-op. The
// binding's mutex is held while the handler chain runs; see the type
// comment for the handler re-entrancy restriction.
func (b *Binding) Emit() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sig.Emit()
}

// NewState derives a cancellation state from the root slot, replacing any
// handler previously installed there. The operation typically calls this
// once at startup and chains further states from the returned state's
// slot via Derive.
func (b *Binding) NewState() cancel.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cancel.NewState(b.sig.Slot())
}

// Derive constructs a cancellation state from an arbitrary parent slot
// under the binding's serialization. Nested operations use this to chain
// from a state slot without racing a concurrent Emit.
func (b *Binding) Derive(parent cancel.Slot) cancel.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cancel.NewState(parent)
}

// Cancelled reports st.Cancelled() under the binding's serialization.
// Operations polling their latch from a goroutine other than the
// canceller's must read through here.
func (b *Binding) Cancelled(st cancel.State) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return st.Cancelled()
}

// Close clears and closes the root signal without emitting. Idempotent.
func (b *Binding) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.sig.Close()
}
