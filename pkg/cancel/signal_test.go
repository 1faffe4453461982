package cancel

import "testing"

func TestNewSignal_EmptyEmitIsNoop(t *testing.T) {
	sig := NewSignal()

	if sig.Slot().HasHandler() {
		t.Error("fresh signal should have no handler")
	}

	// Must not panic, must not invoke anything.
	sig.Emit()
	sig.Emit()
}

func TestEmit_InvokesHandlerOncePerEmit(t *testing.T) {
	sig := NewSignal()
	count := 0

	if err := sig.Slot().Install(func() { count++ }); err != nil {
		t.Fatal(err)
	}
	if !sig.Slot().HasHandler() {
		t.Fatal("expected handler after install")
	}

	sig.Emit()
	if count != 1 {
		t.Fatalf("expected 1 invocation, got %d", count)
	}

	sig.Emit()
	sig.Emit()
	if count != 3 {
		t.Errorf("expected 3 invocations, got %d", count)
	}
}

func TestClose_ReleasesWithoutInvoking(t *testing.T) {
	sig := NewSignal()
	invoked := false
	if err := sig.Slot().Install(func() { invoked = true }); err != nil {
		t.Fatal(err)
	}

	sig.Close()
	if invoked {
		t.Error("Close must not invoke the handler")
	}

	// Emit after close is a no-op.
	sig.Emit()
	if invoked {
		t.Error("Emit after Close must not invoke the handler")
	}

	// Close is idempotent.
	sig.Close()

	if sig.Slot().HasHandler() {
		t.Error("closed signal should report no handler")
	}
}

func TestInstall_AfterCloseFailsCleanly(t *testing.T) {
	sig := NewSignal()
	slot := sig.Slot()
	sig.Close()

	if err := slot.Install(func() {}); err != ErrSignalClosed {
		t.Errorf("expected ErrSignalClosed, got %v", err)
	}
}
