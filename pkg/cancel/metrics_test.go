package cancel

import "testing"

type countingRecorder struct {
	installs  int
	reuses    int
	emits     int
	delivered int
	clears    int
	states    int
}

func (c *countingRecorder) RecordInstall(reused bool) {
	c.installs++
	if reused {
		c.reuses++
	}
}

func (c *countingRecorder) RecordEmit(delivered bool) {
	c.emits++
	if delivered {
		c.delivered++
	}
}

func (c *countingRecorder) RecordClear() { c.clears++ }

func (c *countingRecorder) RecordStateCreated(connected bool) {
	if connected {
		c.states++
	}
}

func TestMetricsRecorder_Hooks(t *testing.T) {
	rec := &countingRecorder{}
	SetMetricsRecorder(rec)
	defer SetMetricsRecorder(nil)

	sig := NewSignal()
	slot := sig.Slot()

	sig.Emit() // empty, not delivered
	if err := slot.Install(func() {}); err != nil {
		t.Fatal(err)
	}
	if err := slot.Install(func() {}); err != nil { // reuse
		t.Fatal(err)
	}
	sig.Emit()
	slot.Clear()
	_ = NewState(sig.Slot())

	if rec.installs != 3 { // two direct, one forwarding handler
		t.Errorf("installs = %d, want 3", rec.installs)
	}
	if rec.reuses != 1 {
		t.Errorf("reuses = %d, want 1", rec.reuses)
	}
	if rec.emits != 2 || rec.delivered != 1 {
		t.Errorf("emits = %d/%d delivered, want 2/1", rec.emits, rec.delivered)
	}
	if rec.clears != 1 {
		t.Errorf("clears = %d, want 1", rec.clears)
	}
	if rec.states != 1 {
		t.Errorf("connected states = %d, want 1", rec.states)
	}
}
