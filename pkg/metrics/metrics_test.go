package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/klaxon/klaxon/pkg/cancel"
	"github.com/klaxon/klaxon/pkg/op"
	"github.com/klaxon/klaxon/pkg/relay"
)

// The manager must satisfy every package's recorder interface.
var (
	_ cancel.MetricsRecorder = (*Manager)(nil)
	_ relay.MetricsRecorder  = (*Manager)(nil)
	_ op.MetricsRecorder     = (*Manager)(nil)
)

func TestNewManager_Enabled(t *testing.T) {
	m := NewManager(DefaultConfig())
	if !m.Enabled() {
		t.Fatal("expected manager to be enabled")
	}

	m.RecordInstall(false)
	m.RecordInstall(true)
	m.RecordEmit(true)
	m.RecordClear()
	m.RecordStateCreated(true)

	if got := testutil.ToFloat64(m.cancelInstalls.WithLabelValues("true")); got != 1 {
		t.Errorf("cancel installs (reused) = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.cancelEmits.WithLabelValues("true")); got != 1 {
		t.Errorf("cancel emits (delivered) = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.cancelClears); got != 1 {
		t.Errorf("cancel clears = %v, want 1", got)
	}
}

func TestManager_RelayMetrics(t *testing.T) {
	m := NewManager(DefaultConfig())

	m.RecordPublished("local")
	m.RecordDelivered("local")
	m.RecordFailed("redis", "marshal")
	m.RecordBindings("local", 3)

	if got := testutil.ToFloat64(m.relayPublished.WithLabelValues("local")); got != 1 {
		t.Errorf("relay published = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.relayFailures.WithLabelValues("redis", "marshal")); got != 1 {
		t.Errorf("relay failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.relayBindings.WithLabelValues("local")); got != 3 {
		t.Errorf("relay bindings = %v, want 3", got)
	}
}

func TestManager_OpMetrics(t *testing.T) {
	m := NewManager(DefaultConfig())

	m.RecordSubmitted()
	m.RecordSubmitted()
	m.RecordRejected()
	m.IncRunning()
	m.RecordFinished("completed", 50*time.Millisecond)
	m.DecRunning()

	if got := testutil.ToFloat64(m.opSubmissions); got != 2 {
		t.Errorf("op submissions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.opRejections); got != 1 {
		t.Errorf("op rejections = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.opRunning); got != 0 {
		t.Errorf("op running = %v, want 0", got)
	}
}

func TestManager_Handler(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.RecordSubmitted()
	m.RecordHTTPRequest("GET", "/api/v1/operations", "200", 5*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("metrics endpoint returned %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "op_submissions_total") {
		t.Error("expected op_submissions_total in metrics output")
	}
	if !strings.Contains(body, "http_requests_total") {
		t.Error("expected http_requests_total in metrics output")
	}
}

func TestNoOpManager(t *testing.T) {
	m := NoOpManager()
	if m.Enabled() {
		t.Fatal("expected no-op manager to be disabled")
	}

	// None of these may panic on the nil metric fields.
	m.RecordInstall(true)
	m.RecordEmit(false)
	m.RecordClear()
	m.RecordStateCreated(false)
	m.RecordPublished("local")
	m.RecordDelivered("local")
	m.RecordFailed("local", "x")
	m.RecordBindings("local", 1)
	m.RecordSubmitted()
	m.RecordRejected()
	m.RecordFinished("failed", time.Second)
	m.IncRunning()
	m.DecRunning()
	m.RecordHTTPRequest("GET", "/", "200", time.Millisecond)
	m.IncActiveConnections()
	m.DecActiveConnections()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("disabled metrics handler returned %d, want 404", rec.Code)
	}
}
