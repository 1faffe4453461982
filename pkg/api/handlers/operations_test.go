package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klaxon/klaxon/pkg/logger"
	"github.com/klaxon/klaxon/pkg/op"
	"github.com/klaxon/klaxon/pkg/relay"
)

func newTestHandler(t *testing.T) (*OperationsHandler, *op.Runner) {
	t.Helper()
	rel := relay.NewLocal()
	t.Cleanup(func() { rel.Close() })

	runner := op.NewRunner(rel, 2, 16)
	runner.Start()
	t.Cleanup(runner.Close)

	log := logger.New(&logger.Config{Level: logger.ErrorLevel, Format: "json", Output: "stderr"})
	h := NewOperationsHandler(runner, log)
	h.pollInterval = time.Millisecond
	return h, runner
}

func newOperationsRouter(h *OperationsHandler) chi.Router {
	r := chi.NewRouter()
	r.Post("/api/v1/operations", h.SubmitOperation)
	r.Get("/api/v1/operations", h.ListOperations)
	r.Get("/api/v1/operations/{id}", h.GetOperation)
	r.Post("/api/v1/operations/{id}/cancel", h.CancelOperation)
	return r
}

func submitOperation(t *testing.T, router chi.Router, body SubmitOperationRequest) string {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/operations", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["id"])
	return resp["id"]
}

func waitForTerminal(t *testing.T, runner *op.Runner, id string) *op.Record {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := runner.Registry().Get(id)
		require.NoError(t, err)
		if rec.Status.Terminal() {
			return rec
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("operation never reached a terminal status")
	return nil
}

func TestOperationsHandler_SubmitAndGet(t *testing.T) {
	h, runner := newTestHandler(t)
	router := newOperationsRouter(h)

	id := submitOperation(t, router, SubmitOperationRequest{Name: "quick"})
	waitForTerminal(t, runner, id)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/operations/"+id, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp OperationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.ID)
	assert.Equal(t, "quick", resp.Name)
	assert.Equal(t, "completed", resp.Status)
	assert.NotEmpty(t, resp.EndedAt)
}

func TestOperationsHandler_SubmitValidation(t *testing.T) {
	h, _ := newTestHandler(t)
	router := newOperationsRouter(h)

	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{}`},
		{"malformed json", `{`},
		{"bad duration", `{"name":"x","duration":"soon"}`},
		{"negative duration", `{"name":"x","duration":"-1s"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/operations", bytes.NewReader([]byte(tt.body)))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestOperationsHandler_CancelRunningOperation(t *testing.T) {
	h, runner := newTestHandler(t)
	router := newOperationsRouter(h)

	id := submitOperation(t, router, SubmitOperationRequest{Name: "long", Duration: "30s"})

	// Wait until it is actually running before cancelling.
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec, err := runner.Registry().Get(id)
		require.NoError(t, err)
		if rec.Status == op.StatusRunning {
			break
		}
		require.True(t, time.Now().Before(deadline), "operation never started")
		time.Sleep(2 * time.Millisecond)
	}

	body := bytes.NewReader([]byte(`{"reason":"user requested"}`))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/operations/"+id+"/cancel", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	rec := waitForTerminal(t, runner, id)
	assert.Equal(t, op.StatusCancelled, rec.Status)
}

func TestOperationsHandler_CancelUnknown(t *testing.T) {
	h, _ := newTestHandler(t)
	router := newOperationsRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/operations/nope/cancel", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOperationsHandler_DeadlineCancels(t *testing.T) {
	h, runner := newTestHandler(t)
	router := newOperationsRouter(h)

	id := submitOperation(t, router, SubmitOperationRequest{
		Name:     "deadlined",
		Duration: "30s",
		Deadline: "20ms",
	})

	rec := waitForTerminal(t, runner, id)
	assert.Equal(t, op.StatusCancelled, rec.Status)
}

func TestOperationsHandler_FailedOperation(t *testing.T) {
	h, runner := newTestHandler(t)
	router := newOperationsRouter(h)

	id := submitOperation(t, router, SubmitOperationRequest{Name: "failing", Fail: true})

	rec := waitForTerminal(t, runner, id)
	assert.Equal(t, op.StatusFailed, rec.Status)
	assert.NotEmpty(t, rec.Error)
}

func TestOperationsHandler_List(t *testing.T) {
	h, runner := newTestHandler(t)
	router := newOperationsRouter(h)

	first := submitOperation(t, router, SubmitOperationRequest{Name: "a"})
	second := submitOperation(t, router, SubmitOperationRequest{Name: "b"})
	waitForTerminal(t, runner, first)
	waitForTerminal(t, runner, second)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/operations", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Operations []OperationResponse `json:"operations"`
		Count      int                 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)

	// Status filter
	req = httptest.NewRequest(http.MethodGet, "/api/v1/operations?status=completed&limit=1", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "completed", resp.Operations[0].Status)
}

func TestHealthHandler(t *testing.T) {
	rel := relay.NewLocal()
	defer rel.Close()
	reg := op.NewRegistry()
	h := NewHealthHandler(rel, reg)

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.Status(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var status map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, true, status["relay_healthy"])

	// A closed relay is not ready.
	rel.Close()
	w = httptest.NewRecorder()
	h.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
