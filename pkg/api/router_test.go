package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/klaxon/klaxon/config"
	"github.com/klaxon/klaxon/pkg/api/handlers"
	"github.com/klaxon/klaxon/pkg/api/middleware"
	"github.com/klaxon/klaxon/pkg/logger"
	"github.com/klaxon/klaxon/pkg/op"
	"github.com/klaxon/klaxon/pkg/relay"
)

func newTestRouter(t *testing.T, limiter *middleware.RateLimiter) http.Handler {
	t.Helper()

	cfg := config.DefaultConfig()
	log := logger.New(&logger.Config{Level: logger.ErrorLevel, Format: "json", Output: "stderr"})

	rel := relay.NewLocal()
	t.Cleanup(func() { rel.Close() })
	runner := op.NewRunner(rel, 2, 16)
	runner.Start()
	t.Cleanup(runner.Close)

	return NewRouter(cfg, log, &Handlers{
		Operations:    handlers.NewOperationsHandler(runner, log),
		Health:        handlers.NewHealthHandler(rel, runner.Registry()),
		CancelLimiter: limiter,
	})
}

func TestRouter_HealthEndpoints(t *testing.T) {
	router := newTestRouter(t, nil)

	for _, path := range []string{"/health", "/ready", "/status"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, w.Code)
		}
	}
}

func TestRouter_OperationLifecycle(t *testing.T) {
	router := newTestRouter(t, nil)

	body := bytes.NewReader([]byte(`{"name":"roundtrip"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/operations", body))
	if w.Code != http.StatusCreated {
		t.Fatalf("submit = %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected request ID header on response")
	}

	var created map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/operations/"+created["id"], nil))
	if w.Code != http.StatusOK {
		t.Errorf("get = %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/operations", nil))
	if w.Code != http.StatusOK {
		t.Errorf("list = %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/operations/unknown", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("get unknown = %d, want 404", w.Code)
	}
}

func TestRouter_CancelRateLimited(t *testing.T) {
	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: 0.001,
		Burst:             1,
		IdleTTL:           time.Minute,
	})
	router := newTestRouter(t, limiter)

	// First cancel attempt consumes the only token; the target does not
	// exist, so it 404s after passing the limiter.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/operations/x/cancel", nil)
	req.RemoteAddr = "10.1.1.1:40000"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("first cancel = %d, want 404", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/operations/x/cancel", nil)
	req.RemoteAddr = "10.1.1.1:40001"
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second cancel = %d, want 429", w.Code)
	}

	// The limiter does not throttle reads.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/operations", nil))
	if w.Code != http.StatusOK {
		t.Errorf("list = %d, want 200", w.Code)
	}
}
