package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MetricsRecorder defines the interface for recording HTTP metrics.
type MetricsRecorder interface {
	RecordHTTPRequest(method, path, status string, duration time.Duration)
	IncActiveConnections()
	DecActiveConnections()
}

// Metrics records request counts, durations, and in-flight connections.
// The /metrics endpoint itself is exempt. Recording is deferred, so a
// panicking handler is still counted before the panic continues up to
// the recovery middleware.
func Metrics(recorder MetricsRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/metrics") {
				next.ServeHTTP(w, r)
				return
			}

			recorder.IncActiveConnections()
			sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			defer func() {
				if rec := recover(); rec != nil {
					sr.status = http.StatusInternalServerError
					defer panic(rec)
				}
				recorder.RecordHTTPRequest(r.Method, normalizePath(r.URL.Path),
					strconv.Itoa(sr.status), time.Since(start))
				recorder.DecActiveConnections()
			}()

			next.ServeHTTP(sr, r)
		})
	}
}

// statusRecorder captures the first status code written to the response.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.status = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	sr.written = true
	return sr.ResponseWriter.Write(b)
}

// normalizePath collapses per-resource path segments so metric label
// cardinality stays bounded: UUIDs and purely numeric segments become
// ":id".
func normalizePath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if isUUIDSegment(seg) || isNumericSegment(seg) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

func isUUIDSegment(s string) bool {
	return len(s) == 36 && strings.Count(s, "-") == 4
}

func isNumericSegment(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
