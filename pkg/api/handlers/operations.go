// Package handlers provides HTTP request handlers.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/klaxon/klaxon/pkg/api/middleware"
	"github.com/klaxon/klaxon/pkg/api/response"
	"github.com/klaxon/klaxon/pkg/logger"
	"github.com/klaxon/klaxon/pkg/op"
)

var (
	errDemoFailure     = errors.New("operation failed as requested")
	errInvalidDuration = errors.New("invalid duration")
)

// SubmitOperationRequest is the payload for submitting an operation.
type SubmitOperationRequest struct {
	// Name identifies the operation in listings and events.
	Name string `json:"name" validate:"required"`

	// Duration is how long the demo operation runs (e.g. "2s").
	// Zero means it completes immediately.
	Duration string `json:"duration,omitempty"`

	// Fail makes the operation return an error when it finishes.
	Fail bool `json:"fail,omitempty"`

	// Deadline arms a watchdog that cancels the operation after the
	// given duration (e.g. "500ms").
	Deadline string `json:"deadline,omitempty"`
}

// OperationResponse is the wire representation of an operation record.
type OperationResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	SubmittedAt string `json:"submitted_at"`
	StartedAt   string `json:"started_at,omitempty"`
	EndedAt     string `json:"ended_at,omitempty"`
}

// CancelOperationRequest is the payload for cancelling an operation.
type CancelOperationRequest struct {
	Reason string `json:"reason,omitempty"`
}

func operationResponse(rec *op.Record) OperationResponse {
	resp := OperationResponse{
		ID:          rec.ID,
		Name:        rec.Name,
		Status:      rec.Status.String(),
		Error:       rec.Error,
		SubmittedAt: rec.SubmittedAt.UTC().Format(time.RFC3339Nano),
	}
	if !rec.StartedAt.IsZero() {
		resp.StartedAt = rec.StartedAt.UTC().Format(time.RFC3339Nano)
	}
	if !rec.EndedAt.IsZero() {
		resp.EndedAt = rec.EndedAt.UTC().Format(time.RFC3339Nano)
	}
	return resp
}

// OperationsHandler handles operation-related endpoints.
type OperationsHandler struct {
	runner    *op.Runner
	logger    logger.Logger
	validator *validator.Validate

	// pollInterval is how often demo operations check their latch.
	pollInterval time.Duration
}

// NewOperationsHandler creates a new operations handler.
func NewOperationsHandler(runner *op.Runner, log logger.Logger) *OperationsHandler {
	return &OperationsHandler{
		runner:       runner,
		logger:       log,
		validator:    validator.New(),
		pollInterval: 5 * time.Millisecond,
	}
}

// SubmitOperation handles POST /api/v1/operations.
func (h *OperationsHandler) SubmitOperation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SubmitOperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode request", "error", err)
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", getRequestID(ctx))
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		h.logger.Error("Validation failed", "error", err)
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, err.Error(), getRequestID(ctx))
		return
	}

	duration, err := parseOptionalDuration(req.Duration)
	if err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid duration", getRequestID(ctx))
		return
	}
	deadline, err := parseOptionalDuration(req.Deadline)
	if err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid deadline", getRequestID(ctx))
		return
	}

	id, err := h.runner.Submit(ctx, req.Name, h.demoOperation(duration, deadline, req.Fail))
	if err != nil {
		status := http.StatusInternalServerError
		code := response.ErrCodeInternalServer
		if op.IsQueueFullError(err) || op.IsRunnerClosedError(err) {
			status = http.StatusServiceUnavailable
			code = response.ErrCodeServiceUnavailable
		}
		h.logger.Error("Failed to submit operation", "error", err)
		response.Error(w, status, code, err.Error(), getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusCreated, map[string]string{
		"id":     id,
		"name":   req.Name,
		"status": op.StatusPending.String(),
	})
}

// demoOperation builds an operation that runs for the given duration,
// checking its cancellation latch at every resumption point.
func (h *OperationsHandler) demoOperation(duration, deadline time.Duration, fail bool) op.Operation {
	return func(handle *op.Handle) error {
		if deadline > 0 {
			w := handle.Deadline(deadline)
			defer w.Disarm()
		}

		end := time.Now().Add(duration)
		for time.Now().Before(end) {
			if handle.Cancelled() {
				return nil
			}
			time.Sleep(h.pollInterval)
		}

		if fail {
			return errDemoFailure
		}
		return nil
	}
}

// ListOperations handles GET /api/v1/operations.
func (h *OperationsHandler) ListOperations(w http.ResponseWriter, r *http.Request) {
	statusFilter := r.URL.Query().Get("status")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records := h.runner.Registry().List()
	items := make([]OperationResponse, 0, len(records))
	for _, rec := range records {
		if statusFilter != "" && rec.Status.String() != statusFilter {
			continue
		}
		items = append(items, operationResponse(rec))
		if limit > 0 && len(items) >= limit {
			break
		}
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"operations": items,
		"count":      len(items),
	})
}

// GetOperation handles GET /api/v1/operations/{id}.
func (h *OperationsHandler) GetOperation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if id == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Operation ID is required", getRequestID(ctx))
		return
	}

	rec, err := h.runner.Registry().Get(id)
	if err != nil {
		response.Error(w, http.StatusNotFound, response.ErrCodeNotFound, "Operation not found", getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, operationResponse(rec))
}

// CancelOperation handles POST /api/v1/operations/{id}/cancel.
func (h *OperationsHandler) CancelOperation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if id == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Operation ID is required", getRequestID(ctx))
		return
	}

	var req CancelOperationRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", getRequestID(ctx))
			return
		}
	}

	if err := h.runner.Cancel(ctx, id, req.Reason); err != nil {
		if op.IsNotFoundError(err) {
			response.Error(w, http.StatusNotFound, response.ErrCodeNotFound, "Operation not found", getRequestID(ctx))
			return
		}
		h.logger.Error("Failed to cancel operation", "id", id, "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to cancel operation", getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusAccepted, map[string]string{
		"id":     id,
		"status": "cancel_requested",
	})
}

func parseOptionalDuration(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, errInvalidDuration
	}
	return d, nil
}

func getRequestID(ctx context.Context) string {
	return middleware.GetRequestID(ctx)
}
