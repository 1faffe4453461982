// Package response renders the JSON envelopes of the HTTP API.
package response

import (
	"encoding/json"
	"net/http"
)

// JSON writes body as a JSON response. The body is marshalled before any
// header is written, so an encoding failure still produces a clean 500
// instead of a truncated payload.
func JSON(w http.ResponseWriter, status int, body any) {
	if body == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		return
	}

	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, `{"error":{"code":"INTERNAL_SERVER_ERROR","message":"response encoding failed"}}`,
			http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// Error writes the standard error envelope.
func Error(w http.ResponseWriter, status int, code, message, requestID string) {
	JSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			RequestID: requestID,
		},
	})
}
