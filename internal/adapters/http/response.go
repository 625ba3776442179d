package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jmrebull/refund-service/internal/contracts"
	"github.com/jmrebull/refund-service/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, status, contracts.Envelope{
		Data: data,
		Meta: contracts.Meta{
			Timestamp: time.Now().UTC(),
			RequestID: requestIDFromContext(r.Context()),
		},
	})
}

func writeError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	writeJSON(w, status, contracts.ErrorResponse{
		Error: contracts.ErrorPayload{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// writeServiceError maps orchestrator failures to the wire. Business
// rejections carry their own transport status; anything else is a server
// fault and must not leak internals.
func writeServiceError(w http.ResponseWriter, err error) {
	if rej, ok := domain.AsRejection(err); ok {
		writeError(w, rej.Status, rej.Code, rej.Message, rej.Details)
		return
	}
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
}
