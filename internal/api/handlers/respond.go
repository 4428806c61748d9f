// Package handlers implements the HTTP endpoints of the web front-end.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Fantasim/tokenidx/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

// writeData wraps data in the {data, meta} envelope.
func writeData(w http.ResponseWriter, status int, data interface{}, start time.Time) {
	writeJSON(w, status, models.APIResponse{
		Data: data,
		Meta: &models.APIMeta{ExecutionTime: time.Since(start).Milliseconds()},
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, models.APIError{
		Error: models.APIErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
