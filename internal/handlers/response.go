package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tablebite/ordercore/internal/modifier"
)

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes an error response in JSON format
func WriteError(w http.ResponseWriter, status int, message string, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]string{"error": message}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("failed to encode error response", "error", err)
	}
}

// WriteViolations writes a rejected selection as 422 with the full
// violation list, so the client sees every problem in one response.
func WriteViolations(w http.ResponseWriter, violations []modifier.Violation, logger *slog.Logger) {
	WriteJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
		"error":      "invalid selection",
		"violations": violations,
	}, logger)
}
