package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/CrowderSoup/launchpad/launch"
)

// StatusFor maps a domain error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, launch.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, launch.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, launch.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, launch.ErrNotification):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError answers with {"status":"error","message":...}. An empty
// message falls back to the error text.
func writeError(w http.ResponseWriter, err error, message string) {
	if message == "" {
		message = err.Error()
	}
	writeJSON(w, StatusFor(err), map[string]string{
		"status":  "error",
		"message": message,
	})
}
