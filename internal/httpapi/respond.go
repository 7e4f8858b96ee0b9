package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"schooladmin.org/internal/auth"
	"schooladmin.org/internal/dbgw"
)

// envelope is the response shape every action returns to the page layer.
type envelope struct {
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Message string            `json:"message,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: message})
}

func writeValidationErrors(w http.ResponseWriter, fieldErrors map[string]string) {
	writeJSON(w, http.StatusUnprocessableEntity, envelope{Success: false, Errors: fieldErrors})
}

// writeFailure maps the error taxonomy onto envelope responses. Internal
// detail never leaves this function: data-access faults were already
// logged with full detail where they happened.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "Please enter both username and password."})
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, envelope{Success: false, Message: "Invalid username or password."})
	case errors.Is(err, auth.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, envelope{Success: false, Message: "Too many failed login attempts. Please try again later."})
	case errors.Is(err, auth.ErrAuthRequired):
		writeJSON(w, http.StatusUnauthorized, envelope{Success: false, Message: "Authentication required."})
	case errors.Is(err, auth.ErrPermissionDenied):
		writeJSON(w, http.StatusForbidden, envelope{Success: false, Message: "Access denied. Insufficient permissions."})
	case errors.Is(err, dbgw.ErrDataAccess):
		writeJSON(w, http.StatusInternalServerError, envelope{Success: false, Message: "A server error occurred. Please try again later."})
	default:
		writeJSON(w, http.StatusInternalServerError, envelope{Success: false, Message: "A server error occurred. Please try again later."})
	}
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: message})
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusNotFound, envelope{Success: false, Message: message})
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeJSON(w, http.StatusMethodNotAllowed, envelope{Success: false, Message: "method not allowed"})
}

func decodeJSON(r *http.Request, dst any) error {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
