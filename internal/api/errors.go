package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-telemetry/internal/iot"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeInternal    = "internal_error"
	ErrCodeValidation  = "validation_error"
	ErrCodeUnavailable = "unavailable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeCoreError maps an iot error to its HTTP status.
func writeCoreError(w http.ResponseWriter, err error) {
	status := coreErrorStatus(err)
	code := ErrCodeInternal
	switch status {
	case http.StatusBadRequest:
		code = ErrCodeValidation
	case http.StatusNotFound:
		code = ErrCodeNotFound
	case http.StatusServiceUnavailable:
		code = ErrCodeUnavailable
	}
	writeError(w, status, code, err.Error())
}

// coreErrorStatus returns the HTTP status for an iot error.
func coreErrorStatus(err error) int {
	switch {
	case errors.Is(err, iot.ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, iot.ErrDeviceNotTracked):
		return http.StatusNotFound
	case errors.Is(err, iot.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
