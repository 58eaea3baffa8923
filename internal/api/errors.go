package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/homeconnect-core/internal/homeconnect"
	"github.com/nerrad567/homeconnect-core/internal/registry"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`

	// RemoteKey is the Home Connect error key of a rejected remote call.
	RemoteKey string `json:"remote_key,omitempty"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnauthorized   = "unauthorised"
	ErrCodeForbidden      = "forbidden"
	ErrCodeConflict       = "conflict"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeMethodNotAllow = "method_not_allowed"
	ErrCodeRemote         = "remote_error"
	ErrCodeUnavailable    = "service_unavailable"
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

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeRegistryError maps registry and remote failures onto HTTP statuses.
func (s *Server) writeRegistryError(w http.ResponseWriter, err error) {
	var apiErr *homeconnect.APIError
	var parseErr *homeconnect.ParseError

	switch {
	case errors.Is(err, registry.ErrApplianceNotFound):
		writeNotFound(w, "appliance not found")
	case errors.Is(err, registry.ErrPropertyNotFound):
		writeNotFound(w, "property not found")
	case errors.Is(err, registry.ErrReadOnlyProperty), errors.Is(err, registry.ErrUnsupportedKey):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, registry.ErrProgramNotStartable), errors.Is(err, registry.ErrProgramNotRunning),
		errors.Is(err, registry.ErrNoSelectedProgram), errors.Is(err, registry.ErrPowerUnsupported):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.As(err, &apiErr):
		writeJSON(w, http.StatusBadGateway, Error{
			Status:    http.StatusBadGateway,
			Code:      ErrCodeRemote,
			Message:   apiErr.Error(),
			RemoteKey: apiErr.Key,
		})
	case errors.As(err, &parseErr), errors.Is(err, homeconnect.ErrParse):
		writeError(w, http.StatusBadGateway, ErrCodeRemote, err.Error())
	case errors.Is(err, homeconnect.ErrRequest), errors.Is(err, homeconnect.ErrUnauthorized):
		writeError(w, http.StatusBadGateway, ErrCodeRemote, err.Error())
	default:
		s.logger.Error("unexpected appliance error", "error", err)
		writeInternalError(w, "internal server error")
	}
}
