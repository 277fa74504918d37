package server

import (
	"encoding/json"
	"io"
	"net/http"

	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
)

const maxBodyBytes = 1 << 20

// Stable error codes returned to clients.
const (
	codeUnauthorized       = "UNAUTHORIZED"
	codeTokenInvalid       = "TOKEN_INVALID"
	codeNotFound           = "NOT_FOUND"
	codeConflict           = "CONFLICT"
	codeValidationFailed   = "VALIDATION_FAILED"
	codeBackendUnavailable = "BACKEND_UNAVAILABLE"
	codeInternal           = "INTERNAL_ERROR"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, envelope{Code: code, Message: message, Details: details})
}

// writeError maps err onto a status and stable code. Internal errors are
// logged and replaced by a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.Error
	message := ""
	var details any
	if apperrors.As(err, &appErr) {
		message = appErr.Message
		details = appErr.Details
	}

	switch apperrors.KindOf(err) {
	case apperrors.KindUnauthorized:
		writeFailure(w, http.StatusUnauthorized, codeUnauthorized, orDefault(message, "unauthorized"), nil)
	case apperrors.KindTokenInvalid:
		writeFailure(w, http.StatusUnauthorized, codeTokenInvalid, "invalid or expired token", nil)
	case apperrors.KindNotFound:
		writeFailure(w, http.StatusNotFound, codeNotFound, orDefault(message, "not found"), nil)
	case apperrors.KindConflict:
		writeFailure(w, http.StatusConflict, codeConflict, orDefault(message, "conflict"), nil)
	case apperrors.KindValidationFailed:
		writeFailure(w, http.StatusBadRequest, codeValidationFailed, orDefault(message, "validation failed"), details)
	case apperrors.KindBackendUnavailable:
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("backend unavailable")
		writeFailure(w, http.StatusServiceUnavailable, codeBackendUnavailable, "service temporarily unavailable", nil)
	default:
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeFailure(w, http.StatusInternalServerError, codeInternal, "internal server error", nil)
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// decodeJSON reads a JSON request body into dst. Unknown fields are rejected.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.Validation("malformed request body", nil)
	}
	return nil
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeFailure(w, http.StatusNotFound, codeNotFound, "not found", nil)
}
