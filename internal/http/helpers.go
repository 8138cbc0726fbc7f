package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"campusledger/internal/auth"
	"campusledger/internal/core"
	"campusledger/internal/log"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// respondError maps domain errors to HTTP status codes. Unmapped errors are
// reported as a generic storage failure so internals never leak to clients.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "storage failure"

	switch {
	case errors.Is(err, core.ErrDuplicateIdentity):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, core.ErrInvalidCredentials):
		status, message = http.StatusUnauthorized, err.Error()
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidCategory),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrEmptyStudentID),
		errors.Is(err, core.ErrStudentIDTooLong),
		errors.Is(err, core.ErrTagTooLong),
		errors.Is(err, core.ErrNoteTooLong),
		errors.Is(err, auth.ErrEmptyPassword):
		status, message = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, core.ErrNotAuthorized):
		status, message = http.StatusForbidden, err.Error()
	case errors.Is(err, core.ErrNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, auth.ErrAlreadyBootstrapped):
		status, message = http.StatusConflict, err.Error()
	default:
		s.logger.ErrorContext(r.Context(), "request failed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
	}

	respondJSON(w, status, errorResponse{Error: message})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
