package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/isdelr/lms-be/internal/services"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error         string            `json:"error"`
	Fields        map[string]string `json:"fields,omitempty"`
	EnrolledCount *int              `json:"enrolledCount,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// WriteError writes a JSON error body with the given status.
func WriteError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	var (
		verr *services.ValidationError
		herr *services.HasEnrollmentsError
	)
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		resp.Error = "Validation failed"
		resp.Fields = verr.Fields
	case errors.As(err, &herr):
		status = http.StatusConflict
		resp.Error = services.ErrHasEnrollments.Error()
		resp.EnrolledCount = &herr.Count
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrAlreadyEnrolled),
		errors.Is(err, services.ErrNotEnrolled),
		errors.Is(err, services.ErrCapacityExceeded),
		errors.Is(err, services.ErrInstructorHasCourses),
		errors.Is(err, services.ErrEmailTaken):
		status = http.StatusConflict
	case errors.Is(err, services.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	default:
		// Storage faults and anything unexpected: the detail stays in the logs.
		log.Error().Err(err).Msg("Request failed")
		resp.Error = "An unexpected error occurred"
	}
	writeJSON(w, status, resp)
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// writeDecodeError reports a body that failed to decode. Field-level
// problems found while decoding keep their field map.
func writeDecodeError(w http.ResponseWriter, err error) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		writeServiceError(w, verr)
		return
	}
	WriteError(w, http.StatusBadRequest, "Invalid request body")
}
