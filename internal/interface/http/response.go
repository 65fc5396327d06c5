package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"github.com/hobby-university/learner-hub/internal/domain/shared"
	"github.com/hobby-university/learner-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse represents a standard JSON response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

var codec = sonic.ConfigStd

// writeJSON writes a successful envelope.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeEnvelope(w, status, JSONResponse{
		Success:   status >= 200 && status < 300,
		Data:      data,
		Meta:      &ResponseMeta{Timestamp: time.Now().UTC(), Version: "v1"},
		RequestID: requestIDFrom(r.Context()),
	})
}

// writeJSONError writes an error envelope. It matches handlers.ErrorWriter.
func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeEnvelope(w, status, JSONResponse{
		Success:   false,
		Error:     &APIError{Code: code, Message: message},
		Meta:      &ResponseMeta{Timestamp: time.Now().UTC()},
		RequestID: requestIDFrom(r.Context()),
	})
}

func writeEnvelope(w http.ResponseWriter, status int, body JSONResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = codec.NewEncoder(w).Encode(body)
}

// decodeJSON reads a request body into dst. Unknown fields are rejected.
func decodeJSON(r *http.Request, dst any) error {
	dec := codec.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return shared.WrapError("http", "Decode", shared.ErrInvalidInput, "request body is not valid JSON", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

type errorMapping struct {
	kind    error
	status  int
	code    string
	message string // used when the error carries no domain message
}

// errorMappings is checked in order; the first matching kind wins.
var errorMappings = []errorMapping{
	{shared.ErrNotFound, http.StatusNotFound, "not_found", "Resource not found"},
	{shared.ErrInvalidRange, http.StatusUnprocessableEntity, "progress_unavailable", "Progress unavailable"},
	{shared.ErrDecoding, http.StatusUnprocessableEntity, "malformed_record", "Stored data could not be read"},
	{shared.ErrAlreadyExists, http.StatusConflict, "already_exists", "Resource already exists"},
	{shared.ErrStateTransition, http.StatusConflict, "invalid_transition", "Invalid state transition"},
	{shared.ErrInvalidState, http.StatusConflict, "invalid_state", "Operation not allowed in the current state"},
	{shared.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "Authentication required"},
	{shared.ErrForbidden, http.StatusForbidden, "forbidden", "Not allowed"},
	{shared.ErrInvalidInput, http.StatusBadRequest, "invalid_request", "Invalid request"},
	{shared.ErrValidation, http.StatusBadRequest, "invalid_request", "Invalid request"},
	{shared.ErrValueOutOfRange, http.StatusBadRequest, "invalid_request", "Value out of range"},
	{shared.ErrInvalidID, http.StatusBadRequest, "invalid_request", "Invalid identifier"},
	{shared.ErrEmptyValue, http.StatusBadRequest, "invalid_request", "Missing value"},
	{shared.ErrServiceUnavailable, http.StatusServiceUnavailable, "service_unavailable", "Service temporarily unavailable"},
	{shared.ErrTimeout, http.StatusGatewayTimeout, "timeout", "Request timed out"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout", "Request timed out"},
}

// statusFor returns the HTTP status, error code and client-safe message for err.
func statusFor(err error) (int, string, string) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.kind) {
			continue
		}
		message := m.message
		var de *shared.DomainError
		if errors.As(err, &de) && de.Message != "" && m.status < http.StatusInternalServerError {
			message = de.Message
		}
		// Range errors always read the same to learners.
		if m.kind == shared.ErrInvalidRange {
			message = m.message
		}
		return m.status, m.code, message
	}
	return http.StatusInternalServerError, "internal_error", "An unexpected error occurred"
}

// writeError maps err to a response and logs server-side failures.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code, message := statusFor(err)

	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", logger.Operation(op), logger.Err(err))
	} else {
		log.Debug("request rejected", logger.Operation(op), logger.Int("status", status), logger.Err(err))
	}

	writeJSONError(w, r, status, code, message)
}
