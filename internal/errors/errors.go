// Package errors provides the error envelope shared by the CLI and the
// status server.
//
// HTTP handlers respond with a single JSON shape so clients can parse
// failures uniformly regardless of which route produced them.
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Error codes used in HTTP error responses.
const (
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeInternal         = "INTERNAL_ERROR"
	CodeUnavailable      = "SERVICE_UNAVAILABLE"
)

// HTTPErrorBody is the inner payload of an HTTP error response.
type HTTPErrorBody struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// RequestID correlates the response with server logs, when present.
	RequestID string `json:"request_id,omitempty"`

	// Details carries additional context.
	Details map[string]any `json:"details,omitempty"`
}

// HTTPErrorResponse is the envelope for all HTTP error responses.
type HTTPErrorResponse struct {
	Error HTTPErrorBody `json:"error"`
}

// WriteHTTPError writes a JSON error response with the given status.
// The request ID is taken from the chi request-ID middleware when set.
func WriteHTTPError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	resp := HTTPErrorResponse{
		Error: HTTPErrorBody{
			Code:      code,
			Message:   message,
			RequestID: chimw.GetReqID(r.Context()),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// ExternalServiceError marks failures of systems we shell out to or
// call over the network (condor binaries, storage gateways).
type ExternalServiceError struct {
	Message string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// NewExternalServiceError creates an ExternalServiceError without a cause.
func NewExternalServiceError(message string) error {
	return &ExternalServiceError{Message: message}
}

// WrapExternalService wraps err as an external-service failure.
func WrapExternalService(err error, message string) error {
	return &ExternalServiceError{Message: message, Err: err}
}

// IsExternalService reports whether err is an ExternalServiceError.
func IsExternalService(err error) bool {
	var ese *ExternalServiceError
	return errors.As(err, &ese)
}

// WrapInternal wraps an unexpected internal error with a message.
// A cancelled context is passed through unchanged so signal handling
// keeps its identity.
func WrapInternal(ctx context.Context, err error, message string) error {
	if ctx != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%s: %w", message, err)
}
