package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/stash/pkg/stash"
)

// Error codes returned in ErrorBody.Code
const (
	CodeValidationFailed  = "validation_failed"
	CodeNotFound          = "not_found"
	CodeUnauthorized      = "unauthorized"
	CodePayloadTooLarge   = "payload_too_large"
	CodeBackendError      = "backend_error"
	CodeMalformedResponse = "malformed_response"
	CodeInternalError     = "internal_error"
)

// ErrorBody is the error payload
type ErrorBody struct {
	Code      string             `json:"code"`
	Message   string             `json:"message"`
	Details   []stash.FieldError `json:"details,omitempty"`
	RequestID string             `json:"requestId,omitempty"`
}

// ErrorResponse wraps ErrorBody as {"error": {...}}
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details []stash.FieldError) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: ErrorBody{
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: RequestIDFromContext(r.Context()),
	}})
}

// respondError maps a repository or gateway error onto an HTTP response.
// Backend detail is logged and never sent to the client.
func respondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var ve *stash.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, r, http.StatusBadRequest, CodeValidationFailed, "request validation failed", ve.Fields)
	case errors.Is(err, stash.ErrNotFound):
		writeError(w, r, http.StatusNotFound, CodeNotFound, "not found", nil)
	case errors.Is(err, stash.ErrMalformedResponse):
		logger.ErrorContext(r.Context(), "malformed blob response", "path", r.URL.Path, "error", err)
		writeError(w, r, http.StatusBadGateway, CodeMalformedResponse, "storage returned an unexpected response", nil)
	default:
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, r, http.StatusInternalServerError, CodeBackendError, "internal server error", nil)
	}
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, CodeNotFound, "not found", nil)
}

func badRequest(w http.ResponseWriter, r *http.Request, field, message string) {
	writeError(w, r, http.StatusBadRequest, CodeValidationFailed, "request validation failed",
		[]stash.FieldError{{Field: field, Message: message}})
}
