// Package api provides HTTP handlers for the Cat Explorer API,
// including standardized error handling.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/oryza-labs/cat-explorer/internal/middleware"
	"github.com/oryza-labs/cat-explorer/internal/sighting"
)

// Common error codes used throughout the API.
const (
	// ErrCodeValidation indicates input validation failure.
	ErrCodeValidation = "validation_error"

	// ErrCodeBadRequest indicates a malformed request.
	ErrCodeBadRequest = "bad_request"

	// ErrCodeAuthFailed indicates authentication failure.
	ErrCodeAuthFailed = "auth_failed"

	// ErrCodeForbidden indicates the caller lacks permission.
	ErrCodeForbidden = "forbidden"

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeRateLimited indicates rate limit exceeded.
	ErrCodeRateLimited = "rate_limited"

	// ErrCodeUnsupportedType indicates an unsupported content type for
	// upload.
	ErrCodeUnsupportedType = "unsupported_type"

	// ErrCodeUpstreamTimeout indicates a dependency timed out.
	ErrCodeUpstreamTimeout = "upstream_timeout"

	// ErrCodeUpstreamUnavailable indicates a dependency is unreachable.
	ErrCodeUpstreamUnavailable = "upstream_unavailable"

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"
)

// ErrorResponse is the standard error response format.
// All API errors return JSON in this structure:
// {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a standardized JSON error response, recording the
// error code on the context so the logging middleware attaches it to
// the request log line.
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	ctx = middleware.SetErrorCode(ctx, code)
	middleware.UpdateResponseContext(w, ctx)

	errResp := ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}

	data, err := json.Marshal(errResp)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// StatusCodeMapping returns the HTTP status code for an error code.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest, ErrCodeUnsupportedType:
		return http.StatusBadRequest
	case ErrCodeAuthFailed:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeUpstreamTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeStoreError maps repository errors to API error responses.
// Malformed ids surface as bad_request before any store round trip.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var verr *sighting.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, verr.Error())
	case errors.Is(err, sighting.ErrInvalidID):
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Malformed sighting ID")
	case errors.Is(err, sighting.ErrNotFound):
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Sighting not found")
	case errors.Is(err, sighting.ErrNotOwner):
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "Only the owner or an administrator may edit this sighting")
	case errors.Is(err, sighting.ErrUpstreamTimeout):
		WriteError(w, ctx, http.StatusGatewayTimeout, ErrCodeUpstreamTimeout, "Catalogue store timed out")
	case errors.Is(err, sighting.ErrUpstreamUnavailable):
		WriteError(w, ctx, http.StatusServiceUnavailable, ErrCodeUpstreamUnavailable, "Catalogue store unavailable")
	default:
		slog.ErrorContext(ctx, "unexpected store error", "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
	}
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, ctx context.Context, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}
