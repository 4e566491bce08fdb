// Package api provides the shared error catalog and response envelope for
// the HTTP surface.
package api

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/trace"
)

// Error codes returned by the router API.
const (
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"

	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeMissingField   = "MISSING_FIELD"

	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeBudgetExceeded    = "BUDGET_EXCEEDED"

	ErrCodeBackendError = "BACKEND_ERROR"

	ErrCodeNotFound = "NOT_FOUND"

	ErrCodeInternalError = "INTERNAL_ERROR"
)

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	TraceID string `json:"trace_id,omitempty"`
}

// LimitErrorResponse extends the envelope with limit context so denied
// clients can see their consumption without a second request.
type LimitErrorResponse struct {
	Error             string         `json:"error"`
	Code              string         `json:"code"`
	TraceID           string         `json:"trace_id,omitempty"`
	RetryAfterSeconds *int           `json:"retry_after_seconds,omitempty"`
	LimitContext      map[string]any `json:"limit_context,omitempty"`
}

// GetHTTPStatus maps an error code to its HTTP status.
func GetHTTPStatus(code string) int {
	switch code {
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeInvalidRequest, ErrCodeMissingField:
		return http.StatusBadRequest
	case ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case ErrCodeBudgetExceeded:
		return http.StatusPaymentRequired
	case ErrCodeBackendError:
		return http.StatusBadGateway
	case ErrCodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes the standard error envelope.
func WriteError(w http.ResponseWriter, r *http.Request, message, code string) {
	resp := ErrorResponse{Error: message, Code: code}
	if span := trace.SpanFromContext(r.Context()); span.SpanContext().IsValid() {
		resp.TraceID = span.SpanContext().TraceID().String()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(GetHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteLimitError writes the limit error envelope with consumption context.
func WriteLimitError(w http.ResponseWriter, r *http.Request, message, code string, retryAfter *int, limitContext map[string]any) {
	resp := LimitErrorResponse{
		Error:             message,
		Code:              code,
		RetryAfterSeconds: retryAfter,
		LimitContext:      limitContext,
	}
	if span := trace.SpanFromContext(r.Context()); span.SpanContext().IsValid() {
		resp.TraceID = span.SpanContext().TraceID().String()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(GetHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteJSON writes a success payload.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
