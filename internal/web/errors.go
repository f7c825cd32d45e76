package web

// errors.go provides unified error response handling for the web layer.
//
// It ensures all errors are:
//   - Logged with full technical details for debugging (server-side)
//   - Returned to clients as user-friendly messages with action suggestions
//   - Given a status code derived from the error kind, never from the handler
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. statusFor classifies the error with errors.Is/As
//  4. Error is mapped via core.MapError to get user-friendly message
//  5. Technical error + context is logged with request ID for correlation

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/giftapi/internal/core"
	"github.com/JonMunkholm/giftapi/internal/logging"
)

// Request errors raised by the web layer itself.
var (
	errRateLimited  = errors.New("rate limit exceeded")
	errInvalidBody  = errors.New("invalid request body")
	errNoFile       = errors.New("no file provided")
	errFileTooLarge = errors.New("file too large")
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Error, Action) fields.
type ErrorResponse struct {
	Error      string      `json:"error"`
	Code       string      `json:"code"`
	Action     string      `json:"action,omitempty"`
	Violations []Violation `json:"violations,omitempty"`
}

// Violation is one invalid field of a request.
type Violation struct {
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	var (
		verrs    core.ValidationErrors
		maxBytes *http.MaxBytesError
	)
	switch {
	case errors.As(err, &verrs):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrLockTimeout):
		return http.StatusLocked
	case errors.Is(err, core.ErrTooManyGifts):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrOptimisticConflict):
		return http.StatusConflict
	case errors.Is(err, core.ErrExecutorSaturated), errors.Is(err, core.ErrExecutorClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.As(err, &maxBytes), errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errInvalidBody), errors.Is(err, errNoFile):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err with request context and writes the mapped JSON error.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logging.FromContext(r.Context()).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	resp := ErrorResponse{
		Error:  userMsg.Message,
		Code:   userMsg.Code,
		Action: userMsg.Action,
	}
	var verrs core.ValidationErrors
	if errors.As(err, &verrs) {
		resp.Violations = make([]Violation, len(verrs))
		for i, v := range verrs {
			resp.Violations[i] = Violation{Field: v.Field, Value: v.Value, Message: v.Message}
		}
	}

	if status == http.StatusServiceUnavailable || status == http.StatusLocked {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, status, resp)
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
