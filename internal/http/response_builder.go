package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"recurring/internal/core"
	"recurring/internal/middleware/trace"
)

type patternList struct {
	Patterns []core.RecurringPattern `json:"patterns"`
	Count    int                     `json:"count"`
}

func newPatternList(ps []core.RecurringPattern) patternList {
	if ps == nil {
		ps = []core.RecurringPattern{}
	}
	return patternList{Patterns: ps, Count: len(ps)}
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// statusFor maps an error to its HTTP status and the message safe to show a client.
func statusFor(err error) (int, string) {
	var in *inputError
	switch {
	case errors.As(err, &in):
		return http.StatusBadRequest, in.msg
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict, "concurrent update, retry the request"
	case errors.Is(err, core.ErrEmptyAccount),
		errors.Is(err, core.ErrInvalidDaysBack),
		errors.Is(err, core.ErrInvalidHorizon),
		errors.Is(err, core.ErrInvalidFrequency),
		errors.Is(err, core.ErrInvalidOrder):
		return http.StatusUnprocessableEntity, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	ctx := r.Context()
	if status >= 500 {
		slog.ErrorContext(ctx, "Request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: msg, RequestID: trace.GetRequestID(ctx)})
}
