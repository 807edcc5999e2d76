package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"recurring/internal/core"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"input", invalidInput("days must be an integer"), http.StatusBadRequest, "days must be an integer"},
		{"not found", fmt.Errorf("get pattern: %w", core.ErrNotFound), http.StatusNotFound, "get pattern: not found"},
		{"conflict", fmt.Errorf("insert: %w", core.ErrConflict), http.StatusConflict, "concurrent update, retry the request"},
		{"empty account", core.ErrEmptyAccount, http.StatusUnprocessableEntity, "empty account id"},
		{"horizon", fmt.Errorf("%w: -1", core.ErrInvalidHorizon), http.StatusUnprocessableEntity, "invalid upcoming horizon: -1"},
		{"internal", errors.New("sql: database is closed"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := statusFor(tt.err)
			if status != tt.status || msg != tt.message {
				t.Errorf("statusFor = %d %q, want %d %q", status, msg, tt.status, tt.message)
			}
		})
	}
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/recurring", nil)
	writeError(rr, req, errors.New("decimal division by zero"))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := rr.Body.String(); got != "{\"error\":\"internal error\"}\n" {
		t.Errorf("body = %q", got)
	}
}

func TestNewPatternListNeverNull(t *testing.T) {
	l := newPatternList(nil)
	if l.Patterns == nil || l.Count != 0 {
		t.Errorf("unexpected list %+v", l)
	}
}
