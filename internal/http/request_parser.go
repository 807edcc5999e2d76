package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"recurring/internal/core"
)

const (
	maxBodyBytes  = 64 << 10
	maxNoteLength = 2000
)

// inputError marks a malformed request. It maps to 400.
type inputError struct {
	msg string
}

func (e *inputError) Error() string { return e.msg }

func invalidInput(format string, args ...any) error {
	return &inputError{msg: fmt.Sprintf(format, args...)}
}

// DetectRequest is the body of POST /api/recurring/detect. A missing days_back uses
// the server default.
type DetectRequest struct {
	AccountID string `json:"account_id"`
	DaysBack  *int   `json:"days_back"`
}

// NoteRequest is the body of POST /api/recurring/{id}/note.
type NoteRequest struct {
	Text string `json:"text"`
}

func (n NoteRequest) normalized() (string, error) {
	text := sanitizeInput(n.Text)
	if utf8.RuneCountInString(text) > maxNoteLength {
		return "", invalidInput("note longer than %d characters", maxNoteLength)
	}
	return text, nil
}

// ActiveRequest is the body of POST /api/recurring/{id}/active.
type ActiveRequest struct {
	Active *bool `json:"active"`
}

// ParsePatternFilter reads account_id, frequency, is_active, is_ignored and order_by.
func ParsePatternFilter(q url.Values) (core.PatternFilter, error) {
	filter := core.PatternFilter{
		AccountID: queryString(q, "account_id"),
		OrderBy:   queryString(q, "order_by"),
	}
	if v := queryString(q, "frequency"); v != "" {
		f, err := core.ParseFrequency(v)
		if err != nil {
			return core.PatternFilter{}, err
		}
		filter.Frequency = f
	}
	var err error
	if filter.IsActive, err = queryBool(q, "is_active"); err != nil {
		return core.PatternFilter{}, err
	}
	if filter.IsIgnored, err = queryBool(q, "is_ignored"); err != nil {
		return core.PatternFilter{}, err
	}
	return filter, nil
}

func queryString(q url.Values, key string) string {
	return sanitizeInput(q.Get(key))
}

// queryInt returns def when key is absent.
func queryInt(q url.Values, key string, def int) (int, error) {
	v := queryString(q, key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, invalidInput("%s must be an integer", key)
	}
	return n, nil
}

// queryBool returns nil when key is absent.
func queryBool(q url.Values, key string) (*bool, error) {
	v := queryString(q, key)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, invalidInput("%s must be true or false", key)
	}
	return &b, nil
}

// decodeJSON reads a single JSON object into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return invalidInput("content type must be application/json")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return invalidInput("malformed request body: %v", err)
	}
	if dec.More() {
		return invalidInput("request body must hold a single object")
	}
	return nil
}

// sanitizeInput removes control characters except tab and newlines, then trims.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}
