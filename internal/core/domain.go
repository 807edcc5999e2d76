package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Weekly    Frequency = "weekly"
	BiWeekly  Frequency = "bi-weekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Yearly    Frequency = "yearly"
)

// DefaultDaysBack is the lookback window of a detection run when the caller gives none.
const DefaultDaysBack = 365

// DefaultUpcomingDays is the horizon used by Upcoming when the caller gives none.
const DefaultUpcomingDays = 30

type (
	Frequency string

	Date struct {
		time.Time
	}

	// Transaction is a read-only input row owned by the transaction-storage collaborator.
	// Amount is nullable so that rows with a missing amount can be recognised and skipped.
	Transaction struct {
		ID          string
		AccountID   string
		Date        Date
		Amount      decimal.NullDecimal
		Description string
	}

	// PatternStats holds everything a detection run computes for a pattern.
	// It is rewritten on every run.
	PatternStats struct {
		NormalizedKey       string          `json:"normalized_key"`
		Description         string          `json:"description"`
		MerchantName        string          `json:"merchant_name"`
		Amount              decimal.Decimal `json:"amount"`
		AverageAmount       decimal.Decimal `json:"average_amount"`
		Frequency           Frequency       `json:"frequency"`
		NextExpectedDate    Date            `json:"next_expected_date"`
		LastOccurrenceDate  Date            `json:"last_occurrence_date"`
		OccurrenceCount     int             `json:"occurrence_count"`
		ConfidenceScore     decimal.Decimal `json:"confidence_score"`
		SimilarDescriptions []string        `json:"similar_descriptions"`
		TransactionIDs      []string        `json:"transaction_ids"`
	}

	// Overlay holds user-entered state. Detection never writes it.
	Overlay struct {
		IsIgnored bool   `json:"is_ignored"`
		UserNotes string `json:"user_notes"`
	}

	RecurringPattern struct {
		ID        string `json:"id"`
		AccountID string `json:"account_id"`
		UserID    string `json:"user_id"`
		PatternStats
		Overlay
		IsActive   bool      `json:"is_active"`
		DetectedAt time.Time `json:"detected_at"`
		UpdatedAt  time.Time `json:"updated_at"`
	}

	// DetectionResult reports what one detection run changed.
	DetectionResult struct {
		AccountID           string `json:"account_id"`
		PatternsCreated     int    `json:"patterns_created"`
		PatternsUpdated     int    `json:"patterns_updated"`
		PatternsDeactivated int    `json:"patterns_deactivated"`
	}
)

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflicting concurrent update")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrMissingDate      = errors.New("missing date")
	ErrMissingAmount    = errors.New("missing amount")
	ErrEmptyAccount     = errors.New("empty account id")
	ErrInvalidDaysBack  = errors.New("invalid days back")
	ErrInvalidHorizon   = errors.New("invalid upcoming horizon")
)

// Frequencies lists every supported frequency class, shortest interval first.
func Frequencies() []Frequency {
	return []Frequency{Weekly, BiWeekly, Monthly, Quarterly, Yearly}
}

func (f Frequency) Validate() error {
	switch f {
	case Weekly, BiWeekly, Monthly, Quarterly, Yearly:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, string(f))
	}
}

// ParseFrequency accepts the canonical names plus a few common spellings.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weekly":
		return Weekly, nil
	case "bi-weekly", "biweekly", "fortnightly":
		return BiWeekly, nil
	case "monthly":
		return Monthly, nil
	case "quarterly":
		return Quarterly, nil
	case "yearly", "annually", "annual":
		return Yearly, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// AddDays returns the date n calendar days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// DaysUntil returns the whole number of calendar days from d to other.
func (d Date) DaysUntil(other Date) int {
	a := DateOf(d.Time)
	b := DateOf(other.Time)
	return int(b.Sub(a.Time) / (24 * time.Hour))
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", s, err)
	}
	*d = Date{Time: t}
	return nil
}

// Validate reports why a transaction cannot take part in detection.
func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return ErrMissingDate
	}
	if !t.Amount.Valid {
		return ErrMissingAmount
	}
	return nil
}

// IsOverdue reports whether an active, non-ignored pattern has passed its next expected date.
func (p RecurringPattern) IsOverdue(today Date) bool {
	if !p.IsActive || p.IsIgnored || p.NextExpectedDate.IsZero() {
		return false
	}
	return DateOf(today.Time).After(DateOf(p.NextExpectedDate.Time).Time)
}

// IsUpcoming reports whether the pattern is expected within [today, today+days].
func (p RecurringPattern) IsUpcoming(today Date, days int) bool {
	if !p.IsActive || p.IsIgnored || p.NextExpectedDate.IsZero() {
		return false
	}
	n := today.DaysUntil(p.NextExpectedDate)
	return n >= 0 && n <= days
}

// Counted reports whether the pattern takes part in active aggregates.
func (p RecurringPattern) Counted() bool {
	return p.IsActive && !p.IsIgnored
}
