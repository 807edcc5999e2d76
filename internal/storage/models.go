package storage

import "database/sql"

type Account struct {
	ID     string
	UserID string
}

type Transaction struct {
	ID          string
	AccountID   string
	Date        sql.NullString
	Amount      sql.NullString
	Description string
}

// RecurringPattern is a recurring_patterns row joined with its overlay.
type RecurringPattern struct {
	ID                  string
	AccountID           string
	UserID              string
	NormalizedKey       string
	Description         string
	MerchantName        string
	Amount              string
	AverageAmount       string
	Frequency           string
	NextExpectedDate    string
	LastOccurrenceDate  string
	OccurrenceCount     int64
	ConfidenceScore     string
	SimilarDescriptions string
	TransactionIds      string
	IsActive            bool
	DetectedAt          string
	UpdatedAt           string
	IsIgnored           bool
	UserNotes           string
}
