package backend

import (
	"context"

	"recurring/internal/sheets"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult bundles the adapters a backend provides. Exporter is nil when the
// backend has no external surface to publish patterns to.
type BackendResult struct {
	Source   sheets.TransactionSource
	Accounts sheets.AccountLister
	Store    sheets.PatternStore
	Exporter sheets.PatternExporter
	Cleanup  CleanupFunc
}

// Close runs the cleanup function if one was registered.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite stores patterns for the sqlite and sheets backends
	SQLiteDBPath string

	// Google Sheets specific
	GoogleSpreadsheetID     string
	GoogleTransactionsSheet string
	GoogleRecurringSheet    string
	GoogleOAuthClientFile   string
	GoogleOAuthTokenFile    string
	GoogleOAuthClientJSON   string
	GoogleOAuthTokenJSON    string

	// Memory backend specific
	MemorySeedFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
