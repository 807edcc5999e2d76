package sheets

import (
	"context"

	"recurring/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionSource is the read-only boundary to the transaction-storage collaborator.
	TransactionSource interface {
		// ListTransactions returns the account's transactions dated on or after since.
		ListTransactions(ctx context.Context, accountID string, since core.Date) ([]core.Transaction, error)
		// AccountOwner returns the user that owns the account, or core.ErrNotFound.
		AccountOwner(ctx context.Context, accountID string) (string, error)
	}

	// AccountLister enumerates the accounts a batch run should visit.
	AccountLister interface {
		ListAccounts(ctx context.Context) ([]string, error)
	}

	// PatternStore persists recurring patterns and their user overlay.
	PatternStore interface {
		// AccountPatterns returns every stored pattern of the account, active or not.
		AccountPatterns(ctx context.Context, accountID string) ([]core.RecurringPattern, error)
		// ApplyReconciliation writes a detection run atomically. A write that races
		// another run for the same key fails with core.ErrConflict.
		ApplyReconciliation(ctx context.Context, r core.Reconciliation) error

		GetPattern(ctx context.Context, id string) (core.RecurringPattern, error)
		ListPatterns(ctx context.Context, filter core.PatternFilter) ([]core.RecurringPattern, error)

		SetIgnored(ctx context.Context, id string, ignored bool) (core.RecurringPattern, error)
		SetNotes(ctx context.Context, id string, notes string) (core.RecurringPattern, error)
		SetActive(ctx context.Context, id string, active bool) (core.RecurringPattern, error)
	}

	// PatternExporter publishes an account's patterns to an external surface.
	PatternExporter interface {
		ExportPatterns(ctx context.Context, accountID string, patterns []core.RecurringPattern) error
	}
)
