package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"recurring/internal/core"
)

const timestampLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serialises writers, so reconciliation never sees SQLITE_BUSY
	// from this process.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// UpsertAccount records the owner of an account.
func (r *SQLiteRepository) UpsertAccount(ctx context.Context, accountID, userID string) error {
	if err := r.queries.UpsertAccount(ctx, Account{ID: accountID, UserID: userID}); err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	return nil
}

// AccountOwner implements sheets.TransactionSource
func (r *SQLiteRepository) AccountOwner(ctx context.Context, accountID string) (string, error) {
	userID, err := r.queries.GetAccountOwner(ctx, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("account %s: %w", accountID, core.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get account owner: %w", err)
	}
	return userID, nil
}

// ListAccounts implements sheets.AccountLister
func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]string, error) {
	ids, err := r.queries.ListAccountIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return ids, nil
}

// SaveTransactions stores transactions in one transaction. Existing ids are overwritten.
func (r *SQLiteRepository) SaveTransactions(ctx context.Context, txs []core.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)
	for _, t := range txs {
		row := Transaction{ID: t.ID, AccountID: t.AccountID, Description: t.Description}
		if !t.Date.IsZero() {
			row.Date = sql.NullString{String: t.Date.String(), Valid: true}
		}
		if t.Amount.Valid {
			row.Amount = sql.NullString{String: t.Amount.Decimal.String(), Valid: true}
		}
		if err := qtx.InsertTransaction(ctx, row); err != nil {
			return fmt.Errorf("insert transaction %s: %w", t.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transactions: %w", err)
	}
	return nil
}

// ListTransactions implements sheets.TransactionSource
func (r *SQLiteRepository) ListTransactions(ctx context.Context, accountID string, since core.Date) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactionsSince(ctx, accountID, since.String())
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t := core.Transaction{ID: row.ID, AccountID: row.AccountID, Description: row.Description}
		if row.Date.Valid && row.Date.String != "" {
			parsed, err := time.Parse(time.DateOnly, row.Date.String)
			if err != nil {
				slog.WarnContext(ctx, "Unparseable transaction date", "transaction_id", row.ID, "date", row.Date.String)
			} else {
				t.Date = core.DateOf(parsed)
			}
		}
		if row.Amount.Valid {
			amount, err := core.ParseAmount(row.Amount.String)
			if err != nil {
				slog.WarnContext(ctx, "Unparseable transaction amount", "transaction_id", row.ID, "amount", row.Amount.String)
			} else {
				t.Amount = decimal.NewNullDecimal(amount)
			}
		}
		out = append(out, t)
	}
	return out, nil
}

// AccountPatterns implements sheets.PatternStore
func (r *SQLiteRepository) AccountPatterns(ctx context.Context, accountID string) ([]core.RecurringPattern, error) {
	rows, err := r.queries.ListPatterns(ctx, PatternQuery{AccountID: accountID})
	if err != nil {
		return nil, fmt.Errorf("list account patterns: %w", err)
	}
	return toCorePatterns(rows)
}

// ListPatterns implements sheets.PatternStore
func (r *SQLiteRepository) ListPatterns(ctx context.Context, filter core.PatternFilter) ([]core.RecurringPattern, error) {
	rows, err := r.queries.ListPatterns(ctx, PatternQuery{
		AccountID: filter.AccountID,
		Frequency: string(filter.Frequency),
		IsActive:  filter.IsActive,
		IsIgnored: filter.IsIgnored,
	})
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	patterns, err := toCorePatterns(rows)
	if err != nil {
		return nil, err
	}
	core.SortPatterns(patterns, filter.OrderBy)
	return patterns, nil
}

// GetPattern implements sheets.PatternStore
func (r *SQLiteRepository) GetPattern(ctx context.Context, id string) (core.RecurringPattern, error) {
	return r.getPattern(ctx, r.queries, id)
}

func (r *SQLiteRepository) getPattern(ctx context.Context, q *Queries, id string) (core.RecurringPattern, error) {
	row, err := q.GetPattern(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringPattern{}, fmt.Errorf("pattern %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.RecurringPattern{}, fmt.Errorf("get pattern: %w", err)
	}
	return toCorePattern(row)
}

// ApplyReconciliation implements sheets.PatternStore
func (r *SQLiteRepository) ApplyReconciliation(ctx context.Context, rec core.Reconciliation) error {
	if rec.Empty() {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reconciliation: %w", mapSQLiteError(err))
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)
	now := r.now().UTC().Format(timestampLayout)

	for _, p := range rec.Create {
		row, err := fromCorePattern(p)
		if err != nil {
			return err
		}
		if err := qtx.InsertPattern(ctx, row); err != nil {
			return fmt.Errorf("insert pattern %s: %w", p.NormalizedKey, mapSQLiteError(err))
		}
	}

	for _, p := range rec.Update {
		row, err := fromCorePattern(p)
		if err != nil {
			return err
		}
		n, err := qtx.UpdatePatternStats(ctx, row)
		if err != nil {
			return fmt.Errorf("update pattern %s: %w", p.ID, mapSQLiteError(err))
		}
		if n == 0 {
			// The row vanished between read and write.
			return fmt.Errorf("update pattern %s: %w", p.ID, core.ErrConflict)
		}
	}

	for _, id := range rec.Deactivate {
		if _, err := qtx.SetPatternActive(ctx, id, false, now); err != nil {
			return fmt.Errorf("deactivate pattern %s: %w", id, mapSQLiteError(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reconciliation: %w", mapSQLiteError(err))
	}

	slog.InfoContext(ctx, "Reconciliation applied",
		"account_id", rec.AccountID,
		"created", len(rec.Create),
		"updated", len(rec.Update),
		"deactivated", len(rec.Deactivate))
	return nil
}

// SetIgnored implements sheets.PatternStore
func (r *SQLiteRepository) SetIgnored(ctx context.Context, id string, ignored bool) (core.RecurringPattern, error) {
	return r.mutate(ctx, id, func(q *Queries, now string) error {
		return q.SetOverlayIgnored(ctx, id, ignored, now)
	})
}

// SetNotes implements sheets.PatternStore
func (r *SQLiteRepository) SetNotes(ctx context.Context, id string, notes string) (core.RecurringPattern, error) {
	return r.mutate(ctx, id, func(q *Queries, now string) error {
		return q.SetOverlayNotes(ctx, id, notes, now)
	})
}

// SetActive implements sheets.PatternStore
func (r *SQLiteRepository) SetActive(ctx context.Context, id string, active bool) (core.RecurringPattern, error) {
	return r.mutate(ctx, id, func(q *Queries, now string) error {
		_, err := q.SetPatternActive(ctx, id, active, now)
		return err
	})
}

// mutate checks the pattern exists, applies fn and returns the fresh row, all in one transaction.
func (r *SQLiteRepository) mutate(ctx context.Context, id string, fn func(q *Queries, now string) error) (core.RecurringPattern, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.RecurringPattern{}, fmt.Errorf("begin mutation: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)
	if _, err := r.getPattern(ctx, qtx, id); err != nil {
		return core.RecurringPattern{}, err
	}
	if err := fn(qtx, r.now().UTC().Format(timestampLayout)); err != nil {
		return core.RecurringPattern{}, fmt.Errorf("mutate pattern %s: %w", id, mapSQLiteError(err))
	}
	p, err := r.getPattern(ctx, qtx, id)
	if err != nil {
		return core.RecurringPattern{}, err
	}
	if err := tx.Commit(); err != nil {
		return core.RecurringPattern{}, fmt.Errorf("commit mutation: %w", mapSQLiteError(err))
	}
	return p, nil
}

// mapSQLiteError turns retry-safe SQLite failures into core.ErrConflict.
func mapSQLiteError(err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	code := se.Code()
	switch {
	case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE,
		code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY,
		code == sqlite3.SQLITE_CONSTRAINT,
		code&0xff == sqlite3.SQLITE_BUSY,
		code&0xff == sqlite3.SQLITE_LOCKED:
		return fmt.Errorf("%w: %v", core.ErrConflict, err)
	}
	return err
}

func fromCorePattern(p core.RecurringPattern) (RecurringPattern, error) {
	similar, err := json.Marshal(nonNil(p.SimilarDescriptions))
	if err != nil {
		return RecurringPattern{}, fmt.Errorf("encode similar descriptions: %w", err)
	}
	ids, err := json.Marshal(nonNil(p.TransactionIDs))
	if err != nil {
		return RecurringPattern{}, fmt.Errorf("encode transaction ids: %w", err)
	}
	return RecurringPattern{
		ID:                  p.ID,
		AccountID:           p.AccountID,
		UserID:              p.UserID,
		NormalizedKey:       p.NormalizedKey,
		Description:         p.Description,
		MerchantName:        p.MerchantName,
		Amount:              p.Amount.String(),
		AverageAmount:       p.AverageAmount.String(),
		Frequency:           string(p.Frequency),
		NextExpectedDate:    p.NextExpectedDate.String(),
		LastOccurrenceDate:  p.LastOccurrenceDate.String(),
		OccurrenceCount:     int64(p.OccurrenceCount),
		ConfidenceScore:     p.ConfidenceScore.String(),
		SimilarDescriptions: string(similar),
		TransactionIds:      string(ids),
		IsActive:            p.IsActive,
		DetectedAt:          p.DetectedAt.UTC().Format(timestampLayout),
		UpdatedAt:           p.UpdatedAt.UTC().Format(timestampLayout),
	}, nil
}

func toCorePatterns(rows []RecurringPattern) ([]core.RecurringPattern, error) {
	out := make([]core.RecurringPattern, 0, len(rows))
	for _, row := range rows {
		p, err := toCorePattern(row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func toCorePattern(row RecurringPattern) (core.RecurringPattern, error) {
	p := core.RecurringPattern{
		ID:        row.ID,
		AccountID: row.AccountID,
		UserID:    row.UserID,
		IsActive:  row.IsActive,
	}
	p.NormalizedKey = row.NormalizedKey
	p.Description = row.Description
	p.MerchantName = row.MerchantName
	p.Frequency = core.Frequency(row.Frequency)
	p.OccurrenceCount = int(row.OccurrenceCount)
	p.IsIgnored = row.IsIgnored
	p.UserNotes = row.UserNotes

	var err error
	if p.Amount, err = decimal.NewFromString(row.Amount); err != nil {
		return p, fmt.Errorf("pattern %s amount: %w", row.ID, err)
	}
	if p.AverageAmount, err = decimal.NewFromString(row.AverageAmount); err != nil {
		return p, fmt.Errorf("pattern %s average amount: %w", row.ID, err)
	}
	if p.ConfidenceScore, err = decimal.NewFromString(row.ConfidenceScore); err != nil {
		return p, fmt.Errorf("pattern %s confidence: %w", row.ID, err)
	}
	if p.NextExpectedDate, err = parseDate(row.NextExpectedDate); err != nil {
		return p, fmt.Errorf("pattern %s next expected date: %w", row.ID, err)
	}
	if p.LastOccurrenceDate, err = parseDate(row.LastOccurrenceDate); err != nil {
		return p, fmt.Errorf("pattern %s last occurrence date: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.SimilarDescriptions), &p.SimilarDescriptions); err != nil {
		return p, fmt.Errorf("pattern %s similar descriptions: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.TransactionIds), &p.TransactionIDs); err != nil {
		return p, fmt.Errorf("pattern %s transaction ids: %w", row.ID, err)
	}
	if p.DetectedAt, err = time.Parse(timestampLayout, row.DetectedAt); err != nil {
		return p, fmt.Errorf("pattern %s detected at: %w", row.ID, err)
	}
	if p.UpdatedAt, err = time.Parse(timestampLayout, row.UpdatedAt); err != nil {
		return p, fmt.Errorf("pattern %s updated at: %w", row.ID, err)
	}
	return p, nil
}

func parseDate(s string) (core.Date, error) {
	if s == "" {
		return core.Date{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return core.Date{}, err
	}
	return core.DateOf(t), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
