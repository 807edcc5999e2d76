package storage

import (
	"context"
	"strings"
)

const upsertAccount = `
INSERT INTO accounts (id, user_id) VALUES (?, ?)
ON CONFLICT(id) DO UPDATE SET user_id = excluded.user_id
`

func (q *Queries) UpsertAccount(ctx context.Context, arg Account) error {
	_, err := q.db.ExecContext(ctx, upsertAccount, arg.ID, arg.UserID)
	return err
}

const getAccountOwner = `SELECT user_id FROM accounts WHERE id = ?`

func (q *Queries) GetAccountOwner(ctx context.Context, id string) (string, error) {
	row := q.db.QueryRowContext(ctx, getAccountOwner, id)
	var userID string
	err := row.Scan(&userID)
	return userID, err
}

const listAccountIDs = `SELECT id FROM accounts ORDER BY id`

func (q *Queries) ListAccountIDs(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listAccountIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertTransaction = `
INSERT INTO transactions (id, account_id, date, amount, description) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    account_id = excluded.account_id,
    date = excluded.date,
    amount = excluded.amount,
    description = excluded.description
`

func (q *Queries) InsertTransaction(ctx context.Context, arg Transaction) error {
	_, err := q.db.ExecContext(ctx, insertTransaction,
		arg.ID, arg.AccountID, arg.Date, arg.Amount, arg.Description)
	return err
}

// Rows with a NULL date are kept so the caller can report them as malformed.
const listTransactionsSince = `
SELECT id, account_id, date, amount, description
FROM transactions
WHERE account_id = ? AND (date IS NULL OR date = '' OR date >= ?)
ORDER BY date, id
`

func (q *Queries) ListTransactionsSince(ctx context.Context, accountID, since string) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactionsSince, accountID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		var i Transaction
		if err := rows.Scan(&i.ID, &i.AccountID, &i.Date, &i.Amount, &i.Description); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertPattern = `
INSERT INTO recurring_patterns (
    id, account_id, user_id, normalized_key, description, merchant_name,
    amount, average_amount, frequency, next_expected_date, last_occurrence_date,
    occurrence_count, confidence_score, similar_descriptions, transaction_ids,
    is_active, detected_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) InsertPattern(ctx context.Context, arg RecurringPattern) error {
	_, err := q.db.ExecContext(ctx, insertPattern,
		arg.ID, arg.AccountID, arg.UserID, arg.NormalizedKey, arg.Description, arg.MerchantName,
		arg.Amount, arg.AverageAmount, arg.Frequency, arg.NextExpectedDate, arg.LastOccurrenceDate,
		arg.OccurrenceCount, arg.ConfidenceScore, arg.SimilarDescriptions, arg.TransactionIds,
		arg.IsActive, arg.DetectedAt, arg.UpdatedAt,
	)
	return err
}

// updatePatternStats rewrites detection output only. The overlay lives in its own table.
const updatePatternStats = `
UPDATE recurring_patterns SET
    user_id = ?, description = ?, merchant_name = ?, amount = ?, average_amount = ?,
    frequency = ?, next_expected_date = ?, last_occurrence_date = ?, occurrence_count = ?,
    confidence_score = ?, similar_descriptions = ?, transaction_ids = ?,
    is_active = ?, updated_at = ?
WHERE id = ? AND account_id = ?
`

func (q *Queries) UpdatePatternStats(ctx context.Context, arg RecurringPattern) (int64, error) {
	result, err := q.db.ExecContext(ctx, updatePatternStats,
		arg.UserID, arg.Description, arg.MerchantName, arg.Amount, arg.AverageAmount,
		arg.Frequency, arg.NextExpectedDate, arg.LastOccurrenceDate, arg.OccurrenceCount,
		arg.ConfidenceScore, arg.SimilarDescriptions, arg.TransactionIds,
		arg.IsActive, arg.UpdatedAt,
		arg.ID, arg.AccountID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const setPatternActive = `UPDATE recurring_patterns SET is_active = ?, updated_at = ? WHERE id = ?`

func (q *Queries) SetPatternActive(ctx context.Context, id string, active bool, updatedAt string) (int64, error) {
	result, err := q.db.ExecContext(ctx, setPatternActive, active, updatedAt, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const setOverlayIgnored = `
INSERT INTO pattern_overlays (pattern_id, is_ignored, updated_at) VALUES (?, ?, ?)
ON CONFLICT(pattern_id) DO UPDATE SET is_ignored = excluded.is_ignored, updated_at = excluded.updated_at
`

func (q *Queries) SetOverlayIgnored(ctx context.Context, patternID string, ignored bool, updatedAt string) error {
	_, err := q.db.ExecContext(ctx, setOverlayIgnored, patternID, ignored, updatedAt)
	return err
}

const setOverlayNotes = `
INSERT INTO pattern_overlays (pattern_id, user_notes, updated_at) VALUES (?, ?, ?)
ON CONFLICT(pattern_id) DO UPDATE SET user_notes = excluded.user_notes, updated_at = excluded.updated_at
`

func (q *Queries) SetOverlayNotes(ctx context.Context, patternID, notes, updatedAt string) error {
	_, err := q.db.ExecContext(ctx, setOverlayNotes, patternID, notes, updatedAt)
	return err
}

const selectPatterns = `
SELECT p.id, p.account_id, p.user_id, p.normalized_key, p.description, p.merchant_name,
    p.amount, p.average_amount, p.frequency, p.next_expected_date, p.last_occurrence_date,
    p.occurrence_count, p.confidence_score, p.similar_descriptions, p.transaction_ids,
    p.is_active, p.detected_at, p.updated_at,
    COALESCE(o.is_ignored, 0), COALESCE(o.user_notes, '')
FROM recurring_patterns p
LEFT JOIN pattern_overlays o ON o.pattern_id = p.id
`

func (q *Queries) GetPattern(ctx context.Context, id string) (RecurringPattern, error) {
	row := q.db.QueryRowContext(ctx, selectPatterns+"WHERE p.id = ?", id)
	var i RecurringPattern
	err := scanPattern(row, &i)
	return i, err
}

// PatternQuery holds optional filters. Empty strings and nil pointers mean "any".
type PatternQuery struct {
	AccountID string
	Frequency string
	IsActive  *bool
	IsIgnored *bool
}

func (q *Queries) ListPatterns(ctx context.Context, arg PatternQuery) ([]RecurringPattern, error) {
	var (
		where []string
		args  []interface{}
	)
	if arg.AccountID != "" {
		where = append(where, "p.account_id = ?")
		args = append(args, arg.AccountID)
	}
	if arg.Frequency != "" {
		where = append(where, "p.frequency = ?")
		args = append(args, arg.Frequency)
	}
	if arg.IsActive != nil {
		where = append(where, "p.is_active = ?")
		args = append(args, *arg.IsActive)
	}
	if arg.IsIgnored != nil {
		where = append(where, "COALESCE(o.is_ignored, 0) = ?")
		args = append(args, *arg.IsIgnored)
	}

	query := selectPatterns
	if len(where) > 0 {
		query += "WHERE " + strings.Join(where, " AND ") + "\n"
	}
	query += "ORDER BY p.account_id, p.normalized_key"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RecurringPattern
	for rows.Next() {
		var i RecurringPattern
		if err := scanPattern(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPattern(s scanner, i *RecurringPattern) error {
	return s.Scan(
		&i.ID, &i.AccountID, &i.UserID, &i.NormalizedKey, &i.Description, &i.MerchantName,
		&i.Amount, &i.AverageAmount, &i.Frequency, &i.NextExpectedDate, &i.LastOccurrenceDate,
		&i.OccurrenceCount, &i.ConfidenceScore, &i.SimilarDescriptions, &i.TransactionIds,
		&i.IsActive, &i.DetectedAt, &i.UpdatedAt,
		&i.IsIgnored, &i.UserNotes,
	)
}
