package google

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"recurring/internal/core"
)

// Transactions sheet columns: ID, Account, User, Date, Amount, Description.
const (
	colID = iota
	colAccount
	colUser
	colDate
	colAmount
	colDescription
)

// Recurring sheet header, one row per pattern.
var exportHeader = []any{
	"Pattern ID", "Account", "Merchant", "Frequency", "Average Amount", "Next Expected",
	"Last Seen", "Occurrences", "Confidence", "Active", "Ignored", "Notes",
}

var dateLayouts = []string{time.DateOnly, "02/01/2006", "2/1/2006"}

type transactionSheet struct {
	transactions []core.Transaction
	owners       map[string]string
	// skipped counts rows without an id or account.
	skipped int
}

func (s transactionSheet) accounts() []string {
	out := make([]string, 0, len(s.owners))
	for id := range s.owners {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// parseTransactions converts a values matrix (as returned by Sheets API) into
// transactions. A header row is skipped. Unparseable dates and amounts load as missing so
// the detection pipeline can skip them.
func parseTransactions(values [][]any) transactionSheet {
	s := transactionSheet{owners: map[string]string{}}
	for i, raw := range values {
		row := toStrings(raw)
		if i == 0 && strings.EqualFold(safeGet(row, colID), "id") {
			continue
		}
		id, account := safeGet(row, colID), safeGet(row, colAccount)
		if id == "" && account == "" {
			continue
		}
		if id == "" || account == "" {
			s.skipped++
			continue
		}

		tx := core.Transaction{
			ID:          id,
			AccountID:   account,
			Description: safeGet(row, colDescription),
		}
		if d, ok := parseDate(safeGet(row, colDate)); ok {
			tx.Date = d
		}
		if amount, err := core.ParseAmount(safeGet(row, colAmount)); err == nil {
			tx.Amount = decimal.NewNullDecimal(amount)
		}
		if user := safeGet(row, colUser); user != "" || s.owners[account] == "" {
			s.owners[account] = user
		}
		s.transactions = append(s.transactions, tx)
	}
	return s
}

func parseDate(s string) (core.Date, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.DateOf(t), true
		}
	}
	return core.Date{}, false
}

// patternRows renders patterns as Recurring sheet rows.
func patternRows(patterns []core.RecurringPattern) [][]any {
	rows := make([][]any, 0, len(patterns))
	for _, p := range patterns {
		rows = append(rows, []any{
			p.ID,
			p.AccountID,
			p.MerchantName,
			string(p.Frequency),
			p.AverageAmount.String(),
			p.NextExpectedDate.String(),
			p.LastOccurrenceDate.String(),
			strconv.Itoa(p.OccurrenceCount),
			p.ConfidenceScore.String(),
			strconv.FormatBool(p.IsActive),
			strconv.FormatBool(p.IsIgnored),
			p.UserNotes,
		})
	}
	return rows
}

// mergeExport replaces accountID's rows of an existing Recurring sheet with rows and
// keeps everyone else's. The result always starts with the header.
func mergeExport(existing [][]any, accountID string, rows [][]any) [][]any {
	out := [][]any{exportHeader}
	for i, raw := range existing {
		row := toStrings(raw)
		if i == 0 && strings.EqualFold(safeGet(row, 0), fmt.Sprint(exportHeader[0])) {
			continue
		}
		if len(row) == 0 || safeGet(row, 1) == accountID {
			continue
		}
		out = append(out, raw)
	}
	return append(out, rows...)
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
