package google

import (
	"testing"

	"recurring/internal/core"
)

func TestParseTransactions(t *testing.T) {
	values := [][]any{
		{"ID", "Account", "User", "Date", "Amount", "Description"},
		{"t1", "acc-1", "user-1", "2025-01-15", "-12.99", "NETFLIX.COM"},
		{"t2", "acc-1", "", "14/02/2025", "-12,99", "NETFLIX.COM"},
		{"t3", "acc-2", "user-2", "someday", "abc", "BROKEN"},
		{"", "", "", "", "", ""},
		{"t4", "", "user-3", "2025-01-01", "1", "NO ACCOUNT"},
	}

	s := parseTransactions(values)

	if len(s.transactions) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(s.transactions))
	}
	if s.skipped != 1 {
		t.Errorf("expected 1 skipped row, got %d", s.skipped)
	}
	if s.owners["acc-1"] != "user-1" {
		t.Errorf("blank user cell must not clear the owner, got %q", s.owners["acc-1"])
	}

	t2 := s.transactions[1]
	if t2.Date != core.NewDate(2025, 2, 14) {
		t.Errorf("day-first date not parsed: %s", t2.Date)
	}
	if t2.Amount.Decimal.String() != "-12.99" {
		t.Errorf("comma amount not parsed: %s", t2.Amount.Decimal)
	}

	t3 := s.transactions[2]
	if !t3.Date.IsZero() || t3.Amount.Valid {
		t.Errorf("unparseable cells should load as missing, got %+v", t3)
	}

	accounts := s.accounts()
	if len(accounts) != 2 || accounts[0] != "acc-1" || accounts[1] != "acc-2" {
		t.Errorf("unexpected accounts %v", accounts)
	}
}

func TestParseTransactionsWithoutHeader(t *testing.T) {
	s := parseTransactions([][]any{{"t1", "acc-1", "user-1", "2025-01-15", -5.5, "GYM"}})
	if len(s.transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(s.transactions))
	}
	if s.transactions[0].Amount.Decimal.String() != "-5.5" {
		t.Errorf("numeric cell not parsed: %s", s.transactions[0].Amount.Decimal)
	}
}

func TestMergeExport(t *testing.T) {
	existing := [][]any{
		exportHeader,
		{"p-old", "acc-1", "Netflix"},
		{"p-other", "acc-2", "Gym"},
		{},
	}
	p := core.RecurringPattern{ID: "p-new", AccountID: "acc-1", IsActive: true}
	p.MerchantName = "Spotify"
	p.Frequency = core.Monthly
	p.OccurrenceCount = 3

	got := mergeExport(existing, "acc-1", patternRows([]core.RecurringPattern{p}))

	if len(got) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d: %v", len(got), got)
	}
	if got[1][0] != "p-other" {
		t.Errorf("other account's row must be kept, got %v", got[1])
	}
	row := toStrings(got[2])
	if row[0] != "p-new" || row[2] != "Spotify" || row[3] != "monthly" || row[7] != "3" || row[9] != "true" {
		t.Errorf("unexpected exported row %v", row)
	}
	if row[5] != "" {
		t.Errorf("missing next date should export blank, got %q", row[5])
	}
}

func TestMergeExportEmptySheet(t *testing.T) {
	got := mergeExport(nil, "acc-1", nil)
	if len(got) != 1 {
		t.Fatalf("expected header only, got %v", got)
	}
}
