package detection

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recurring/internal/core"
)

func accountHistory() []core.Transaction {
	txs := netflixHistory()
	txs = append(txs,
		tx("o1", core.NewDate(2025, 2, 2), "-54.10", "HARDWARE STORE 0042"),
		tx("o2", core.NewDate(2025, 3, 9), "-8.25", "TAQUERIA"),
		core.Transaction{ID: "bad1", AccountID: "acc-1", Date: core.NewDate(2025, 3, 1), Description: "NETFLIX.COM"},
		core.Transaction{ID: "bad2", AccountID: "acc-1", Amount: decimal.NewNullDecimal(decimal.NewFromInt(1)), Description: "NETFLIX.COM"},
	)
	return txs
}

func TestEngineProposesNetflix(t *testing.T) {
	got := NewEngine(nil).Propose(context.Background(), accountHistory(), core.DefaultDaysBack)
	require.Len(t, got, 1)

	p := got[0]
	assert.Equal(t, "netflix", p.NormalizedKey)
	assert.Equal(t, "Netflix", p.MerchantName)
	assert.Equal(t, "Netflix.com", p.Description)
	assert.Equal(t, core.Monthly, p.Frequency)
	assert.Equal(t, 4, p.OccurrenceCount)
	assert.Equal(t, "-12.99", p.Amount.String())
	assert.Equal(t, "-12.99", p.AverageAmount.String())
	assert.Equal(t, core.NewDate(2025, 4, 15), p.LastOccurrenceDate)
	assert.Equal(t, core.NewDate(2025, 5, 15), p.NextExpectedDate)
	assert.Equal(t, []string{"n1", "n2", "n3", "n4"}, p.TransactionIDs)
	assert.Equal(t, []string{"netflix"}, p.SimilarDescriptions)
	assert.True(t, p.ConfidenceScore.GreaterThanOrEqual(decimal.RequireFromString("0.8")))
	assert.Equal(t, p.Confidence.Score, p.ConfidenceScore)
}

func TestEngineIsDeterministic(t *testing.T) {
	in := accountHistory()
	reversed := make([]core.Transaction, len(in))
	for i := range in {
		reversed[len(in)-1-i] = in[i]
	}

	e := NewEngine(nil)
	a := e.Propose(context.Background(), in, core.DefaultDaysBack)
	b := e.Propose(context.Background(), reversed, core.DefaultDaysBack)
	require.Len(t, b, len(a))
	for i := range a {
		assert.Equal(t, a[i].NormalizedKey, b[i].NormalizedKey)
		assert.Equal(t, a[i].TransactionIDs, b[i].TransactionIDs)
		assert.Equal(t, a[i].ConfidenceScore.String(), b[i].ConfidenceScore.String())
		assert.Equal(t, a[i].NextExpectedDate, b[i].NextExpectedDate)
	}
}

func TestEngineEmptyInput(t *testing.T) {
	assert.Empty(t, NewEngine(nil).Propose(context.Background(), nil, core.DefaultDaysBack))
}

func TestEngineDropsLowConfidence(t *testing.T) {
	got := NewEngine(nil).Propose(context.Background(), []core.Transaction{
		tx("a", core.NewDate(2025, 1, 1), "10", "UTILITY"),
		tx("b", core.NewDate(2025, 1, 31), "12", "UTILITY"),
	}, core.DefaultDaysBack)
	assert.Empty(t, got)
}

func TestEngineSkipsMalformedTransactions(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	txs := netflixHistory()
	txs = append(txs[:2:2],
		core.Transaction{ID: "no-amount", AccountID: "acc-1", Date: core.NewDate(2025, 3, 1), Description: "NETFLIX.COM"},
		core.Transaction{ID: "no-date", AccountID: "acc-1", Amount: decimal.NewNullDecimal(decimal.RequireFromString("-12.99")), Description: "NETFLIX.COM"},
	)
	txs = append(txs, netflixHistory()[2:]...)

	got := NewEngine(nil).Propose(context.Background(), txs, core.DefaultDaysBack)
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].OccurrenceCount)
	assert.Equal(t, []string{"n1", "n2", "n3", "n4"}, got[0].TransactionIDs)
	assert.Equal(t, core.Monthly, got[0].Frequency)

	logs := buf.String()
	assert.Contains(t, logs, "Skipping malformed transaction")
	assert.Contains(t, logs, "transaction_id=no-amount")
	assert.Contains(t, logs, "transaction_id=no-date")
}

func TestEngineAllMalformedIsEmpty(t *testing.T) {
	txs := []core.Transaction{
		{ID: "a", AccountID: "acc-1", Description: "NETFLIX.COM"},
		{ID: "b", AccountID: "acc-1", Date: core.NewDate(2025, 1, 1), Description: "NETFLIX.COM"},
	}
	assert.Empty(t, NewEngine(nil).Propose(context.Background(), txs, core.DefaultDaysBack))
}
