package detection

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recurring/internal/core"
)

func tx(id string, date core.Date, amount, desc string) core.Transaction {
	return core.Transaction{
		ID:          id,
		AccountID:   "acc-1",
		Date:        date,
		Amount:      decimal.NewNullDecimal(decimal.RequireFromString(amount)),
		Description: desc,
	}
}

func groupingInput() []core.Transaction {
	d := core.NewDate(2025, 1, 1)
	descs := []string{"NETFLIX.COM", "NETFLIX.COM", "NETFLIX INC", "Netflix.com", "NETFLX", "SPOTIFY", "SPOTIFY USA", "SPOTIFY", "#9999"}
	out := make([]core.Transaction, len(descs))
	for i, desc := range descs {
		out[i] = tx(fmt.Sprintf("t%d", i), d.AddDays(i), "1", desc)
	}
	return out
}

func TestGrouperMergesSimilarKeys(t *testing.T) {
	groups := NewGrouper(nil, DefaultSimilarityThreshold).Group(groupingInput())
	require.Len(t, groups, 3)

	assert.Equal(t, "netflix", groups[0].Key)
	assert.Equal(t, []string{"netflix", "netflx"}, groups[0].Variants)
	assert.Len(t, groups[0].Transactions, 5)
	assert.Equal(t, "Netflix", groups[0].MerchantName())

	assert.Equal(t, "spotify", groups[1].Key)
	assert.Len(t, groups[1].Transactions, 2)

	assert.Equal(t, "spotify usa", groups[2].Key)
}

func TestGrouperDropsEmptyKeys(t *testing.T) {
	groups := NewGrouper(nil, DefaultSimilarityThreshold).Group([]core.Transaction{
		tx("a", core.NewDate(2025, 1, 1), "1", "#1234"),
		tx("b", core.NewDate(2025, 1, 2), "1", "POS 987654"),
	})
	assert.Empty(t, groups)
}

func TestGrouperIsOrderIndependent(t *testing.T) {
	in := groupingInput()
	reversed := make([]core.Transaction, len(in))
	for i := range in {
		reversed[len(in)-1-i] = in[i]
	}

	g := NewGrouper(nil, DefaultSimilarityThreshold)
	a, b := g.Group(in), g.Group(reversed)
	require.Len(t, b, len(a))
	for i := range a {
		assert.Equal(t, a[i].Key, b[i].Key)
		assert.Equal(t, a[i].Variants, b[i].Variants)
		assert.ElementsMatch(t, ids(a[i].Transactions), ids(b[i].Transactions))
	}
}

type exactMatch struct{}

func (exactMatch) Score(a, b string) decimal.Decimal {
	if a == b {
		return decimal.NewFromInt(1)
	}
	return decimal.Zero
}

func TestGrouperUsesInjectedSimilarity(t *testing.T) {
	groups := NewGrouper(exactMatch{}, DefaultSimilarityThreshold).Group(groupingInput())
	assert.Len(t, groups, 4, "netflx stays apart without fuzzy matching")
}

func ids(txs []core.Transaction) []string {
	out := make([]string, len(txs))
	for i, t := range txs {
		out[i] = t.ID
	}
	return out
}
