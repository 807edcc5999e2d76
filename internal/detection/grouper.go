package detection

import (
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"recurring/internal/core"
)

// Group is a set of transactions believed to come from the same merchant.
type Group struct {
	// Key is the representative normalized key. It is the identity the
	// pattern is stored under.
	Key string
	// Variants are the distinct normalized keys merged into the group, most frequent first.
	Variants     []string
	Transactions []core.Transaction
}

// MerchantName returns a display form of the group key.
func (g Group) MerchantName() string {
	return cases.Title(language.Und).String(g.Key)
}

// Grouper clusters transactions by the similarity of their normalized descriptions.
type Grouper struct {
	sim       Similarity
	threshold decimal.Decimal
}

// NewGrouper returns a Grouper that merges keys scoring at least threshold.
// A nil sim falls back to LevenshteinSimilarity.
func NewGrouper(sim Similarity, threshold decimal.Decimal) *Grouper {
	if sim == nil {
		sim = LevenshteinSimilarity{}
	}
	return &Grouper{sim: sim, threshold: threshold}
}

// Group clusters txs. Transactions whose description normalizes to an empty key are
// dropped. The output only depends on the multiset of keys: keys are visited by
// descending count then alphabetically, and each joins the first existing group
// whose representative is similar enough.
func (g *Grouper) Group(txs []core.Transaction) []Group {
	keyOf := make([]string, len(txs))
	counts := make(map[string]int)
	for i, tx := range txs {
		k := Normalize(tx.Description)
		keyOf[i] = k
		if k != "" {
			counts[k]++
		}
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	var groups []Group
	groupOf := make(map[string]int, len(keys))
	for _, k := range keys {
		idx := -1
		for gi := range groups {
			if g.sim.Score(groups[gi].Key, k).GreaterThanOrEqual(g.threshold) {
				idx = gi
				break
			}
		}
		if idx < 0 {
			groups = append(groups, Group{Key: k})
			idx = len(groups) - 1
		}
		groups[idx].Variants = append(groups[idx].Variants, k)
		groupOf[k] = idx
	}

	for i, tx := range txs {
		if keyOf[i] == "" {
			continue
		}
		gi := groupOf[keyOf[i]]
		groups[gi].Transactions = append(groups[gi].Transactions, tx)
	}
	return groups
}
