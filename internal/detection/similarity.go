package detection

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"
)

// DefaultSimilarityThreshold is the minimum score for two keys to share a group.
var DefaultSimilarityThreshold = decimal.RequireFromString("0.80")

// Similarity scores how alike two normalized keys are, from 0 (unrelated) to 1 (equal).
type Similarity interface {
	Score(a, b string) decimal.Decimal
}

// LevenshteinSimilarity is 1 - editDistance / longerLength.
type LevenshteinSimilarity struct{}

func (LevenshteinSimilarity) Score(a, b string) decimal.Decimal {
	if a == b {
		return one
	}
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return decimal.Zero
	}
	dist := levenshtein.ComputeDistance(a, b)
	return one.Sub(decimal.NewFromInt(int64(dist)).DivRound(decimal.NewFromInt(int64(longest)), 4))
}
