package detection

import (
	"github.com/shopspring/decimal"
)

var (
	// MinConfidence is the lowest score a pattern needs to be proposed.
	MinConfidence = decimal.RequireFromString("0.6")

	intervalWeight   = decimal.RequireFromString("0.5")
	amountWeight     = decimal.RequireFromString("0.3")
	occurrenceWeight = decimal.RequireFromString("0.2")
)

// ScorePrecision is the number of decimal places a confidence score is rounded to.
const ScorePrecision = 4

// Confidence breaks a score down into its components. Every component is in [0, 1].
type Confidence struct {
	IntervalConsistency decimal.Decimal
	AmountConsistency   decimal.Decimal
	OccurrenceRatio     decimal.Decimal
	Score               decimal.Decimal
}

// Passes reports whether the score reaches MinConfidence.
func (c Confidence) Passes() bool {
	return c.Score.GreaterThanOrEqual(MinConfidence)
}

// Score computes the confidence of a detection over a lookback window of daysBack days.
func Score(d Detection, daysBack int) Confidence {
	c := Confidence{
		IntervalConsistency: ratio(d.MatchedIntervals, d.Intervals),
		AmountConsistency:   ratio(d.ConsistentAmounts, d.Amounts),
	}
	occ := decimal.NewFromInt(int64(d.Occurrences())).Div(d.Rule.ExpectedOccurrences(daysBack))
	c.OccurrenceRatio = decimal.Min(one, occ)

	c.Score = intervalWeight.Mul(c.IntervalConsistency).
		Add(amountWeight.Mul(c.AmountConsistency)).
		Add(occurrenceWeight.Mul(c.OccurrenceRatio)).
		Round(ScorePrecision)
	return c
}

func ratio(n, of int) decimal.Decimal {
	if of == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(n)).Div(decimal.NewFromInt(int64(of)))
}
