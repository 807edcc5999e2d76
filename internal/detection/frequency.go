// Package detection finds recurring patterns in an account's transaction history.
//
// This file holds the per-frequency rules. Each frequency class owns its target
// interval, the tolerance band around it and the minimum number of occurrences
// needed before a group can be classified with it.
package detection

import (
	"fmt"

	"github.com/shopspring/decimal"

	"recurring/internal/core"
)

var (
	intervalTolerance = decimal.RequireFromString("0.30")
	one               = decimal.NewFromInt(1)
)

// FrequencyRule describes how one frequency class is recognised.
type FrequencyRule struct {
	Frequency      core.Frequency
	TargetDays     int
	MinOccurrences int
}

// frequencyRules is ordered by target interval so that ties resolve to the shorter class.
var frequencyRules = []FrequencyRule{
	{Frequency: core.Weekly, TargetDays: 7, MinOccurrences: 3},
	{Frequency: core.BiWeekly, TargetDays: 14, MinOccurrences: 3},
	{Frequency: core.Monthly, TargetDays: 30, MinOccurrences: 2},
	{Frequency: core.Quarterly, TargetDays: 90, MinOccurrences: 2},
	{Frequency: core.Yearly, TargetDays: 365, MinOccurrences: 2},
}

// Rules returns the rules of every supported frequency, shortest interval first.
func Rules() []FrequencyRule {
	out := make([]FrequencyRule, len(frequencyRules))
	copy(out, frequencyRules)
	return out
}

// GetRule returns the rule for a frequency.
func GetRule(f core.Frequency) (FrequencyRule, error) {
	for _, r := range frequencyRules {
		if r.Frequency == f {
			return r, nil
		}
	}
	return FrequencyRule{}, fmt.Errorf("no rule for frequency %q: %w", f, core.ErrInvalidFrequency)
}

// Band returns the inclusive interval range, in days, accepted for this frequency.
func (r FrequencyRule) Band() (lo, hi decimal.Decimal) {
	target := decimal.NewFromInt(int64(r.TargetDays))
	delta := target.Mul(intervalTolerance)
	return target.Sub(delta), target.Add(delta)
}

// Matches reports whether an interval between two occurrences fits this frequency.
func (r FrequencyRule) Matches(days int) bool {
	lo, hi := r.Band()
	d := decimal.NewFromInt(int64(days))
	return d.GreaterThanOrEqual(lo) && d.LessThanOrEqual(hi)
}

// NextDate returns the date the next occurrence is expected after last.
func (r FrequencyRule) NextDate(last core.Date) core.Date {
	return last.AddDays(r.TargetDays)
}

// ExpectedOccurrences is how many occurrences a lookback window of daysBack can hold.
// It is never below one.
func (r FrequencyRule) ExpectedOccurrences(daysBack int) decimal.Decimal {
	expected := decimal.NewFromInt(int64(daysBack)).Div(decimal.NewFromInt(int64(r.TargetDays)))
	if expected.LessThan(one) {
		return one
	}
	return expected
}

// relativeDeviation returns ((days - target) / target)^2.
func (r FrequencyRule) relativeDeviation(days int) decimal.Decimal {
	target := decimal.NewFromInt(int64(r.TargetDays))
	dev := decimal.NewFromInt(int64(days)).Sub(target).Div(target)
	return dev.Mul(dev)
}
