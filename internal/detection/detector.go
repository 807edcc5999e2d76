package detection

import (
	"sort"

	"github.com/shopspring/decimal"

	"recurring/internal/core"
)

var amountTolerance = decimal.RequireFromString("0.05")

// Detection is the periodicity found in one group.
type Detection struct {
	Rule FrequencyRule

	// Matched are the transactions that are an endpoint of at least one in-band interval,
	// oldest first.
	Matched []core.Transaction

	Intervals        int
	MatchedIntervals int

	AverageAmount     decimal.Decimal
	Amounts           int
	ConsistentAmounts int

	// Variance is mean(((interval - target) / target)^2) over every interval.
	Variance decimal.Decimal
}

// Occurrences is the number of distinct matched transactions.
func (d Detection) Occurrences() int { return len(d.Matched) }

// Latest returns the most recent matched transaction.
func (d Detection) Latest() core.Transaction { return d.Matched[len(d.Matched)-1] }

// TransactionIDs returns the ids of the matched transactions, oldest first.
func (d Detection) TransactionIDs() []string {
	ids := make([]string, len(d.Matched))
	for i, tx := range d.Matched {
		ids[i] = tx.ID
	}
	return ids
}

// Detector classifies a group of transactions into a frequency class.
type Detector struct {
	rules []FrequencyRule
}

func NewDetector() *Detector {
	return &Detector{rules: Rules()}
}

// Detect returns the best-fitting frequency for txs, or false when the group is not
// periodic. Every transaction must already be valid. The fit with the lowest variance
// wins; ties go to more occurrences and then to the shorter interval.
func (d *Detector) Detect(txs []core.Transaction) (Detection, bool) {
	if len(txs) < 2 {
		return Detection{}, false
	}

	sorted := make([]core.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date.Time) {
			return sorted[i].Date.Before(sorted[j].Date.Time)
		}
		return sorted[i].ID < sorted[j].ID
	})

	sum := decimal.Zero
	for _, tx := range sorted {
		sum = sum.Add(tx.Amount.Decimal)
	}
	// A zero mean makes relative amount checks meaningless.
	if sum.IsZero() {
		return Detection{}, false
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(sorted))))

	tol := mean.Abs().Mul(amountTolerance)
	consistent := 0
	for _, tx := range sorted {
		if tx.Amount.Decimal.Sub(mean).Abs().LessThanOrEqual(tol) {
			consistent++
		}
	}

	intervals := make([]int, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		intervals[i-1] = sorted[i-1].Date.DaysUntil(sorted[i].Date)
	}

	var (
		best  Detection
		found bool
	)
	for _, rule := range d.rules {
		endpoint := make([]bool, len(sorted))
		matched := 0
		variance := decimal.Zero
		for i, days := range intervals {
			variance = variance.Add(rule.relativeDeviation(days))
			if rule.Matches(days) {
				matched++
				endpoint[i] = true
				endpoint[i+1] = true
			}
		}

		var occ []core.Transaction
		for i, ok := range endpoint {
			if ok {
				occ = append(occ, sorted[i])
			}
		}
		if len(occ) < rule.MinOccurrences {
			continue
		}

		candidate := Detection{
			Rule:              rule,
			Matched:           occ,
			Intervals:         len(intervals),
			MatchedIntervals:  matched,
			AverageAmount:     mean,
			Amounts:           len(sorted),
			ConsistentAmounts: consistent,
			Variance:          variance.Div(decimal.NewFromInt(int64(len(intervals)))),
		}
		if !found || better(candidate, best) {
			best = candidate
			found = true
		}
	}
	return best, found
}

// better reports whether a beats b. Rules are visited shortest first, so equal
// candidates keep the earlier one.
func better(a, b Detection) bool {
	if c := a.Variance.Cmp(b.Variance); c != 0 {
		return c < 0
	}
	return a.Occurrences() > b.Occurrences()
}
