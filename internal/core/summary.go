package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// FrequencyTotal aggregates the counted patterns of one frequency class.
type FrequencyTotal struct {
	Count       int             `json:"count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// Summary is the aggregate view over an account's (or every account's) patterns.
type Summary struct {
	TotalCount           int                          `json:"total_count"`
	ActiveCount          int                          `json:"active_count"`
	MonthlyRecurringCost decimal.Decimal              `json:"monthly_recurring_cost"`
	YearlyRecurringCost  decimal.Decimal              `json:"yearly_recurring_cost"`
	ByFrequency          map[Frequency]FrequencyTotal `json:"by_frequency"`
	TopRecurring         []RecurringPattern           `json:"top_recurring"`
	OverdueCount         int                          `json:"overdue_count"`
}

// PatternFilter narrows List. Nil pointers mean "any".
type PatternFilter struct {
	AccountID string
	Frequency Frequency
	IsActive  *bool
	IsIgnored *bool
	OrderBy   string
}

// Sort orders accepted by PatternFilter.OrderBy.
const (
	OrderByConfidence   = "confidence"
	OrderByNextExpected = "next_expected_date"
	OrderByLastSeen     = "last_occurrence_date"
	OrderByAmount       = "amount"
	OrderByMerchant     = "merchant_name"
)

// TopRecurringLimit is the number of patterns reported in Summary.TopRecurring.
const TopRecurringLimit = 5

var ErrInvalidOrder = errors.New("invalid order")

// Matches reports whether p passes every set field of the filter.
func (f PatternFilter) Matches(p RecurringPattern) bool {
	if f.AccountID != "" && p.AccountID != f.AccountID {
		return false
	}
	if f.Frequency != "" && p.Frequency != f.Frequency {
		return false
	}
	if f.IsActive != nil && p.IsActive != *f.IsActive {
		return false
	}
	if f.IsIgnored != nil && p.IsIgnored != *f.IsIgnored {
		return false
	}
	return true
}

// Validate checks the filter's enumerated fields.
func (f PatternFilter) Validate() error {
	if f.Frequency != "" {
		if err := f.Frequency.Validate(); err != nil {
			return err
		}
	}
	switch f.OrderBy {
	case "", OrderByConfidence, OrderByNextExpected, OrderByLastSeen, OrderByAmount, OrderByMerchant:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidOrder, f.OrderBy)
}

// SortPatterns orders ps in place. The default order is confidence descending, then
// occurrence count descending. Ids break every remaining tie.
func SortPatterns(ps []RecurringPattern, orderBy string) {
	compare := byConfidence
	switch orderBy {
	case OrderByNextExpected:
		compare = func(a, b RecurringPattern) int {
			return a.NextExpectedDate.Compare(b.NextExpectedDate.Time)
		}
	case OrderByLastSeen:
		compare = func(a, b RecurringPattern) int {
			return b.LastOccurrenceDate.Compare(a.LastOccurrenceDate.Time)
		}
	case OrderByAmount:
		compare = func(a, b RecurringPattern) int {
			return b.Amount.Abs().Cmp(a.Amount.Abs())
		}
	case OrderByMerchant:
		compare = func(a, b RecurringPattern) int {
			return strings.Compare(a.MerchantName, b.MerchantName)
		}
	}
	sort.SliceStable(ps, func(i, j int) bool {
		if c := compare(ps[i], ps[j]); c != 0 {
			return c < 0
		}
		return ps[i].ID < ps[j].ID
	})
}

func byConfidence(a, b RecurringPattern) int {
	if c := b.ConfidenceScore.Cmp(a.ConfidenceScore); c != 0 {
		return c
	}
	return b.OccurrenceCount - a.OccurrenceCount
}

// Summarize aggregates patterns as of today. Costs and per-frequency totals cover
// counted patterns only and use the absolute amount, so income and expense
// patterns both project as positive magnitudes.
func Summarize(patterns []RecurringPattern, today Date) (Summary, error) {
	s := Summary{
		TotalCount:           len(patterns),
		MonthlyRecurringCost: decimal.Zero,
		YearlyRecurringCost:  decimal.Zero,
		ByFrequency:          make(map[Frequency]FrequencyTotal),
		TopRecurring:         []RecurringPattern{},
	}

	var counted []RecurringPattern
	for _, p := range patterns {
		if p.IsOverdue(today) {
			s.OverdueCount++
		}
		if !p.Counted() {
			continue
		}
		counted = append(counted, p)
		s.ActiveCount++

		amount := p.Amount.Abs()
		monthly, err := MonthlyCost(amount, p.Frequency)
		if err != nil {
			return Summary{}, fmt.Errorf("pattern %s: %w", p.ID, err)
		}
		yearly, err := YearlyCost(amount, p.Frequency)
		if err != nil {
			return Summary{}, fmt.Errorf("pattern %s: %w", p.ID, err)
		}
		s.MonthlyRecurringCost = s.MonthlyRecurringCost.Add(monthly)
		s.YearlyRecurringCost = s.YearlyRecurringCost.Add(yearly)

		ft := s.ByFrequency[p.Frequency]
		ft.Count++
		ft.TotalAmount = ft.TotalAmount.Add(amount)
		s.ByFrequency[p.Frequency] = ft
	}

	SortPatterns(counted, OrderByConfidence)
	if len(counted) > TopRecurringLimit {
		counted = counted[:TopRecurringLimit]
	}
	s.TopRecurring = append(s.TopRecurring, counted...)
	return s, nil
}
