// Package core provides money parsing and cost projection utilities.
//
// Amounts are exact decimals (shopspring/decimal). Conversion factors are decimal
// values too, so a weekly 9.99 projects to exactly 43.2567 per month.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// CostPrecision is the number of decimal places kept when a projection divides.
const CostPrecision = 4

var ErrInvalidAmount = errors.New("invalid amount")

var (
	factorWeeklyToMonthly   = decimal.RequireFromString("4.33")
	factorWeeklyToYearly    = decimal.NewFromInt(52)
	factorBiWeeklyToMonthly = decimal.RequireFromString("2.17")
	factorBiWeeklyToYearly  = decimal.NewFromInt(26)
	factorMonthlyToYearly   = decimal.NewFromInt(12)
	divisorQuarterToMonth   = decimal.NewFromInt(3)
	factorQuarterlyToYearly = decimal.NewFromInt(4)
	divisorYearToMonth      = decimal.NewFromInt(12)
)

// ParseAmount converts a decimal string to an exact amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and a leading sign.
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("-12,34") -> -12.34
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// MonthlyCost projects amount to its monthly equivalent for the given frequency.
func MonthlyCost(amount decimal.Decimal, f Frequency) (decimal.Decimal, error) {
	switch f {
	case Weekly:
		return amount.Mul(factorWeeklyToMonthly), nil
	case BiWeekly:
		return amount.Mul(factorBiWeeklyToMonthly), nil
	case Monthly:
		return amount, nil
	case Quarterly:
		return amount.DivRound(divisorQuarterToMonth, CostPrecision), nil
	case Yearly:
		return amount.DivRound(divisorYearToMonth, CostPrecision), nil
	}
	return decimal.Zero, f.Validate()
}

// YearlyCost projects amount to its yearly equivalent for the given frequency.
func YearlyCost(amount decimal.Decimal, f Frequency) (decimal.Decimal, error) {
	switch f {
	case Weekly:
		return amount.Mul(factorWeeklyToYearly), nil
	case BiWeekly:
		return amount.Mul(factorBiWeeklyToYearly), nil
	case Monthly:
		return amount.Mul(factorMonthlyToYearly), nil
	case Quarterly:
		return amount.Mul(factorQuarterlyToYearly), nil
	case Yearly:
		return amount, nil
	}
	return decimal.Zero, f.Validate()
}
