package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		ID:          "t1",
		Date:        NewDate(2025, 1, 1),
		Amount:      decimal.NewNullDecimal(decimal.RequireFromString("12.99")),
		Description: "NETFLIX",
	}
	require.NoError(t, good.Validate())

	noDate := good
	noDate.Date = Date{Time: time.Time{}}
	assert.ErrorIs(t, noDate.Validate(), ErrMissingDate)

	noAmount := good
	noAmount.Amount = decimal.NullDecimal{}
	assert.ErrorIs(t, noAmount.Validate(), ErrMissingAmount)
}

func TestParseFrequency(t *testing.T) {
	cases := []struct {
		in   string
		want Frequency
		ok   bool
	}{
		{"weekly", Weekly, true},
		{"Bi-Weekly", BiWeekly, true},
		{"fortnightly", BiWeekly, true},
		{" monthly ", Monthly, true},
		{"quarterly", Quarterly, true},
		{"annually", Yearly, true},
		{"daily", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseFrequency(tc.in)
		if tc.ok {
			require.NoError(t, err, tc.in)
			assert.Equal(t, tc.want, got, tc.in)
		} else {
			assert.ErrorIs(t, err, ErrInvalidFrequency, tc.in)
		}
	}
}

func TestDateDaysUntil(t *testing.T) {
	a := NewDate(2025, 1, 31)
	assert.Equal(t, 29, a.DaysUntil(NewDate(2025, 3, 1)))
	assert.Equal(t, -1, a.DaysUntil(NewDate(2025, 1, 30)))
	assert.Equal(t, NewDate(2025, 3, 2), a.AddDays(30))
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2025, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, `"2025-02-03"`, string(b))

	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2024-12-31"`), &d))
	assert.Equal(t, NewDate(2024, 12, 31), d)

	b, err = json.Marshal(Date{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
}

func TestRecurringPatternOverdue(t *testing.T) {
	today := NewDate(2025, 6, 10)
	p := RecurringPattern{IsActive: true}
	p.NextExpectedDate = today.AddDays(-1)

	assert.True(t, p.IsOverdue(today))

	p.IsIgnored = true
	assert.False(t, p.IsOverdue(today), "ignored patterns are never overdue")

	p.IsIgnored = false
	p.IsActive = false
	assert.False(t, p.IsOverdue(today), "inactive patterns are never overdue")

	p.IsActive = true
	p.NextExpectedDate = today
	assert.False(t, p.IsOverdue(today), "due today is not overdue yet")
}

func TestRecurringPatternUpcoming(t *testing.T) {
	today := NewDate(2025, 6, 10)
	p := RecurringPattern{IsActive: true}

	p.NextExpectedDate = today.AddDays(30)
	assert.True(t, p.IsUpcoming(today, 30))
	assert.False(t, p.IsUpcoming(today, 29))

	p.NextExpectedDate = today.AddDays(-2)
	assert.False(t, p.IsUpcoming(today, 30), "overdue is not upcoming")
}

func TestRecurringPatternJSONUsesDecimalStrings(t *testing.T) {
	p := RecurringPattern{ID: "p1", IsActive: true}
	p.Amount = decimal.RequireFromString("12.99")
	p.ConfidenceScore = decimal.RequireFromString("0.8658")

	b, err := json.Marshal(p)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, "12.99", raw["amount"])
	assert.Equal(t, "0.8658", raw["confidence_score"])
	assert.Equal(t, true, raw["is_active"])
}
