package grouporder

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/groupbuy/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscountPolicy_Percent(t *testing.T) {
	policy := DefaultDiscountPolicy()

	tests := []struct {
		members int
		want    int32
	}{
		{0, 0},
		{1, 0},
		{2, 0},
		{3, 10},
		{10, 10},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, policy.Percent(tt.members), "members=%d", tt.members)
	}
}

func TestDiscountPolicy_PercentIsNonDecreasing(t *testing.T) {
	policy, err := NewDiscountPolicy([]DiscountTier{
		{MinMembers: 5, Percent: 15},
		{MinMembers: 1, Percent: 0},
		{MinMembers: 3, Percent: 10},
		{MinMembers: 8, Percent: 20},
	})
	require.NoError(t, err)

	prev := int32(-1)
	for n := 0; n <= 12; n++ {
		pct := policy.Percent(n)
		assert.GreaterOrEqual(t, pct, prev)
		assert.Equal(t, pct, policy.Percent(n), "same count must give same percent")
		prev = pct
	}
	assert.Equal(t, int32(15), policy.Percent(7))
}

func TestNewDiscountPolicy_Validation(t *testing.T) {
	tests := []struct {
		name   string
		tiers  []DiscountTier
		reason string
	}{
		{"negative percent", []DiscountTier{{MinMembers: 1, Percent: -1}}, "OUT_OF_RANGE"},
		{"hundred percent", []DiscountTier{{MinMembers: 1, Percent: 100}}, "OUT_OF_RANGE"},
		{"duplicate threshold", []DiscountTier{{1, 0}, {1, 5}}, "DUPLICATE_THRESHOLD"},
		{"decreasing", []DiscountTier{{1, 10}, {3, 5}}, "DECREASING_PERCENT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDiscountPolicy(tt.tiers)
			require.Error(t, err)
			var de *shared.DomainError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, "INVALID_DISCOUNT_TIERS", de.Code)
			assert.Equal(t, tt.reason, de.Reason)
			assert.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestDiscountPolicy_JSON(t *testing.T) {
	policy := DefaultDiscountPolicy()

	data, err := json.Marshal(policy)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"min_members":1,"percent":0},{"min_members":3,"percent":10}]`, string(data))

	var decoded DiscountPolicy
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, policy, decoded)
}

func TestPreGroupPrice(t *testing.T) {
	tests := []struct {
		price   int64
		percent int32
		want    int64
	}{
		{90000, 10, 100000},
		{180000, 10, 200000},
		{100, 0, 100},
		{33, 15, 39}, // 38.82 rounds up
		{1, 50, 2},
	}

	for _, tt := range tests {
		got := PreGroupPrice(decimal.NewFromInt(tt.price), tt.percent)
		assert.True(t, decimal.NewFromInt(tt.want).Equal(got), "PreGroupPrice(%d, %d) = %s", tt.price, tt.percent, got)
	}
}

func TestApplyDiscount(t *testing.T) {
	assert.True(t, decimal.NewFromInt(90000).Equal(ApplyDiscount(decimal.NewFromInt(100000), 10)))
	assert.True(t, decimal.NewFromInt(100000).Equal(ApplyDiscount(decimal.NewFromInt(100000), 0)))
	assert.True(t, decimal.NewFromInt(85).Equal(ApplyDiscount(decimal.NewFromInt(99), 14)))
}

func TestComputeTotals_ScenarioB(t *testing.T) {
	items := []Item{
		{ID: uuid.New(), Quantity: 1, UnitPrice: decimal.NewFromInt(90000)},
		{ID: uuid.New(), Quantity: 1, UnitPrice: decimal.NewFromInt(180000)},
	}

	totals := ComputeTotals(items, 10)

	assert.True(t, decimal.NewFromInt(300000).Equal(totals.SubtotalBefore), "subtotal %s", totals.SubtotalBefore)
	assert.True(t, decimal.NewFromInt(30000).Equal(totals.DiscountAmount), "discount %s", totals.DiscountAmount)
	assert.True(t, decimal.NewFromInt(270000).Equal(totals.TotalAfter), "total %s", totals.TotalAfter)
}

func TestComputeTotals_Quantity(t *testing.T) {
	items := []Item{{Quantity: 3, UnitPrice: decimal.NewFromInt(90)}}

	totals := ComputeTotals(items, 10)

	assert.True(t, decimal.NewFromInt(300).Equal(totals.SubtotalBefore))
	assert.True(t, decimal.NewFromInt(270).Equal(totals.TotalAfter))
	assert.True(t, decimal.NewFromInt(30).Equal(totals.DiscountAmount))
}

func TestComputeTotals_Balances(t *testing.T) {
	prices := []int64{1, 7, 33, 99, 12345, 99999}
	for _, pct := range []int32{0, 5, 10, 15, 33} {
		items := make([]Item, 0, len(prices))
		for _, p := range prices {
			items = append(items, Item{Quantity: 1, UnitPrice: decimal.NewFromInt(p)})
		}
		totals := ComputeTotals(items, pct)

		assert.False(t, totals.DiscountAmount.IsNegative())
		diff := totals.SubtotalBefore.Sub(totals.DiscountAmount).Sub(totals.TotalAfter).Abs()
		assert.True(t, diff.LessThanOrEqual(decimal.NewFromInt(int64(len(items)))), "pct=%d diff=%s", pct, diff)
	}
}

func TestComputeTotals_Empty(t *testing.T) {
	totals := ComputeTotals(nil, 10)

	assert.True(t, totals.SubtotalBefore.IsZero())
	assert.True(t, totals.TotalAfter.IsZero())
	assert.True(t, totals.DiscountAmount.IsZero())
}
