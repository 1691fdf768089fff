package grouporder

import (
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places prices are rounded to.
// Prices are whole currency units.
const MoneyScale int32 = 0

// DiscountTier grants Percent once the group has at least MinMembers active members
type DiscountTier struct {
	MinMembers int   `json:"min_members"`
	Percent    int32 `json:"percent"`
}

// DiscountPolicy is a step function from active member count to a discount percent
type DiscountPolicy struct {
	Tiers []DiscountTier `json:"tiers"`
}

// DefaultDiscountPolicy returns the policy used when none is configured
func DefaultDiscountPolicy() DiscountPolicy {
	return DiscountPolicy{Tiers: []DiscountTier{
		{MinMembers: 1, Percent: 0},
		{MinMembers: 3, Percent: 10},
	}}
}

// NewDiscountPolicy validates and normalizes tiers.
// Tiers are sorted by MinMembers; percent must be non-decreasing and within [0, 100).
func NewDiscountPolicy(tiers []DiscountTier) (DiscountPolicy, error) {
	sorted := make([]DiscountTier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinMembers < sorted[j].MinMembers
	})

	for i, t := range sorted {
		if t.MinMembers < 0 || t.Percent < 0 || t.Percent >= 100 {
			return DiscountPolicy{}, ErrInvalidDiscountTiers.WithReason("OUT_OF_RANGE")
		}
		if i > 0 {
			prev := sorted[i-1]
			if prev.MinMembers == t.MinMembers {
				return DiscountPolicy{}, ErrInvalidDiscountTiers.WithReason("DUPLICATE_THRESHOLD")
			}
			if t.Percent < prev.Percent {
				return DiscountPolicy{}, ErrInvalidDiscountTiers.WithReason("DECREASING_PERCENT")
			}
		}
	}
	return DiscountPolicy{Tiers: sorted}, nil
}

// Percent returns the discount percent for the given distinct active member count.
// It is deterministic, non-decreasing in count and has no side effects.
func (p DiscountPolicy) Percent(activeMembers int) int32 {
	var pct int32
	for _, t := range p.Tiers {
		if activeMembers >= t.MinMembers {
			pct = t.Percent
		}
	}
	return pct
}

// MarshalJSON keeps the persisted form compact
func (p DiscountPolicy) MarshalJSON() ([]byte, error) {
	if p.Tiers == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p.Tiers)
}

// UnmarshalJSON accepts the array form written by MarshalJSON
func (p *DiscountPolicy) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &p.Tiers)
}

// ApplyDiscount returns the post-discount unit price for a list price
func ApplyDiscount(listPrice decimal.Decimal, percent int32) decimal.Decimal {
	if percent <= 0 {
		return listPrice.Round(MoneyScale)
	}
	factor := decimal.NewFromInt(100 - int64(percent)).Div(decimal.NewFromInt(100))
	return listPrice.Mul(factor).Round(MoneyScale)
}

// PreGroupPrice reverses the discount for display: round(P / (1 - D/100)) when D > 0, else P
func PreGroupPrice(price decimal.Decimal, percent int32) decimal.Decimal {
	if percent <= 0 {
		return price
	}
	factor := decimal.NewFromInt(100 - int64(percent))
	return price.Mul(decimal.NewFromInt(100)).Div(factor).Round(MoneyScale)
}

// Totals is the price summary of a set of items
type Totals struct {
	SubtotalBefore decimal.Decimal `json:"subtotal_before"`
	TotalAfter     decimal.Decimal `json:"total_after"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

// ComputeTotals sums pre-group and stored prices of items.
// DiscountAmount is clamped at zero so rounding never shows a negative discount.
func ComputeTotals(items []Item, percent int32) Totals {
	before := decimal.Zero
	after := decimal.Zero
	for _, it := range items {
		qty := decimal.NewFromInt(int64(it.Quantity))
		before = before.Add(PreGroupPrice(it.UnitPrice, percent).Mul(qty))
		after = after.Add(it.UnitPrice.Mul(qty))
	}
	discount := before.Sub(after)
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return Totals{
		SubtotalBefore: before,
		TotalAfter:     after,
		DiscountAmount: discount,
	}
}
