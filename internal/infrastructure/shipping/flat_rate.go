// Package shipping computes shipping fees for checkout orders.
package shipping

import (
	"context"
	"errors"

	"github.com/groupbuy/backend/internal/domain/grouporder"
	"github.com/groupbuy/backend/internal/infrastructure/config"
	"github.com/shopspring/decimal"
)

const gramsPerKg = 1000

// ErrNegativeWeight is returned for a request with a negative total weight
var ErrNegativeWeight = errors.New("shipping: weight cannot be negative")

// FlatRateCalculator charges a base fee plus a fee per started kilogram.
// Orders whose discounted subtotal reaches the threshold ship free.
type FlatRateCalculator struct {
	baseFee   decimal.Decimal
	perKgFee  decimal.Decimal
	threshold decimal.Decimal // zero disables free shipping
}

// NewFlatRateCalculator creates a calculator from the shipping table
func NewFlatRateCalculator(cfg config.ShippingConfig) *FlatRateCalculator {
	return &FlatRateCalculator{
		baseFee:   decimal.NewFromInt(cfg.BaseFee),
		perKgFee:  decimal.NewFromInt(cfg.PerKgFee),
		threshold: decimal.NewFromInt(cfg.FreeShippingThreshold),
	}
}

// CalculateFee implements grouporder.ShippingCalculator
func (c *FlatRateCalculator) CalculateFee(_ context.Context, req grouporder.ShippingQuoteRequest) (decimal.Decimal, error) {
	if req.WeightGrams < 0 {
		return decimal.Zero, ErrNegativeWeight
	}
	if c.threshold.IsPositive() && req.Subtotal.GreaterThanOrEqual(c.threshold) {
		return decimal.Zero, nil
	}
	kg := (req.WeightGrams + gramsPerKg - 1) / gramsPerKg
	return c.baseFee.Add(c.perKgFee.Mul(decimal.NewFromInt(int64(kg)))), nil
}

var _ grouporder.ShippingCalculator = (*FlatRateCalculator)(nil)
