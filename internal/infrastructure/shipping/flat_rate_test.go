package shipping

import (
	"context"
	"testing"

	"github.com/groupbuy/backend/internal/domain/grouporder"
	"github.com/groupbuy/backend/internal/infrastructure/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatRateCalculator_CalculateFee(t *testing.T) {
	calc := NewFlatRateCalculator(config.ShippingConfig{
		BaseFee:               15000,
		PerKgFee:              5000,
		FreeShippingThreshold: 500000,
	})

	tests := []struct {
		name     string
		weight   int
		subtotal int64
		want     int64
	}{
		{"weightless", 0, 100000, 15000},
		{"one gram rounds up to a kilogram", 1, 100000, 20000},
		{"exactly one kilogram", 1000, 100000, 20000},
		{"just over two kilograms", 2001, 100000, 30000},
		{"threshold reached ships free", 8000, 500000, 0},
		{"above threshold ships free", 8000, 900000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee, err := calc.CalculateFee(context.Background(), grouporder.ShippingQuoteRequest{
				WeightGrams: tt.weight,
				Subtotal:    decimal.NewFromInt(tt.subtotal),
			})
			require.NoError(t, err)
			assert.True(t, decimal.NewFromInt(tt.want).Equal(fee), "got %s", fee)
		})
	}
}

func TestFlatRateCalculator_NoThreshold(t *testing.T) {
	calc := NewFlatRateCalculator(config.ShippingConfig{BaseFee: 10000})

	fee, err := calc.CalculateFee(context.Background(), grouporder.ShippingQuoteRequest{
		WeightGrams: 4000,
		Subtotal:    decimal.NewFromInt(10_000_000),
	})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10000).Equal(fee))
}

func TestFlatRateCalculator_NegativeWeight(t *testing.T) {
	calc := NewFlatRateCalculator(config.ShippingConfig{})
	_, err := calc.CalculateFee(context.Background(), grouporder.ShippingQuoteRequest{WeightGrams: -1})
	assert.ErrorIs(t, err, ErrNegativeWeight)
}
