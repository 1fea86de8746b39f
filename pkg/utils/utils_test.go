package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatCents(t *testing.T) {
	tests := []struct {
		name     string
		cents    int64
		expected string
	}{
		{name: "loan principal", cents: 500000, expected: "$5000.00"},
		{name: "processing fee", cents: 10000, expected: "$100.00"},
		{name: "fixed fee", cents: 200, expected: "$2.00"},
		{name: "sub dollar", cents: 5, expected: "$0.05"},
		{name: "zero", cents: 0, expected: "$0.00"},
		{name: "negative", cents: -150, expected: "-$1.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatCents(tt.cents))
		})
	}
}

func TestBasisPointsToPercent(t *testing.T) {
	assert.True(t, BasisPointsToPercent(200).Equal(decimal.NewFromInt(2)))
	assert.True(t, BasisPointsToPercent(150).Equal(decimal.RequireFromString("1.5")))
	assert.True(t, BasisPointsToPercent(250).Equal(decimal.RequireFromString("2.5")))
}

func TestConvertCentsToCrypto(t *testing.T) {
	tests := []struct {
		name     string
		cents    int64
		rate     string
		places   int32
		expected string
	}{
		{
			name:     "stablecoin is one to one",
			cents:    10000,
			rate:     "1",
			places:   6,
			expected: "100",
		},
		{
			name:     "btc exact",
			cents:    10000,
			rate:     "50000",
			places:   8,
			expected: "0.002",
		},
		{
			name:     "btc rounds up",
			cents:    10000,
			rate:     "60000",
			places:   8,
			expected: "0.00166667", // 100 / 60000 = 0.0016666...
		},
		{
			name:     "eth rounds up",
			cents:    200,
			rate:     "3000",
			places:   8,
			expected: "0.00066667",
		},
		{
			name:     "zero rate",
			cents:    10000,
			rate:     "0",
			places:   8,
			expected: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConvertCentsToCrypto(tt.cents, decimal.RequireFromString(tt.rate), tt.places)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.expected)),
				"Expected %v, but got %v", tt.expected, got)
		})
	}
}
