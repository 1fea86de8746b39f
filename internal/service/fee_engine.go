package service

import (
	"github.com/shopspring/decimal"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/domain"
)

var basisPointsPerUnit = decimal.NewFromInt(10000)

// ComputeFee returns the processing fee in cents for an approved amount in cents.
// Percentage mode floors amount*rate/10000; fixed mode ignores the amount.
func ComputeFee(amount int64, cfg domain.FeeConfiguration) int64 {
	if amount <= 0 {
		return 0
	}

	switch cfg.CalculationMode {
	case domain.FeeModeFixed:
		return cfg.FixedFeeAmount
	default:
		return decimal.NewFromInt(amount).
			Mul(decimal.NewFromInt(cfg.PercentageRate)).
			Div(basisPointsPerUnit).
			Floor().
			IntPart()
	}
}
