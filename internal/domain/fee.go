package domain

import "time"

type FeeMode string

const (
	FeeModePercentage FeeMode = "percentage"
	FeeModeFixed      FeeMode = "fixed"
)

// Bounds shared by both modes: 150..250 basis points, or 150..250 cents.
const (
	MinFeeRateBps    int64 = 150
	MaxFeeRateBps    int64 = 250
	MinFixedFeeCents int64 = 150
	MaxFixedFeeCents int64 = 250
)

// FeeConfiguration is one version of the processing fee settings.
// Exactly one version is active at a time.
type FeeConfiguration struct {
	Version         int64     `json:"version" db:"version"`
	CalculationMode FeeMode   `json:"calculation_mode" db:"calculation_mode"`
	PercentageRate  int64     `json:"percentage_rate" db:"percentage_rate"`
	FixedFeeAmount  int64     `json:"fixed_fee_amount" db:"fixed_fee_amount"`
	Active          bool      `json:"active" db:"active"`
	UpdatedBy       string    `json:"updated_by" db:"updated_by"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Validate returns field-level problems, or nil when the configuration is usable.
func (c FeeConfiguration) Validate() map[string]string {
	fields := map[string]string{}
	if c.CalculationMode != FeeModePercentage && c.CalculationMode != FeeModeFixed {
		fields["calculation_mode"] = "must be percentage or fixed"
	}
	if c.PercentageRate < MinFeeRateBps || c.PercentageRate > MaxFeeRateBps {
		fields["percentage_rate"] = "must be between 150 and 250 basis points (1.50%-2.50%)"
	}
	if c.FixedFeeAmount < MinFixedFeeCents || c.FixedFeeAmount > MaxFixedFeeCents {
		fields["fixed_fee_amount"] = "must be between 150 and 250 cents"
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

type UpdateFeeConfigRequest struct {
	CalculationMode FeeMode `json:"calculation_mode" validate:"required,oneof=percentage fixed"`
	PercentageRate  int64   `json:"percentage_rate" validate:"required"`
	FixedFeeAmount  int64   `json:"fixed_fee_amount" validate:"required"`
}

type QuoteFeeRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}
