package utils

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CentsToDecimal converts minor currency units to a major-unit decimal.
func CentsToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// FormatCents renders minor units as a dollar string, e.g. 510000 -> "$5100.00".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return sign + "$" + CentsToDecimal(cents).StringFixed(2)
}

// BasisPointsToPercent converts a rate in basis points to percent, e.g. 200 -> 2.
func BasisPointsToPercent(bps int64) decimal.Decimal {
	return decimal.NewFromInt(bps).Div(hundred)
}

// ConvertCentsToCrypto prices a USD amount in a currency quoted at usdPerUnit.
// The result is rounded up at the given precision so the applicant never underpays.
func ConvertCentsToCrypto(cents int64, usdPerUnit decimal.Decimal, places int32) decimal.Decimal {
	if !usdPerUnit.IsPositive() || cents <= 0 {
		return decimal.Zero
	}
	return CentsToDecimal(cents).DivRound(usdPerUnit, places+4).RoundCeil(places)
}
