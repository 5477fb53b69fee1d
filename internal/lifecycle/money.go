package lifecycle

import (
	"math"

	"github.com/shopspring/decimal"
)

const monetaryPrecision int32 = 2 // bids are compared to the cent

// MaxAmount is the largest amount the ledger can hold (NUMERIC(14,2))
const MaxAmount = 999_999_999_999.99

// Exceeds returns true if amount is strictly greater than current.
// Equal amounts never exceed, so ties cannot be admitted.
func Exceeds(amount, current float64) bool {
	amountDecimal := decimal.NewFromFloat(amount).Round(monetaryPrecision)
	currentDecimal := decimal.NewFromFloat(current).Round(monetaryPrecision)

	return amountDecimal.GreaterThan(currentDecimal)
}

// ValidAmount rejects zero, negative, NaN and infinite amounts, and
// amounts above MaxAmount.
func ValidAmount(amount float64) bool {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return false
	}
	d := decimal.NewFromFloat(amount).Round(monetaryPrecision)
	return d.IsPositive() && d.LessThanOrEqual(decimal.NewFromFloat(MaxAmount))
}

// RoundAmount rounds amount to the cent. Every stored, compared and
// published amount goes through it first.
func RoundAmount(amount float64) float64 {
	rounded, _ := decimal.NewFromFloat(amount).Round(monetaryPrecision).Float64()
	return rounded
}
