// Package fee computes the platform's commission split for a settlement.
package fee

import (
	"github.com/shopspring/decimal"

	"stowpay/internal/apperrors"
)

var one = decimal.NewFromInt(1)

// Split is a gross amount divided into the platform fee and the store's net
// share. Fee + Net always equals the gross exactly.
type Split struct {
	Gross decimal.Decimal
	Rate  decimal.Decimal
	Fee   decimal.Decimal
	Net   decimal.Decimal
}

type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// Calculate returns the fee split for gross at rate. The fee is rounded
// half-up to 2 decimals and the net is the exact remainder, so the split
// always sums back to the gross. gross must be positive and rate in [0,1).
func (c *Calculator) Calculate(gross, rate decimal.Decimal) (Split, error) {
	if !gross.IsPositive() {
		return Split{}, apperrors.Validation("gross amount must be positive")
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(one) {
		return Split{}, apperrors.Validation("fee rate must be in [0, 1)")
	}

	// Amounts are fixed-point with 2 decimals; normalize the gross before
	// splitting so fee + net reproduces it exactly. decimal.Round rounds
	// half away from zero, which is half-up for the positive amounts
	// handled here.
	grossAmount := gross.Round(2)
	feeAmount := grossAmount.Mul(rate).Round(2)
	netAmount := grossAmount.Sub(feeAmount)

	return Split{
		Gross: grossAmount,
		Rate:  rate,
		Fee:   feeAmount,
		Net:   netAmount,
	}, nil
}
