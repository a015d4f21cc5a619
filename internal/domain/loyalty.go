package domain

import "github.com/shopspring/decimal"

// PointsEarned is floor(amount * earnRate). Negative inputs earn nothing.
func PointsEarned(amount decimal.Decimal, earnRate decimal.Decimal) int64 {
	if !amount.IsPositive() || !earnRate.IsPositive() {
		return 0
	}
	return amount.Mul(earnRate).Floor().IntPart()
}
