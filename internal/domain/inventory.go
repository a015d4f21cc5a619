package domain

import (
	"errors"
	"fmt"
)

const (
	AdjustmentAdd        = "add"
	AdjustmentPurchase   = "purchase"
	AdjustmentReturn     = "return"
	AdjustmentRemove     = "remove"
	AdjustmentSale       = "sale"
	AdjustmentSet        = "set"
	AdjustmentManual     = "manual"
	AdjustmentAdjustment = "adjustment"
)

var (
	ErrUnknownAdjustmentType = errors.New("unknown adjustment type")
	ErrInvalidQuantity       = errors.New("invalid quantity")
)

// StockChange is the outcome of applying an adjustment to a stock level.
// Shortfall is the part of a deduction that could not be taken.
type StockChange struct {
	Before    int
	Change    int
	After     int
	Shortfall int
}

// PlanStockChange computes the new stock level for an adjustment of the given
// type. Increases add the entered quantity, deductions take at most what is on
// hand, and overwrites set the entered quantity as the new level.
func PlanStockChange(adjustmentType string, quantity int, current int) (StockChange, error) {
	if current < 0 {
		current = 0
	}

	switch adjustmentType {
	case AdjustmentAdd, AdjustmentPurchase, AdjustmentReturn:
		if quantity < 1 {
			return StockChange{}, fmt.Errorf("%w: %s requires a positive quantity", ErrInvalidQuantity, adjustmentType)
		}
		return StockChange{Before: current, Change: quantity, After: current + quantity}, nil
	case AdjustmentRemove, AdjustmentSale:
		if quantity < 1 {
			return StockChange{}, fmt.Errorf("%w: %s requires a positive quantity", ErrInvalidQuantity, adjustmentType)
		}
		deducted := min(quantity, current)
		return StockChange{
			Before:    current,
			Change:    -deducted,
			After:     current - deducted,
			Shortfall: quantity - deducted,
		}, nil
	case AdjustmentSet, AdjustmentManual, AdjustmentAdjustment:
		if quantity < 0 {
			return StockChange{}, fmt.Errorf("%w: stock level cannot be negative", ErrInvalidQuantity)
		}
		return StockChange{Before: current, Change: quantity - current, After: quantity}, nil
	default:
		return StockChange{}, fmt.Errorf("%w: %q", ErrUnknownAdjustmentType, adjustmentType)
	}
}

func IsKnownAdjustmentType(adjustmentType string) bool {
	_, err := PlanStockChange(adjustmentType, 1, 1)
	return err == nil
}
