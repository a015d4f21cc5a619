package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	DrawerStatusOpen       = "open"
	DrawerStatusClosed     = "closed"
	DrawerStatusReconciled = "reconciled"
)

const (
	CashIn         = "cash_in"
	CashOut        = "cash_out"
	CashDeposit    = "deposit"
	CashWithdrawal = "withdrawal"
	CashAdjustment = "adjustment"
)

const (
	DiscrepancyBalanced = "balanced"
	DiscrepancyOver     = "over"
	DiscrepancyShort    = "short"
)

var (
	ErrUnknownCashTransaction = errors.New("unknown cash transaction type")
	ErrInvalidAmount          = errors.New("invalid amount")
)

// DiscrepancyTolerance absorbs rounding noise when comparing counted cash.
var DiscrepancyTolerance = decimal.NewFromFloat(0.01)

// SignedDrawerAmount returns the effect of a drawer transaction on the balance.
// Inflows and outflows take a positive amount and the sign from the type;
// adjustments carry their own sign.
func SignedDrawerAmount(txType string, amount decimal.Decimal) (decimal.Decimal, error) {
	switch txType {
	case CashIn, CashDeposit:
		if !amount.IsPositive() {
			return decimal.Zero, fmt.Errorf("%w: %s amount must be positive", ErrInvalidAmount, txType)
		}
		return amount, nil
	case CashOut, CashWithdrawal:
		if !amount.IsPositive() {
			return decimal.Zero, fmt.Errorf("%w: %s amount must be positive", ErrInvalidAmount, txType)
		}
		return amount.Neg(), nil
	case CashAdjustment:
		if amount.IsZero() {
			return decimal.Zero, fmt.Errorf("%w: adjustment amount must not be zero", ErrInvalidAmount)
		}
		return amount, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownCashTransaction, txType)
	}
}

// Discrepancy is counted cash minus what the transactions say should be there.
func (d CashDrawer) Discrepancy() decimal.Decimal {
	return d.CurrentBalance.Sub(d.ExpectedBalance)
}

func ClassifyDiscrepancy(discrepancy decimal.Decimal) string {
	switch {
	case discrepancy.GreaterThan(DiscrepancyTolerance):
		return DiscrepancyOver
	case discrepancy.LessThan(DiscrepancyTolerance.Neg()):
		return DiscrepancyShort
	default:
		return DiscrepancyBalanced
	}
}

// CanTransition reports whether a drawer may move from one status to another.
// Drawers only move forward and are never reopened.
func CanTransition(from string, to string) bool {
	switch from {
	case DrawerStatusOpen:
		return to == DrawerStatusClosed
	case DrawerStatusClosed:
		return to == DrawerStatusReconciled
	default:
		return false
	}
}
