package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"possettle/backend/internal/domain"
)

var (
	ErrInvalidPAN    = errors.New("invalid card number")
	ErrInvalidExpiry = errors.New("invalid card expiry")
	ErrCardExpired   = errors.New("card expired")
	ErrInvalidCVV    = errors.New("invalid card security code")
	ErrInvalidPhone  = errors.New("invalid payer phone number")
)

// Result is what a processing boundary reports back. A declined result is not
// an error; errors are reserved for transport failures.
type Result struct {
	Approved      bool
	Reference     string
	DeclineReason string
}

type CardCharge struct {
	SaleID string
	Amount decimal.Decimal
	Card   domain.CardData
}

type MobileCollection struct {
	SaleID string
	Amount decimal.Decimal
	Phone  string
}

// CardProcessor is the PCI-scoped boundary. Raw card data goes in, only a
// reference comes out.
type CardProcessor interface {
	ChargeCard(ctx context.Context, charge CardCharge) (Result, error)
}

type MobileMoneyProcessor interface {
	CollectMobile(ctx context.Context, collection MobileCollection) (Result, error)
}
