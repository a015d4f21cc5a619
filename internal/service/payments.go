package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"possettle/backend/internal/domain"
	"possettle/backend/internal/payment"
	"possettle/backend/internal/xid"
)

// PaymentError is a processor decline or transport failure. It is fatal to
// the checkout and is raised before anything is persisted.
type PaymentError struct {
	Category domain.PaymentCategory
	Reason   string
	Err      error
}

func (e *PaymentError) Error() string {
	if e.Reason == "" {
		return "payment failed"
	}
	return "payment failed: " + e.Reason
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

type PaymentInput struct {
	SaleID      string
	Method      domain.PaymentMethod
	Amount      decimal.Decimal
	Tendered    decimal.Decimal
	Card        *domain.CardData
	PhoneNumber string
}

type PaymentOutcome struct {
	Record       domain.PaymentRecord
	Unclassified bool
}

// ClassifyMethod resolves the stored category. Anything unrecognised is
// handled as "other".
func ClassifyMethod(method domain.PaymentMethod) domain.PaymentCategory {
	switch method.Category {
	case domain.PaymentCategoryCash, domain.PaymentCategoryCard, domain.PaymentCategoryMobile, domain.PaymentCategoryOther:
		return method.Category
	default:
		return domain.PaymentCategoryOther
	}
}

type PaymentRouter struct {
	cards  payment.CardProcessor
	mobile payment.MobileMoneyProcessor
	now    func() time.Time
}

func NewPaymentRouter(cards payment.CardProcessor, mobile payment.MobileMoneyProcessor) *PaymentRouter {
	return &PaymentRouter{
		cards:  cards,
		mobile: mobile,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Route settles the amount through the path matching the method category.
// Input problems come back as *ValidationError, processor problems as
// *PaymentError. The returned record never carries raw card data.
func (r *PaymentRouter) Route(ctx context.Context, in PaymentInput) (PaymentOutcome, error) {
	category := ClassifyMethod(in.Method)
	if !in.Amount.IsPositive() {
		return PaymentOutcome{}, invalid("amount", "must be positive")
	}

	record := domain.PaymentRecord{
		ID:              xid.New("pay"),
		SaleID:          in.SaleID,
		PaymentMethodID: in.Method.ID,
		Category:        category,
		Amount:          in.Amount,
		Tendered:        in.Amount,
		Change:          decimal.Zero,
		CreatedAt:       r.now(),
	}

	switch category {
	case domain.PaymentCategoryCard:
		if in.Card == nil {
			return PaymentOutcome{}, invalid("card", "is required for card payments")
		}
		if err := payment.ValidateCard(*in.Card, r.now()); err != nil {
			return PaymentOutcome{}, invalid("card", err.Error())
		}
		if r.cards == nil {
			return PaymentOutcome{}, &PaymentError{Category: category, Reason: "card payments are not available"}
		}

		result, err := r.cards.ChargeCard(ctx, payment.CardCharge{SaleID: in.SaleID, Amount: in.Amount, Card: *in.Card})
		if err != nil {
			return PaymentOutcome{}, &PaymentError{Category: category, Reason: "card processor unavailable", Err: err}
		}
		if !result.Approved {
			return PaymentOutcome{}, &PaymentError{Category: category, Reason: declineReason(result, "card declined")}
		}
		record.Reference = result.Reference
		record.MaskedPAN = payment.MaskPAN(in.Card.PAN)
		record.CardBrand = payment.CardBrand(in.Card.PAN)
		return PaymentOutcome{Record: record}, nil

	case domain.PaymentCategoryMobile:
		phone, err := payment.NormalizePhone(in.PhoneNumber)
		if err != nil {
			return PaymentOutcome{}, invalid("phone_number", "must be 8 to 15 digits")
		}
		if r.mobile == nil {
			return PaymentOutcome{}, &PaymentError{Category: category, Reason: "mobile money is not available"}
		}

		result, err := r.mobile.CollectMobile(ctx, payment.MobileCollection{SaleID: in.SaleID, Amount: in.Amount, Phone: phone})
		if err != nil {
			return PaymentOutcome{}, &PaymentError{Category: category, Reason: "mobile money processor unavailable", Err: err}
		}
		if !result.Approved {
			return PaymentOutcome{}, &PaymentError{Category: category, Reason: declineReason(result, "mobile payment rejected")}
		}
		record.Reference = result.Reference
		record.PayerPhone = phone
		return PaymentOutcome{Record: record}, nil

	default:
		if in.Tendered.LessThan(in.Amount) {
			return PaymentOutcome{}, invalid("amount_tendered", "must cover the total of "+in.Amount.StringFixed(2))
		}
		record.Tendered = in.Tendered
		record.Change = in.Tendered.Sub(in.Amount)
		return PaymentOutcome{Record: record, Unclassified: category == domain.PaymentCategoryOther}, nil
	}
}

// referenceFor fills the reference of paths without an external processor.
func referenceFor(record domain.PaymentRecord, invoice string) string {
	if record.Reference != "" {
		return record.Reference
	}
	return strings.ToUpper(string(record.Category)) + "-" + invoice
}

func declineReason(result payment.Result, fallback string) string {
	if strings.TrimSpace(result.DeclineReason) != "" {
		return result.DeclineReason
	}
	return fallback
}
