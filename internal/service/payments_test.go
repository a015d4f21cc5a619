package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"possettle/backend/internal/domain"
	"possettle/backend/internal/payment"
)

type stubCardProcessor struct {
	result payment.Result
	err    error
	calls  int
}

func (p *stubCardProcessor) ChargeCard(_ context.Context, _ payment.CardCharge) (payment.Result, error) {
	p.calls++
	return p.result, p.err
}

func newStubRouter(cards payment.CardProcessor) *PaymentRouter {
	router := NewPaymentRouter(cards, payment.NewSimulator(""))
	router.now = func() time.Time { return time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC) }
	return router
}

func TestClassifyMethodDefaultsToOther(t *testing.T) {
	assert.Equal(t, domain.PaymentCategoryCash, ClassifyMethod(domain.PaymentMethod{Category: "cash"}))
	assert.Equal(t, domain.PaymentCategoryOther, ClassifyMethod(domain.PaymentMethod{Category: "crypto"}))
	assert.Equal(t, domain.PaymentCategoryOther, ClassifyMethod(domain.PaymentMethod{}))
}

func TestRouteCashComputesChange(t *testing.T) {
	router := newStubRouter(nil)

	outcome, err := router.Route(context.Background(), PaymentInput{
		SaleID:   "sale-1",
		Method:   domain.PaymentMethod{ID: "pm-cash", Category: domain.PaymentCategoryCash},
		Amount:   mustDecimal(t, "34270"),
		Tendered: mustDecimal(t, "50000"),
	})
	require.NoError(t, err)
	assert.True(t, outcome.Record.Change.Equal(mustDecimal(t, "15730")))
	assert.False(t, outcome.Unclassified)
	assert.Equal(t, "CASH-INV-1", referenceFor(outcome.Record, "INV-1"))
}

func TestRouteOtherIsFlagged(t *testing.T) {
	router := newStubRouter(nil)

	outcome, err := router.Route(context.Background(), PaymentInput{
		Method:   domain.PaymentMethod{ID: "pm-x", Category: "barter"},
		Amount:   mustDecimal(t, "10"),
		Tendered: mustDecimal(t, "10"),
	})
	require.NoError(t, err)
	assert.True(t, outcome.Unclassified)
	assert.Equal(t, domain.PaymentCategoryOther, outcome.Record.Category)
}

func TestRouteRejectsNonPositiveAmount(t *testing.T) {
	router := newStubRouter(nil)

	_, err := router.Route(context.Background(), PaymentInput{
		Method: domain.PaymentMethod{Category: domain.PaymentCategoryCash},
		Amount: mustDecimal(t, "0"),
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "amount", verr.Field)
}

func TestRouteCardValidatesBeforeCharging(t *testing.T) {
	cards := &stubCardProcessor{result: payment.Result{Approved: true, Reference: "ref-1"}}
	router := newStubRouter(cards)

	_, err := router.Route(context.Background(), PaymentInput{
		Method: domain.PaymentMethod{Category: domain.PaymentCategoryCard},
		Amount: mustDecimal(t, "100"),
		Card:   &domain.CardData{PAN: "4111111111111112", Expiry: "12/99", CVV: "123"},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "card", verr.Field)
	assert.Zero(t, cards.calls)
}

func TestRouteCardKeepsOnlyMaskedData(t *testing.T) {
	cards := &stubCardProcessor{result: payment.Result{Approved: true, Reference: "ref-1"}}
	router := newStubRouter(cards)

	outcome, err := router.Route(context.Background(), PaymentInput{
		Method: domain.PaymentMethod{Category: domain.PaymentCategoryCard},
		Amount: mustDecimal(t, "100"),
		Card:   &domain.CardData{PAN: "5555555555554444", Expiry: "10/2026", CVV: "123"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ref-1", outcome.Record.Reference)
	assert.Equal(t, "************4444", outcome.Record.MaskedPAN)
	assert.Equal(t, "mastercard", outcome.Record.CardBrand)
	assert.Equal(t, 1, cards.calls)
}

func TestRouteCardProcessorFailure(t *testing.T) {
	cards := &stubCardProcessor{err: errors.New("gateway timeout")}
	router := newStubRouter(cards)

	_, err := router.Route(context.Background(), PaymentInput{
		Method: domain.PaymentMethod{Category: domain.PaymentCategoryCard},
		Amount: mustDecimal(t, "100"),
		Card:   &domain.CardData{PAN: "4111111111111111", Expiry: "12/99", CVV: "123"},
	})
	var payErr *PaymentError
	require.ErrorAs(t, err, &payErr)
	assert.Equal(t, "card processor unavailable", payErr.Reason)
	assert.ErrorIs(t, err, cards.err)
}

func TestRouteMobileNormalizesPhone(t *testing.T) {
	router := newStubRouter(nil)

	outcome, err := router.Route(context.Background(), PaymentInput{
		Method:      domain.PaymentMethod{Category: domain.PaymentCategoryMobile},
		Amount:      mustDecimal(t, "100"),
		PhoneNumber: "+62 812-3456-7890",
	})
	require.NoError(t, err)
	assert.Equal(t, "+6281234567890", outcome.Record.PayerPhone)
	assert.NotEmpty(t, outcome.Record.Reference)
}
