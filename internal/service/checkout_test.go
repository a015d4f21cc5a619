package service

import (
	"context"
	"errors"
	"math"
	"regexp"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"possettle/backend/internal/domain"
	"possettle/backend/internal/store"
)

var primaryInvoicePattern = regexp.MustCompile(`^INV-\d{8}-\d{6}-\d{4}$`)

func cashCheckout(t *testing.T, key string) domain.CheckoutRequest {
	t.Helper()
	return domain.CheckoutRequest{
		TerminalID:      "terminal-a1",
		IdempotencyKey:  key,
		PaymentMethodID: "pm-cash",
		AmountTendered:  mustDecimal(t, "50000"),
		CartItems: []domain.CartItem{
			{ProductID: "prd-mie", Qty: 2},
			{ProductID: "prd-telur", Qty: 1},
		},
	}
}

func TestPreviewTotalsRoundsTaxPerLine(t *testing.T) {
	svc := newTestService()

	totals, err := svc.PreviewTotals(context.Background(), domain.TotalsPreviewRequest{
		CartItems: []domain.CartItem{
			{ProductID: "prd-mie", Qty: 2},
			{ProductID: "prd-telur", Qty: 1, Discount: mustDecimal(t, "500")},
		},
	})
	if err != nil {
		t.Fatalf("preview failed: %v", err)
	}
	if !totals.Subtotal.Equal(mustDecimal(t, "33500")) {
		t.Fatalf("expected subtotal 33500, got %s", totals.Subtotal)
	}
	if !totals.TaxAmount.Equal(mustDecimal(t, "770")) {
		t.Fatalf("expected tax 770, got %s", totals.TaxAmount)
	}
	if !totals.Total.Equal(mustDecimal(t, "33770")) {
		t.Fatalf("expected total 33770, got %s", totals.Total)
	}
	if stockOf(t, svc, "prd-mie") != 120 {
		t.Fatalf("preview must not touch stock")
	}
}

func TestPreviewTotalsRejectsOversizedDiscount(t *testing.T) {
	svc := newTestService()

	_, err := svc.PreviewTotals(context.Background(), domain.TotalsPreviewRequest{
		CartItems: []domain.CartItem{{ProductID: "prd-mie", Qty: 1, Discount: mustDecimal(t, "3500.01")}},
	})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "cart_items[0].discount" {
		t.Fatalf("expected discount validation error, got %v", err)
	}
}

func TestCheckoutCashSettlesSale(t *testing.T) {
	svc := newTestService()
	ctx := cashierContext()

	receipt, err := svc.Checkout(ctx, cashCheckout(t, "idem-cash"))
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	if !primaryInvoicePattern.MatchString(receipt.InvoiceNumber) {
		t.Fatalf("unexpected invoice format %q", receipt.InvoiceNumber)
	}
	if !receipt.Total.Equal(mustDecimal(t, "34270")) {
		t.Fatalf("expected total 34270, got %s", receipt.Total)
	}
	if !receipt.Change.Equal(mustDecimal(t, "15730")) {
		t.Fatalf("expected change 15730, got %s", receipt.Change)
	}
	if receipt.PaymentCategory != domain.PaymentCategoryCash || receipt.PaymentMethod != "Tunai" {
		t.Fatalf("unexpected payment on receipt: %s/%s", receipt.PaymentCategory, receipt.PaymentMethod)
	}
	if receipt.PaymentReference != "CASH-"+receipt.InvoiceNumber {
		t.Fatalf("unexpected cash reference %q", receipt.PaymentReference)
	}
	if got := stockOf(t, svc, "prd-mie"); got != 118 {
		t.Fatalf("expected stock 118 after sale, got %d", got)
	}

	adjustments, err := svc.ListInventoryAdjustments(ctx, "", "prd-mie", 10)
	if err != nil {
		t.Fatalf("list adjustments failed: %v", err)
	}
	if len(adjustments.Adjustments) != 1 || adjustments.Adjustments[0].Type != domain.AdjustmentSale {
		t.Fatalf("expected one sale adjustment, got %+v", adjustments.Adjustments)
	}
	if adjustments.Adjustments[0].QuantityChange != -2 || adjustments.Adjustments[0].SaleID != receipt.SaleID {
		t.Fatalf("unexpected sale adjustment %+v", adjustments.Adjustments[0])
	}

	stored, err := svc.GetSaleReceipt(ctx, receipt.InvoiceNumber)
	if err != nil {
		t.Fatalf("receipt lookup failed: %v", err)
	}
	if diff := cmp.Diff(receipt, stored); diff != "" {
		t.Fatalf("stored receipt differs (-checkout +lookup):\n%s", diff)
	}
}

func TestCheckoutIdempotentResubmission(t *testing.T) {
	svc := newTestService()
	ctx := cashierContext()

	first, err := svc.Checkout(ctx, cashCheckout(t, "idem-repeat"))
	if err != nil {
		t.Fatalf("first checkout failed: %v", err)
	}
	second, err := svc.Checkout(ctx, cashCheckout(t, "idem-repeat"))
	if err != nil {
		t.Fatalf("resubmitted checkout failed: %v", err)
	}

	if !second.Duplicate {
		t.Fatalf("expected resubmission to be flagged as duplicate")
	}
	if diff := cmp.Diff(first, second, cmpopts.IgnoreFields(domain.Receipt{}, "Duplicate")); diff != "" {
		t.Fatalf("resubmission returned a different sale (-first +second):\n%s", diff)
	}
	if got := stockOf(t, svc, "prd-mie"); got != 118 {
		t.Fatalf("expected stock deducted once, got %d", got)
	}
}

func TestCheckoutRejectsReusedKeyForDifferentCart(t *testing.T) {
	svc := newTestService()
	ctx := cashierContext()

	if _, err := svc.Checkout(ctx, cashCheckout(t, "idem-reused")); err != nil {
		t.Fatalf("first checkout failed: %v", err)
	}

	changed := cashCheckout(t, "idem-reused")
	changed.CartItems = []domain.CartItem{{ProductID: "prd-susu", Qty: 1}}
	if _, err := svc.Checkout(ctx, changed); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict for reused key, got %v", err)
	}

	otherMethod := cashCheckout(t, "idem-reused")
	otherMethod.PaymentMethodID = "pm-voucher"
	if _, err := svc.Checkout(ctx, otherMethod); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict for reused key with another method, got %v", err)
	}

	if got := stockOf(t, svc, "prd-susu"); got != 120 {
		t.Fatalf("expected rejected resubmission to leave stock alone, got %d", got)
	}
}

func TestCheckoutCardSuccessMasksPAN(t *testing.T) {
	svc := newTestService()

	receipt, err := svc.Checkout(cashierContext(), domain.CheckoutRequest{
		TerminalID:      "terminal-a1",
		PaymentMethodID: "pm-card",
		Card:            &domain.CardData{PAN: "4111 1111 1111 1111", Expiry: "12/99", CVV: "123"},
		CartItems:       []domain.CartItem{{ProductID: "prd-susu", Qty: 1}},
	})
	if err != nil {
		t.Fatalf("card checkout failed: %v", err)
	}
	if receipt.MaskedPAN != "************1111" {
		t.Fatalf("expected masked pan, got %q", receipt.MaskedPAN)
	}
	if receipt.PaymentReference == "" || receipt.PaymentCategory != domain.PaymentCategoryCard {
		t.Fatalf("expected processor reference on card receipt, got %+v", receipt)
	}
}

func TestCheckoutCardDeclinePersistsNothing(t *testing.T) {
	svc := newTestService()
	ctx := cashierContext()

	_, err := svc.Checkout(ctx, domain.CheckoutRequest{
		TerminalID:      "terminal-a1",
		IdempotencyKey:  "idem-declined",
		PaymentMethodID: "pm-card",
		Card:            &domain.CardData{PAN: "4000000000000002", Expiry: "12/99", CVV: "123"},
		CartItems:       []domain.CartItem{{ProductID: "prd-mie", Qty: 3}},
	})
	var payErr *PaymentError
	if !errors.As(err, &payErr) {
		t.Fatalf("expected payment error, got %v", err)
	}
	if payErr.Reason != "card declined by issuer" {
		t.Fatalf("unexpected decline reason %q", payErr.Reason)
	}

	if _, err := svc.repo.FindSaleByIdempotency(ctx, "idem-declined"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("declined checkout must not persist a sale, got %v", err)
	}
	if got := stockOf(t, svc, "prd-mie"); got != 120 {
		t.Fatalf("declined checkout must not touch stock, got %d", got)
	}
}

func TestCheckoutMobileDeclined(t *testing.T) {
	svc := newTestService()

	_, err := svc.Checkout(cashierContext(), domain.CheckoutRequest{
		TerminalID:      "terminal-a1",
		PaymentMethodID: "pm-gopay",
		PhoneNumber:     "+62800123456",
		CartItems:       []domain.CartItem{{ProductID: "prd-kopi", Qty: 1}},
	})
	var payErr *PaymentError
	if !errors.As(err, &payErr) || payErr.Category != domain.PaymentCategoryMobile {
		t.Fatalf("expected mobile payment error, got %v", err)
	}
}

func TestCheckoutInsufficientCashTendered(t *testing.T) {
	svc := newTestService()
	req := cashCheckout(t, "")
	req.AmountTendered = mustDecimal(t, "1000")

	_, err := svc.Checkout(cashierContext(), req)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "amount_tendered" {
		t.Fatalf("expected amount_tendered validation error, got %v", err)
	}
	if got := stockOf(t, svc, "prd-mie"); got != 120 {
		t.Fatalf("rejected checkout must not touch stock, got %d", got)
	}
}

func TestCheckoutValidation(t *testing.T) {
	svc := newTestService()

	cases := []struct {
		name  string
		req   domain.CheckoutRequest
		field string
	}{
		{
			name:  "empty cart",
			req:   domain.CheckoutRequest{TerminalID: "t1", PaymentMethodID: "pm-cash"},
			field: "cart_items",
		},
		{
			name:  "unknown product",
			req:   domain.CheckoutRequest{TerminalID: "t1", PaymentMethodID: "pm-cash", CartItems: []domain.CartItem{{ProductID: "prd-nope", Qty: 1}}},
			field: "cart_items[0].product_id",
		},
		{
			name:  "zero quantity",
			req:   domain.CheckoutRequest{TerminalID: "t1", PaymentMethodID: "pm-cash", CartItems: []domain.CartItem{{ProductID: "prd-mie", Qty: 0}}},
			field: "cart_items[0].qty",
		},
		{
			name:  "unknown payment method",
			req:   domain.CheckoutRequest{TerminalID: "t1", PaymentMethodID: "pm-crypto", CartItems: []domain.CartItem{{ProductID: "prd-mie", Qty: 1}}},
			field: "payment_method_id",
		},
		{
			name:  "unknown customer",
			req:   domain.CheckoutRequest{TerminalID: "t1", PaymentMethodID: "pm-cash", CustomerID: "cust-ghost", CartItems: []domain.CartItem{{ProductID: "prd-mie", Qty: 1}}},
			field: "customer_id",
		},
		{
			name:  "card without data",
			req:   domain.CheckoutRequest{TerminalID: "t1", PaymentMethodID: "pm-card", CartItems: []domain.CartItem{{ProductID: "prd-mie", Qty: 1}}},
			field: "card",
		},
		{
			name:  "mobile without phone",
			req:   domain.CheckoutRequest{TerminalID: "t1", PaymentMethodID: "pm-gopay", CartItems: []domain.CartItem{{ProductID: "prd-mie", Qty: 1}}},
			field: "phone_number",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Checkout(cashierContext(), tc.req)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("expected field %s, got %s (%v)", tc.field, verr.Field, verr)
			}
			if !errors.Is(err, store.ErrInvalidTransaction) {
				t.Fatalf("validation errors must match ErrInvalidTransaction")
			}
		})
	}
}

func TestCheckoutRejectsQuantityAboveStock(t *testing.T) {
	svc := newTestService()

	_, err := svc.Checkout(cashierContext(), domain.CheckoutRequest{
		TerminalID:      "terminal-a1",
		PaymentMethodID: "pm-cash",
		AmountTendered:  mustDecimal(t, "1000000"),
		CartItems: []domain.CartItem{
			{ProductID: "prd-mie", Qty: 100},
			{ProductID: "prd-mie", Qty: 21},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
}

func TestCheckoutRejectsOversizedQuantity(t *testing.T) {
	svc := newTestService()
	half := math.MaxInt/2 + 1

	_, err := svc.Checkout(cashierContext(), domain.CheckoutRequest{
		TerminalID:      "terminal-a1",
		PaymentMethodID: "pm-cash",
		AmountTendered:  mustDecimal(t, "1000000"),
		CartItems: []domain.CartItem{
			{ProductID: "prd-mie", Qty: half},
			{ProductID: "prd-mie", Qty: half},
		},
	})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "cart_items[0].qty" {
		t.Fatalf("expected qty validation error, got %v", err)
	}
	if got := stockOf(t, svc, "prd-mie"); got != 120 {
		t.Fatalf("expected stock untouched, got %d", got)
	}
}

func TestCheckStockDoesNotOverflowAcrossLines(t *testing.T) {
	svc := newTestService()
	half := math.MaxInt/2 + 1

	err := svc.checkStock(context.Background(), "main-store", []domain.CartLine{
		{ProductID: "prd-mie", Quantity: half},
		{ProductID: "prd-mie", Quantity: half},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock for huge quantities, got %v", err)
	}

	err = svc.checkStock(context.Background(), "main-store", []domain.CartLine{
		{ProductID: "prd-mie", Quantity: 60},
		{ProductID: "prd-mie", Quantity: 60},
	})
	if err != nil {
		t.Fatalf("expected exact stock to pass, got %v", err)
	}
}

// staleStockRepo reports plenty of stock so the settlement sees the drift.
type staleStockRepo struct {
	store.Repository
}

func (r staleStockRepo) GetStockMap(_ context.Context, _ string, productIDs []string) (map[string]int, error) {
	stock := make(map[string]int, len(productIDs))
	for _, id := range productIDs {
		stock[id] = 1000
	}
	return stock, nil
}

func TestCheckoutReportsShortfallWhenStockDrifts(t *testing.T) {
	base := newTestService()
	svc := newTestServiceWithRepo(staleStockRepo{Repository: base.repo})

	if _, err := svc.AdjustInventory(adminContext(), domain.InventoryAdjustRequest{
		ProductID: "prd-roti",
		Type:      domain.AdjustmentSet,
		Quantity:  1,
		Reason:    "stock count",
	}); err != nil {
		t.Fatalf("adjust failed: %v", err)
	}

	receipt, err := svc.Checkout(cashierContext(), domain.CheckoutRequest{
		TerminalID:      "terminal-a1",
		PaymentMethodID: "pm-voucher",
		AmountTendered:  mustDecimal(t, "100000"),
		CartItems:       []domain.CartItem{{ProductID: "prd-roti", Qty: 3}},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	want := []domain.StockShortfall{{ProductID: "prd-roti", Requested: 3, Deducted: 1, Missing: 2}}
	if diff := cmp.Diff(want, receipt.Shortfalls); diff != "" {
		t.Fatalf("unexpected shortfalls (-want +got):\n%s", diff)
	}
	if got := stockOf(t, base, "prd-roti"); got != 0 {
		t.Fatalf("expected stock clamped at zero, got %d", got)
	}
}

func TestCheckoutOtherMethodIsAudited(t *testing.T) {
	svc := newTestService()

	receipt, err := svc.Checkout(cashierContext(), domain.CheckoutRequest{
		TerminalID:      "terminal-a1",
		PaymentMethodID: "pm-voucher",
		AmountTendered:  mustDecimal(t, "20000"),
		CartItems:       []domain.CartItem{{ProductID: "prd-gula", Qty: 1}},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if receipt.PaymentReference != "OTHER-"+receipt.InvoiceNumber {
		t.Fatalf("unexpected reference %q", receipt.PaymentReference)
	}

	logs, err := svc.ListAuditLogs(context.Background(), "", "", 20)
	if err != nil {
		t.Fatalf("list audit failed: %v", err)
	}
	found := false
	for _, entry := range logs {
		if entry.Action == "payment_unclassified" && entry.EntityID == receipt.SaleID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected payment_unclassified audit entry")
	}
}

func TestCheckoutAccruesLoyaltyForMember(t *testing.T) {
	svc := newTestService()
	ctx := cashierContext()
	req := cashCheckout(t, "idem-member")
	req.CustomerID = "cust-member"

	receipt, err := svc.Checkout(ctx, req)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if receipt.PointsEarned != 342 {
		t.Fatalf("expected 342 points for 34270, got %d", receipt.PointsEarned)
	}
	if receipt.Customer == nil || receipt.Customer.ID != "cust-member" {
		t.Fatalf("expected customer on receipt, got %+v", receipt.Customer)
	}

	customer, err := svc.repo.GetCustomer(ctx, "cust-member")
	if err != nil {
		t.Fatalf("customer lookup failed: %v", err)
	}
	if customer.VisitCount != 1 || !customer.TotalSpent.Equal(receipt.Total) {
		t.Fatalf("expected customer aggregates updated, got %+v", customer)
	}

	summary, err := svc.GetLoyaltySummary(ctx, "cust-member", 10)
	if err != nil {
		t.Fatalf("loyalty summary failed: %v", err)
	}
	if summary.Account.PointsBalance != 342 || len(summary.Transactions) != 1 {
		t.Fatalf("unexpected loyalty summary %+v", summary)
	}
}

func TestCheckoutGuestCustomerEarnsNothing(t *testing.T) {
	svc := newTestService()
	req := cashCheckout(t, "")
	req.CustomerID = "cust-guest"

	receipt, err := svc.Checkout(cashierContext(), req)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if receipt.PointsEarned != 0 {
		t.Fatalf("expected no points for unenrolled customer, got %d", receipt.PointsEarned)
	}
}

// failingLoyaltyRepo breaks the loyalty ledger to prove it cannot fail a sale.
type failingLoyaltyRepo struct {
	store.Repository
}

func (failingLoyaltyRepo) AppendLoyaltyTransaction(_ context.Context, _ domain.LoyaltyTransaction) (*domain.LoyaltyTransaction, error) {
	return nil, errors.New("ledger offline")
}

func TestCheckoutSurvivesLoyaltyFailure(t *testing.T) {
	base := newTestService()
	svc := newTestServiceWithRepo(failingLoyaltyRepo{Repository: base.repo})
	req := cashCheckout(t, "idem-loyalty-down")
	req.CustomerID = "cust-member"

	receipt, err := svc.Checkout(cashierContext(), req)
	if err != nil {
		t.Fatalf("checkout must succeed when loyalty fails: %v", err)
	}
	if receipt.PointsEarned != 0 {
		t.Fatalf("expected zero points when loyalty fails, got %d", receipt.PointsEarned)
	}
	if _, err := base.repo.FindSaleByInvoice(context.Background(), receipt.InvoiceNumber); err != nil {
		t.Fatalf("sale should be persisted: %v", err)
	}
}

func TestCheckoutPostsCashToOpenDrawer(t *testing.T) {
	svc := newTestService()
	ctx := cashierContext()

	opened, err := svc.OpenDrawer(ctx, domain.DrawerOpenRequest{OpeningBalance: mustDecimal(t, "50000")})
	if err != nil {
		t.Fatalf("open drawer failed: %v", err)
	}
	if _, err := svc.Checkout(ctx, cashCheckout(t, "")); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	drawer, err := svc.GetDrawer(ctx, opened.Drawer.ID)
	if err != nil {
		t.Fatalf("get drawer failed: %v", err)
	}
	if !drawer.Drawer.CurrentBalance.Equal(mustDecimal(t, "84270")) {
		t.Fatalf("expected drawer balance 84270, got %s", drawer.Drawer.CurrentBalance)
	}
	if drawer.Classification != domain.DiscrepancyBalanced {
		t.Fatalf("expected expected and current to move together, got %s", drawer.Classification)
	}
}

func TestGetSaleReceiptNotFound(t *testing.T) {
	svc := newTestService()

	_, err := svc.GetSaleReceipt(context.Background(), "INV-00000000-000000-0000")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

// primaryConflictRepo rejects every primary-format invoice as already taken.
type primaryConflictRepo struct {
	store.Repository
	attempts int
	settled  int
}

func (r *primaryConflictRepo) SettleSale(ctx context.Context, sale domain.Sale) (*domain.SettledSale, error) {
	r.attempts++
	if primaryInvoicePattern.MatchString(sale.InvoiceNumber) {
		return nil, store.ErrConflict
	}
	settled, err := r.Repository.SettleSale(ctx, sale)
	if err == nil {
		r.settled++
	}
	return settled, err
}

func TestCheckoutFallsBackAfterPrimaryInvoiceConflicts(t *testing.T) {
	base := newTestService()
	repo := &primaryConflictRepo{Repository: base.repo}
	svc := newTestServiceWithRepo(repo)
	ctx := cashierContext()

	receipt, err := svc.Checkout(ctx, cashCheckout(t, "idem-fallback"))
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if !fallbackInvoicePattern.MatchString(receipt.InvoiceNumber) {
		t.Fatalf("expected fallback invoice, got %q", receipt.InvoiceNumber)
	}
	if repo.attempts != invoiceMaxAttempts+1 || repo.settled != 1 {
		t.Fatalf("expected %d attempts and one settled sale, got %d/%d", invoiceMaxAttempts+1, repo.attempts, repo.settled)
	}

	if got := stockOf(t, svc, "prd-mie"); got != 118 {
		t.Fatalf("expected one stock deduction, got stock %d", got)
	}
	adjustments, err := svc.ListInventoryAdjustments(ctx, "", "prd-mie", 10)
	if err != nil {
		t.Fatalf("list adjustments failed: %v", err)
	}
	if len(adjustments.Adjustments) != 1 {
		t.Fatalf("expected one sale adjustment, got %d", len(adjustments.Adjustments))
	}
	if _, err := svc.GetSaleReceipt(ctx, receipt.InvoiceNumber); err != nil {
		t.Fatalf("fallback invoice not persisted: %v", err)
	}
}
