package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"possettle/backend/internal/domain"
	"possettle/backend/internal/store"
)

func testSale(id string, invoice string, key string, lines ...domain.SaleLine) domain.Sale {
	return domain.Sale{
		ID:             id,
		InvoiceNumber:  invoice,
		StoreID:        "main-store",
		TerminalID:     "terminal-a1",
		IdempotencyKey: key,
		Total:          decimal.NewFromInt(1000),
		CreatedAt:      time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC),
		Lines:          lines,
		Payment:        &domain.PaymentRecord{ID: "pay-" + id, PaymentMethodID: "pm-cash", Category: domain.PaymentCategoryCash},
	}
}

func line(productID string, qty int) domain.SaleLine {
	return domain.SaleLine{ProductID: productID, Quantity: qty}
}

func TestSettleSaleDeductsStockAndClampsShortfall(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	s.inventory["main-store"]["prd-roti"] = 2

	settled, err := s.SettleSale(ctx, testSale("sale-1", "INV-1", "", line("prd-mie", 3), line("prd-roti", 5)))
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if len(settled.Adjustments) != 2 {
		t.Fatalf("expected one adjustment per line, got %d", len(settled.Adjustments))
	}
	if len(settled.Shortfalls) != 1 || settled.Shortfalls[0].Missing != 3 || settled.Shortfalls[0].Deducted != 2 {
		t.Fatalf("unexpected shortfalls %+v", settled.Shortfalls)
	}

	stock, _ := s.GetStockMap(ctx, "main-store", []string{"prd-mie", "prd-roti"})
	if stock["prd-mie"] != 117 || stock["prd-roti"] != 0 {
		t.Fatalf("unexpected stock after sale %+v", stock)
	}
}

func TestSettleSaleRepeatedProductUsesRunningStock(t *testing.T) {
	s := NewSeeded()
	s.inventory["main-store"]["prd-kopi"] = 4

	settled, err := s.SettleSale(context.Background(), testSale("sale-1", "INV-1", "", line("prd-kopi", 3), line("prd-kopi", 3)))
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if settled.Adjustments[1].QuantityBefore != 1 || settled.Adjustments[1].QuantityAfter != 0 {
		t.Fatalf("second line should start from the first line's result, got %+v", settled.Adjustments[1])
	}
	if len(settled.Shortfalls) != 1 || settled.Shortfalls[0].Missing != 2 {
		t.Fatalf("unexpected shortfalls %+v", settled.Shortfalls)
	}
}

func TestSettleSaleIsAllOrNothing(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	_, err := s.SettleSale(ctx, testSale("sale-1", "INV-1", "idem-1", line("prd-mie", 1), line("prd-ghost", 1)))
	var lineErr *store.InventoryLineError
	if !errors.As(err, &lineErr) || lineErr.ProductID != "prd-ghost" {
		t.Fatalf("expected inventory line error, got %v", err)
	}

	if _, err := s.FindSaleByInvoice(ctx, "INV-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("failed settlement must not leave a sale, got %v", err)
	}
	stock, _ := s.GetStockMap(ctx, "main-store", []string{"prd-mie"})
	if stock["prd-mie"] != 120 {
		t.Fatalf("failed settlement must not move stock, got %d", stock["prd-mie"])
	}
	adjustments, _ := s.ListInventoryAdjustments(ctx, "main-store", "", 10)
	if len(adjustments) != 0 {
		t.Fatalf("failed settlement must not write adjustments, got %d", len(adjustments))
	}
}

func TestSettleSaleRejectsDuplicates(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	if _, err := s.SettleSale(ctx, testSale("sale-1", "INV-1", "idem-1", line("prd-mie", 1))); err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if _, err := s.SettleSale(ctx, testSale("sale-2", "INV-1", "idem-2", line("prd-mie", 1))); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected invoice conflict, got %v", err)
	}
	if _, err := s.SettleSale(ctx, testSale("sale-3", "INV-3", "idem-1", line("prd-mie", 1))); !errors.Is(err, store.ErrDuplicateRequest) {
		t.Fatalf("expected duplicate request, got %v", err)
	}

	found, err := s.FindSaleByIdempotency(ctx, "idem-1")
	if err != nil || found.ID != "sale-1" {
		t.Fatalf("expected sale-1 by idempotency key, got %v %v", found, err)
	}
}

func TestNextInvoiceSequencePerDay(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	a, _ := s.NextInvoiceSequence(ctx, "20261018")
	b, _ := s.NextInvoiceSequence(ctx, "20261018")
	c, _ := s.NextInvoiceSequence(ctx, "20261019")
	if a != 1 || b != 2 || c != 1 {
		t.Fatalf("unexpected sequence values %d %d %d", a, b, c)
	}
}

func TestDrawerSingleOpenAndMutationIsolation(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	drawer, err := s.CreateDrawer(ctx, domain.CashDrawer{OpeningBalance: decimal.NewFromInt(100), CurrentBalance: decimal.NewFromInt(100), ExpectedBalance: decimal.NewFromInt(100)})
	if err != nil {
		t.Fatalf("create drawer failed: %v", err)
	}
	if _, err := s.CreateDrawer(ctx, domain.CashDrawer{}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict for second open drawer, got %v", err)
	}

	boom := errors.New("boom")
	_, _, err = s.UpdateDrawer(ctx, drawer.ID, func(d *domain.CashDrawer) (*domain.CashTransaction, error) {
		d.CurrentBalance = decimal.NewFromInt(1)
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected mutation error, got %v", err)
	}
	current, _ := s.GetDrawer(ctx, drawer.ID)
	if !current.CurrentBalance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("failed mutation must not be applied, got %s", current.CurrentBalance)
	}

	_, tx, err := s.UpdateDrawer(ctx, drawer.ID, func(d *domain.CashDrawer) (*domain.CashTransaction, error) {
		d.CurrentBalance = d.CurrentBalance.Add(decimal.NewFromInt(5))
		return &domain.CashTransaction{Type: domain.CashIn, Amount: decimal.NewFromInt(5)}, nil
	})
	if err != nil || tx.ID == "" || tx.DrawerID != drawer.ID {
		t.Fatalf("expected stored transaction, got %+v %v", tx, err)
	}
	history, _ := s.ListDrawerTransactions(ctx, drawer.ID, 10)
	if len(history) != 1 {
		t.Fatalf("expected one drawer transaction, got %d", len(history))
	}
}

func TestAppendLoyaltyTransactionRejectsNegativeBalance(t *testing.T) {
	s := NewSeeded()

	_, err := s.AppendLoyaltyTransaction(context.Background(), domain.LoyaltyTransaction{
		AccountID: "la-member",
		Type:      domain.LoyaltyRedeem,
		Points:    -1,
	})
	if !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected invalid transaction, got %v", err)
	}
}
