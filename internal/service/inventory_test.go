package service

import (
	"context"
	"errors"
	"testing"

	"possettle/backend/internal/domain"
	"possettle/backend/internal/store"
)

func TestAdjustInventoryTypes(t *testing.T) {
	cases := []struct {
		name      string
		adjType   string
		quantity  int
		wantAfter int
		shortfall int
	}{
		{"add", domain.AdjustmentAdd, 5, 125, 0},
		{"purchase", domain.AdjustmentPurchase, 30, 150, 0},
		{"return", domain.AdjustmentReturn, 1, 121, 0},
		{"remove", domain.AdjustmentRemove, 20, 100, 0},
		{"remove clamps", domain.AdjustmentRemove, 200, 0, 80},
		{"set", domain.AdjustmentSet, 7, 7, 0},
		{"manual to zero", domain.AdjustmentManual, 0, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService()

			resp, err := svc.AdjustInventory(adminContext(), domain.InventoryAdjustRequest{
				ProductID: "prd-teh",
				Type:      tc.adjType,
				Quantity:  tc.quantity,
				Reason:    "test " + tc.name,
			})
			if err != nil {
				t.Fatalf("adjust failed: %v", err)
			}
			if resp.QuantityBefore != 120 || resp.QuantityAfter != tc.wantAfter {
				t.Fatalf("expected 120 -> %d, got %d -> %d", tc.wantAfter, resp.QuantityBefore, resp.QuantityAfter)
			}
			if resp.Shortfall != tc.shortfall {
				t.Fatalf("expected shortfall %d, got %d", tc.shortfall, resp.Shortfall)
			}
			if resp.Adjustment.QuantityChange != tc.wantAfter-120 {
				t.Fatalf("expected change %d, got %d", tc.wantAfter-120, resp.Adjustment.QuantityChange)
			}
			if got := stockOf(t, svc, "prd-teh"); got != tc.wantAfter {
				t.Fatalf("expected stock %d, got %d", tc.wantAfter, got)
			}
		})
	}
}

func TestAdjustInventoryRequiresAdmin(t *testing.T) {
	svc := newTestService()

	_, err := svc.AdjustInventory(cashierContext(), domain.InventoryAdjustRequest{
		ProductID: "prd-teh",
		Type:      domain.AdjustmentAdd,
		Quantity:  1,
	})
	if !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected admin required, got %v", err)
	}
}

func TestAdjustInventoryRejectsBadInput(t *testing.T) {
	svc := newTestService()
	ctx := adminContext()

	cases := []struct {
		name string
		req  domain.InventoryAdjustRequest
	}{
		{"unknown type", domain.InventoryAdjustRequest{ProductID: "prd-teh", Type: "shrink", Quantity: 1}},
		{"sale type", domain.InventoryAdjustRequest{ProductID: "prd-teh", Type: domain.AdjustmentSale, Quantity: 1}},
		{"zero add", domain.InventoryAdjustRequest{ProductID: "prd-teh", Type: domain.AdjustmentAdd, Quantity: 0}},
		{"negative set", domain.InventoryAdjustRequest{ProductID: "prd-teh", Type: domain.AdjustmentSet, Quantity: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.AdjustInventory(ctx, tc.req)
			if !errors.Is(err, store.ErrInvalidTransaction) {
				t.Fatalf("expected invalid transaction, got %v", err)
			}
		})
	}

	if got := stockOf(t, svc, "prd-teh"); got != 120 {
		t.Fatalf("rejected adjustments must not move stock, got %d", got)
	}
}

func TestAdjustInventoryUnknownProduct(t *testing.T) {
	svc := newTestService()

	_, err := svc.AdjustInventory(adminContext(), domain.InventoryAdjustRequest{
		ProductID: "prd-missing",
		Type:      domain.AdjustmentAdd,
		Quantity:  1,
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListInventoryAdjustmentsNewestFirst(t *testing.T) {
	svc := newTestService()
	ctx := adminContext()

	for _, qty := range []int{1, 2, 3} {
		if _, err := svc.AdjustInventory(ctx, domain.InventoryAdjustRequest{ProductID: "prd-air", Type: domain.AdjustmentAdd, Quantity: qty}); err != nil {
			t.Fatalf("adjust failed: %v", err)
		}
	}

	resp, err := svc.ListInventoryAdjustments(context.Background(), "", "prd-air", 2)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(resp.Adjustments) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(resp.Adjustments))
	}
	if resp.Adjustments[0].QuantityChange != 3 || resp.Adjustments[1].QuantityChange != 2 {
		t.Fatalf("expected newest first, got %+v", resp.Adjustments)
	}
}
