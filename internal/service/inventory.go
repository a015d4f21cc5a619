package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"possettle/backend/internal/domain"
	"possettle/backend/internal/metrics"
)

// AdjustInventory applies a manual stock movement. Sale deductions are only
// written by Checkout.
func (s *Service) AdjustInventory(ctx context.Context, req domain.InventoryAdjustRequest) (domain.InventoryAdjustResponse, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.InventoryAdjustResponse{}, err
	}
	if req.StoreID == "" {
		req.StoreID = s.defaultStoreID
	}
	req.ProductID = strings.TrimSpace(req.ProductID)
	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	req.Reason = strings.TrimSpace(req.Reason)

	if err := validateRequest(req); err != nil {
		return domain.InventoryAdjustResponse{}, err
	}
	if !domain.IsKnownAdjustmentType(req.Type) {
		return domain.InventoryAdjustResponse{}, invalid("adjustment_type", "unknown adjustment type")
	}
	if req.Type == domain.AdjustmentSale {
		return domain.InventoryAdjustResponse{}, invalid("adjustment_type", "sale deductions are recorded by checkout")
	}

	adjustment, change, err := s.repo.AdjustInventory(ctx, domain.InventoryAdjustment{
		StoreID:          req.StoreID,
		ProductID:        req.ProductID,
		OperatorUsername: operatorName(ctx),
		Type:             req.Type,
		Reason:           req.Reason,
		CreatedAt:        s.now(),
	}, req.Quantity)
	if err != nil {
		return domain.InventoryAdjustResponse{}, err
	}

	if change.Shortfall > 0 {
		log.Printf("[inventory] WARN: %s of %d on product=%s clamped at zero, missing=%d", req.Type, req.Quantity, req.ProductID, change.Shortfall)
		metrics.InventoryShortfalls.Add(float64(change.Shortfall))
	}
	metrics.InventoryAdjustments.WithLabelValues(adjustment.Type).Inc()
	s.logAudit(ctx, req.StoreID, "inventory_adjust", "product", req.ProductID, fmt.Sprintf(
		"type=%s,before=%d,after=%d,reason=%s",
		adjustment.Type,
		change.Before,
		change.After,
		req.Reason,
	))

	return domain.InventoryAdjustResponse{
		Adjustment:     *adjustment,
		QuantityBefore: change.Before,
		QuantityAfter:  change.After,
		Shortfall:      change.Shortfall,
	}, nil
}

func (s *Service) ListInventoryAdjustments(ctx context.Context, storeID string, productID string, limit int) (domain.InventoryAdjustmentListResponse, error) {
	if storeID == "" {
		storeID = s.defaultStoreID
	}
	if limit < 1 {
		limit = 50
	}
	adjustments, err := s.repo.ListInventoryAdjustments(ctx, storeID, strings.TrimSpace(productID), limit)
	if err != nil {
		return domain.InventoryAdjustmentListResponse{}, err
	}
	return domain.InventoryAdjustmentListResponse{Adjustments: adjustments}, nil
}
