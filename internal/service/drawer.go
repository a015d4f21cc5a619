package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"possettle/backend/internal/domain"
	"possettle/backend/internal/metrics"
	"possettle/backend/internal/store"
)

// OpenDrawer starts a shift. At most one drawer is open at any time.
func (s *Service) OpenDrawer(ctx context.Context, req domain.DrawerOpenRequest) (domain.DrawerResponse, error) {
	if req.StoreID == "" {
		req.StoreID = s.defaultStoreID
	}
	if err := validateRequest(req); err != nil {
		return domain.DrawerResponse{}, err
	}

	existing, err := s.repo.GetOpenDrawer(ctx)
	if err == nil {
		return domain.DrawerResponse{}, fmt.Errorf("%w: drawer %s is already open", store.ErrConflict, existing.ID)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.DrawerResponse{}, err
	}

	opening := domain.RoundMoney(req.OpeningBalance)
	drawer, err := s.repo.CreateDrawer(ctx, domain.CashDrawer{
		StoreID:         req.StoreID,
		Status:          domain.DrawerStatusOpen,
		OpeningBalance:  opening,
		CurrentBalance:  opening,
		ExpectedBalance: opening,
		OpenedBy:        operatorName(ctx),
		OpenedAt:        s.now(),
		Notes:           strings.TrimSpace(req.Notes),
	})
	if err != nil {
		return domain.DrawerResponse{}, err
	}
	s.invalidateDrawerCache(ctx)

	s.logAudit(ctx, drawer.StoreID, "drawer_open", "cash_drawer", drawer.ID, "opening_balance="+opening.StringFixed(2))
	return drawerResponse(*drawer), nil
}

// RecordDrawerTransaction posts cash movement against an open drawer.
func (s *Service) RecordDrawerTransaction(ctx context.Context, drawerID string, req domain.DrawerTransactionRequest) (domain.CashTransaction, error) {
	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	req.Description = strings.TrimSpace(req.Description)
	if err := validateRequest(req); err != nil {
		return domain.CashTransaction{}, err
	}

	drawer, tx, err := s.applyDrawerTransaction(ctx, drawerID, req)
	if err != nil {
		return domain.CashTransaction{}, err
	}

	s.logAudit(ctx, drawer.StoreID, "drawer_transaction", "cash_drawer", drawer.ID, fmt.Sprintf(
		"type=%s,amount=%s,balance=%s",
		tx.Type,
		tx.Amount.StringFixed(2),
		tx.BalanceAfter.StringFixed(2),
	))
	return *tx, nil
}

func (s *Service) applyDrawerTransaction(ctx context.Context, drawerID string, req domain.DrawerTransactionRequest) (*domain.CashDrawer, *domain.CashTransaction, error) {
	amount := domain.RoundMoney(req.Amount)
	signed, err := domain.SignedDrawerAmount(req.Type, amount)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownCashTransaction) {
			return nil, nil, invalid("type", "unknown transaction type")
		}
		return nil, nil, invalid("amount", strings.TrimPrefix(err.Error(), domain.ErrInvalidAmount.Error()+": "))
	}

	operator := operatorName(ctx)
	now := s.now()
	drawer, tx, err := s.repo.UpdateDrawer(ctx, drawerID, func(d *domain.CashDrawer) (*domain.CashTransaction, error) {
		if d.Status != domain.DrawerStatusOpen {
			return nil, fmt.Errorf("%w: drawer %s is %s", store.ErrConflict, d.ID, d.Status)
		}
		before := d.CurrentBalance
		after := before.Add(signed)
		if after.IsNegative() {
			return nil, fmt.Errorf("%w: balance %s cannot cover %s", store.ErrInsufficientCash, before.StringFixed(2), signed.Abs().StringFixed(2))
		}

		d.CurrentBalance = after
		d.ExpectedBalance = d.ExpectedBalance.Add(signed)
		return &domain.CashTransaction{
			DrawerID:         d.ID,
			Type:             req.Type,
			Amount:           amount,
			Description:      req.Description,
			BalanceBefore:    before,
			BalanceAfter:     after,
			Notes:            strings.TrimSpace(req.Notes),
			OperatorUsername: operator,
			CreatedAt:        now,
		}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	s.invalidateDrawerCache(ctx)
	return drawer, tx, nil
}

// CloseDrawer records the counted cash and freezes the drawer.
func (s *Service) CloseDrawer(ctx context.Context, drawerID string, req domain.DrawerCloseRequest) (domain.DrawerResponse, error) {
	if err := validateRequest(req); err != nil {
		return domain.DrawerResponse{}, err
	}

	actual := domain.RoundMoney(req.ActualBalance)
	now := s.now()
	drawer, _, err := s.repo.UpdateDrawer(ctx, drawerID, func(d *domain.CashDrawer) (*domain.CashTransaction, error) {
		if !domain.CanTransition(d.Status, domain.DrawerStatusClosed) {
			return nil, fmt.Errorf("%w: drawer %s is %s", store.ErrConflict, d.ID, d.Status)
		}
		d.Status = domain.DrawerStatusClosed
		d.CurrentBalance = actual
		d.ClosingBalance = &actual
		d.ClosedAt = &now
		d.Notes = appendNote(d.Notes, req.Notes)
		return nil, nil
	})
	if err != nil {
		return domain.DrawerResponse{}, err
	}
	s.invalidateDrawerCache(ctx)

	resp := drawerResponse(*drawer)
	s.recordDiscrepancy("close", resp)
	s.logAudit(ctx, drawer.StoreID, "drawer_close", "cash_drawer", drawer.ID, fmt.Sprintf(
		"actual=%s,expected=%s,discrepancy=%s",
		drawer.CurrentBalance.StringFixed(2),
		drawer.ExpectedBalance.StringFixed(2),
		resp.Discrepancy.StringFixed(2),
	))
	return resp, nil
}

// ReconcileDrawer is the manager sign-off on a closed drawer.
func (s *Service) ReconcileDrawer(ctx context.Context, drawerID string, req domain.DrawerReconcileRequest) (domain.DrawerResponse, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.DrawerResponse{}, err
	}
	req.Notes = strings.TrimSpace(req.Notes)
	if err := validateRequest(req); err != nil {
		return domain.DrawerResponse{}, err
	}

	actual := domain.RoundMoney(req.ActualBalance)
	now := s.now()
	drawer, _, err := s.repo.UpdateDrawer(ctx, drawerID, func(d *domain.CashDrawer) (*domain.CashTransaction, error) {
		if !domain.CanTransition(d.Status, domain.DrawerStatusReconciled) {
			return nil, fmt.Errorf("%w: drawer %s is %s", store.ErrConflict, d.ID, d.Status)
		}
		d.Status = domain.DrawerStatusReconciled
		d.CurrentBalance = actual
		d.ReconciledAt = &now
		d.Notes = appendNote(d.Notes, req.Notes)
		return nil, nil
	})
	if err != nil {
		return domain.DrawerResponse{}, err
	}
	s.invalidateDrawerCache(ctx)

	resp := drawerResponse(*drawer)
	if resp.Classification == domain.DiscrepancyBalanced {
		resp.Message = "reconciled, drawer balanced"
	} else {
		resp.Message = fmt.Sprintf("reconciled with discrepancy of %s (%s)", resp.Discrepancy.StringFixed(2), resp.Classification)
	}
	s.recordDiscrepancy("reconcile", resp)
	s.logAudit(ctx, drawer.StoreID, "drawer_reconcile", "cash_drawer", drawer.ID, fmt.Sprintf(
		"actual=%s,discrepancy=%s,notes=%s",
		drawer.CurrentBalance.StringFixed(2),
		resp.Discrepancy.StringFixed(2),
		req.Notes,
	))
	return resp, nil
}

func (s *Service) GetDrawer(ctx context.Context, drawerID string) (domain.DrawerResponse, error) {
	drawer, err := s.repo.GetDrawer(ctx, drawerID)
	if err != nil {
		return domain.DrawerResponse{}, err
	}
	return drawerResponse(*drawer), nil
}

// GetOpenDrawer serves terminal polling from the cache when it can.
func (s *Service) GetOpenDrawer(ctx context.Context) (domain.DrawerResponse, error) {
	cached, ok, err := s.drawerCache.GetOpenDrawer(ctx)
	if err != nil {
		log.Printf("[drawer] WARN: cache read failed: %v", err)
	} else if ok {
		return drawerResponse(*cached), nil
	}

	generation := s.drawerCacheGeneration()
	drawer, err := s.repo.GetOpenDrawer(ctx)
	if err != nil {
		return domain.DrawerResponse{}, err
	}
	s.fillDrawerCache(ctx, drawer, generation)
	return drawerResponse(*drawer), nil
}

func (s *Service) drawerCacheGeneration() uint64 {
	s.drawerCacheMu.Lock()
	defer s.drawerCacheMu.Unlock()
	return s.drawerCacheGen
}

// fillDrawerCache stores the snapshot only if no drawer mutation was
// invalidated since generation was read.
func (s *Service) fillDrawerCache(ctx context.Context, drawer *domain.CashDrawer, generation uint64) {
	if drawer.Status != domain.DrawerStatusOpen {
		return
	}
	s.drawerCacheMu.Lock()
	defer s.drawerCacheMu.Unlock()
	if s.drawerCacheGen != generation {
		return
	}
	if err := s.drawerCache.SetOpenDrawer(ctx, drawer, s.drawerCacheTTL); err != nil {
		log.Printf("[drawer] WARN: cache write failed for drawer=%s: %v", drawer.ID, err)
	}
}

func (s *Service) ListDrawerTransactions(ctx context.Context, drawerID string, limit int) (domain.DrawerTransactionListResponse, error) {
	if limit < 1 {
		limit = 100
	}
	history, err := s.repo.ListDrawerTransactions(ctx, drawerID, limit)
	if err != nil {
		return domain.DrawerTransactionListResponse{}, err
	}
	return domain.DrawerTransactionListResponse{Transactions: history}, nil
}

func (s *Service) invalidateDrawerCache(ctx context.Context) {
	s.drawerCacheMu.Lock()
	defer s.drawerCacheMu.Unlock()
	s.drawerCacheGen++
	if err := s.drawerCache.InvalidateOpenDrawer(ctx); err != nil {
		log.Printf("[drawer] WARN: cache invalidation failed: %v", err)
	}
}

func (s *Service) recordDiscrepancy(stage string, resp domain.DrawerResponse) {
	metrics.DrawerDiscrepancies.WithLabelValues(stage, resp.Classification).Inc()
	if resp.Classification != domain.DiscrepancyBalanced {
		log.Printf("[drawer] WARN: drawer=%s %s %s by %s", resp.Drawer.ID, stage, resp.Classification, resp.Discrepancy.Abs().StringFixed(2))
	}
}

func drawerResponse(drawer domain.CashDrawer) domain.DrawerResponse {
	discrepancy := drawer.Discrepancy()
	return domain.DrawerResponse{
		Drawer:         drawer,
		Discrepancy:    discrepancy,
		Classification: domain.ClassifyDiscrepancy(discrepancy),
	}
}

func appendNote(existing string, note string) string {
	note = strings.TrimSpace(note)
	switch {
	case note == "":
		return existing
	case existing == "":
		return note
	default:
		return existing + "\n" + note
	}
}
