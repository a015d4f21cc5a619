package service

import (
	"context"
	"errors"

	"possettle/backend/internal/domain"
	"possettle/backend/internal/metrics"
	"possettle/backend/internal/store"
)

// AccrueLoyalty credits floor(amount * earn rate) points. Customers without an
// active enrollment earn nothing and get no error. A sale is credited at most
// once.
func (s *Service) AccrueLoyalty(ctx context.Context, req domain.LoyaltyAccrualRequest) (domain.LoyaltyAccrualResult, error) {
	if err := validateRequest(req); err != nil {
		return domain.LoyaltyAccrualResult{}, err
	}

	account, program, err := s.repo.GetLoyaltyEnrollment(ctx, req.CustomerID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.LoyaltyAccrualResult{}, nil
	}
	if err != nil {
		return domain.LoyaltyAccrualResult{}, err
	}
	if !account.Active || !program.Active {
		return domain.LoyaltyAccrualResult{AccountID: account.ID, BalanceAfter: account.PointsBalance}, nil
	}

	if req.SaleID != "" {
		existing, err := s.repo.FindLoyaltyTransactionBySale(ctx, req.SaleID)
		if err == nil {
			return domain.LoyaltyAccrualResult{
				AccountID:    account.ID,
				PointsEarned: existing.Points,
				BalanceAfter: existing.BalanceAfter,
				Enrolled:     true,
			}, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return domain.LoyaltyAccrualResult{}, err
		}
	}

	points := domain.PointsEarned(req.AmountSpent, program.EarnRate)
	if points == 0 {
		return domain.LoyaltyAccrualResult{AccountID: account.ID, BalanceAfter: account.PointsBalance, Enrolled: true}, nil
	}

	entry, err := s.repo.AppendLoyaltyTransaction(ctx, domain.LoyaltyTransaction{
		AccountID: account.ID,
		Type:      domain.LoyaltyEarn,
		Points:    points,
		SaleID:    req.SaleID,
		Reason:    "purchase " + req.AmountSpent.StringFixed(2),
		CreatedAt: s.now(),
	})
	if err != nil {
		return domain.LoyaltyAccrualResult{}, err
	}
	metrics.LoyaltyPointsEarned.Add(float64(points))

	return domain.LoyaltyAccrualResult{
		AccountID:    account.ID,
		PointsEarned: points,
		BalanceAfter: entry.BalanceAfter,
		Enrolled:     true,
	}, nil
}

func (s *Service) GetLoyaltySummary(ctx context.Context, customerID string, limit int) (domain.LoyaltySummary, error) {
	if customerID == "" {
		return domain.LoyaltySummary{}, invalid("customer_id", "is required")
	}
	if limit < 1 {
		limit = 20
	}

	account, program, err := s.repo.GetLoyaltyEnrollment(ctx, customerID)
	if err != nil {
		return domain.LoyaltySummary{}, err
	}
	history, err := s.repo.ListLoyaltyTransactions(ctx, account.ID, limit)
	if err != nil {
		return domain.LoyaltySummary{}, err
	}
	return domain.LoyaltySummary{Account: *account, Program: *program, Transactions: history}, nil
}
