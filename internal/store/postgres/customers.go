package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"possettle/backend/internal/domain"
	"possettle/backend/internal/store"
	"possettle/backend/internal/xid"
)

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return scanCustomer(s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, total_spent, visit_count, last_visit_at
		FROM customers
		WHERE id = $1
	`, id))
}

func (s *Store) RecordCustomerVisit(ctx context.Context, id string, amount decimal.Decimal, at time.Time) (*domain.Customer, error) {
	return scanCustomer(s.db.QueryRowContext(ctx, `
		UPDATE customers
		SET total_spent = total_spent + $2,
			visit_count = visit_count + 1,
			last_visit_at = $3
		WHERE id = $1
		RETURNING id, name, phone, total_spent, visit_count, last_visit_at
	`, id, amount, at.UTC()))
}

func scanCustomer(row *sql.Row) (*domain.Customer, error) {
	var customer domain.Customer
	var phone sql.NullString
	var lastVisit sql.NullTime
	err := row.Scan(&customer.ID, &customer.Name, &phone, &customer.TotalSpent, &customer.VisitCount, &lastVisit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	customer.Phone = phone.String
	customer.LastVisitAt = timePtr(lastVisit)
	return &customer, nil
}

func (s *Store) GetLoyaltyEnrollment(ctx context.Context, customerID string) (*domain.LoyaltyAccount, *domain.LoyaltyProgram, error) {
	var account domain.LoyaltyAccount
	var program domain.LoyaltyProgram
	err := s.db.QueryRowContext(ctx, `
		SELECT a.id, a.customer_id, a.program_id, a.points_balance, a.active,
			p.id, p.name, p.earn_rate, p.active
		FROM loyalty_accounts a
		JOIN loyalty_programs p ON p.id = a.program_id
		WHERE a.customer_id = $1
	`, customerID).Scan(&account.ID, &account.CustomerID, &account.ProgramID, &account.PointsBalance, &account.Active,
		&program.ID, &program.Name, &program.EarnRate, &program.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, store.ErrNotFound
		}
		return nil, nil, err
	}
	return &account, &program, nil
}

// AppendLoyaltyTransaction locks the account, applies the points delta and
// writes the ledger row with the before/after balances.
func (s *Store) AppendLoyaltyTransaction(ctx context.Context, entry domain.LoyaltyTransaction) (*domain.LoyaltyTransaction, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var balance int64
	err = pgTx.QueryRowContext(ctx, `
		SELECT points_balance
		FROM loyalty_accounts
		WHERE id = $1
		FOR UPDATE
	`, entry.AccountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	after := balance + entry.Points
	if after < 0 {
		return nil, store.ErrInvalidTransaction
	}
	if entry.ID == "" {
		entry.ID = xid.New("loyalty")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.BalanceBefore = balance
	entry.BalanceAfter = after

	if _, err := pgTx.ExecContext(ctx, `
		UPDATE loyalty_accounts SET points_balance = $2 WHERE id = $1
	`, entry.AccountID, after); err != nil {
		return nil, err
	}
	if _, err := pgTx.ExecContext(ctx, `
		INSERT INTO loyalty_transactions (
			id, account_id, type, points, balance_before, balance_after, sale_id, reason, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.AccountID, entry.Type, entry.Points, entry.BalanceBefore, entry.BalanceAfter,
		nullIfEmpty(entry.SaleID), entry.Reason, entry.CreatedAt); err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Store) FindLoyaltyTransactionBySale(ctx context.Context, saleID string) (*domain.LoyaltyTransaction, error) {
	entries, err := s.queryLoyalty(ctx, `
		SELECT id, account_id, type, points, balance_before, balance_after, sale_id, reason, created_at
		FROM loyalty_transactions
		WHERE sale_id = $1 AND type = 'earn'
		ORDER BY created_at DESC
		LIMIT 1
	`, saleID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, store.ErrNotFound
	}
	return &entries[0], nil
}

func (s *Store) ListLoyaltyTransactions(ctx context.Context, accountID string, limit int) ([]domain.LoyaltyTransaction, error) {
	if limit < 1 {
		limit = 50
	}
	return s.queryLoyalty(ctx, `
		SELECT id, account_id, type, points, balance_before, balance_after, sale_id, reason, created_at
		FROM loyalty_transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, accountID, limit)
}

func (s *Store) queryLoyalty(ctx context.Context, query string, args ...any) ([]domain.LoyaltyTransaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.LoyaltyTransaction, 0, 16)
	for rows.Next() {
		var entry domain.LoyaltyTransaction
		var saleID sql.NullString
		if err := rows.Scan(&entry.ID, &entry.AccountID, &entry.Type, &entry.Points, &entry.BalanceBefore,
			&entry.BalanceAfter, &saleID, &entry.Reason, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.SaleID = saleID.String
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
