package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"possettle/backend/internal/domain"
	"possettle/backend/internal/store"
	"possettle/backend/internal/xid"
)

const drawerColumns = `id, store_id, status, opening_balance, current_balance, expected_balance,
	closing_balance, opened_by, opened_at, closed_at, reconciled_at, notes`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDrawer(row rowScanner) (*domain.CashDrawer, error) {
	var drawer domain.CashDrawer
	var closedAt, reconciledAt sql.NullTime
	var closing decimal.NullDecimal
	err := row.Scan(&drawer.ID, &drawer.StoreID, &drawer.Status, &drawer.OpeningBalance, &drawer.CurrentBalance,
		&drawer.ExpectedBalance, &closing, &drawer.OpenedBy, &drawer.OpenedAt, &closedAt, &reconciledAt, &drawer.Notes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	drawer.OpenedAt = drawer.OpenedAt.UTC()
	drawer.ClosedAt = timePtr(closedAt)
	drawer.ReconciledAt = timePtr(reconciledAt)
	if closing.Valid {
		drawer.ClosingBalance = &closing.Decimal
	}
	return &drawer, nil
}

// CreateDrawer inserts an open drawer. The partial unique index on open
// drawers turns a concurrent second open into ErrConflict.
func (s *Store) CreateDrawer(ctx context.Context, drawer domain.CashDrawer) (*domain.CashDrawer, error) {
	if drawer.ID == "" {
		drawer.ID = xid.New("drawer")
	}
	if drawer.OpenedAt.IsZero() {
		drawer.OpenedAt = time.Now().UTC()
	}
	drawer.Status = domain.DrawerStatusOpen

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cash_drawers (`+drawerColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, drawer.ID, drawer.StoreID, drawer.Status, drawer.OpeningBalance, drawer.CurrentBalance,
		drawer.ExpectedBalance, nullDecimal(drawer.ClosingBalance), drawer.OpenedBy, drawer.OpenedAt, nullTime(drawer.ClosedAt),
		nullTime(drawer.ReconciledAt), drawer.Notes)
	if err != nil {
		if violatedConstraint(err) == constraintSingleOpen {
			return nil, fmt.Errorf("%w: another drawer is already open", store.ErrConflict)
		}
		return nil, err
	}
	return &drawer, nil
}

func (s *Store) GetDrawer(ctx context.Context, id string) (*domain.CashDrawer, error) {
	return scanDrawer(s.db.QueryRowContext(ctx, `
		SELECT `+drawerColumns+`
		FROM cash_drawers
		WHERE id = $1
	`, id))
}

func (s *Store) GetOpenDrawer(ctx context.Context) (*domain.CashDrawer, error) {
	return scanDrawer(s.db.QueryRowContext(ctx, `
		SELECT `+drawerColumns+`
		FROM cash_drawers
		WHERE status = 'open'
		LIMIT 1
	`))
}

// UpdateDrawer locks the drawer row, runs mutate against it and persists the
// new drawer state together with the optional ledger entry.
func (s *Store) UpdateDrawer(ctx context.Context, id string, mutate store.DrawerMutation) (*domain.CashDrawer, *domain.CashTransaction, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	drawer, err := scanDrawer(pgTx.QueryRowContext(ctx, `
		SELECT `+drawerColumns+`
		FROM cash_drawers
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		return nil, nil, err
	}

	tx, err := mutate(drawer)
	if err != nil {
		return nil, nil, err
	}
	if drawer.ID != id {
		return nil, nil, store.ErrInvalidTransaction
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE cash_drawers
		SET status = $2,
			current_balance = $3,
			expected_balance = $4,
			closing_balance = $5,
			closed_at = $6,
			reconciled_at = $7,
			notes = $8
		WHERE id = $1
	`, drawer.ID, drawer.Status, drawer.CurrentBalance, drawer.ExpectedBalance, nullDecimal(drawer.ClosingBalance),
		nullTime(drawer.ClosedAt), nullTime(drawer.ReconciledAt), drawer.Notes)
	if err != nil {
		return nil, nil, err
	}

	if tx != nil {
		if tx.ID == "" {
			tx.ID = xid.New("cashtx")
		}
		if tx.CreatedAt.IsZero() {
			tx.CreatedAt = time.Now().UTC()
		}
		tx.DrawerID = id
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO cash_transactions (
				id, drawer_id, type, amount, description, balance_before, balance_after,
				notes, operator_username, created_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, tx.ID, tx.DrawerID, tx.Type, tx.Amount, tx.Description, tx.BalanceBefore, tx.BalanceAfter,
			tx.Notes, tx.OperatorUsername, tx.CreatedAt)
		if err != nil {
			return nil, nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, nil, err
	}
	return drawer, tx, nil
}

func (s *Store) ListDrawerTransactions(ctx context.Context, drawerID string, limit int) ([]domain.CashTransaction, error) {
	if limit < 1 {
		limit = 200
	}
	if _, err := s.GetDrawer(ctx, drawerID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, drawer_id, type, amount, description, balance_before, balance_after,
			notes, operator_username, created_at
		FROM (
			SELECT *
			FROM cash_transactions
			WHERE drawer_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC
	`, drawerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make([]domain.CashTransaction, 0, 32)
	for rows.Next() {
		var tx domain.CashTransaction
		if err := rows.Scan(&tx.ID, &tx.DrawerID, &tx.Type, &tx.Amount, &tx.Description, &tx.BalanceBefore,
			&tx.BalanceAfter, &tx.Notes, &tx.OperatorUsername, &tx.CreatedAt); err != nil {
			return nil, err
		}
		tx.CreatedAt = tx.CreatedAt.UTC()
		history = append(history, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return history, nil
}
