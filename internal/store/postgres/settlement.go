package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"possettle/backend/internal/domain"
	"possettle/backend/internal/store"
	"possettle/backend/internal/xid"
)

func (s *Store) NextInvoiceSequence(ctx context.Context, day string) (int64, error) {
	var next int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO invoice_sequences (day, last_value)
		VALUES ($1, 1)
		ON CONFLICT (day)
		DO UPDATE SET last_value = invoice_sequences.last_value + 1
		RETURNING last_value
	`, day).Scan(&next)
	if err != nil {
		return 0, err
	}
	return next, nil
}

// SettleSale writes the sale header, lines, payment record and the per-line
// stock deductions in one transaction. Stock rows are locked in product order.
func (s *Store) SettleSale(ctx context.Context, sale domain.Sale) (*domain.SettledSale, error) {
	if sale.ID == "" || sale.InvoiceNumber == "" || len(sale.Lines) == 0 || sale.Payment == nil {
		return nil, store.ErrInvalidTransaction
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if sale.Status == "" {
		sale.Status = domain.SaleStatusCompleted
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO sales (
			id, invoice_number, store_id, terminal_id, operator_username, customer_id,
			idempotency_key, subtotal, tax_amount, discount_amount, total, status, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, sale.ID, sale.InvoiceNumber, sale.StoreID, sale.TerminalID, sale.OperatorUsername,
		nullIfEmpty(sale.CustomerID), nullIfEmpty(sale.IdempotencyKey), sale.Subtotal, sale.TaxAmount,
		sale.DiscountAmount, sale.Total, sale.Status, sale.CreatedAt)
	if err != nil {
		switch violatedConstraint(err) {
		case constraintInvoiceNumber:
			return nil, fmt.Errorf("%w: invoice %s already issued", store.ErrConflict, sale.InvoiceNumber)
		case constraintIdempotencyKey:
			return nil, store.ErrDuplicateRequest
		}
		return nil, err
	}

	for i := range sale.Lines {
		line := &sale.Lines[i]
		line.SaleID = sale.ID
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO sale_lines (
				sale_id, line_no, product_id, product_name, quantity, unit_price,
				tax_rate, tax_amount, discount_amount, line_total
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, sale.ID, i+1, line.ProductID, line.ProductName, line.Quantity, line.UnitPrice,
			line.TaxRate, line.TaxAmount, line.DiscountAmount, line.LineTotal)
		if err != nil {
			return nil, err
		}
	}

	payment := sale.Payment
	payment.SaleID = sale.ID
	if payment.ID == "" {
		payment.ID = xid.New("pay")
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = sale.CreatedAt
	}
	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO payment_records (
			id, sale_id, payment_method_id, category, amount, tendered, change_due,
			reference, masked_pan, card_brand, payer_phone, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, payment.ID, payment.SaleID, payment.PaymentMethodID, string(payment.Category), payment.Amount,
		payment.Tendered, payment.Change, payment.Reference, nullIfEmpty(payment.MaskedPAN),
		nullIfEmpty(payment.CardBrand), nullIfEmpty(payment.PayerPhone), payment.CreatedAt)
	if err != nil {
		return nil, err
	}

	working, err := lockStock(ctx, pgTx, sale.StoreID, sale.Lines)
	if err != nil {
		return nil, err
	}

	settled := &domain.SettledSale{
		Adjustments: make([]domain.InventoryAdjustment, 0, len(sale.Lines)),
	}
	for _, line := range sale.Lines {
		change, err := domain.PlanStockChange(domain.AdjustmentSale, line.Quantity, working[line.ProductID])
		if err != nil {
			return nil, &store.InventoryLineError{ProductID: line.ProductID, Err: err}
		}
		working[line.ProductID] = change.After

		adjustment := domain.InventoryAdjustment{
			ID:               xid.New("adj"),
			StoreID:          sale.StoreID,
			ProductID:        line.ProductID,
			OperatorUsername: sale.OperatorUsername,
			Type:             domain.AdjustmentSale,
			QuantityChange:   change.Change,
			QuantityBefore:   change.Before,
			QuantityAfter:    change.After,
			Reason:           "sale " + sale.InvoiceNumber,
			SaleID:           sale.ID,
			CreatedAt:        sale.CreatedAt,
		}
		if err := writeStock(ctx, pgTx, adjustment); err != nil {
			return nil, &store.InventoryLineError{ProductID: line.ProductID, Err: err}
		}
		settled.Adjustments = append(settled.Adjustments, adjustment)

		if change.Shortfall > 0 {
			settled.Shortfalls = append(settled.Shortfalls, domain.StockShortfall{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Deducted:  -change.Change,
				Missing:   change.Shortfall,
			})
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	settled.Sale = sale
	return settled, nil
}

func (s *Store) FindSaleByInvoice(ctx context.Context, invoiceNumber string) (*domain.Sale, error) {
	return s.findSale(ctx, "invoice_number", invoiceNumber)
}

func (s *Store) FindSaleByIdempotency(ctx context.Context, key string) (*domain.Sale, error) {
	return s.findSale(ctx, "idempotency_key", key)
}

func (s *Store) findSale(ctx context.Context, column string, value string) (*domain.Sale, error) {
	if column != "invoice_number" && column != "idempotency_key" {
		return nil, fmt.Errorf("unsupported sale lookup column %q", column)
	}

	var sale domain.Sale
	var customerID sql.NullString
	var idempotencyKey sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, invoice_number, store_id, terminal_id, operator_username, customer_id,
			idempotency_key, subtotal, tax_amount, discount_amount, total, status, created_at
		FROM sales
		WHERE `+column+` = $1
	`, value).Scan(&sale.ID, &sale.InvoiceNumber, &sale.StoreID, &sale.TerminalID, &sale.OperatorUsername,
		&customerID, &idempotencyKey, &sale.Subtotal, &sale.TaxAmount, &sale.DiscountAmount, &sale.Total,
		&sale.Status, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sale.CustomerID = customerID.String
	sale.IdempotencyKey = idempotencyKey.String
	sale.CreatedAt = sale.CreatedAt.UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, product_name, quantity, unit_price, tax_rate, tax_amount, discount_amount, line_total
		FROM sale_lines
		WHERE sale_id = $1
		ORDER BY line_no
	`, sale.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sale.Lines = make([]domain.SaleLine, 0, 8)
	for rows.Next() {
		line := domain.SaleLine{SaleID: sale.ID}
		if err := rows.Scan(&line.ProductID, &line.ProductName, &line.Quantity, &line.UnitPrice,
			&line.TaxRate, &line.TaxAmount, &line.DiscountAmount, &line.LineTotal); err != nil {
			return nil, err
		}
		sale.Lines = append(sale.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var payment domain.PaymentRecord
	var maskedPAN, cardBrand, payerPhone sql.NullString
	err = s.db.QueryRowContext(ctx, `
		SELECT id, payment_method_id, category, amount, tendered, change_due, reference,
			masked_pan, card_brand, payer_phone, created_at
		FROM payment_records
		WHERE sale_id = $1
	`, sale.ID).Scan(&payment.ID, &payment.PaymentMethodID, &payment.Category, &payment.Amount,
		&payment.Tendered, &payment.Change, &payment.Reference, &maskedPAN, &cardBrand, &payerPhone,
		&payment.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, err
	default:
		payment.SaleID = sale.ID
		payment.MaskedPAN = maskedPAN.String
		payment.CardBrand = cardBrand.String
		payment.PayerPhone = payerPhone.String
		payment.CreatedAt = payment.CreatedAt.UTC()
		sale.Payment = &payment
	}

	return &sale, nil
}

func (s *Store) AdjustInventory(ctx context.Context, adjustment domain.InventoryAdjustment, quantity int) (*domain.InventoryAdjustment, *domain.StockChange, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var exists bool
	if err := pgTx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, adjustment.ProductID).Scan(&exists); err != nil {
		return nil, nil, err
	}
	if !exists {
		return nil, nil, store.ErrNotFound
	}

	current, err := lockStockRow(ctx, pgTx, adjustment.StoreID, adjustment.ProductID)
	if err != nil {
		return nil, nil, err
	}

	change, err := domain.PlanStockChange(adjustment.Type, quantity, current)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", store.ErrInvalidTransaction, err)
	}

	if adjustment.ID == "" {
		adjustment.ID = xid.New("adj")
	}
	if adjustment.CreatedAt.IsZero() {
		adjustment.CreatedAt = time.Now().UTC()
	}
	adjustment.QuantityBefore = change.Before
	adjustment.QuantityChange = change.Change
	adjustment.QuantityAfter = change.After

	if err := writeStock(ctx, pgTx, adjustment); err != nil {
		return nil, nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, nil, err
	}
	return &adjustment, &change, nil
}

func (s *Store) ListInventoryAdjustments(ctx context.Context, storeID string, productID string, limit int) ([]domain.InventoryAdjustment, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, product_id, operator_username, adjustment_type, quantity_change,
			quantity_before, quantity_after, reason, sale_id, created_at
		FROM inventory_adjustments
		WHERE store_id = $1
			AND ($2 = '' OR product_id = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, storeID, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.InventoryAdjustment, 0, limit)
	for rows.Next() {
		var adj domain.InventoryAdjustment
		var saleID sql.NullString
		if err := rows.Scan(&adj.ID, &adj.StoreID, &adj.ProductID, &adj.OperatorUsername, &adj.Type,
			&adj.QuantityChange, &adj.QuantityBefore, &adj.QuantityAfter, &adj.Reason, &saleID, &adj.CreatedAt); err != nil {
			return nil, err
		}
		adj.SaleID = saleID.String
		adj.CreatedAt = adj.CreatedAt.UTC()
		result = append(result, adj)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// lockStock takes row locks on every product in the sale and returns the
// current quantities. Products without a stock row count as zero.
func lockStock(ctx context.Context, pgTx *sql.Tx, storeID string, lines []domain.SaleLine) (map[string]int, error) {
	ids := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	sort.Strings(ids)

	working := make(map[string]int, len(ids))
	for _, id := range ids {
		qty, err := lockStockRow(ctx, pgTx, storeID, id)
		if err != nil {
			return nil, &store.InventoryLineError{ProductID: id, Err: err}
		}
		working[id] = qty
	}
	return working, nil
}

func lockStockRow(ctx context.Context, pgTx *sql.Tx, storeID string, productID string) (int, error) {
	var qty int
	err := pgTx.QueryRowContext(ctx, `
		SELECT qty
		FROM inventory_stocks
		WHERE store_id = $1 AND product_id = $2
		FOR UPDATE
	`, storeID, productID).Scan(&qty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return qty, err
}

func writeStock(ctx context.Context, pgTx *sql.Tx, adj domain.InventoryAdjustment) error {
	_, err := pgTx.ExecContext(ctx, `
		INSERT INTO inventory_stocks (store_id, product_id, qty, updated_at)
		VALUES ($1,$2,$3,now())
		ON CONFLICT (store_id, product_id)
		DO UPDATE SET qty = EXCLUDED.qty, updated_at = now()
	`, adj.StoreID, adj.ProductID, adj.QuantityAfter)
	if err != nil {
		return err
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO inventory_adjustments (
			id, store_id, product_id, operator_username, adjustment_type, quantity_change,
			quantity_before, quantity_after, reason, sale_id, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, adj.ID, adj.StoreID, adj.ProductID, adj.OperatorUsername, adj.Type, adj.QuantityChange,
		adj.QuantityBefore, adj.QuantityAfter, adj.Reason, nullIfEmpty(adj.SaleID), adj.CreatedAt)
	return err
}
