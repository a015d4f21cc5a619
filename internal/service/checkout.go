package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"possettle/backend/internal/domain"
	"possettle/backend/internal/metrics"
	"possettle/backend/internal/store"
	"possettle/backend/internal/xid"
)

// PreviewTotals prices a cart exactly as Checkout would, without side effects.
func (s *Service) PreviewTotals(ctx context.Context, req domain.TotalsPreviewRequest) (domain.Totals, error) {
	if err := validateRequest(req); err != nil {
		return domain.Totals{}, err
	}
	lines, err := s.priceCart(ctx, req.CartItems)
	if err != nil {
		return domain.Totals{}, err
	}
	return domain.ComputeTotals(lines), nil
}

// Checkout settles a cart: price, pay, then persist sale, lines, payment and
// stock deductions in one unit of work. Customer aggregates, loyalty and the
// drawer posting run afterwards and never fail the sale.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.Receipt, error) {
	startedAt := time.Now()
	if req.StoreID == "" {
		req.StoreID = s.defaultStoreID
	}
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	req.CustomerID = strings.TrimSpace(req.CustomerID)

	if err := validateRequest(req); err != nil {
		return domain.Receipt{}, err
	}

	if req.IdempotencyKey != "" {
		existing, err := s.repo.FindSaleByIdempotency(ctx, req.IdempotencyKey)
		if err == nil {
			if !sameCheckout(existing, req) {
				return domain.Receipt{}, fmt.Errorf("%w: idempotency key %s was used for a different checkout", store.ErrConflict, req.IdempotencyKey)
			}
			return s.receiptForSale(ctx, existing, true), nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return domain.Receipt{}, err
		}
	}

	method, err := s.repo.GetPaymentMethod(ctx, req.PaymentMethodID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Receipt{}, invalid("payment_method_id", "unknown payment method")
		}
		return domain.Receipt{}, err
	}
	if !method.Active {
		return domain.Receipt{}, invalid("payment_method_id", "payment method is disabled")
	}
	category := ClassifyMethod(*method)

	var customer *domain.Customer
	if req.CustomerID != "" {
		customer, err = s.repo.GetCustomer(ctx, req.CustomerID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.Receipt{}, invalid("customer_id", "unknown customer")
			}
			return domain.Receipt{}, err
		}
	}

	lines, err := s.priceCart(ctx, req.CartItems)
	if err != nil {
		return domain.Receipt{}, err
	}
	if err := s.checkStock(ctx, req.StoreID, lines); err != nil {
		return domain.Receipt{}, err
	}

	totals := domain.ComputeTotals(lines)
	if !totals.Total.IsPositive() {
		return domain.Receipt{}, invalid("cart_items", "total must be positive")
	}

	saleID := xid.New("sale")
	outcome, err := s.payments.Route(ctx, PaymentInput{
		SaleID:      saleID,
		Method:      *method,
		Amount:      totals.Total,
		Tendered:    req.AmountTendered,
		Card:        req.Card,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		var payErr *PaymentError
		if errors.As(err, &payErr) {
			log.Printf("[checkout] WARN: payment failed sale=%s method=%s: %v", saleID, method.ID, err)
			metrics.CheckoutsTotal.WithLabelValues(string(category), "payment_failed").Inc()
		} else {
			metrics.CheckoutsTotal.WithLabelValues(string(category), "rejected").Inc()
		}
		return domain.Receipt{}, err
	}

	sale := domain.Sale{
		ID:               saleID,
		StoreID:          req.StoreID,
		TerminalID:       req.TerminalID,
		OperatorUsername: operatorName(ctx),
		CustomerID:       req.CustomerID,
		IdempotencyKey:   req.IdempotencyKey,
		Subtotal:         totals.Subtotal,
		TaxAmount:        totals.TaxAmount,
		DiscountAmount:   totals.DiscountAmount,
		Total:            totals.Total,
		Status:           domain.SaleStatusCompleted,
		CreatedAt:        s.now(),
		Lines:            buildSaleLines(saleID, lines, totals),
	}

	var settled *domain.SettledSale
	_, err = s.invoices.Reserve(ctx, func(invoice string) error {
		candidate := sale
		candidate.InvoiceNumber = invoice
		record := outcome.Record
		record.Reference = referenceFor(record, invoice)
		candidate.Payment = &record

		result, err := s.repo.SettleSale(ctx, candidate)
		if err != nil {
			return err
		}
		settled = result
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateRequest) {
			if existing, lookupErr := s.repo.FindSaleByIdempotency(ctx, req.IdempotencyKey); lookupErr == nil && sameCheckout(existing, req) {
				log.Printf("[checkout] WARN: concurrent resubmission key=%s settled by sale=%s, payment %s needs reversal", req.IdempotencyKey, existing.ID, outcome.Record.ID)
				return s.receiptForSale(ctx, existing, true), nil
			}
		}
		log.Printf("[checkout] ERROR: payment %s captured but settlement failed sale=%s: %v", outcome.Record.ID, saleID, err)
		metrics.CheckoutsTotal.WithLabelValues(string(category), "settlement_failed").Inc()
		return domain.Receipt{}, err
	}
	sale = settled.Sale

	for _, shortfall := range settled.Shortfalls {
		log.Printf("[inventory] WARN: stock shortfall invoice=%s product=%s requested=%d deducted=%d missing=%d",
			sale.InvoiceNumber, shortfall.ProductID, shortfall.Requested, shortfall.Deducted, shortfall.Missing)
		metrics.InventoryShortfalls.Add(float64(shortfall.Missing))
	}

	if customer != nil {
		updated, err := s.repo.RecordCustomerVisit(ctx, customer.ID, sale.Total, sale.CreatedAt)
		if err != nil {
			log.Printf("[checkout] WARN: failed to update customer aggregates customer=%s sale=%s: %v", customer.ID, sale.ID, err)
			metrics.BestEffortFailures.WithLabelValues("customer").Inc()
		} else {
			customer = updated
		}
	}

	pointsEarned := int64(0)
	if customer != nil {
		accrual, err := s.AccrueLoyalty(ctx, domain.LoyaltyAccrualRequest{
			CustomerID:  customer.ID,
			AmountSpent: sale.Total,
			SaleID:      sale.ID,
		})
		if err != nil {
			log.Printf("[loyalty] WARN: points not awarded customer=%s sale=%s: %v", customer.ID, sale.ID, err)
			metrics.LoyaltyFailures.Inc()
		} else {
			pointsEarned = accrual.PointsEarned
		}
	}

	if category == domain.PaymentCategoryCash {
		s.postCashSale(ctx, sale)
	}

	if outcome.Unclassified {
		s.logAudit(ctx, sale.StoreID, "payment_unclassified", "sale", sale.ID, fmt.Sprintf("method=%s,name=%s,invoice=%s", method.ID, method.Name, sale.InvoiceNumber))
	}
	s.logAudit(ctx, sale.StoreID, "checkout", "sale", sale.ID, fmt.Sprintf(
		"invoice=%s,total=%s,payment=%s,lines=%d,shortfalls=%d",
		sale.InvoiceNumber,
		sale.Total.StringFixed(2),
		category,
		len(sale.Lines),
		len(settled.Shortfalls),
	))
	metrics.CheckoutsTotal.WithLabelValues(string(category), "completed").Inc()
	metrics.CheckoutDuration.WithLabelValues(string(category)).Observe(time.Since(startedAt).Seconds())

	receipt := buildReceipt(sale, method, customer, pointsEarned, false)
	receipt.Shortfalls = settled.Shortfalls
	return receipt, nil
}

func (s *Service) GetSaleReceipt(ctx context.Context, invoiceNumber string) (domain.Receipt, error) {
	invoiceNumber = strings.TrimSpace(invoiceNumber)
	if invoiceNumber == "" {
		return domain.Receipt{}, invalid("invoice_number", "is required")
	}
	sale, err := s.repo.FindSaleByInvoice(ctx, invoiceNumber)
	if err != nil {
		return domain.Receipt{}, err
	}
	return s.receiptForSale(ctx, sale, false), nil
}

// priceCart snapshots catalog prices and tax rates for each cart item.
func (s *Service) priceCart(ctx context.Context, items []domain.CartItem) ([]domain.CartLine, error) {
	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		id := strings.TrimSpace(item.ProductID)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	lines := make([]domain.CartLine, 0, len(items))
	for i, item := range items {
		product, ok := products[strings.TrimSpace(item.ProductID)]
		if !ok || !product.Active {
			return nil, invalid(fmt.Sprintf("cart_items[%d].product_id", i), "product is unavailable")
		}
		line := domain.CartLine{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  item.Qty,
			Discount:  domain.RoundMoney(item.Discount),
			TaxRate:   product.TaxRate,
		}
		if line.Discount.GreaterThan(domain.ComputeLine(line).Subtotal) {
			return nil, invalid(fmt.Sprintf("cart_items[%d].discount", i), "must not exceed the line subtotal")
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// checkStock rejects carts that already exceed the stock on hand, per line and
// per product across lines. Drift that happens after this check is clamped and
// reported by the settlement.
func (s *Service) checkStock(ctx context.Context, storeID string, lines []domain.CartLine) error {
	ids := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; !ok {
			seen[line.ProductID] = struct{}{}
			ids = append(ids, line.ProductID)
		}
	}

	stock, err := s.repo.GetStockMap(ctx, storeID, ids)
	if err != nil {
		return err
	}

	requested := make(map[string]int, len(ids))
	for _, line := range lines {
		available := stock[line.ProductID]
		if line.Quantity < 1 || line.Quantity > available || requested[line.ProductID] > available-line.Quantity {
			return fmt.Errorf("%w: product %s has %d left, more requested", store.ErrInsufficientStock, line.ProductID, available)
		}
		requested[line.ProductID] += line.Quantity
	}
	return nil
}

func (s *Service) postCashSale(ctx context.Context, sale domain.Sale) {
	drawer, err := s.repo.GetOpenDrawer(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("[drawer] WARN: failed to look up open drawer for sale=%s: %v", sale.ID, err)
			metrics.BestEffortFailures.WithLabelValues("drawer").Inc()
		}
		return
	}

	_, _, err = s.applyDrawerTransaction(ctx, drawer.ID, domain.DrawerTransactionRequest{
		Type:        domain.CashIn,
		Amount:      sale.Total,
		Description: "sale " + sale.InvoiceNumber,
	})
	if err != nil {
		log.Printf("[drawer] WARN: failed to post cash sale invoice=%s to drawer=%s: %v", sale.InvoiceNumber, drawer.ID, err)
		metrics.BestEffortFailures.WithLabelValues("drawer").Inc()
	}
}

func (s *Service) receiptForSale(ctx context.Context, sale *domain.Sale, duplicate bool) domain.Receipt {
	var method *domain.PaymentMethod
	if sale.Payment != nil {
		if m, err := s.repo.GetPaymentMethod(ctx, sale.Payment.PaymentMethodID); err == nil {
			method = m
		}
	}

	var customer *domain.Customer
	if sale.CustomerID != "" {
		if c, err := s.repo.GetCustomer(ctx, sale.CustomerID); err == nil {
			customer = c
		}
	}

	points := int64(0)
	if entry, err := s.repo.FindLoyaltyTransactionBySale(ctx, sale.ID); err == nil {
		points = entry.Points
	}

	return buildReceipt(*sale, method, customer, points, duplicate)
}

// sameCheckout reports whether a stored sale was created from an equivalent
// request: same payment method, customer and cart lines in the same order.
func sameCheckout(sale *domain.Sale, req domain.CheckoutRequest) bool {
	if sale.Payment == nil || sale.Payment.PaymentMethodID != req.PaymentMethodID || sale.CustomerID != req.CustomerID {
		return false
	}
	if len(sale.Lines) != len(req.CartItems) {
		return false
	}
	for i, item := range req.CartItems {
		line := sale.Lines[i]
		if line.ProductID != strings.TrimSpace(item.ProductID) || line.Quantity != item.Qty {
			return false
		}
		if !line.DiscountAmount.Equal(domain.RoundMoney(item.Discount)) {
			return false
		}
	}
	return true
}

func buildSaleLines(saleID string, lines []domain.CartLine, totals domain.Totals) []domain.SaleLine {
	saleLines := make([]domain.SaleLine, 0, len(lines))
	for i, line := range lines {
		lt := totals.Lines[i]
		saleLines = append(saleLines, domain.SaleLine{
			SaleID:         saleID,
			ProductID:      line.ProductID,
			ProductName:    line.Name,
			Quantity:       line.Quantity,
			UnitPrice:      line.UnitPrice,
			TaxRate:        line.TaxRate,
			TaxAmount:      lt.TaxAmount,
			DiscountAmount: lt.Discount,
			LineTotal:      lt.LineTotal,
		})
	}
	return saleLines
}

func buildReceipt(sale domain.Sale, method *domain.PaymentMethod, customer *domain.Customer, points int64, duplicate bool) domain.Receipt {
	receipt := domain.Receipt{
		SaleID:         sale.ID,
		InvoiceNumber:  sale.InvoiceNumber,
		Status:         sale.Status,
		Lines:          make([]domain.ReceiptLine, 0, len(sale.Lines)),
		Subtotal:       sale.Subtotal,
		TaxAmount:      sale.TaxAmount,
		DiscountAmount: sale.DiscountAmount,
		Total:          sale.Total,
		PointsEarned:   points,
		Duplicate:      duplicate,
		CreatedAt:      sale.CreatedAt.UTC().Format(time.RFC3339),
	}
	for _, line := range sale.Lines {
		receipt.Lines = append(receipt.Lines, domain.ReceiptLine{
			ProductID: line.ProductID,
			Name:      line.ProductName,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			TaxAmount: line.TaxAmount,
			Discount:  line.DiscountAmount,
			LineTotal: line.LineTotal,
		})
	}

	if sale.Payment != nil {
		receipt.PaymentMethod = sale.Payment.PaymentMethodID
		receipt.PaymentCategory = sale.Payment.Category
		receipt.PaymentReference = sale.Payment.Reference
		receipt.MaskedPAN = sale.Payment.MaskedPAN
		receipt.AmountTendered = sale.Payment.Tendered
		receipt.Change = sale.Payment.Change
	}
	if method != nil {
		receipt.PaymentMethod = method.Name
	}
	if customer != nil {
		receipt.Customer = &domain.ReceiptCustomer{ID: customer.ID, Name: customer.Name}
	}
	return receipt
}
