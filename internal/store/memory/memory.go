package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"possettle/backend/internal/domain"
	"possettle/backend/internal/store"
	"possettle/backend/internal/xid"
)

type Store struct {
	mu                  sync.RWMutex
	products            map[string]domain.Product
	inventory           map[string]map[string]int
	adjustments         []domain.InventoryAdjustment
	paymentMethods      map[string]domain.PaymentMethod
	invoiceSequences    map[string]int64
	salesByID           map[string]*domain.Sale
	salesByInvoice      map[string]string
	salesByIdem         map[string]string
	customers           map[string]domain.Customer
	loyaltyPrograms     map[string]domain.LoyaltyProgram
	loyaltyAccounts     map[string]domain.LoyaltyAccount
	accountByCustomer   map[string]string
	loyaltyTransactions []domain.LoyaltyTransaction
	drawersByID         map[string]domain.CashDrawer
	drawerTransactions  map[string][]domain.CashTransaction
	auditLogs           []domain.AuditLog
	usersByUsername     map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	ppn := decimal.NewFromInt(11)
	products := []domain.Product{
		{ID: "prd-mie", SKU: "SKU-MIE-01", Name: "Mie Goreng Instan", Category: "grocery", Price: decimal.NewFromInt(3500), TaxRate: ppn, Active: true},
		{ID: "prd-telur", SKU: "SKU-TELUR-01", Name: "Telur 10 Butir", Category: "grocery", Price: decimal.NewFromInt(26500), TaxRate: decimal.Zero, Active: true},
		{ID: "prd-susu", SKU: "SKU-SUSU-01", Name: "Susu UHT 1L", Category: "dairy", Price: decimal.NewFromInt(18900), TaxRate: ppn, Active: true},
		{ID: "prd-roti", SKU: "SKU-ROTI-01", Name: "Roti Tawar", Category: "bakery", Price: decimal.NewFromInt(17800), TaxRate: ppn, Active: true},
		{ID: "prd-kopi", SKU: "SKU-KOPI-01", Name: "Kopi Sachet", Category: "beverage", Price: decimal.NewFromInt(2600), TaxRate: ppn, Active: true},
		{ID: "prd-gula", SKU: "SKU-GULA-01", Name: "Gula 1kg", Category: "grocery", Price: decimal.NewFromInt(17400), TaxRate: decimal.Zero, Active: true},
		{ID: "prd-teh", SKU: "SKU-TEH-01", Name: "Teh Celup", Category: "beverage", Price: decimal.NewFromInt(9800), TaxRate: ppn, Active: true},
		{ID: "prd-air", SKU: "SKU-AIR-01", Name: "Air Mineral 600ml", Category: "beverage", Price: decimal.NewFromInt(3900), TaxRate: ppn, Active: true},
		{ID: "prd-keripik", SKU: "SKU-KERIPIK-01", Name: "Keripik Singkong", Category: "snack", Price: decimal.NewFromInt(12800), TaxRate: ppn, Active: true},
		{ID: "prd-sabun", SKU: "SKU-SABUN-01", Name: "Sabun Mandi", Category: "household", Price: decimal.NewFromInt(7400), TaxRate: ppn, Active: true},
	}

	productMap := make(map[string]domain.Product, len(products))
	inventory := map[string]map[string]int{"main-store": {}}
	for _, p := range products {
		productMap[p.ID] = p
		inventory["main-store"][p.ID] = 120
	}

	methods := map[string]domain.PaymentMethod{
		"pm-cash":    {ID: "pm-cash", Name: "Tunai", Category: domain.PaymentCategoryCash, Active: true},
		"pm-card":    {ID: "pm-card", Name: "Kartu Debit/Kredit", Category: domain.PaymentCategoryCard, Active: true},
		"pm-gopay":   {ID: "pm-gopay", Name: "GoPay", Category: domain.PaymentCategoryMobile, Active: true},
		"pm-voucher": {ID: "pm-voucher", Name: "Voucher Belanja", Category: domain.PaymentCategoryOther, Active: true},
	}

	customers := map[string]domain.Customer{
		"cust-member": {ID: "cust-member", Name: "Sari Member", Phone: "081234567890", TotalSpent: decimal.Zero},
		"cust-guest":  {ID: "cust-guest", Name: "Budi Guest", TotalSpent: decimal.Zero},
	}
	programs := map[string]domain.LoyaltyProgram{
		"lp-default": {ID: "lp-default", Name: "Poin Belanja", EarnRate: decimal.RequireFromString("0.01"), Active: true},
	}
	accounts := map[string]domain.LoyaltyAccount{
		"la-member": {ID: "la-member", CustomerID: "cust-member", ProgramID: "lp-default", Active: true},
	}

	return &Store{
		products:            productMap,
		inventory:           inventory,
		adjustments:         make([]domain.InventoryAdjustment, 0, 128),
		paymentMethods:      methods,
		invoiceSequences:    make(map[string]int64),
		salesByID:           make(map[string]*domain.Sale),
		salesByInvoice:      make(map[string]string),
		salesByIdem:         make(map[string]string),
		customers:           customers,
		loyaltyPrograms:     programs,
		loyaltyAccounts:     accounts,
		accountByCustomer:   map[string]string{"cust-member": "la-member"},
		loyaltyTransactions: make([]domain.LoyaltyTransaction, 0, 64),
		drawersByID:         make(map[string]domain.CashDrawer),
		drawerTransactions:  make(map[string][]domain.CashTransaction),
		auditLogs:           make([]domain.AuditLog, 0, 128),
		usersByUsername:     seedUsers(),
	}
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.Active {
			continue
		}
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category != b.Category {
			return cmpString(a.Category, b.Category)
		}
		return cmpString(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}

func (s *Store) GetStockMap(_ context.Context, storeID string, productIDs []string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stock := s.inventory[storeID]
	result := make(map[string]int, len(productIDs))
	for _, id := range productIDs {
		result[id] = stock[id]
	}
	return result, nil
}

func (s *Store) ListPaymentMethods(_ context.Context) ([]domain.PaymentMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	methods := make([]domain.PaymentMethod, 0, len(s.paymentMethods))
	for _, m := range s.paymentMethods {
		if m.Active {
			methods = append(methods, m)
		}
	}
	slices.SortFunc(methods, func(a, b domain.PaymentMethod) int {
		return cmpString(a.ID, b.ID)
	})
	return methods, nil
}

func (s *Store) GetPaymentMethod(_ context.Context, id string) (*domain.PaymentMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	method, ok := s.paymentMethods[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &method, nil
}

func (s *Store) NextInvoiceSequence(_ context.Context, day string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.invoiceSequences[day]++
	return s.invoiceSequences[day], nil
}

func (s *Store) SettleSale(_ context.Context, sale domain.Sale) (*domain.SettledSale, error) {
	if sale.ID == "" || sale.InvoiceNumber == "" || len(sale.Lines) == 0 || sale.Payment == nil {
		return nil, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.salesByInvoice[sale.InvoiceNumber]; exists {
		return nil, fmt.Errorf("%w: invoice %s already issued", store.ErrConflict, sale.InvoiceNumber)
	}
	if sale.IdempotencyKey != "" {
		if _, exists := s.salesByIdem[sale.IdempotencyKey]; exists {
			return nil, store.ErrDuplicateRequest
		}
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if sale.Status == "" {
		sale.Status = domain.SaleStatusCompleted
	}

	stock := s.inventory[sale.StoreID]
	working := make(map[string]int, len(sale.Lines))
	for _, line := range sale.Lines {
		working[line.ProductID] = stock[line.ProductID]
	}

	settled := &domain.SettledSale{
		Adjustments: make([]domain.InventoryAdjustment, 0, len(sale.Lines)),
	}
	for _, line := range sale.Lines {
		if _, ok := s.products[line.ProductID]; !ok {
			return nil, &store.InventoryLineError{ProductID: line.ProductID, Err: store.ErrNotFound}
		}
		change, err := domain.PlanStockChange(domain.AdjustmentSale, line.Quantity, working[line.ProductID])
		if err != nil {
			return nil, &store.InventoryLineError{ProductID: line.ProductID, Err: err}
		}
		working[line.ProductID] = change.After

		settled.Adjustments = append(settled.Adjustments, domain.InventoryAdjustment{
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
		})
		if change.Shortfall > 0 {
			settled.Shortfalls = append(settled.Shortfalls, domain.StockShortfall{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Deducted:  -change.Change,
				Missing:   change.Shortfall,
			})
		}
	}

	if stock == nil {
		stock = make(map[string]int, len(working))
		s.inventory[sale.StoreID] = stock
	}
	for productID, qty := range working {
		stock[productID] = qty
	}
	s.adjustments = append(s.adjustments, settled.Adjustments...)

	saved := cloneSale(&sale)
	s.salesByID[saved.ID] = saved
	s.salesByInvoice[saved.InvoiceNumber] = saved.ID
	if saved.IdempotencyKey != "" {
		s.salesByIdem[saved.IdempotencyKey] = saved.ID
	}

	settled.Sale = *cloneSale(saved)
	return settled, nil
}

func (s *Store) FindSaleByInvoice(_ context.Context, invoiceNumber string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.salesByInvoice[invoiceNumber]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSale(s.salesByID[id]), nil
}

func (s *Store) FindSaleByIdempotency(_ context.Context, key string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.salesByIdem[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSale(s.salesByID[id]), nil
}

func (s *Store) AdjustInventory(_ context.Context, adjustment domain.InventoryAdjustment, quantity int) (*domain.InventoryAdjustment, *domain.StockChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[adjustment.ProductID]; !ok {
		return nil, nil, store.ErrNotFound
	}
	stock := s.inventory[adjustment.StoreID]
	if stock == nil {
		stock = make(map[string]int)
		s.inventory[adjustment.StoreID] = stock
	}

	change, err := domain.PlanStockChange(adjustment.Type, quantity, stock[adjustment.ProductID])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", store.ErrInvalidTransaction, err)
	}
	stock[adjustment.ProductID] = change.After

	if adjustment.ID == "" {
		adjustment.ID = xid.New("adj")
	}
	if adjustment.CreatedAt.IsZero() {
		adjustment.CreatedAt = time.Now().UTC()
	}
	adjustment.QuantityBefore = change.Before
	adjustment.QuantityChange = change.Change
	adjustment.QuantityAfter = change.After
	s.adjustments = append(s.adjustments, adjustment)

	return &adjustment, &change, nil
}

func (s *Store) ListInventoryAdjustments(_ context.Context, storeID string, productID string, limit int) ([]domain.InventoryAdjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.InventoryAdjustment, 0, 32)
	for i := len(s.adjustments) - 1; i >= 0; i-- {
		adj := s.adjustments[i]
		if storeID != "" && adj.StoreID != storeID {
			continue
		}
		if productID != "" && adj.ProductID != productID {
			continue
		}
		result = append(result, adj)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneCustomer(customer), nil
}

func (s *Store) RecordCustomerVisit(_ context.Context, id string, amount decimal.Decimal, at time.Time) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	customer.TotalSpent = customer.TotalSpent.Add(amount)
	customer.VisitCount++
	visit := at.UTC()
	customer.LastVisitAt = &visit
	s.customers[id] = customer
	return cloneCustomer(customer), nil
}

func (s *Store) GetLoyaltyEnrollment(_ context.Context, customerID string) (*domain.LoyaltyAccount, *domain.LoyaltyProgram, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accountID, ok := s.accountByCustomer[customerID]
	if !ok {
		return nil, nil, store.ErrNotFound
	}
	account := s.loyaltyAccounts[accountID]
	program, ok := s.loyaltyPrograms[account.ProgramID]
	if !ok {
		return nil, nil, store.ErrNotFound
	}
	return &account, &program, nil
}

func (s *Store) AppendLoyaltyTransaction(_ context.Context, entry domain.LoyaltyTransaction) (*domain.LoyaltyTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.loyaltyAccounts[entry.AccountID]
	if !ok {
		return nil, store.ErrNotFound
	}
	after := account.PointsBalance + entry.Points
	if after < 0 {
		return nil, store.ErrInvalidTransaction
	}

	if entry.ID == "" {
		entry.ID = xid.New("loyalty")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.BalanceBefore = account.PointsBalance
	entry.BalanceAfter = after
	account.PointsBalance = after
	s.loyaltyAccounts[account.ID] = account
	s.loyaltyTransactions = append(s.loyaltyTransactions, entry)
	return &entry, nil
}

func (s *Store) FindLoyaltyTransactionBySale(_ context.Context, saleID string) (*domain.LoyaltyTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.loyaltyTransactions) - 1; i >= 0; i-- {
		entry := s.loyaltyTransactions[i]
		if entry.SaleID == saleID && entry.Type == domain.LoyaltyEarn {
			return &entry, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListLoyaltyTransactions(_ context.Context, accountID string, limit int) ([]domain.LoyaltyTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.LoyaltyTransaction, 0, 16)
	for i := len(s.loyaltyTransactions) - 1; i >= 0; i-- {
		entry := s.loyaltyTransactions[i]
		if entry.AccountID != accountID {
			continue
		}
		result = append(result, entry)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *Store) CreateDrawer(_ context.Context, drawer domain.CashDrawer) (*domain.CashDrawer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.drawersByID {
		if existing.Status == domain.DrawerStatusOpen {
			return nil, fmt.Errorf("%w: drawer %s is already open", store.ErrConflict, existing.ID)
		}
	}
	if drawer.ID == "" {
		drawer.ID = xid.New("drawer")
	}
	if drawer.OpenedAt.IsZero() {
		drawer.OpenedAt = time.Now().UTC()
	}
	drawer.Status = domain.DrawerStatusOpen
	s.drawersByID[drawer.ID] = drawer
	return cloneDrawer(drawer), nil
}

func (s *Store) GetDrawer(_ context.Context, id string) (*domain.CashDrawer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	drawer, ok := s.drawersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneDrawer(drawer), nil
}

func (s *Store) GetOpenDrawer(_ context.Context) (*domain.CashDrawer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, drawer := range s.drawersByID {
		if drawer.Status == domain.DrawerStatusOpen {
			return cloneDrawer(drawer), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) UpdateDrawer(_ context.Context, id string, mutate store.DrawerMutation) (*domain.CashDrawer, *domain.CashTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.drawersByID[id]
	if !ok {
		return nil, nil, store.ErrNotFound
	}
	working := *cloneDrawer(current)
	tx, err := mutate(&working)
	if err != nil {
		return nil, nil, err
	}
	if working.ID != id {
		return nil, nil, store.ErrInvalidTransaction
	}

	if tx != nil {
		if tx.ID == "" {
			tx.ID = xid.New("cashtx")
		}
		if tx.CreatedAt.IsZero() {
			tx.CreatedAt = time.Now().UTC()
		}
		tx.DrawerID = id
		s.drawerTransactions[id] = append(s.drawerTransactions[id], *tx)
	}
	s.drawersByID[id] = working

	return cloneDrawer(working), tx, nil
}

func (s *Store) ListDrawerTransactions(_ context.Context, drawerID string, limit int) ([]domain.CashTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.drawersByID[drawerID]; !ok {
		return nil, store.ErrNotFound
	}
	history := s.drawerTransactions[drawerID]
	start := 0
	if limit > 0 && len(history) > limit {
		start = len(history) - limit
	}
	return slices.Clone(history[start:]), nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if storeID != "" && entry.StoreID != storeID {
			continue
		}
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidTransaction
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidTransaction
	}
	user.Username = username
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidTransaction
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cmpString(a string, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cloneSale(src *domain.Sale) *domain.Sale {
	if src == nil {
		return nil
	}
	dst := *src
	dst.Lines = slices.Clone(src.Lines)
	if src.Payment != nil {
		payment := *src.Payment
		dst.Payment = &payment
	}
	return &dst
}

func cloneCustomer(src domain.Customer) *domain.Customer {
	dst := src
	if src.LastVisitAt != nil {
		at := *src.LastVisitAt
		dst.LastVisitAt = &at
	}
	return &dst
}

func cloneDrawer(src domain.CashDrawer) *domain.CashDrawer {
	dst := src
	if src.ClosedAt != nil {
		at := *src.ClosedAt
		dst.ClosedAt = &at
	}
	if src.ReconciledAt != nil {
		at := *src.ReconciledAt
		dst.ReconciledAt = &at
	}
	if src.ClosingBalance != nil {
		count := *src.ClosingBalance
		dst.ClosingBalance = &count
	}
	return &dst
}
