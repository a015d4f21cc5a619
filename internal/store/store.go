package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"possettle/backend/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInsufficientCash   = errors.New("insufficient cash in drawer")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrConflict           = errors.New("conflict")
	ErrDuplicateRequest   = errors.New("duplicate checkout request")
)

// InventoryLineError marks a failure while deducting stock for one sale line.
type InventoryLineError struct {
	ProductID string
	Err       error
}

func (e *InventoryLineError) Error() string {
	return fmt.Sprintf("inventory adjustment failed for product %s: %v", e.ProductID, e.Err)
}

func (e *InventoryLineError) Unwrap() error {
	return e.Err
}

// DrawerMutation edits a locked drawer in place. A non-nil transaction is
// appended to the drawer ledger in the same unit of work.
type DrawerMutation func(drawer *domain.CashDrawer) (*domain.CashTransaction, error)

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	GetStockMap(ctx context.Context, storeID string, productIDs []string) (map[string]int, error)
	ListPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error)
	GetPaymentMethod(ctx context.Context, id string) (*domain.PaymentMethod, error)

	NextInvoiceSequence(ctx context.Context, day string) (int64, error)
	SettleSale(ctx context.Context, sale domain.Sale) (*domain.SettledSale, error)
	FindSaleByInvoice(ctx context.Context, invoiceNumber string) (*domain.Sale, error)
	FindSaleByIdempotency(ctx context.Context, key string) (*domain.Sale, error)

	AdjustInventory(ctx context.Context, adjustment domain.InventoryAdjustment, quantity int) (*domain.InventoryAdjustment, *domain.StockChange, error)
	ListInventoryAdjustments(ctx context.Context, storeID string, productID string, limit int) ([]domain.InventoryAdjustment, error)

	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	RecordCustomerVisit(ctx context.Context, id string, amount decimal.Decimal, at time.Time) (*domain.Customer, error)
	GetLoyaltyEnrollment(ctx context.Context, customerID string) (*domain.LoyaltyAccount, *domain.LoyaltyProgram, error)
	AppendLoyaltyTransaction(ctx context.Context, entry domain.LoyaltyTransaction) (*domain.LoyaltyTransaction, error)
	FindLoyaltyTransactionBySale(ctx context.Context, saleID string) (*domain.LoyaltyTransaction, error)
	ListLoyaltyTransactions(ctx context.Context, accountID string, limit int) ([]domain.LoyaltyTransaction, error)

	CreateDrawer(ctx context.Context, drawer domain.CashDrawer) (*domain.CashDrawer, error)
	GetDrawer(ctx context.Context, id string) (*domain.CashDrawer, error)
	GetOpenDrawer(ctx context.Context) (*domain.CashDrawer, error)
	UpdateDrawer(ctx context.Context, id string, mutate DrawerMutation) (*domain.CashDrawer, *domain.CashTransaction, error)
	ListDrawerTransactions(ctx context.Context, drawerID string, limit int) ([]domain.CashTransaction, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
