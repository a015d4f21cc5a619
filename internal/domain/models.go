package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID       string          `json:"id"`
	SKU      string          `json:"sku"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	TaxRate  decimal.Decimal `json:"tax_rate"`
	Active   bool            `json:"active"`
}

type ProductListResponse struct {
	Products []ProductStock `json:"products"`
}

type ProductStock struct {
	Product
	Stock int `json:"stock"`
}

type CartItem struct {
	ProductID string          `json:"product_id" validate:"required"`
	Qty       int             `json:"qty" validate:"gte=1,lte=100000"`
	Discount  decimal.Decimal `json:"discount" validate:"gte=0"`
}

// CartLine is a cart item priced against a catalog snapshot.
type CartLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Discount  decimal.Decimal `json:"discount"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
}

type LineTotals struct {
	ProductID string          `json:"product_id"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Discount  decimal.Decimal `json:"discount"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type Totals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Total          decimal.Decimal `json:"total"`
	Lines          []LineTotals    `json:"lines"`
}

type TotalsPreviewRequest struct {
	CartItems []CartItem `json:"cart_items" validate:"required,min=1,dive"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type PaymentCategory string

const (
	PaymentCategoryCash   PaymentCategory = "cash"
	PaymentCategoryCard   PaymentCategory = "card"
	PaymentCategoryMobile PaymentCategory = "mobile"
	PaymentCategoryOther  PaymentCategory = "other"
)

type PaymentMethod struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category PaymentCategory `json:"category"`
	Active   bool            `json:"active"`
}

// CardData is card-present input. It is never persisted.
type CardData struct {
	PAN    string `json:"pan"`
	Expiry string `json:"expiry"`
	CVV    string `json:"cvv"`
	Holder string `json:"holder"`
}

type CheckoutRequest struct {
	StoreID         string          `json:"store_id"`
	TerminalID      string          `json:"terminal_id" validate:"required"`
	IdempotencyKey  string          `json:"idempotency_key,omitempty" validate:"omitempty,max=128"`
	CustomerID      string          `json:"customer_id,omitempty"`
	PaymentMethodID string          `json:"payment_method_id" validate:"required"`
	AmountTendered  decimal.Decimal `json:"amount_tendered" validate:"gte=0"`
	Card            *CardData       `json:"card,omitempty"`
	PhoneNumber     string          `json:"phone_number,omitempty"`
	CartItems       []CartItem      `json:"cart_items" validate:"required,min=1,dive"`
}

type Sale struct {
	ID               string          `json:"id"`
	InvoiceNumber    string          `json:"invoice_number"`
	StoreID          string          `json:"store_id"`
	TerminalID       string          `json:"terminal_id"`
	OperatorUsername string          `json:"operator_username"`
	CustomerID       string          `json:"customer_id,omitempty"`
	IdempotencyKey   string          `json:"idempotency_key,omitempty"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	Total            decimal.Decimal `json:"total"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	Lines            []SaleLine      `json:"lines"`
	Payment          *PaymentRecord  `json:"payment,omitempty"`
}

type SaleLine struct {
	SaleID         string          `json:"sale_id"`
	ProductID      string          `json:"product_id"`
	ProductName    string          `json:"product_name"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	LineTotal      decimal.Decimal `json:"line_total"`
}

type PaymentRecord struct {
	ID              string          `json:"id"`
	SaleID          string          `json:"sale_id"`
	PaymentMethodID string          `json:"payment_method_id"`
	Category        PaymentCategory `json:"category"`
	Amount          decimal.Decimal `json:"amount"`
	Tendered        decimal.Decimal `json:"tendered"`
	Change          decimal.Decimal `json:"change"`
	Reference       string          `json:"reference"`
	MaskedPAN       string          `json:"masked_pan,omitempty"`
	CardBrand       string          `json:"card_brand,omitempty"`
	PayerPhone      string          `json:"payer_phone,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// StockShortfall reports a sale line whose deduction was clamped at zero.
type StockShortfall struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Deducted  int    `json:"deducted"`
	Missing   int    `json:"missing"`
}

type SettledSale struct {
	Sale        Sale                  `json:"sale"`
	Adjustments []InventoryAdjustment `json:"adjustments"`
	Shortfalls  []StockShortfall      `json:"shortfalls,omitempty"`
}

type ReceiptLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Discount  decimal.Decimal `json:"discount"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type ReceiptCustomer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Receipt struct {
	SaleID           string           `json:"sale_id"`
	InvoiceNumber    string           `json:"invoice_number"`
	Status           string           `json:"status"`
	Lines            []ReceiptLine    `json:"lines"`
	Subtotal         decimal.Decimal  `json:"subtotal"`
	TaxAmount        decimal.Decimal  `json:"tax_amount"`
	DiscountAmount   decimal.Decimal  `json:"discount_amount"`
	Total            decimal.Decimal  `json:"total"`
	PaymentMethod    string           `json:"payment_method"`
	PaymentCategory  PaymentCategory  `json:"payment_category"`
	PaymentReference string           `json:"payment_reference"`
	MaskedPAN        string           `json:"masked_pan,omitempty"`
	AmountTendered   decimal.Decimal  `json:"amount_tendered"`
	Change           decimal.Decimal  `json:"change"`
	Customer         *ReceiptCustomer `json:"customer,omitempty"`
	PointsEarned     int64            `json:"points_earned"`
	Shortfalls       []StockShortfall `json:"shortfalls,omitempty"`
	Duplicate        bool             `json:"duplicate"`
	CreatedAt        string           `json:"created_at"`
}

type InventoryAdjustment struct {
	ID               string    `json:"id"`
	StoreID          string    `json:"store_id"`
	ProductID        string    `json:"product_id"`
	OperatorUsername string    `json:"operator_username"`
	Type             string    `json:"adjustment_type"`
	QuantityChange   int       `json:"quantity_change"`
	QuantityBefore   int       `json:"quantity_before"`
	QuantityAfter    int       `json:"quantity_after"`
	Reason           string    `json:"reason"`
	SaleID           string    `json:"sale_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type InventoryAdjustRequest struct {
	StoreID   string `json:"store_id"`
	ProductID string `json:"product_id" validate:"required"`
	Type      string `json:"adjustment_type" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=0,lte=100000"`
	Reason    string `json:"reason" validate:"max=500"`
}

type InventoryAdjustResponse struct {
	Adjustment     InventoryAdjustment `json:"adjustment"`
	QuantityBefore int                 `json:"quantity_before"`
	QuantityAfter  int                 `json:"quantity_after"`
	Shortfall      int                 `json:"shortfall"`
}

type InventoryAdjustmentListResponse struct {
	Adjustments []InventoryAdjustment `json:"adjustments"`
}

type Customer struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Phone       string          `json:"phone,omitempty"`
	TotalSpent  decimal.Decimal `json:"total_spent"`
	VisitCount  int             `json:"visit_count"`
	LastVisitAt *time.Time      `json:"last_visit_at,omitempty"`
}

type LoyaltyProgram struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	EarnRate decimal.Decimal `json:"earn_rate"`
	Active   bool            `json:"active"`
}

type LoyaltyAccount struct {
	ID            string `json:"id"`
	CustomerID    string `json:"customer_id"`
	ProgramID     string `json:"program_id"`
	PointsBalance int64  `json:"points_balance"`
	Active        bool   `json:"active"`
}

type LoyaltyTransaction struct {
	ID            string    `json:"id"`
	AccountID     string    `json:"account_id"`
	Type          string    `json:"type"`
	Points        int64     `json:"points"`
	BalanceBefore int64     `json:"balance_before"`
	BalanceAfter  int64     `json:"balance_after"`
	SaleID        string    `json:"sale_id,omitempty"`
	Reason        string    `json:"reason"`
	CreatedAt     time.Time `json:"created_at"`
}

type LoyaltyAccrualRequest struct {
	CustomerID  string          `json:"customer_id" validate:"required"`
	AmountSpent decimal.Decimal `json:"amount_spent" validate:"gte=0"`
	SaleID      string          `json:"sale_id,omitempty"`
}

type LoyaltyAccrualResult struct {
	AccountID    string `json:"account_id,omitempty"`
	PointsEarned int64  `json:"points_earned"`
	BalanceAfter int64  `json:"balance_after"`
	Enrolled     bool   `json:"enrolled"`
}

type LoyaltySummary struct {
	Account      LoyaltyAccount       `json:"account"`
	Program      LoyaltyProgram       `json:"program"`
	Transactions []LoyaltyTransaction `json:"transactions"`
}

type CashDrawer struct {
	ID              string           `json:"id"`
	StoreID         string           `json:"store_id"`
	Status          string           `json:"status"`
	OpeningBalance  decimal.Decimal  `json:"opening_balance"`
	CurrentBalance  decimal.Decimal  `json:"current_balance"`
	ExpectedBalance decimal.Decimal  `json:"expected_balance"`
	ClosingBalance  *decimal.Decimal `json:"closing_balance,omitempty"`
	OpenedBy        string           `json:"opened_by"`
	OpenedAt        time.Time        `json:"opened_at"`
	ClosedAt        *time.Time       `json:"closed_at,omitempty"`
	ReconciledAt    *time.Time       `json:"reconciled_at,omitempty"`
	Notes           string           `json:"notes,omitempty"`
}

type CashTransaction struct {
	ID               string          `json:"id"`
	DrawerID         string          `json:"drawer_id"`
	Type             string          `json:"type"`
	Amount           decimal.Decimal `json:"amount"`
	Description      string          `json:"description"`
	BalanceBefore    decimal.Decimal `json:"balance_before"`
	BalanceAfter     decimal.Decimal `json:"balance_after"`
	Notes            string          `json:"notes,omitempty"`
	OperatorUsername string          `json:"operator_username"`
	CreatedAt        time.Time       `json:"created_at"`
}

type DrawerOpenRequest struct {
	StoreID        string          `json:"store_id"`
	OpeningBalance decimal.Decimal `json:"opening_balance" validate:"gte=0"`
	Notes          string          `json:"notes" validate:"max=1000"`
}

type DrawerTransactionRequest struct {
	Type        string          `json:"type" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" validate:"required,max=500"`
	Notes       string          `json:"notes" validate:"max=1000"`
}

type DrawerCloseRequest struct {
	ActualBalance decimal.Decimal `json:"actual_balance" validate:"gte=0"`
	Notes         string          `json:"notes" validate:"max=1000"`
}

type DrawerReconcileRequest struct {
	ActualBalance decimal.Decimal `json:"actual_balance" validate:"gte=0"`
	Notes         string          `json:"notes" validate:"required,max=1000"`
	ManagerPIN    string          `json:"manager_pin"`
}

type DrawerResponse struct {
	Drawer         CashDrawer      `json:"drawer"`
	Discrepancy    decimal.Decimal `json:"discrepancy"`
	Classification string          `json:"classification"`
	Message        string          `json:"message,omitempty"`
}

type DrawerTransactionListResponse struct {
	Transactions []CashTransaction `json:"transactions"`
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	StoreID       string    `json:"store_id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

const SaleStatusCompleted = "completed"

const (
	LoyaltyEarn       = "earn"
	LoyaltyRedeem     = "redeem"
	LoyaltyAdjustment = "adjustment"
)
