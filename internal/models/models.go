package models

import (
	"database/sql"
	"time"
)

// Product is a game a voucher belongs to (e.g. "Free Fire")
type Product struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Category  string    `db:"category" json:"category,omitempty"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Variant is a purchasable SKU under a product (e.g. "500 Diamonds").
// StockQuantity is a denormalized counter maintained inside the claim
// transaction; display reads go through the live available-code count.
type Variant struct {
	ID            string    `db:"id" json:"id"`
	ProductID     string    `db:"product_id" json:"product_id"`
	Name          string    `db:"name" json:"name"`
	Price         int64     `db:"price" json:"price"`
	StockQuantity int       `db:"stock_quantity" json:"stock_quantity"`
	IsActive      bool      `db:"is_active" json:"is_active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Order represents a single purchase intent
type Order struct {
	ID               string         `db:"id" json:"id"`
	UserID           sql.NullString `db:"user_id" json:"user_id,omitempty"`
	VariantID        string         `db:"product_variant_id" json:"product_variant_id"`
	Quantity         int            `db:"quantity" json:"quantity"`
	PlayerUID        string         `db:"player_uid" json:"player_uid"`
	PlayerName       string         `db:"player_name" json:"player_name,omitempty"`
	CustomerName     string         `db:"customer_name" json:"customer_name,omitempty"`
	CustomerPhone    string         `db:"customer_phone" json:"customer_phone,omitempty"`
	CustomerDistrict string         `db:"customer_district" json:"customer_district,omitempty"`
	CustomerCountry  string         `db:"customer_country" json:"customer_country,omitempty"`
	TotalAmount      int64          `db:"total_amount" json:"total_amount"`
	Status           string         `db:"status" json:"status"`
	PaymentMethod    string         `db:"payment_method" json:"payment_method"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	CompletedAt      sql.NullTime   `db:"completed_at" json:"completed_at,omitempty"`
}

// Payment represents one attempt to collect money. OrderRef is either an
// order id or a synthetic wallet top-up reference, so top-up sessions are
// tracked through the same table without needing an order row.
type Payment struct {
	ID            string         `db:"id" json:"id"`
	OrderRef      string         `db:"order_ref" json:"order_ref"`
	UserID        sql.NullString `db:"user_id" json:"user_id,omitempty"`
	Amount        int64          `db:"amount" json:"amount"`
	PaymentMethod string         `db:"payment_method" json:"payment_method"`
	Provider      string         `db:"payment_provider" json:"payment_provider"`
	TransactionID string         `db:"transaction_id" json:"transaction_id,omitempty"`
	Status        string         `db:"status" json:"status"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	CompletedAt   sql.NullTime   `db:"completed_at" json:"completed_at,omitempty"`
}

// VoucherCode is a single-use secret belonging to exactly one variant
type VoucherCode struct {
	ID          string         `db:"id" json:"id"`
	Code        string         `db:"code" json:"code"`
	VariantID   string         `db:"product_variant_id" json:"product_variant_id"`
	Status      string         `db:"status" json:"status"`
	OrderID     sql.NullString `db:"order_id" json:"order_id,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	DeliveredAt sql.NullTime   `db:"delivered_at" json:"delivered_at,omitempty"`
	UsedAt      sql.NullTime   `db:"used_at" json:"used_at,omitempty"`
}

// Profile holds one wallet balance per user
type Profile struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	FullName  string    `db:"full_name" json:"full_name,omitempty"`
	Phone     string    `db:"phone" json:"phone,omitempty"`
	Balance   int64     `db:"balance" json:"balance"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// MoneyRequest is a manual top-up claim awaiting admin approval
type MoneyRequest struct {
	ID            string       `db:"id" json:"id"`
	UserID        string       `db:"user_id" json:"user_id"`
	Amount        int64        `db:"amount" json:"amount"`
	PaymentMethod string       `db:"payment_method" json:"payment_method"`
	TransactionID string       `db:"transaction_id" json:"transaction_id,omitempty"`
	Status        string       `db:"status" json:"status"`
	AdminNote     string       `db:"admin_note" json:"admin_note,omitempty"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	ProcessedAt   sql.NullTime `db:"processed_at" json:"processed_at,omitempty"`
}

// ProcessedEvent records handled webhook deliveries for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}

// Order statuses
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusCompleted  = "completed"
	OrderStatusFailed     = "failed"
	OrderStatusRefunded   = "refunded"
)

// Payment statuses
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// Voucher code statuses
const (
	VoucherStatusAvailable = "available"
	VoucherStatusSold      = "sold"
	VoucherStatusDelivered = "delivered"
	VoucherStatusUsed      = "used"
)

// Money request statuses
const (
	MoneyRequestPending  = "pending"
	MoneyRequestApproved = "approved"
	MoneyRequestRejected = "rejected"
)

// User roles
const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// Payment methods and providers
const (
	MethodGateway = "Uddokta Pay"
	MethodWallet  = "Wallet"
	MethodBkash   = "bKash"
	MethodNagad   = "Nagad"

	ProviderGateway = "uddokta_pay"
	ProviderWallet  = "wallet"
	ProviderManual  = "manual"
)
