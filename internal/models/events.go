package models

import "time"

// Event types
const (
	EventTypeOrderCompleted  = "ORDER_COMPLETED"
	EventTypeOrderStockout   = "ORDER_STOCKOUT"
	EventTypeOrderFailed     = "ORDER_FAILED"
	EventTypeOrderRefunded   = "ORDER_REFUNDED"
	EventTypeWalletCredited  = "WALLET_CREDITED"
	EventTypePaymentReceived = "PAYMENT_RECEIVED"
	EventTypePaymentFailed   = "PAYMENT_FAILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCompletedEvent published after codes are assigned and stock decremented
type OrderCompletedEvent struct {
	BaseEvent
	OrderID       string `json:"order_id"`
	UserID        string `json:"user_id,omitempty"`
	VariantID     string `json:"variant_id"`
	Quantity      int    `json:"quantity"`
	TotalAmount   int64  `json:"total_amount"`
	PaymentMethod string `json:"payment_method"`
}

// OrderStockoutEvent published when a paid order cannot be fulfilled for
// lack of available codes; the order is parked in processing for an operator
type OrderStockoutEvent struct {
	BaseEvent
	OrderID   string `json:"order_id"`
	VariantID string `json:"variant_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// OrderFailedEvent published when the gateway reports a failed payment
type OrderFailedEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// OrderRefundedEvent published when an admin refunds an order
type OrderRefundedEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
}

// WalletCreditedEvent published after a top-up or approved money request
type WalletCreditedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Amount int64  `json:"amount"`
	Source string `json:"source"`
}

// PaymentReceivedEvent published when a gateway payment completes
type PaymentReceivedEvent struct {
	BaseEvent
	OrderRef  string `json:"order_ref"`
	InvoiceID string `json:"invoice_id"`
	Amount    int64  `json:"amount"`
}

// PaymentFailedEvent published when a gateway payment fails or is cancelled
type PaymentFailedEvent struct {
	BaseEvent
	OrderRef  string `json:"order_ref"`
	InvoiceID string `json:"invoice_id"`
	Reason    string `json:"reason"`
}
