package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderPlaced      = "ORDER_PLACED"
	EventTypeOrderCancelled   = "ORDER_CANCELLED"
	EventTypePaymentCompleted = "PAYMENT_COMPLETED"
	EventTypeUserRegistered   = "USER_REGISTERED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published when a cart is converted into an order
type OrderPlacedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	UserID      int64           `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderItemData `json:"items"`
}

// OrderCancelledEvent published when a pending order is cancelled
type OrderCancelledEvent struct {
	BaseEvent
	OrderID int64 `json:"order_id"`
	UserID  int64 `json:"user_id"`
}

// PaymentCompletedEvent published after a payment settles. The notification
// worker consumes it to send the order-confirmation email.
type PaymentCompletedEvent struct {
	BaseEvent
	OrderID   int64           `json:"order_id"`
	PaymentID int64           `json:"payment_id"`
	UserID    int64           `json:"user_id"`
	Email     string          `json:"email"`
	Amount    decimal.Decimal `json:"amount"`
	Mode      string          `json:"mode"`
}

// UserRegisteredEvent published after registration; drives the welcome email.
type UserRegisteredEvent struct {
	BaseEvent
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	LineTotal decimal.Decimal `json:"line_total"`
}
