package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a registered account. WalletBalance is the stored-value
// balance usable as a payment mode.
type User struct {
	ID            int64           `db:"id" json:"id"`
	Username      string          `db:"username" json:"username"`
	Email         string          `db:"email" json:"email"`
	PasswordHash  string          `db:"password_hash" json:"-"`
	Role          string          `db:"role" json:"role"`
	WalletBalance decimal.Decimal `db:"wallet_balance" json:"wallet_balance"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// User roles
const (
	RoleCustomer = "customer"
	RoleMerchant = "merchant"
)

// Category groups products in the catalog
type Category struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Product represents a catalog entry owned by a merchant
type Product struct {
	ID            int64           `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	Description   string          `db:"description" json:"description,omitempty"`
	Price         decimal.Decimal `db:"price" json:"price"`
	StockQuantity int             `db:"stock_quantity" json:"stock_quantity"`
	CategoryID    int64           `db:"category_id" json:"category_id"`
	MerchantID    int64           `db:"merchant_id" json:"merchant_id"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// Cart is the mutable pre-order container, one per customer. TotalPrice is
// derived from the items and recomputed on every read, never trusted from
// storage.
type Cart struct {
	ID         int64           `db:"id" json:"id"`
	CustomerID int64           `db:"customer_id" json:"customer_id"`
	TotalPrice decimal.Decimal `db:"total_price" json:"total_price"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
	Items      []CartItem      `db:"-" json:"items"`
}

// RecomputeTotal derives TotalPrice from the current items.
func (c *Cart) RecomputeTotal() {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.LineTotal())
	}
	c.TotalPrice = total
}

// CartItem is one candidate purchase line. Price is captured from the product
// at add time. An item with IsOrdered=true has been consumed by an order and
// is no longer part of the active cart view.
type CartItem struct {
	ID        int64           `db:"id" json:"id"`
	CartID    int64           `db:"cart_id" json:"cart_id"`
	ProductID int64           `db:"product_id" json:"product_id"`
	Quantity  int             `db:"quantity" json:"quantity"`
	Price     decimal.Decimal `db:"price" json:"price"`
	IsOrdered bool            `db:"is_ordered" json:"is_ordered"`
}

// LineTotal returns price x quantity for this line.
func (ci CartItem) LineTotal() decimal.Decimal {
	return ci.Price.Mul(decimal.NewFromInt(int64(ci.Quantity)))
}

// Order is an immutable snapshot of purchased lines. Later cart or product
// changes never alter TotalAmount or item prices.
type Order struct {
	ID              int64           `db:"id" json:"id"`
	UserID          int64           `db:"user_id" json:"user_id"`
	TotalAmount     decimal.Decimal `db:"total_amount" json:"total_amount"`
	Status          string          `db:"status" json:"status"`
	ShippingAddress string          `db:"shipping_address" json:"shipping_address"`
	PinCode         string          `db:"pin_code" json:"pin_code"`
	IdempotencyKey  string          `db:"idempotency_key" json:"idempotency_key,omitempty"`
	OrderDate       time.Time       `db:"order_date" json:"order_date"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
	Items           []OrderItem     `db:"-" json:"items"`
}

// OrderItem carries quantity, price and line total frozen at order creation.
type OrderItem struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   int64           `db:"order_id" json:"order_id"`
	ProductID int64           `db:"product_id" json:"product_id"`
	Quantity  int             `db:"quantity" json:"quantity"`
	Price     decimal.Decimal `db:"price" json:"price"`
	LineTotal decimal.Decimal `db:"line_total" json:"line_total"`
}

// Payment settles exactly one order.
type Payment struct {
	ID          int64           `db:"id" json:"id"`
	OrderID     int64           `db:"order_id" json:"order_id"`
	UserID      int64           `db:"user_id" json:"user_id"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Mode        string          `db:"mode" json:"mode"`
	Status      string          `db:"status" json:"status"`
	PaymentDate time.Time       `db:"payment_date" json:"payment_date"`
}

// Order statuses
const (
	OrderStatusPendingPayment = "PENDING_PAYMENT"
	OrderStatusPaid           = "PAID"
	OrderStatusCancelled      = "CANCELLED"
)

// Payment modes
const (
	PaymentModeWallet     = "Wallet"
	PaymentModeCreditCard = "CreditCard"
	PaymentModeCOD        = "COD"
)

// Payment statuses
const (
	PaymentStatusCompleted = "COMPLETED"
)

// ValidPaymentMode reports whether mode is one of the accepted payment modes.
func ValidPaymentMode(mode string) bool {
	switch mode {
	case PaymentModeWallet, PaymentModeCreditCard, PaymentModeCOD:
		return true
	}
	return false
}
