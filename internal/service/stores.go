// Package service holds the cart, order, payment, wallet, catalog and user
// engines. Persistence is injected through per-entity store interfaces; the
// sqlx implementation lives in internal/store. Operations with multi-entity
// invariants (order placement, payment settlement) are exposed by the stores
// as single atomic transactions, and the services re-validate inputs up front
// so callers get precise rejections without touching a transaction.
package service

import (
	"context"
	"time"

	"eshop-backend/internal/models"

	"github.com/shopspring/decimal"
)

// UserStore is the user/wallet persistence capability.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UserExists(ctx context.Context, username string) (bool, error)
	CreditWallet(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error)
}

// ProductStore is the catalog persistence capability.
type ProductStore interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	ListProductsByCategory(ctx context.Context, categoryID int64) ([]models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id, merchantID int64) error
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, category *models.Category) error
}

// CartStore is the cart persistence capability. Mutations validate stock
// under a product row lock and recompute the cart total atomically.
type CartStore interface {
	GetCartByCustomerID(ctx context.Context, customerID int64) (*models.Cart, error)
	AddCartItem(ctx context.Context, customerID, productID int64, quantity int) (*models.Cart, error)
	UpdateCartItemQuantity(ctx context.Context, customerID, productID int64, quantity int) (*models.Cart, error)
	RemoveCartItem(ctx context.Context, customerID, productID int64) error
}

// OrderStore is the order persistence capability. CreateOrderFromCart and
// DeleteOrder are atomic.
type OrderStore interface {
	CreateOrderFromCart(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, orderID, userID int64) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error)
	DeleteOrder(ctx context.Context, orderID, userID int64) error
}

// PaymentStore is the settlement capability. SettlePayment applies the wallet
// debit, payment record, order transition and stock decrement as one unit.
type PaymentStore interface {
	SettlePayment(ctx context.Context, orderID int64, amount decimal.Decimal, mode string) (*models.Payment, error)
	GetPaymentByOrderID(ctx context.Context, orderID int64) (*models.Payment, error)
}

// EventPublisher publishes domain events for the notification worker.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
	PublishPaymentCompleted(ctx context.Context, event *models.PaymentCompletedEvent) error
	PublishUserRegistered(ctx context.Context, event *models.UserRegisteredEvent) error
}

// CartCache is the read cache for cart details. Cache failures are soft:
// callers log and fall through to the store.
type CartCache interface {
	GetCart(ctx context.Context, customerID int64) (*models.Cart, error)
	SetCart(ctx context.Context, customerID int64, cart *models.Cart) error
	DeleteCart(ctx context.Context, customerID int64) error
}

// Locker serializes settlement attempts per order.
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}
