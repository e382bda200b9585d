package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"eshop-backend/internal/models"

	"github.com/shopspring/decimal"
)

// CreateOrderFromCart converts the customer's un-ordered cart items into an
// immutable order snapshot in one transaction: the cart row is locked, every
// active line becomes an order item with its captured price and line total,
// the lines are marked ordered and then cleared, and the cart total is reset.
// If any step fails nothing is visible afterwards.
func (s *Store) CreateOrderFromCart(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return storageErr(err)
	}
	defer tx.Rollback()

	var cartID int64
	err = tx.GetContext(ctx, &cartID,
		"SELECT id FROM carts WHERE customer_id = $1 FOR UPDATE", order.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("no items in the cart: %w", models.ErrEmptyCart)
	}
	if err != nil {
		return storageErr(err)
	}

	var cartItems []models.CartItem
	if err := tx.SelectContext(ctx, &cartItems,
		"SELECT * FROM cart_items WHERE cart_id = $1 AND NOT is_ordered ORDER BY id", cartID); err != nil {
		return storageErr(err)
	}
	if len(cartItems) == 0 {
		return fmt.Errorf("no items in the cart: %w", models.ErrEmptyCart)
	}

	order.Status = models.OrderStatusPendingPayment
	order.Items = make([]models.OrderItem, 0, len(cartItems))
	order.TotalAmount = decimal.Zero
	for _, ci := range cartItems {
		item := models.OrderItem{
			ProductID: ci.ProductID,
			Quantity:  ci.Quantity,
			Price:     ci.Price,
			LineTotal: ci.LineTotal(),
		}
		order.Items = append(order.Items, item)
		order.TotalAmount = order.TotalAmount.Add(item.LineTotal)
	}

	err = tx.GetContext(ctx, order, `
		INSERT INTO orders (user_id, total_amount, status, shipping_address, pin_code, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, order_date, updated_at`,
		order.UserID, order.TotalAmount, order.Status,
		order.ShippingAddress, order.PinCode, order.IdempotencyKey)
	if err != nil {
		return storageErr(err)
	}

	for i := range order.Items {
		order.Items[i].OrderID = order.ID
		err = tx.GetContext(ctx, &order.Items[i].ID, `
			INSERT INTO order_items (order_id, product_id, quantity, price, line_total)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			order.ID, order.Items[i].ProductID, order.Items[i].Quantity,
			order.Items[i].Price, order.Items[i].LineTotal)
		if err != nil {
			return storageErr(err)
		}
	}

	// The ordered lines are superseded by the order snapshot; clearing them
	// leaves the cart ready for future use.
	if _, err := tx.ExecContext(ctx,
		"UPDATE cart_items SET is_ordered = TRUE WHERE cart_id = $1 AND NOT is_ordered", cartID); err != nil {
		return storageErr(err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM cart_items WHERE cart_id = $1", cartID); err != nil {
		return storageErr(err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE carts SET total_price = 0, updated_at = NOW() WHERE id = $1", cartID); err != nil {
		return storageErr(err)
	}

	return storageErr(tx.Commit())
}

// GetOrderByID retrieves an order with its items only if it belongs to
// userID. A foreign order is reported as not found, never as forbidden.
func (s *Store) GetOrderByID(ctx context.Context, orderID, userID int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE id = $1 AND user_id = $2", orderID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", orderID, models.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr(err)
	}

	if err := s.db.SelectContext(ctx, &order.Items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID); err != nil {
		return nil, storageErr(err)
	}
	return &order, nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key, or nil if
// no order carries the key.
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE idempotency_key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err)
	}

	if err := s.db.SelectContext(ctx, &order.Items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", order.ID); err != nil {
		return nil, storageErr(err)
	}
	return &order, nil
}

// GetOrdersByUserID retrieves orders for a user, newest first.
func (s *Store) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY order_date DESC", userID)
	return orders, storageErr(err)
}

// DeleteOrder cancels an order owned by userID. Only orders still awaiting
// payment can be cancelled; a paid order needs a separate refund flow.
func (s *Store) DeleteOrder(ctx context.Context, orderID, userID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return storageErr(err)
	}
	defer tx.Rollback()

	var status string
	err = tx.GetContext(ctx, &status,
		"SELECT status FROM orders WHERE id = $1 AND user_id = $2 FOR UPDATE", orderID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("order %d: %w", orderID, models.ErrNotFound)
	}
	if err != nil {
		return storageErr(err)
	}

	if status != models.OrderStatusPendingPayment {
		return fmt.Errorf("order %d is %s: %w", orderID, status, models.ErrOrderNotCancellable)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM order_items WHERE order_id = $1", orderID); err != nil {
		return storageErr(err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM orders WHERE id = $1", orderID); err != nil {
		return storageErr(err)
	}

	return storageErr(tx.Commit())
}
