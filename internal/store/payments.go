package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"eshop-backend/internal/models"

	"github.com/shopspring/decimal"
)

// SettlePayment runs the whole settlement as one transaction: it locks the
// order, its owner and every referenced product row, validates the amount,
// mode, wallet balance and stock sufficiency for all items up front, and only
// then debits the wallet, records the payment, marks the order paid and
// decrements stock. Everything commits together or not at all, so a stock
// shortfall can never surface after money has moved. Product rows are locked
// in ascending id order to keep concurrent settlements deadlock-free.
func (s *Store) SettlePayment(ctx context.Context, orderID int64, amount decimal.Decimal, mode string) (*models.Payment, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageErr(err)
	}
	defer tx.Rollback()

	var order models.Order
	err = tx.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE id = $1 FOR UPDATE", orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", orderID, models.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr(err)
	}

	var user models.User
	err = tx.GetContext(ctx, &user,
		"SELECT * FROM users WHERE id = $1 FOR UPDATE", order.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", order.UserID, models.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr(err)
	}

	if !amount.Equal(order.TotalAmount) {
		return nil, fmt.Errorf("expected %s, got %s: %w",
			order.TotalAmount, amount, models.ErrAmountMismatch)
	}
	if !models.ValidPaymentMode(mode) {
		return nil, fmt.Errorf("%q is not an accepted payment mode: %w",
			mode, models.ErrInvalidPaymentMode)
	}
	if order.Status != models.OrderStatusPendingPayment {
		return nil, fmt.Errorf("order %d is %s: %w", orderID, order.Status, models.ErrOrderNotPayable)
	}

	if err := tx.SelectContext(ctx, &order.Items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY product_id", orderID); err != nil {
		return nil, storageErr(err)
	}

	// Validate stock for every item before any mutation.
	quantities := make(map[int64]int, len(order.Items))
	for _, item := range order.Items {
		quantities[item.ProductID] += item.Quantity
	}
	for _, item := range order.Items {
		product, err := lockProduct(ctx, tx, item.ProductID)
		if err != nil {
			return nil, err
		}
		if product.StockQuantity < quantities[item.ProductID] {
			return nil, fmt.Errorf("not enough stock for product %q: %w",
				product.Name, models.ErrInsufficientStock)
		}
	}

	if mode == models.PaymentModeWallet {
		if user.WalletBalance.LessThan(order.TotalAmount) {
			return nil, fmt.Errorf("balance %s is below order total %s: %w",
				user.WalletBalance, order.TotalAmount, models.ErrInsufficientFunds)
		}
		newBalance := user.WalletBalance.Sub(order.TotalAmount)
		if _, err := tx.ExecContext(ctx,
			"UPDATE users SET wallet_balance = $1 WHERE id = $2",
			newBalance, user.ID); err != nil {
			return nil, storageErr(err)
		}
	}
	// CreditCard and COD settle externally; no funds movement here.

	payment := &models.Payment{
		OrderID: orderID,
		UserID:  user.ID,
		Amount:  order.TotalAmount,
		Mode:    mode,
		Status:  models.PaymentStatusCompleted,
	}
	err = tx.GetContext(ctx, payment, `
		INSERT INTO payments (order_id, user_id, amount, mode, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, payment_date`,
		payment.OrderID, payment.UserID, payment.Amount, payment.Mode, payment.Status)
	if err != nil {
		return nil, storageErr(err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		models.OrderStatusPaid, orderID); err != nil {
		return nil, storageErr(err)
	}

	for productID, quantity := range quantities {
		if _, err := tx.ExecContext(ctx, `
			UPDATE products SET stock_quantity = stock_quantity - $1, updated_at = NOW()
			WHERE id = $2`, quantity, productID); err != nil {
			return nil, storageErr(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr(err)
	}
	return payment, nil
}

// GetPaymentByOrderID retrieves the payment that settled an order.
func (s *Store) GetPaymentByOrderID(ctx context.Context, orderID int64) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment,
		"SELECT * FROM payments WHERE order_id = $1 ORDER BY payment_date DESC LIMIT 1", orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment for order %d: %w", orderID, models.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return &payment, nil
}
