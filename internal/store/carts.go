package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"eshop-backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// GetCartByCustomerID retrieves the customer's cart with its active
// (un-ordered) items loaded.
func (s *Store) GetCartByCustomerID(ctx context.Context, customerID int64) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.GetContext(ctx, &cart,
		"SELECT * FROM carts WHERE customer_id = $1", customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cart for customer %d: %w", customerID, models.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr(err)
	}

	if err := s.db.SelectContext(ctx, &cart.Items,
		"SELECT * FROM cart_items WHERE cart_id = $1 AND NOT is_ordered ORDER BY id", cart.ID); err != nil {
		return nil, storageErr(err)
	}
	return &cart, nil
}

// AddCartItem adds quantity of a product to the customer's cart, creating the
// cart lazily. If a line for the product already exists the quantity grows
// cumulatively. The product row is locked while the cumulative quantity is
// checked against current stock, so concurrent cart edits cannot both pass.
// The line price is captured from the product's current price on first add.
func (s *Store) AddCartItem(ctx context.Context, customerID, productID int64, quantity int) (*models.Cart, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageErr(err)
	}
	defer tx.Rollback()

	product, err := lockProduct(ctx, tx, productID)
	if err != nil {
		return nil, err
	}

	cartID, err := getOrCreateCart(ctx, tx, customerID)
	if err != nil {
		return nil, err
	}

	var existing models.CartItem
	err = tx.GetContext(ctx, &existing,
		"SELECT * FROM cart_items WHERE cart_id = $1 AND product_id = $2 AND NOT is_ordered",
		cartID, productID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if quantity > product.StockQuantity {
			return nil, fmt.Errorf("only %d units of %q available: %w",
				product.StockQuantity, product.Name, models.ErrInsufficientStock)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO cart_items (cart_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4)`,
			cartID, productID, quantity, product.Price)
		if err != nil {
			return nil, storageErr(err)
		}
	case err != nil:
		return nil, storageErr(err)
	default:
		newQuantity := existing.Quantity + quantity
		if newQuantity > product.StockQuantity {
			return nil, fmt.Errorf("only %d units of %q available: %w",
				product.StockQuantity, product.Name, models.ErrInsufficientStock)
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE cart_items SET quantity = $1 WHERE id = $2", newQuantity, existing.ID)
		if err != nil {
			return nil, storageErr(err)
		}
	}

	cart, err := refreshCartTotal(ctx, tx, cartID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr(err)
	}
	return cart, nil
}

// UpdateCartItemQuantity overwrites the quantity of an existing line after
// validating it against current stock under a product row lock.
func (s *Store) UpdateCartItemQuantity(ctx context.Context, customerID, productID int64, quantity int) (*models.Cart, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageErr(err)
	}
	defer tx.Rollback()

	cartID, err := getCartID(ctx, tx, customerID)
	if err != nil {
		return nil, err
	}

	var item models.CartItem
	err = tx.GetContext(ctx, &item,
		"SELECT * FROM cart_items WHERE cart_id = $1 AND product_id = $2 AND NOT is_ordered",
		cartID, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d not in cart: %w", productID, models.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr(err)
	}

	product, err := lockProduct(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	if quantity > product.StockQuantity {
		return nil, fmt.Errorf("only %d units of %q available: %w",
			product.StockQuantity, product.Name, models.ErrInsufficientStock)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE cart_items SET quantity = $1 WHERE id = $2", quantity, item.ID)
	if err != nil {
		return nil, storageErr(err)
	}

	cart, err := refreshCartTotal(ctx, tx, cartID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr(err)
	}
	return cart, nil
}

// RemoveCartItem deletes the line for productID from the customer's cart.
func (s *Store) RemoveCartItem(ctx context.Context, customerID, productID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return storageErr(err)
	}
	defer tx.Rollback()

	cartID, err := getCartID(ctx, tx, customerID)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		"DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2 AND NOT is_ordered",
		cartID, productID)
	if err != nil {
		return storageErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("product %d not in cart: %w", productID, models.ErrNotFound)
	}

	if _, err := refreshCartTotal(ctx, tx, cartID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storageErr(err)
	}
	return nil
}

func lockProduct(ctx context.Context, tx *sqlx.Tx, productID int64) (*models.Product, error) {
	var product models.Product
	err := tx.GetContext(ctx, &product,
		"SELECT * FROM products WHERE id = $1 FOR UPDATE", productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", productID, models.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return &product, nil
}

func getCartID(ctx context.Context, tx *sqlx.Tx, customerID int64) (int64, error) {
	var cartID int64
	err := tx.GetContext(ctx, &cartID,
		"SELECT id FROM carts WHERE customer_id = $1", customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("cart for customer %d: %w", customerID, models.ErrNotFound)
	}
	if err != nil {
		return 0, storageErr(err)
	}
	return cartID, nil
}

func getOrCreateCart(ctx context.Context, tx *sqlx.Tx, customerID int64) (int64, error) {
	var cartID int64
	err := tx.GetContext(ctx, &cartID, `
		INSERT INTO carts (customer_id) VALUES ($1)
		ON CONFLICT (customer_id) DO UPDATE SET updated_at = NOW()
		RETURNING id`, customerID)
	if err != nil {
		return 0, storageErr(err)
	}
	return cartID, nil
}

// refreshCartTotal recomputes the cart total from its active items, persists
// it, and returns the cart with items loaded.
func refreshCartTotal(ctx context.Context, tx *sqlx.Tx, cartID int64) (*models.Cart, error) {
	var cart models.Cart
	if err := tx.GetContext(ctx, &cart,
		"SELECT * FROM carts WHERE id = $1", cartID); err != nil {
		return nil, storageErr(err)
	}

	if err := tx.SelectContext(ctx, &cart.Items,
		"SELECT * FROM cart_items WHERE cart_id = $1 AND NOT is_ordered ORDER BY id", cartID); err != nil {
		return nil, storageErr(err)
	}

	cart.RecomputeTotal()
	_, err := tx.ExecContext(ctx,
		"UPDATE carts SET total_price = $1, updated_at = NOW() WHERE id = $2",
		cart.TotalPrice, cartID)
	if err != nil {
		return nil, storageErr(err)
	}
	return &cart, nil
}
