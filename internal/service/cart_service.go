package service

import (
	"context"
	"errors"
	"fmt"

	"eshop-backend/internal/models"
	"eshop-backend/internal/redisclient"
	"eshop-backend/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CartService owns the mutable pre-order state: one cart per customer.
type CartService struct {
	carts    CartStore
	products ProductStore
	cache    CartCache
	logger   *zap.Logger
}

func NewCartService(carts CartStore, products ProductStore, cache CartCache) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		cache:    cache,
		logger:   util.GetLogger(),
	}
}

// AddItem adds quantity of a product to the customer's cart and returns the
// recomputed cart total. The cart is created lazily; an existing line for the
// same product grows cumulatively.
func (s *CartService) AddItem(ctx context.Context, customerID, productID int64, quantity int) (decimal.Decimal, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	if customerID <= 0 || productID <= 0 {
		return decimal.Zero, fmt.Errorf("customer and product ids must be positive: %w", models.ErrInvalidInput)
	}
	if quantity < 1 {
		return decimal.Zero, fmt.Errorf("quantity must be at least 1: %w", models.ErrInvalidInput)
	}

	cart, err := s.carts.AddCartItem(ctx, customerID, productID, quantity)
	if err != nil {
		util.CartMutationsFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return decimal.Zero, err
	}

	util.CartItemsAddedTotal.Inc()
	s.invalidateCache(ctx, customerID)

	s.logger.Info("Item added to cart",
		zap.Int64("customer_id", customerID),
		zap.Int64("product_id", productID),
		zap.Int("quantity", quantity),
		zap.String("total_price", cart.TotalPrice.String()))
	return cart.TotalPrice, nil
}

// UpdateQuantity overwrites the quantity of an existing cart line and returns
// the recomputed cart total.
func (s *CartService) UpdateQuantity(ctx context.Context, customerID, productID int64, quantity int) (decimal.Decimal, error) {
	ctx, span := util.StartSpan(ctx, "CartService.UpdateQuantity")
	defer span.End()

	if quantity < 1 {
		return decimal.Zero, fmt.Errorf("quantity must be at least 1: %w", models.ErrInvalidInput)
	}

	cart, err := s.carts.UpdateCartItemQuantity(ctx, customerID, productID, quantity)
	if err != nil {
		util.CartMutationsFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return decimal.Zero, err
	}

	s.invalidateCache(ctx, customerID)
	return cart.TotalPrice, nil
}

// RemoveItem deletes the line for productID from the customer's cart.
func (s *CartService) RemoveItem(ctx context.Context, customerID, productID int64) error {
	ctx, span := util.StartSpan(ctx, "CartService.RemoveItem")
	defer span.End()

	if err := s.carts.RemoveCartItem(ctx, customerID, productID); err != nil {
		util.CartMutationsFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return err
	}

	s.invalidateCache(ctx, customerID)
	return nil
}

// GetDetails returns the cart with its items and a freshly recomputed total.
// The stored total is never trusted.
func (s *CartService) GetDetails(ctx context.Context, customerID int64) (*models.Cart, error) {
	ctx, span := util.StartSpan(ctx, "CartService.GetDetails")
	defer span.End()

	if cached, err := s.cache.GetCart(ctx, customerID); err == nil {
		cached.RecomputeTotal()
		return cached, nil
	} else if !errors.Is(err, redisclient.ErrCacheMiss) {
		s.logger.Warn("Cart cache read failed", zap.Error(err))
	}

	cart, err := s.carts.GetCartByCustomerID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	cart.RecomputeTotal()

	if err := s.cache.SetCart(ctx, customerID, cart); err != nil {
		s.logger.Warn("Cart cache write failed", zap.Error(err))
	}
	return cart, nil
}

// GetTotal returns the sum of line totals over the cart's items, using the
// price captured when each item was added. An absent or empty cart is an
// error, not a zero total.
func (s *CartService) GetTotal(ctx context.Context, customerID int64) (decimal.Decimal, error) {
	ctx, span := util.StartSpan(ctx, "CartService.GetTotal")
	defer span.End()

	cart, err := s.carts.GetCartByCustomerID(ctx, customerID)
	if errors.Is(err, models.ErrNotFound) {
		return decimal.Zero, fmt.Errorf("nothing in the cart: %w", models.ErrEmptyCart)
	}
	if err != nil {
		return decimal.Zero, err
	}
	if len(cart.Items) == 0 {
		return decimal.Zero, fmt.Errorf("nothing in the cart: %w", models.ErrEmptyCart)
	}

	cart.RecomputeTotal()
	return cart.TotalPrice, nil
}

func (s *CartService) invalidateCache(ctx context.Context, customerID int64) {
	if err := s.cache.DeleteCart(ctx, customerID); err != nil {
		s.logger.Warn("Cart cache invalidation failed",
			zap.Int64("customer_id", customerID), zap.Error(err))
	}
}

// failureReason buckets a domain error for metrics labels.
func failureReason(err error) string {
	switch {
	case errors.Is(err, models.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, models.ErrTransientStorage):
		return "storage_error"
	default:
		return "internal"
	}
}
