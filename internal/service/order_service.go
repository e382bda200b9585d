package service

import (
	"context"
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"

	"eshop-backend/internal/models"
	"eshop-backend/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var pinCodeRe = regexp.MustCompile(`^[0-9]{6}$`)

const (
	minAddressLen = 10
	maxAddressLen = 200
)

// OrderService converts carts into immutable orders.
type OrderService struct {
	orders    OrderStore
	cache     CartCache
	publisher EventPublisher
	logger    *zap.Logger
	txTimeout time.Duration
}

func NewOrderService(orders OrderStore, cache CartCache, publisher EventPublisher, txTimeout time.Duration) *OrderService {
	return &OrderService{
		orders:    orders,
		cache:     cache,
		publisher: publisher,
		logger:    util.GetLogger(),
		txTimeout: txTimeout,
	}
}

// PlaceOrderRequest carries the validated order-placement input.
type PlaceOrderRequest struct {
	UserID          int64  `json:"user_id"`
	ShippingAddress string `json:"shipping_address" binding:"required"`
	PinCode         string `json:"pin_code" binding:"required"`
	IdempotencyKey  string `json:"idempotency_key,omitempty"`
}

// PlaceOrder snapshots the customer's un-ordered cart items into a new order
// with status PendingPayment and clears the cart, all in one atomic unit.
// A repeated idempotency key returns the previously created order.
func (s *OrderService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder")
	defer span.End()

	if err := validatePlaceOrder(req); err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_input").Inc()
		return nil, err
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.New().String()
	} else {
		existing, err := s.orders.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			s.logger.Info("Duplicate order request detected",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.Int64("order_id", existing.ID))
			return existing, nil
		}
	}

	order := &models.Order{
		UserID:          req.UserID,
		ShippingAddress: req.ShippingAddress,
		PinCode:         req.PinCode,
		IdempotencyKey:  req.IdempotencyKey,
	}

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()
	if err := s.orders.CreateOrderFromCart(txCtx, order); err != nil {
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	util.OrdersPlacedTotal.Inc()
	s.logger.Info("Order placed",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", order.UserID),
		zap.String("total_amount", order.TotalAmount.String()))

	// The cart was consumed inside the transaction.
	if err := s.cache.DeleteCart(ctx, req.UserID); err != nil {
		s.logger.Warn("Cart cache invalidation failed", zap.Error(err))
	}

	event := &models.OrderPlacedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderPlaced),
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Items:       orderItemData(order.Items),
	}
	if err := s.publisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event", zap.Error(err))
	}

	return order, nil
}

// GetOrder returns the order only if it belongs to userID; a foreign order is
// indistinguishable from a missing one.
func (s *OrderService) GetOrder(ctx context.Context, orderID, userID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	return s.orders.GetOrderByID(ctx, orderID, userID)
}

// GetOrdersByUser returns the user's orders. No orders at all is reported as
// not found rather than an empty list.
func (s *OrderService) GetOrdersByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrdersByUser")
	defer span.End()

	orders, err := s.orders.GetOrdersByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, fmt.Errorf("no orders for user %d: %w", userID, models.ErrNotFound)
	}
	return orders, nil
}

// DeleteOrder cancels an order still awaiting payment.
func (s *OrderService) DeleteOrder(ctx context.Context, orderID, userID int64) error {
	ctx, span := util.StartSpan(ctx, "OrderService.DeleteOrder")
	defer span.End()

	if err := s.orders.DeleteOrder(ctx, orderID, userID); err != nil {
		return err
	}

	util.OrdersCancelledTotal.Inc()
	s.logger.Info("Order cancelled",
		zap.Int64("order_id", orderID), zap.Int64("user_id", userID))

	event := &models.OrderCancelledEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderCancelled),
		OrderID:   orderID,
		UserID:    userID,
	}
	if err := s.publisher.PublishOrderCancelled(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
	}
	return nil
}

func validatePlaceOrder(req *PlaceOrderRequest) error {
	if req.UserID <= 0 {
		return fmt.Errorf("invalid user id: %w", models.ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(req.ShippingAddress); n < minAddressLen || n > maxAddressLen {
		return fmt.Errorf("shipping address must be %d-%d characters: %w",
			minAddressLen, maxAddressLen, models.ErrInvalidInput)
	}
	if !pinCodeRe.MatchString(req.PinCode) {
		return fmt.Errorf("pin code must be exactly 6 digits: %w", models.ErrInvalidInput)
	}
	return nil
}

func orderItemData(items []models.OrderItem) []models.OrderItemData {
	data := make([]models.OrderItemData, 0, len(items))
	for _, item := range items {
		data = append(data, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			LineTotal: item.LineTotal,
		})
	}
	return data
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
