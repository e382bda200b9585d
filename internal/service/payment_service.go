package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eshop-backend/internal/models"
	"eshop-backend/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentService settles payments against orders: funds, order status and
// product stock move together or not at all.
type PaymentService struct {
	payments  PaymentStore
	users     UserStore
	publisher EventPublisher
	locker    Locker
	logger    *zap.Logger
	txTimeout time.Duration
}

func NewPaymentService(payments PaymentStore, users UserStore, publisher EventPublisher, locker Locker, txTimeout time.Duration) *PaymentService {
	return &PaymentService{
		payments:  payments,
		users:     users,
		publisher: publisher,
		locker:    locker,
		logger:    util.GetLogger(),
		txTimeout: txTimeout,
	}
}

// MakePaymentRequest carries the validated payment input.
type MakePaymentRequest struct {
	OrderID int64           `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
	Mode    string          `json:"mode" binding:"required"`
}

// PaymentResult is a settled payment plus the notification outcome. A failed
// confirmation email never rolls back the payment; it is reported as a
// warning on an otherwise successful result.
type PaymentResult struct {
	Payment             *models.Payment `json:"payment"`
	NotificationSent    bool            `json:"notification_sent"`
	NotificationWarning string          `json:"notification_warning,omitempty"`
}

// MakePayment validates and settles a payment for an order. The settlement
// itself is a single storage transaction; a best-effort distributed lock
// keeps concurrent attempts against the same order from racing to the
// database.
func (s *PaymentService) MakePayment(ctx context.Context, req *MakePaymentRequest) (*PaymentResult, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.MakePayment")
	defer span.End()

	util.PaymentAttemptsTotal.Inc()
	start := time.Now()
	defer func() {
		util.PaymentSettleLatency.Observe(time.Since(start).Seconds())
	}()

	if req.OrderID <= 0 {
		util.PaymentsFailedTotal.WithLabelValues("invalid_input").Inc()
		return nil, fmt.Errorf("invalid order id: %w", models.ErrInvalidInput)
	}

	lockKey := fmt.Sprintf("payment:order:%d", req.OrderID)
	if acquired, err := s.locker.AcquireLock(ctx, lockKey, s.txTimeout); err != nil {
		s.logger.Warn("Payment lock unavailable, relying on row locks", zap.Error(err))
	} else if !acquired {
		util.PaymentsFailedTotal.WithLabelValues("concurrent_attempt").Inc()
		return nil, fmt.Errorf("another payment for order %d is in flight: %w",
			req.OrderID, models.ErrTransientStorage)
	} else {
		defer func() {
			if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey); err != nil {
				s.logger.Warn("Failed to release payment lock", zap.Error(err))
			}
		}()
	}

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()
	payment, err := s.payments.SettlePayment(txCtx, req.OrderID, req.Amount, req.Mode)
	if err != nil {
		util.PaymentsFailedTotal.WithLabelValues(paymentFailureReason(err)).Inc()
		return nil, err
	}

	util.PaymentsSettledTotal.WithLabelValues(payment.Mode).Inc()
	s.logger.Info("Payment settled",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("order_id", payment.OrderID),
		zap.String("mode", payment.Mode),
		zap.String("amount", payment.Amount.String()))

	result := &PaymentResult{Payment: payment}
	result.NotificationSent, result.NotificationWarning = s.notify(ctx, payment)
	return result, nil
}

// notify publishes the order-confirmation event. The payment has already
// committed, so a publish failure only degrades the result to a warning.
func (s *PaymentService) notify(ctx context.Context, payment *models.Payment) (bool, string) {
	email := ""
	user, err := s.users.GetUserByID(ctx, payment.UserID)
	if err != nil {
		s.logger.Warn("Could not resolve payer email for notification", zap.Error(err))
	} else {
		email = user.Email
	}

	event := &models.PaymentCompletedEvent{
		BaseEvent: newBaseEvent(models.EventTypePaymentCompleted),
		OrderID:   payment.OrderID,
		PaymentID: payment.ID,
		UserID:    payment.UserID,
		Email:     email,
		Amount:    payment.Amount,
		Mode:      payment.Mode,
	}

	if err := s.publisher.PublishPaymentCompleted(ctx, event); err != nil {
		util.NotificationsFailedTotal.Inc()
		s.logger.Error("Failed to publish PaymentCompleted event",
			zap.Int64("order_id", payment.OrderID), zap.Error(err))
		return false, fmt.Sprintf("payment settled but confirmation could not be queued: %v", err)
	}

	util.NotificationsPublishedTotal.Inc()
	return true, ""
}

// GetPaymentByOrder retrieves the payment that settled an order.
func (s *PaymentService) GetPaymentByOrder(ctx context.Context, orderID int64) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.GetPaymentByOrder")
	defer span.End()

	return s.payments.GetPaymentByOrderID(ctx, orderID)
}

func paymentFailureReason(err error) string {
	switch {
	case errors.Is(err, models.ErrAmountMismatch):
		return "amount_mismatch"
	case errors.Is(err, models.ErrInvalidPaymentMode):
		return "invalid_mode"
	case errors.Is(err, models.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, models.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrTransientStorage):
		return "storage_error"
	default:
		return "internal"
	}
}
