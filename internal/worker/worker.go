package worker

import (
	"context"
	"fmt"

	"eshop-backend/internal/broker"
	"eshop-backend/internal/mailer"
	"eshop-backend/internal/models"
	"eshop-backend/internal/util"

	"go.uber.org/zap"
)

// NotificationWorker consumes domain events and sends the corresponding
// emails. Delivery happens after the triggering operation has committed, so
// a failure here is logged and counted but never affects stored state.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	mailer       mailer.Mailer
	logger       *zap.Logger
}

// NewNotificationWorker creates a worker wired to the payment-confirmation
// and welcome emails.
func NewNotificationWorker(consumer *broker.Consumer, m mailer.Mailer) *NotificationWorker {
	w := &NotificationWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		mailer:       m,
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnPaymentCompleted(w.handlePaymentCompleted)
	w.eventHandler.OnUserRegistered(w.handleUserRegistered)
	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}

func (w *NotificationWorker) handlePaymentCompleted(ctx context.Context, event *models.PaymentCompletedEvent) error {
	if event.Email == "" {
		w.logger.Warn("PaymentCompleted event without email, skipping",
			zap.Int64("order_id", event.OrderID))
		return nil
	}

	subject := "Payment Successful - EShop"
	body := fmt.Sprintf(
		"<h1>Payment Successful!</h1>"+
			"<p>Your order with Order ID: %d has been successfully processed.</p>"+
			"<p>Amount paid: %s (%s).</p>"+
			"<p>Your ordered items will be delivered soon. Thank you for shopping with us!</p>",
		event.OrderID, event.Amount, event.Mode)

	if err := w.mailer.Send(ctx, event.Email, subject, body); err != nil {
		util.EmailsFailedTotal.WithLabelValues("payment_confirmation").Inc()
		w.logger.Error("Failed to send payment confirmation",
			zap.Int64("order_id", event.OrderID), zap.Error(err))
		// Do not return the error: the payment is settled and a redelivered
		// event would double-send on the next success.
		return nil
	}

	util.EmailsSentTotal.WithLabelValues("payment_confirmation").Inc()
	return nil
}

func (w *NotificationWorker) handleUserRegistered(ctx context.Context, event *models.UserRegisteredEvent) error {
	subject := "Registration Successful on EShop"
	body := "<h1>Registration Successful!</h1>" +
		"<p>Welcome to EShop! Your registration has been successfully completed.</p>"

	if err := w.mailer.Send(ctx, event.Email, subject, body); err != nil {
		util.EmailsFailedTotal.WithLabelValues("welcome").Inc()
		w.logger.Error("Failed to send welcome email",
			zap.Int64("user_id", event.UserID), zap.Error(err))
		return nil
	}

	util.EmailsSentTotal.WithLabelValues("welcome").Inc()
	return nil
}
