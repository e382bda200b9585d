package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"eshop-backend/internal/models"
	"eshop-backend/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderPlaced publishes an OrderPlaced event
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishOrderCancelled publishes an OrderCancelled event
func (ep *EventPublisher) PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishPaymentCompleted publishes a PaymentCompleted event
func (ep *EventPublisher) PublishPaymentCompleted(ctx context.Context, event *models.PaymentCompletedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishUserRegistered publishes a UserRegistered event
func (ep *EventPublisher) PublishUserRegistered(ctx context.Context, event *models.UserRegisteredEvent) error {
	key := fmt.Sprintf("user-%d", event.UserID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes consumed events to registered callbacks
type EventHandler struct {
	onPaymentCompleted func(context.Context, *models.PaymentCompletedEvent) error
	onUserRegistered   func(context.Context, *models.UserRegisteredEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnPaymentCompleted registers a handler for PaymentCompleted events
func (eh *EventHandler) OnPaymentCompleted(handler func(context.Context, *models.PaymentCompletedEvent) error) {
	eh.onPaymentCompleted = handler
}

// OnUserRegistered registers a handler for UserRegistered events
func (eh *EventHandler) OnUserRegistered(handler func(context.Context, *models.UserRegisteredEvent) error) {
	eh.onUserRegistered = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypePaymentCompleted:
		if eh.onPaymentCompleted != nil {
			var event models.PaymentCompletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PaymentCompleted event: %w", err)
			}
			return eh.onPaymentCompleted(ctx, &event)
		}

	case models.EventTypeUserRegistered:
		if eh.onUserRegistered != nil {
			var event models.UserRegisteredEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal UserRegistered event: %w", err)
			}
			return eh.onUserRegistered(ctx, &event)
		}

	default:
		util.GetLogger().Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
