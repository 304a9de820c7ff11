package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ismailopm12/gamesbazar.net/internal/models"
	"github.com/ismailopm12/gamesbazar.net/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing fulfillment domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderCompleted publishes OrderCompleted event
func (ep *EventPublisher) PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	key := fmt.Sprintf("order-%s", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishOrderStockout publishes OrderStockout event
func (ep *EventPublisher) PublishOrderStockout(ctx context.Context, event *models.OrderStockoutEvent) error {
	key := fmt.Sprintf("order-%s", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishOrderFailed publishes OrderFailed event
func (ep *EventPublisher) PublishOrderFailed(ctx context.Context, event *models.OrderFailedEvent) error {
	key := fmt.Sprintf("order-%s", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishOrderRefunded publishes OrderRefunded event
func (ep *EventPublisher) PublishOrderRefunded(ctx context.Context, event *models.OrderRefundedEvent) error {
	key := fmt.Sprintf("order-%s", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishWalletCredited publishes WalletCredited event
func (ep *EventPublisher) PublishWalletCredited(ctx context.Context, event *models.WalletCreditedEvent) error {
	key := fmt.Sprintf("wallet-%s", event.UserID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishPaymentFailed publishes PaymentFailed event
func (ep *EventPublisher) PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	key := fmt.Sprintf("payment-%s", event.OrderRef)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes consumed events to registered callbacks
type EventHandler struct {
	onOrderCompleted func(context.Context, *models.OrderCompletedEvent) error
	onOrderStockout  func(context.Context, *models.OrderStockoutEvent) error
	onWalletCredited func(context.Context, *models.WalletCreditedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnOrderCompleted registers a handler for OrderCompleted events
func (eh *EventHandler) OnOrderCompleted(handler func(context.Context, *models.OrderCompletedEvent) error) {
	eh.onOrderCompleted = handler
}

// OnOrderStockout registers a handler for OrderStockout events
func (eh *EventHandler) OnOrderStockout(handler func(context.Context, *models.OrderStockoutEvent) error) {
	eh.onOrderStockout = handler
}

// OnWalletCredited registers a handler for WalletCredited events
func (eh *EventHandler) OnWalletCredited(handler func(context.Context, *models.WalletCreditedEvent) error) {
	eh.onWalletCredited = handler
}

// HandleMessage routes messages to the appropriate handler
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	logger := util.GetLogger()
	logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeOrderCompleted:
		if eh.onOrderCompleted != nil {
			var event models.OrderCompletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderCompleted event: %w", err)
			}
			return eh.onOrderCompleted(ctx, &event)
		}

	case models.EventTypeOrderStockout:
		if eh.onOrderStockout != nil {
			var event models.OrderStockoutEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderStockout event: %w", err)
			}
			return eh.onOrderStockout(ctx, &event)
		}

	case models.EventTypeWalletCredited:
		if eh.onWalletCredited != nil {
			var event models.WalletCreditedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal WalletCredited event: %w", err)
			}
			return eh.onWalletCredited(ctx, &event)
		}

	default:
		logger.Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
