package events

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/rentora/service-booking/internal/platform/domain"
	"github.com/rentora/service-booking/internal/platform/events"
	"github.com/rentora/service-booking/internal/platform/kafka"
)

// PaymentEventHandler applies payment outcomes to bookings.
type PaymentEventHandler interface {
	HandlePaymentCaptured(ctx context.Context, evt events.PaymentCapturedEvent) error
	HandleRefundCompleted(ctx context.Context, evt events.RefundResultEvent) error
	HandleRefundFailed(ctx context.Context, evt events.RefundResultEvent) error
}

// PaymentEventConsumer listens to payment events and updates payment and refund status.
type PaymentEventConsumer struct {
	consumer *kafka.Consumer
	handler  PaymentEventHandler
	logger   *zap.Logger
}

// NewPaymentEventConsumer creates a new PaymentEventConsumer.
func NewPaymentEventConsumer(
	brokers []string,
	groupID string,
	handler PaymentEventHandler,
	logger *zap.Logger,
) *PaymentEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, events.TopicPaymentEvents, logger)
	return &PaymentEventConsumer{
		consumer: consumer,
		handler:  handler,
		logger:   logger,
	}
}

// Start begins consuming payment events. This blocks until the context is cancelled.
func (c *PaymentEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *PaymentEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *PaymentEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from payment topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case events.PaymentCaptured:
		var evt events.PaymentCapturedEvent
		if !c.parse(cloudEvent, &evt) {
			return nil
		}
		return c.outcome(cloudEvent.Type, evt.BookingID.String(), c.handler.HandlePaymentCaptured(ctx, evt))
	case events.PaymentRefundCompleted:
		var evt events.RefundResultEvent
		if !c.parse(cloudEvent, &evt) {
			return nil
		}
		return c.outcome(cloudEvent.Type, evt.BookingID.String(), c.handler.HandleRefundCompleted(ctx, evt))
	case events.PaymentRefundFailed:
		var evt events.RefundResultEvent
		if !c.parse(cloudEvent, &evt) {
			return nil
		}
		return c.outcome(cloudEvent.Type, evt.BookingID.String(), c.handler.HandleRefundFailed(ctx, evt))
	default:
		c.logger.Debug("ignoring unhandled payment event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *PaymentEventConsumer) parse(cloudEvent kafka.CloudEvent, v interface{}) bool {
	if err := cloudEvent.ParseData(v); err != nil {
		c.logger.Error("failed to parse payment event data",
			zap.String("type", cloudEvent.Type),
			zap.Error(err),
		)
		return false
	}
	return true
}

// outcome decides whether a handler error is worth a redelivery. Unknown bookings and
// illegal transitions will not change on retry; conflicts and infrastructure errors may.
func (c *PaymentEventConsumer) outcome(eventType, bookingID string, err error) error {
	if err == nil {
		c.logger.Info("payment event applied",
			zap.String("type", eventType),
			zap.String("booking_id", bookingID),
		)
		return nil
	}
	if permanent(err) {
		c.logger.Warn("payment event rejected",
			zap.String("type", eventType),
			zap.String("booking_id", bookingID),
			zap.Error(err),
		)
		return nil
	}
	c.logger.Error("failed to apply payment event",
		zap.String("type", eventType),
		zap.String("booking_id", bookingID),
		zap.Error(err),
	)
	return err
}

func permanent(err error) bool {
	appErr, ok := domain.AsAppError(err)
	if !ok {
		return false
	}
	switch appErr.Code {
	case domain.CodeValidation, domain.CodeForbidden, domain.CodeNotFound, domain.CodeInvalidState:
		return true
	}
	return false
}
