package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/rentora/service-booking/internal/domain/booking"
	"github.com/rentora/service-booking/internal/platform/events"
	"github.com/rentora/service-booking/internal/platform/kafka"
)

const eventSource = "service-booking"

// Notification templates.
const (
	TemplateBookingRequested = "booking_requested"
	TemplateBookingConfirmed = "booking_confirmed"
	TemplateBookingRejected  = "booking_rejected"
)

var eventTypeByStatus = map[bookingDomain.BookingStatus]string{
	bookingDomain.StatusPending:               events.BookingRequested,
	bookingDomain.StatusConfirmed:             events.BookingConfirmed,
	bookingDomain.StatusInProgress:            events.BookingCheckedIn,
	bookingDomain.StatusCompleted:             events.BookingCompleted,
	bookingDomain.StatusCancellationRequested: events.BookingCancellationRequested,
	bookingDomain.StatusCancelled:             events.BookingCancelled,
	bookingDomain.StatusRefunded:              events.BookingRefunded,
	bookingDomain.StatusDeleted:               events.BookingDeleted,
}

// publisher wraps event and notification delivery. Failures are logged and never
// returned to the caller.
type publisher struct {
	producer EventPublisher
	logger   *zap.Logger
}

func (p publisher) publishEvent(ctx context.Context, topic, eventType, subject string, data interface{}) {
	if p.producer == nil {
		return
	}
	cloudEvent, err := kafka.NewCloudEvent(eventSource, eventType, data)
	if err != nil {
		p.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}
	cloudEvent.Subject = subject

	if err := p.producer.PublishEvent(ctx, topic, cloudEvent); err != nil {
		p.logger.Warn("failed to publish event",
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

// publishChanges emits one lifecycle event per recorded status change.
func (p publisher) publishChanges(ctx context.Context, bk *bookingDomain.Booking, changes []bookingDomain.StatusChange) {
	for _, c := range changes {
		eventType, ok := eventTypeByStatus[c.NewStatus]
		if !ok {
			continue
		}
		if c.OldStatus != nil && *c.OldStatus == bookingDomain.StatusCancellationRequested && c.NewStatus == bookingDomain.StatusConfirmed {
			eventType = events.BookingCancellationRejected
		}
		if c.NewStatus == bookingDomain.StatusCancelled && bk.OwnerConfirmation() == bookingDomain.OwnerConfirmationRejected {
			eventType = events.BookingRejected
		}

		evt := events.BookingStatusChangedEvent{
			BookingID:     bk.ID(),
			BookingNumber: bk.BookingNumber(),
			RenterID:      bk.RenterID(),
			OwnerID:       bk.OwnerID(),
			ProductID:     bk.ProductID(),
			NewStatus:     string(c.NewStatus),
			ChangedBy:     c.ChangedBy,
			Reason:        c.Reason,
			StartAt:       bk.Window().Start,
			EndAt:         bk.Window().End,
			TotalCents:    bk.TotalCents(),
			Currency:      bk.Pricing().Currency,
			OccurredAt:    c.ChangedAt,
		}
		if c.OldStatus != nil {
			evt.OldStatus = string(*c.OldStatus)
		}
		p.publishEvent(ctx, events.TopicBookingEvents, eventType, bk.ID().String(), evt)
	}
}

// notify sends a fire-and-forget templated notification.
func (p publisher) notify(ctx context.Context, template string, recipient uuid.UUID, vars map[string]string) {
	req := events.NotificationRequest{
		Template:    template,
		RecipientID: recipient,
		Variables:   vars,
		RequestedAt: time.Now().UTC(),
	}
	p.publishEvent(ctx, events.TopicNotificationRequests, events.NotificationRequested, recipient.String(), req)
}

func bookingVars(bk *bookingDomain.Booking) map[string]string {
	return map[string]string{
		"booking_number": bk.BookingNumber(),
		"booking_id":     bk.ID().String(),
		"product_id":     bk.ProductID().String(),
		"start_at":       bk.Window().Start.Format(time.RFC3339),
		"end_at":         bk.Window().End.Format(time.RFC3339),
	}
}
