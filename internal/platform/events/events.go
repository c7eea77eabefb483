// Package events holds the topic names, event types and payloads exchanged over Kafka.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Topics.
const (
	TopicBookingEvents        = "booking.events"
	TopicPaymentEvents        = "payment.events"
	TopicNotificationRequests = "notification.requests"
)

// Booking event types.
const (
	BookingRequested             = "booking.requested"
	BookingConfirmed             = "booking.confirmed"
	BookingRejected              = "booking.rejected"
	BookingCheckedIn             = "booking.checked_in"
	BookingCompleted             = "booking.completed"
	BookingCancellationRequested = "booking.cancellation_requested"
	BookingCancellationRejected  = "booking.cancellation_rejected"
	BookingCancelled             = "booking.cancelled"
	BookingRefunded              = "booking.refunded"
	BookingDeleted               = "booking.deleted"
)

// Payment event types consumed by this service.
const (
	PaymentCaptured        = "payment.captured"
	PaymentRefundCompleted = "payment.refund_completed"
	PaymentRefundFailed    = "payment.refund_failed"
)

// NotificationRequested is the type of templated notification requests.
const NotificationRequested = "notification.requested"

// BookingStatusChangedEvent is published for every booking transition.
type BookingStatusChangedEvent struct {
	BookingID     uuid.UUID `json:"booking_id"`
	BookingNumber string    `json:"booking_number"`
	RenterID      uuid.UUID `json:"renter_id"`
	OwnerID       uuid.UUID `json:"owner_id"`
	ProductID     uuid.UUID `json:"product_id"`
	OldStatus     string    `json:"old_status,omitempty"`
	NewStatus     string    `json:"new_status"`
	ChangedBy     uuid.UUID `json:"changed_by"`
	Reason        string    `json:"reason,omitempty"`
	StartAt       time.Time `json:"start_at"`
	EndAt         time.Time `json:"end_at"`
	TotalCents    int64     `json:"total_cents"`
	Currency      string    `json:"currency"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// PaymentCapturedEvent is emitted by the payment service once the renter has paid.
type PaymentCapturedEvent struct {
	BookingID     uuid.UUID `json:"booking_id"`
	TransactionID string    `json:"transaction_id"`
	AmountCents   int64     `json:"amount_cents"`
	Currency      string    `json:"currency"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// RefundResultEvent is emitted by the payment service when a refund settles or fails.
type RefundResultEvent struct {
	BookingID     uuid.UUID `json:"booking_id"`
	TransactionID string    `json:"transaction_id,omitempty"`
	AmountCents   int64     `json:"amount_cents"`
	FailureReason string    `json:"failure_reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NotificationRequest asks the notification service to deliver a templated message.
type NotificationRequest struct {
	Template    string            `json:"template"`
	RecipientID uuid.UUID         `json:"recipient_id"`
	Variables   map[string]string `json:"variables"`
	RequestedAt time.Time         `json:"requested_at"`
}
