package booking

import "fmt"

// BookingStatus represents the current state of a booking in its lifecycle.
type BookingStatus string

const (
	StatusPending               BookingStatus = "pending"
	StatusConfirmed             BookingStatus = "confirmed"
	StatusInProgress            BookingStatus = "in_progress"
	StatusCompleted             BookingStatus = "completed"
	StatusCancellationRequested BookingStatus = "cancellation_requested"
	StatusCancelled             BookingStatus = "cancelled"
	StatusRefunded              BookingStatus = "refunded"
	StatusDeleted               BookingStatus = "deleted"
)

// validTransitions defines the state machine for booking status transitions.
var validTransitions = map[BookingStatus][]BookingStatus{
	StatusPending:               {StatusConfirmed, StatusCancellationRequested, StatusCancelled, StatusDeleted},
	StatusConfirmed:             {StatusInProgress, StatusCancellationRequested, StatusCancelled},
	StatusCancellationRequested: {StatusCancelled, StatusConfirmed},
	StatusInProgress:            {StatusCompleted, StatusCancelled},
	StatusCancelled:             {StatusRefunded, StatusDeleted},
	StatusCompleted:             {},
	StatusRefunded:              {},
	StatusDeleted:               {},
}

// IsValid returns true if the status is a recognized booking status.
func (s BookingStatus) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}
	for _, t := range allowed {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s BookingStatus) IsTerminal() bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return true
	}
	return len(allowed) == 0
}

// CanBeCancelled returns true if an admin override may cancel a booking in this status.
func (s BookingStatus) CanBeCancelled() bool {
	return s.CanTransitionTo(StatusCancelled)
}

// BlocksCalendar reports whether a booking in this status holds its dates on the ledger.
// Pending bookings deliberately do not; competing requests are resolved at confirmation.
func (s BookingStatus) BlocksCalendar() bool {
	return s == StatusConfirmed || s == StatusInProgress || s == StatusCancellationRequested
}

// String returns the string representation of the status.
func (s BookingStatus) String() string {
	return string(s)
}

// ParseBookingStatus converts a string to a BookingStatus, returning an error if invalid.
func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid booking status: %s", s)
	}
	return status, nil
}

// OwnerConfirmation is the owner's answer to a booking request.
type OwnerConfirmation string

const (
	OwnerConfirmationPending   OwnerConfirmation = "pending"
	OwnerConfirmationConfirmed OwnerConfirmation = "confirmed"
	OwnerConfirmationRejected  OwnerConfirmation = "rejected"
)

// PaymentStatus tracks the renter's payment for a booking.
type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "pending"
	PaymentPaid          PaymentStatus = "paid"
	PaymentRefundPending PaymentStatus = "refund_pending"
	PaymentRefunded      PaymentStatus = "refunded"
	PaymentCancelled     PaymentStatus = "cancelled"
)

// RefundStatus tracks money owed back to the renter after a cancellation.
type RefundStatus string

const (
	RefundNone         RefundStatus = "none"
	RefundPending      RefundStatus = "pending"
	RefundCompleted    RefundStatus = "completed"
	RefundManualReview RefundStatus = "manual_review"
)
