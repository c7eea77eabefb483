package booking

import (
	"time"

	"github.com/google/uuid"
)

// StatusChange is one append-only audit entry for a transition.
type StatusChange struct {
	ID        uuid.UUID
	BookingID uuid.UUID
	OldStatus *BookingStatus
	NewStatus BookingStatus
	ChangedBy uuid.UUID
	Reason    string
	Notes     string
	ChangedAt time.Time
}

// Actor is whoever performs an operation on a booking.
type Actor struct {
	ID      uuid.UUID
	IsAdmin bool
}

// SystemActor is used for transitions driven by background events.
var SystemActor = Actor{ID: uuid.Nil, IsAdmin: true}
