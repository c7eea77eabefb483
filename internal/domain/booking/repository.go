package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows booking list queries.
type ListFilter struct {
	Status    *BookingStatus
	ProductID *uuid.UUID
	From      *time.Time
	To        *time.Time
}

// BookingRepository defines the persistence contract for booking aggregates.
type BookingRepository interface {
	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindByNumber retrieves a booking by its human-readable booking number.
	FindByNumber(ctx context.Context, number string) (*Booking, error)

	// FindByRenterID retrieves bookings made by a renter with pagination.
	FindByRenterID(ctx context.Context, renterID uuid.UUID, filter ListFilter, page, limit int) ([]*Booking, int64, error)

	// FindByOwnerID retrieves bookings on an owner's products with pagination.
	FindByOwnerID(ctx context.Context, ownerID uuid.UUID, filter ListFilter, page, limit int) ([]*Booking, int64, error)

	// FindPendingRefunds returns cancelled bookings whose refund has not completed.
	FindPendingRefunds(ctx context.Context, limit int) ([]*Booking, error)

	// ListAll retrieves all bookings with pagination (admin).
	ListAll(ctx context.Context, filter ListFilter, page, limit int) ([]*Booking, int64, error)

	// CountByStatus returns booking counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Save persists a new booking together with its pending status history.
	Save(ctx context.Context, booking *Booking) error

	// Update persists changes to an existing booking with optimistic locking and
	// appends its pending status history.
	Update(ctx context.Context, booking *Booking) error

	// Delete hard-deletes a booking and its history.
	Delete(ctx context.Context, id uuid.UUID) error

	// History returns the status changes of a booking, oldest first.
	History(ctx context.Context, bookingID uuid.UUID) ([]StatusChange, error)
}
