package availability

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Ledger defines the persistence contract for the availability ledger.
type Ledger interface {
	// IsRangeFree reports whether no date in [start, end] is blocked by a booking,
	// handover or return.
	IsRangeFree(ctx context.Context, productID uuid.UUID, start, end time.Time) (bool, error)

	// Block upserts one unavailable row per date. Re-blocking a date only updates its note.
	Block(ctx context.Context, block Block) error

	// Free removes booking-caused rows in range for the given booking. Owner removals stay.
	Free(ctx context.Context, productID, bookingID uuid.UUID, start, end time.Time) error

	// Restore removes owner-removed rows in range.
	Restore(ctx context.Context, productID uuid.UUID, start, end time.Time) (int64, error)

	// RestorePastDates removes unavailable rows dated before the given day.
	RestorePastDates(ctx context.Context, before time.Time) (int64, error)

	// Calendar lists the unavailable rows of a product in [start, end].
	Calendar(ctx context.Context, productID uuid.UUID, start, end time.Time) ([]Record, error)
}
