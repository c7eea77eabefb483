package availability

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rentora/service-booking/internal/platform/domain"
)

// Type is the state of one calendar date.
type Type string

const (
	TypeAvailable   Type = "available"
	TypeUnavailable Type = "unavailable"
)

// Source identifies what placed a block on the calendar.
type Source string

const (
	SourceBooking  Source = "booking"
	SourceHandover Source = "handover"
	SourceReturn   Source = "return"
	SourceOwner    Source = "owner_removed"
)

// IsValid returns true if the source is recognized.
func (s Source) IsValid() bool {
	switch s {
	case SourceBooking, SourceHandover, SourceReturn, SourceOwner:
		return true
	}
	return false
}

// BlocksReservations reports whether a block from this source makes a date
// unavailable to new bookings. Owner market removals are handled by the catalog.
func (s Source) BlocksReservations() bool {
	return s == SourceBooking || s == SourceHandover || s == SourceReturn
}

// Record is one (product, date) row of the ledger.
type Record struct {
	ProductID uuid.UUID  `json:"product_id"`
	Date      time.Time  `json:"date"`
	Type      Type       `json:"availability_type"`
	Source    Source     `json:"source"`
	BookingID *uuid.UUID `json:"booking_id,omitempty"`
	Note      string     `json:"note,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Block describes a range of dates to mark unavailable.
type Block struct {
	ProductID uuid.UUID
	Start     time.Time
	End       time.Time
	Source    Source
	BookingID *uuid.UUID
	Note      string
}

// Validate checks a block before it is written.
func (b Block) Validate() error {
	if b.ProductID == uuid.Nil {
		return domain.NewValidationError("product ID is required")
	}
	if b.End.Before(b.Start) {
		return domain.NewValidationError("end date must not be before start date")
	}
	if !b.Source.IsValid() {
		return domain.NewValidationError(fmt.Sprintf("invalid availability source: %s", b.Source))
	}
	return nil
}

// Dates expands the block into UTC midnights, inclusive of both ends.
func (b Block) Dates() []time.Time {
	return DatesBetween(b.Start, b.End)
}

// Records expands the block into ledger rows.
func (b Block) Records(now time.Time) []Record {
	dates := b.Dates()
	out := make([]Record, len(dates))
	for i, d := range dates {
		out[i] = Record{
			ProductID: b.ProductID,
			Date:      d,
			Type:      TypeUnavailable,
			Source:    b.Source,
			BookingID: b.BookingID,
			Note:      b.Note,
			UpdatedAt: now,
		}
	}
	return out
}

// BookedNote is the note written for booking-caused blocks, e.g. "Booked (confirmed)".
func BookedNote(status string) string {
	return fmt.Sprintf("Booked (%s)", strings.ToLower(status))
}

// DatesBetween returns the UTC calendar dates touched by [start, end].
func DatesBetween(start, end time.Time) []time.Time {
	first := truncate(start)
	last := truncate(end)
	var out []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

func truncate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
