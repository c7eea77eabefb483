package condition

import (
	"context"

	"github.com/google/uuid"
)

// ReportRepository defines persistence operations for condition reports.
type ReportRepository interface {
	Save(ctx context.Context, report *Report) error
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*Report, error)
}
