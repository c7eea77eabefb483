package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rentora/service-booking/internal/domain/availability"
	"github.com/rentora/service-booking/internal/platform/domain"
)

// AvailabilityModel is the GORM model for the product_availability table.
type AvailabilityModel struct {
	ProductID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Date             time.Time  `gorm:"type:date;primaryKey"`
	AvailabilityType string     `gorm:"not null;size:20"`
	Source           string     `gorm:"not null;size:20;index"`
	BookingID        *uuid.UUID `gorm:"type:uuid;index"`
	Note             string     `gorm:"size:255"`
	UpdatedAt        time.Time  `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (AvailabilityModel) TableName() string {
	return "product_availability"
}

// GormAvailabilityLedger is the GORM-based implementation of availability.Ledger.
type GormAvailabilityLedger struct {
	db *gorm.DB
}

// NewGormAvailabilityLedger creates a new GormAvailabilityLedger.
func NewGormAvailabilityLedger(db *gorm.DB) *GormAvailabilityLedger {
	return &GormAvailabilityLedger{db: db}
}

func reservationSources() []string {
	return []string{
		string(availability.SourceBooking),
		string(availability.SourceHandover),
		string(availability.SourceReturn),
	}
}

// IsRangeFree reports whether no date in range is blocked by a booking, handover or return.
func (l *GormAvailabilityLedger) IsRangeFree(ctx context.Context, productID uuid.UUID, start, end time.Time) (bool, error) {
	var count int64
	if err := dbFrom(ctx, l.db).Model(&AvailabilityModel{}).
		Where("product_id = ? AND date BETWEEN ? AND ? AND availability_type = ? AND source IN ?",
			productID, dateOnly(start), dateOnly(end),
			string(availability.TypeUnavailable), reservationSources()).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check availability: %w", err)
	}
	return count == 0, nil
}

// Block upserts one unavailable row per date in range.
func (l *GormAvailabilityLedger) Block(ctx context.Context, block availability.Block) error {
	if err := block.Validate(); err != nil {
		return err
	}
	records := block.Records(time.Now().UTC())
	models := make([]AvailabilityModel, len(records))
	for i, r := range records {
		models[i] = AvailabilityModel{
			ProductID:        r.ProductID,
			Date:             r.Date,
			AvailabilityType: string(r.Type),
			Source:           string(r.Source),
			BookingID:        r.BookingID,
			Note:             r.Note,
			UpdatedAt:        r.UpdatedAt,
		}
	}

	upsert := clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"availability_type", "source", "booking_id", "note", "updated_at"}),
	}
	if block.Source != availability.SourceOwner {
		// Only an owner restore may lift an owner removal.
		upsert.Where = clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "product_availability.source <> ?", Vars: []interface{}{string(availability.SourceOwner)}},
		}}
	}

	// Skipped rows roll the whole block back, joining the caller's transaction as a savepoint.
	return dbFrom(ctx, l.db).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(upsert).Create(&models)
		if result.Error != nil {
			return fmt.Errorf("failed to block dates: %w", result.Error)
		}
		if result.RowsAffected < int64(len(models)) {
			return domain.NewConflictError("the owner has removed some of these dates from the market")
		}
		return nil
	})
}

// Free removes the booking's rows in range. Owner removals are untouched.
func (l *GormAvailabilityLedger) Free(ctx context.Context, productID, bookingID uuid.UUID, start, end time.Time) error {
	if err := dbFrom(ctx, l.db).
		Where("product_id = ? AND date BETWEEN ? AND ? AND source = ? AND booking_id = ?",
			productID, dateOnly(start), dateOnly(end), string(availability.SourceBooking), bookingID).
		Delete(&AvailabilityModel{}).Error; err != nil {
		return fmt.Errorf("failed to free dates: %w", err)
	}
	return nil
}

// Restore removes owner-removed rows in range.
func (l *GormAvailabilityLedger) Restore(ctx context.Context, productID uuid.UUID, start, end time.Time) (int64, error) {
	result := dbFrom(ctx, l.db).
		Where("product_id = ? AND date BETWEEN ? AND ? AND source = ?",
			productID, dateOnly(start), dateOnly(end), string(availability.SourceOwner)).
		Delete(&AvailabilityModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to restore dates: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// RestorePastDates removes unavailable rows dated before the given day.
func (l *GormAvailabilityLedger) RestorePastDates(ctx context.Context, before time.Time) (int64, error) {
	result := dbFrom(ctx, l.db).
		Where("date < ? AND availability_type = ?", dateOnly(before), string(availability.TypeUnavailable)).
		Delete(&AvailabilityModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to restore past dates: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Calendar lists the unavailable rows of a product in range.
func (l *GormAvailabilityLedger) Calendar(ctx context.Context, productID uuid.UUID, start, end time.Time) ([]availability.Record, error) {
	var models []AvailabilityModel
	if err := dbFrom(ctx, l.db).
		Where("product_id = ? AND date BETWEEN ? AND ?", productID, dateOnly(start), dateOnly(end)).
		Order("date ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to load calendar: %w", err)
	}

	out := make([]availability.Record, len(models))
	for i, m := range models {
		out[i] = availability.Record{
			ProductID: m.ProductID,
			Date:      m.Date.UTC(),
			Type:      availability.Type(m.AvailabilityType),
			Source:    availability.Source(m.Source),
			BookingID: m.BookingID,
			Note:      m.Note,
			UpdatedAt: m.UpdatedAt,
		}
	}
	return out, nil
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
