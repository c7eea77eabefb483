package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rentora/service-booking/internal/domain/condition"
)

// ConditionReportModel is the GORM model for the condition_reports table.
type ConditionReportModel struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BookingID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	ReportedBy uuid.UUID       `gorm:"type:uuid;not null"`
	Stage      string          `gorm:"type:varchar(20);not null"`
	Grade      string          `gorm:"type:varchar(20);not null"`
	Notes      string          `gorm:"type:text"`
	PhotoURLs  json.RawMessage `gorm:"type:jsonb;not null"`
	CreatedAt  time.Time       `gorm:"not null"`
}

// TableName sets the table name.
func (ConditionReportModel) TableName() string { return "condition_reports" }

// GormConditionRepository implements ReportRepository using GORM.
type GormConditionRepository struct {
	db *gorm.DB
}

// NewGormConditionRepository creates a new GormConditionRepository.
func NewGormConditionRepository(db *gorm.DB) *GormConditionRepository {
	return &GormConditionRepository{db: db}
}

// Save persists a new condition report.
func (r *GormConditionRepository) Save(ctx context.Context, report *condition.Report) error {
	urls, err := json.Marshal(report.PhotoURLs())
	if err != nil {
		return fmt.Errorf("failed to marshal photo urls: %w", err)
	}
	model := ConditionReportModel{
		ID:         report.ID(),
		BookingID:  report.BookingID(),
		ReportedBy: report.ReportedBy(),
		Stage:      string(report.Stage()),
		Grade:      string(report.Grade()),
		Notes:      report.Notes(),
		PhotoURLs:  urls,
		CreatedAt:  report.CreatedAt(),
	}
	if err := dbFrom(ctx, r.db).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to save condition report: %w", err)
	}
	return nil
}

// FindByBookingID returns all reports for a booking, oldest first.
func (r *GormConditionRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*condition.Report, error) {
	var models []ConditionReportModel
	if err := dbFrom(ctx, r.db).Where("booking_id = ?", bookingID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find condition reports: %w", err)
	}

	reports := make([]*condition.Report, len(models))
	for i, m := range models {
		var urls []string
		if len(m.PhotoURLs) > 0 {
			if err := json.Unmarshal(m.PhotoURLs, &urls); err != nil {
				return nil, fmt.Errorf("failed to unmarshal photo urls: %w", err)
			}
		}
		reports[i] = condition.Reconstruct(
			m.ID,
			m.BookingID,
			m.ReportedBy,
			condition.Stage(m.Stage),
			condition.Grade(m.Grade),
			m.Notes,
			urls,
			m.CreatedAt,
		)
	}
	return reports, nil
}
