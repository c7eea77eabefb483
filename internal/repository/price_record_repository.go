package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rentora/service-booking/internal/domain/catalog"
	"github.com/rentora/service-booking/internal/platform/domain"
)

// PriceRecordModel is the GORM model for the price_records table.
type PriceRecordModel struct {
	ID                   uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ProductID            uuid.UUID  `gorm:"type:uuid;index:idx_price_product_country;not null"`
	CountryID            string     `gorm:"size:10;index:idx_price_product_country;not null"`
	PricePerHour         *int64     `gorm:""`
	PricePerDay          *int64     `gorm:""`
	PricePerWeek         *int64     `gorm:""`
	PricePerMonth        *int64     `gorm:""`
	MarketAdjustment     float64    `gorm:"not null;default:1"`
	SecurityDepositCents int64      `gorm:"not null;default:0"`
	Currency             string     `gorm:"not null;size:3;default:'USD'"`
	EffectiveFrom        time.Time  `gorm:"not null"`
	EffectiveUntil       *time.Time `gorm:""`
	IsActive             bool       `gorm:"not null;default:true"`
	CreatedBy            uuid.UUID  `gorm:"type:uuid;not null"`
	CreatedAt            time.Time  `gorm:"not null"`
	UpdatedAt            time.Time  `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (PriceRecordModel) TableName() string {
	return "price_records"
}

// GormPriceRecordRepository is the GORM-based implementation of PriceRecordRepository.
type GormPriceRecordRepository struct {
	db *gorm.DB
}

// NewGormPriceRecordRepository creates a new GormPriceRecordRepository.
func NewGormPriceRecordRepository(db *gorm.DB) *GormPriceRecordRepository {
	return &GormPriceRecordRepository{db: db}
}

func (r *GormPriceRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.PriceRecord, error) {
	var m PriceRecordModel
	if err := dbFrom(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("PriceRecord", id.String())
		}
		return nil, fmt.Errorf("failed to find price record: %w", err)
	}
	return toDomainPriceRecord(&m), nil
}

// FindByProduct returns the product's records for a country, newest first. An empty
// countryID matches every country.
func (r *GormPriceRecordRepository) FindByProduct(ctx context.Context, productID uuid.UUID, countryID string) ([]*catalog.PriceRecord, error) {
	q := dbFrom(ctx, r.db).Where("product_id = ?", productID)
	if countryID != "" {
		q = q.Where("country_id = ?", countryID)
	}
	var models []PriceRecordModel
	if err := q.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find price records: %w", err)
	}

	out := make([]*catalog.PriceRecord, len(models))
	for i := range models {
		out[i] = toDomainPriceRecord(&models[i])
	}
	return out, nil
}

func (r *GormPriceRecordRepository) Save(ctx context.Context, rec *catalog.PriceRecord) error {
	if err := dbFrom(ctx, r.db).Create(toPriceRecordModel(rec)).Error; err != nil {
		return fmt.Errorf("failed to save price record: %w", err)
	}
	return nil
}

func (r *GormPriceRecordRepository) Update(ctx context.Context, rec *catalog.PriceRecord) error {
	if err := dbFrom(ctx, r.db).Save(toPriceRecordModel(rec)).Error; err != nil {
		return fmt.Errorf("failed to update price record: %w", err)
	}
	return nil
}

func toPriceRecordModel(rec *catalog.PriceRecord) *PriceRecordModel {
	rates := rec.Rates()
	return &PriceRecordModel{
		ID:                   rec.ID(),
		ProductID:            rec.ProductID(),
		CountryID:            rec.CountryID(),
		PricePerHour:         rates.HourlyCents,
		PricePerDay:          rates.DailyCents,
		PricePerWeek:         rates.WeeklyCents,
		PricePerMonth:        rates.MonthlyCents,
		MarketAdjustment:     rec.MarketAdjustment(),
		SecurityDepositCents: rec.SecurityDepositCents(),
		Currency:             rec.Currency(),
		EffectiveFrom:        rec.EffectiveFrom(),
		EffectiveUntil:       rec.EffectiveUntil(),
		IsActive:             rec.IsActive(),
		CreatedBy:            rec.CreatedBy(),
		CreatedAt:            rec.CreatedAt(),
		UpdatedAt:            rec.UpdatedAt(),
	}
}

func toDomainPriceRecord(m *PriceRecordModel) *catalog.PriceRecord {
	return catalog.ReconstructPriceRecord(
		m.ID,
		m.ProductID,
		m.CountryID,
		catalog.Rates{
			HourlyCents:  m.PricePerHour,
			DailyCents:   m.PricePerDay,
			WeeklyCents:  m.PricePerWeek,
			MonthlyCents: m.PricePerMonth,
		},
		m.MarketAdjustment,
		m.SecurityDepositCents,
		m.Currency,
		m.EffectiveFrom,
		m.EffectiveUntil,
		m.IsActive,
		m.CreatedBy,
		m.CreatedAt,
		m.UpdatedAt,
	)
}
