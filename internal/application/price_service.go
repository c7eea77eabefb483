package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/rentora/service-booking/internal/domain/booking"
	"github.com/rentora/service-booking/internal/domain/catalog"
	"github.com/rentora/service-booking/internal/platform/domain"
)

// CreatePriceRecordRequest is the request DTO for publishing a rate card.
type CreatePriceRecordRequest struct {
	CountryID            string     `json:"country_id" binding:"required"`
	HourlyCents          *int64     `json:"hourly_cents"`
	DailyCents           *int64     `json:"daily_cents"`
	WeeklyCents          *int64     `json:"weekly_cents"`
	MonthlyCents         *int64     `json:"monthly_cents"`
	MarketAdjustment     float64    `json:"market_adjustment"`
	SecurityDepositCents int64      `json:"security_deposit_cents"`
	Currency             string     `json:"currency"`
	EffectiveFrom        *time.Time `json:"effective_from"`
	EffectiveUntil       *time.Time `json:"effective_until"`
}

// PriceRecordDTO is the API response representation of a price record.
type PriceRecordDTO struct {
	ID                   uuid.UUID     `json:"id"`
	ProductID            uuid.UUID     `json:"product_id"`
	CountryID            string        `json:"country_id"`
	Rates                catalog.Rates `json:"rates"`
	MarketAdjustment     float64       `json:"market_adjustment"`
	SecurityDepositCents int64         `json:"security_deposit_cents"`
	Currency             string        `json:"currency"`
	EffectiveFrom        time.Time     `json:"effective_from"`
	EffectiveUntil       *time.Time    `json:"effective_until,omitempty"`
	Active               bool          `json:"is_active"`
	CreatedBy            uuid.UUID     `json:"created_by"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// QuoteRequest asks for a price without creating a booking.
type QuoteRequest struct {
	StartDate     string `form:"start_date" binding:"required"`
	StartTime     string `form:"start_time"`
	EndDate       string `form:"end_date" binding:"required"`
	EndTime       string `form:"end_time"`
	InsuranceTier string `form:"insurance_tier"`
}

// PriceService manages the per-product rate cards the calculator reads.
type PriceService struct {
	repo    catalog.PriceRecordRepository
	catalog ProductCatalog
	pricing bookingDomain.PricingStrategy
	logger  *zap.Logger
}

// NewPriceService creates a new PriceService.
func NewPriceService(repo catalog.PriceRecordRepository, products ProductCatalog, pricing bookingDomain.PricingStrategy, logger *zap.Logger) *PriceService {
	return &PriceService{repo: repo, catalog: products, pricing: pricing, logger: logger}
}

// CreatePriceRecord publishes a new rate card for a product. Only the product owner or
// an admin may do so.
func (s *PriceService) CreatePriceRecord(ctx context.Context, actor bookingDomain.Actor, productID uuid.UUID, req CreatePriceRecordRequest) (*PriceRecordDTO, error) {
	if _, err := s.authorize(ctx, actor, productID); err != nil {
		return nil, err
	}

	from := time.Now().UTC()
	if req.EffectiveFrom != nil {
		from = req.EffectiveFrom.UTC()
	}
	record, err := catalog.NewPriceRecord(
		productID,
		req.CountryID,
		catalog.Rates{
			HourlyCents:  req.HourlyCents,
			DailyCents:   req.DailyCents,
			WeeklyCents:  req.WeeklyCents,
			MonthlyCents: req.MonthlyCents,
		},
		req.MarketAdjustment,
		req.SecurityDepositCents,
		req.Currency,
		from,
		req.EffectiveUntil,
		actor.ID,
	)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, record); err != nil {
		s.logger.Error("failed to create price record", zap.Error(err))
		return nil, fmt.Errorf("failed to create price record: %w", err)
	}

	s.logger.Info("price record created",
		zap.String("price_record_id", record.ID().String()),
		zap.String("product_id", productID.String()),
		zap.String("country_id", req.CountryID),
	)
	result := toPriceRecordDTO(record)
	return &result, nil
}

// ListPriceRecords returns the product's rate cards, newest first.
func (s *PriceService) ListPriceRecords(ctx context.Context, productID uuid.UUID, countryID string) ([]PriceRecordDTO, error) {
	records, err := s.repo.FindByProduct(ctx, productID, countryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list price records: %w", err)
	}
	dtos := make([]PriceRecordDTO, len(records))
	for i, r := range records {
		dtos[i] = toPriceRecordDTO(r)
	}
	return dtos, nil
}

// DeactivatePriceRecord retires a rate card.
func (s *PriceService) DeactivatePriceRecord(ctx context.Context, actor bookingDomain.Actor, recordID uuid.UUID) error {
	record, err := s.repo.FindByID(ctx, recordID)
	if err != nil {
		return err
	}
	if _, err := s.authorize(ctx, actor, record.ProductID()); err != nil {
		return err
	}

	record.Deactivate()
	if err := s.repo.Update(ctx, record); err != nil {
		s.logger.Error("failed to deactivate price record", zap.Error(err))
		return fmt.Errorf("failed to deactivate price record: %w", err)
	}

	s.logger.Info("price record deactivated", zap.String("price_record_id", recordID.String()))
	return nil
}

// Quote prices a window for a product without reserving anything.
func (s *PriceService) Quote(ctx context.Context, productID uuid.UUID, req QuoteRequest) (*bookingDomain.PriceBreakdown, error) {
	window, err := bookingDomain.ResolveWindow(req.StartDate, req.StartTime, req.EndDate, req.EndTime)
	if err != nil {
		return nil, err
	}
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.FindByProduct(ctx, productID, product.CountryID)
	if err != nil {
		return nil, err
	}

	params := bookingDomain.PricingParams{
		Currency:  product.Currency,
		Start:     window.Start,
		End:       window.End,
		Insurance: bookingDomain.InsuranceTier(req.InsuranceTier),
	}
	if rec := catalog.SelectActive(records, window.Start); rec != nil {
		params.Rates = rec.RateCard()
	} else {
		params.FallbackDailyCents = product.BasePriceCents
	}

	breakdown, err := s.pricing.Calculate(params)
	if err != nil {
		return nil, domain.NewValidationError(fmt.Sprintf("pricing error: %v", err))
	}
	return &breakdown, nil
}

func (s *PriceService) authorize(ctx context.Context, actor bookingDomain.Actor, productID uuid.UUID) (*catalog.Product, error) {
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin && product.OwnerID != actor.ID {
		return nil, domain.NewForbiddenError("you do not own this product")
	}
	return product, nil
}

func toPriceRecordDTO(r *catalog.PriceRecord) PriceRecordDTO {
	return PriceRecordDTO{
		ID:                   r.ID(),
		ProductID:            r.ProductID(),
		CountryID:            r.CountryID(),
		Rates:                r.Rates(),
		MarketAdjustment:     r.MarketAdjustment(),
		SecurityDepositCents: r.SecurityDepositCents(),
		Currency:             r.Currency(),
		EffectiveFrom:        r.EffectiveFrom(),
		EffectiveUntil:       r.EffectiveUntil(),
		Active:               r.IsActive(),
		CreatedBy:            r.CreatedBy(),
		CreatedAt:            r.CreatedAt(),
		UpdatedAt:            r.UpdatedAt(),
	}
}
