package catalog

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rentora/service-booking/internal/domain/booking"
	"github.com/rentora/service-booking/internal/platform/domain"
)

// Product is the slice of the catalog's product the booking engine relies on.
type Product struct {
	ID             uuid.UUID `json:"id"`
	OwnerID        uuid.UUID `json:"owner_id"`
	CountryID      string    `json:"country_id"`
	Title          string    `json:"title"`
	BasePriceCents int64     `json:"base_price_cents"`
	Currency       string    `json:"currency"`
	Active         bool      `json:"active"`
}

// PriceRecord is a time-bounded rate card for a product in one country.
type PriceRecord struct {
	id                   uuid.UUID
	productID            uuid.UUID
	countryID            string
	hourlyCents          *int64
	dailyCents           *int64
	weeklyCents          *int64
	monthlyCents         *int64
	marketAdjustment     float64
	securityDepositCents int64
	currency             string
	effectiveFrom        time.Time
	effectiveUntil       *time.Time
	active               bool
	createdBy            uuid.UUID
	createdAt            time.Time
	updatedAt            time.Time
}

// Rates groups the optional per-unit prices of a record.
type Rates struct {
	HourlyCents  *int64 `json:"hourly_cents,omitempty"`
	DailyCents   *int64 `json:"daily_cents,omitempty"`
	WeeklyCents  *int64 `json:"weekly_cents,omitempty"`
	MonthlyCents *int64 `json:"monthly_cents,omitempty"`
}

func (r Rates) empty() bool {
	return r.HourlyCents == nil && r.DailyCents == nil && r.WeeklyCents == nil && r.MonthlyCents == nil
}

func (r Rates) validate() error {
	for name, v := range map[string]*int64{
		"hourly": r.HourlyCents, "daily": r.DailyCents, "weekly": r.WeeklyCents, "monthly": r.MonthlyCents,
	} {
		if v != nil && *v <= 0 {
			return domain.NewValidationError(fmt.Sprintf("%s price must be positive", name))
		}
	}
	return nil
}

// NewPriceRecord creates an active price record.
func NewPriceRecord(
	productID uuid.UUID,
	countryID string,
	rates Rates,
	marketAdjustment float64,
	securityDepositCents int64,
	currency string,
	effectiveFrom time.Time,
	effectiveUntil *time.Time,
	createdBy uuid.UUID,
) (*PriceRecord, error) {
	if productID == uuid.Nil {
		return nil, domain.NewValidationError("product ID is required")
	}
	if countryID == "" {
		return nil, domain.NewValidationError("country ID is required")
	}
	if rates.empty() {
		return nil, domain.NewValidationError("at least one of hourly, daily, weekly or monthly price is required")
	}
	if err := rates.validate(); err != nil {
		return nil, err
	}
	if marketAdjustment == 0 {
		marketAdjustment = 1
	}
	if marketAdjustment < 0 {
		return nil, domain.NewValidationError("market adjustment cannot be negative")
	}
	if securityDepositCents < 0 {
		return nil, domain.NewValidationError("security deposit cannot be negative")
	}
	if effectiveUntil != nil && !effectiveUntil.After(effectiveFrom) {
		return nil, domain.NewValidationError("effective_until must be after effective_from")
	}
	if currency == "" {
		currency = domain.CurrencyUSD
	}

	now := time.Now().UTC()
	return &PriceRecord{
		id:                   uuid.New(),
		productID:            productID,
		countryID:            countryID,
		hourlyCents:          rates.HourlyCents,
		dailyCents:           rates.DailyCents,
		weeklyCents:          rates.WeeklyCents,
		monthlyCents:         rates.MonthlyCents,
		marketAdjustment:     marketAdjustment,
		securityDepositCents: securityDepositCents,
		currency:             currency,
		effectiveFrom:        effectiveFrom.UTC(),
		effectiveUntil:       effectiveUntil,
		active:               true,
		createdBy:            createdBy,
		createdAt:            now,
		updatedAt:            now,
	}, nil
}

// ReconstructPriceRecord rebuilds a PriceRecord from persistence data (no validation).
func ReconstructPriceRecord(
	id, productID uuid.UUID,
	countryID string,
	rates Rates,
	marketAdjustment float64,
	securityDepositCents int64,
	currency string,
	effectiveFrom time.Time,
	effectiveUntil *time.Time,
	active bool,
	createdBy uuid.UUID,
	createdAt, updatedAt time.Time,
) *PriceRecord {
	return &PriceRecord{
		id:                   id,
		productID:            productID,
		countryID:            countryID,
		hourlyCents:          rates.HourlyCents,
		dailyCents:           rates.DailyCents,
		weeklyCents:          rates.WeeklyCents,
		monthlyCents:         rates.MonthlyCents,
		marketAdjustment:     marketAdjustment,
		securityDepositCents: securityDepositCents,
		currency:             currency,
		effectiveFrom:        effectiveFrom,
		effectiveUntil:       effectiveUntil,
		active:               active,
		createdBy:            createdBy,
		createdAt:            createdAt,
		updatedAt:            updatedAt,
	}
}

// Getters.
func (p *PriceRecord) ID() uuid.UUID               { return p.id }
func (p *PriceRecord) ProductID() uuid.UUID        { return p.productID }
func (p *PriceRecord) CountryID() string           { return p.countryID }
func (p *PriceRecord) MarketAdjustment() float64   { return p.marketAdjustment }
func (p *PriceRecord) SecurityDepositCents() int64 { return p.securityDepositCents }
func (p *PriceRecord) Currency() string            { return p.currency }
func (p *PriceRecord) EffectiveFrom() time.Time    { return p.effectiveFrom }
func (p *PriceRecord) EffectiveUntil() *time.Time  { return p.effectiveUntil }
func (p *PriceRecord) IsActive() bool              { return p.active }
func (p *PriceRecord) CreatedBy() uuid.UUID        { return p.createdBy }
func (p *PriceRecord) CreatedAt() time.Time        { return p.createdAt }
func (p *PriceRecord) UpdatedAt() time.Time        { return p.updatedAt }

// Rates returns the per-unit prices.
func (p *PriceRecord) Rates() Rates {
	return Rates{
		HourlyCents:  p.hourlyCents,
		DailyCents:   p.dailyCents,
		WeeklyCents:  p.weeklyCents,
		MonthlyCents: p.monthlyCents,
	}
}

// CoversDate reports whether the record is in effect at t.
func (p *PriceRecord) CoversDate(t time.Time) bool {
	if !p.active || t.Before(p.effectiveFrom) {
		return false
	}
	return p.effectiveUntil == nil || t.Before(*p.effectiveUntil)
}

// Deactivate retires the record.
func (p *PriceRecord) Deactivate() {
	p.active = false
	p.updatedAt = time.Now().UTC()
}

// RateCard converts the record into the calculator's input.
func (p *PriceRecord) RateCard() *booking.RateCard {
	return &booking.RateCard{
		HourlyCents:          p.hourlyCents,
		DailyCents:           p.dailyCents,
		WeeklyCents:          p.weeklyCents,
		MonthlyCents:         p.monthlyCents,
		MarketAdjustment:     p.marketAdjustment,
		SecurityDepositCents: p.securityDepositCents,
		Currency:             p.currency,
	}
}

// SelectActive picks the record in effect at t. Duplicates resolve to the most
// recently created record.
func SelectActive(records []*PriceRecord, t time.Time) *PriceRecord {
	var best *PriceRecord
	for _, r := range records {
		if !r.CoversDate(t) {
			continue
		}
		if best == nil || r.createdAt.After(best.createdAt) {
			best = r
		}
	}
	return best
}
