package booking

import (
	"fmt"
	"math"
	"time"
)

const (
	// PlatformFeeRate is the platform's non-refundable cut of the subtotal.
	PlatformFeeRate = 0.10
	// TaxRate is applied to the subtotal.
	TaxRate = 0.08

	hoursPerDay   = 24
	daysPerWeek   = 7
	daysPerMonth  = 30
	defaultAdjust = 1.0
)

// InsuranceTier is the renter-selected damage cover.
type InsuranceTier string

const (
	InsuranceNone     InsuranceTier = "none"
	InsuranceBasic    InsuranceTier = "basic"
	InsuranceStandard InsuranceTier = "standard"
	InsurancePremium  InsuranceTier = "premium"
)

var insuranceRates = map[InsuranceTier]float64{
	InsuranceNone:     0,
	InsuranceBasic:    0.02,
	InsuranceStandard: 0.04,
	InsurancePremium:  0.06,
}

// IsValid returns true if the tier is recognized.
func (t InsuranceTier) IsValid() bool {
	_, ok := insuranceRates[t]
	return ok
}

// Rate returns the fraction of the subtotal charged for this tier.
func (t InsuranceTier) Rate() float64 {
	return insuranceRates[t]
}

// PricingType names the billing granularity chosen for a booking.
type PricingType string

const (
	PricingHourly  PricingType = "hourly"
	PricingMixed   PricingType = "mixed"
	PricingDaily   PricingType = "daily"
	PricingWeekly  PricingType = "weekly"
	PricingMonthly PricingType = "monthly"
)

// RateCard is the subset of a price record the calculator needs. Nil rates are absent.
type RateCard struct {
	HourlyCents          *int64
	DailyCents           *int64
	WeeklyCents          *int64
	MonthlyCents         *int64
	MarketAdjustment     float64
	SecurityDepositCents int64
	Currency             string
}

// PriceBreakdown is the itemised cost of a booking.
type PriceBreakdown struct {
	BaseRateCents        int64       `json:"base_rate_cents"`
	Currency             string      `json:"currency"`
	TotalHours           float64     `json:"total_hours"`
	PricingType          PricingType `json:"pricing_type"`
	SubtotalCents        int64       `json:"subtotal_cents"`
	PlatformFeeCents     int64       `json:"platform_fee_cents"`
	TaxCents             int64       `json:"tax_cents"`
	InsuranceFeeCents    int64       `json:"insurance_fee_cents"`
	TotalCents           int64       `json:"total_cents"`
	SecurityDepositCents int64       `json:"security_deposit_cents"`
	Fallback             bool        `json:"fallback,omitempty"`
}

// PricingStrategy defines the interface for calculating booking prices.
type PricingStrategy interface {
	// Calculate returns the cost breakdown for the given parameters.
	Calculate(params PricingParams) (PriceBreakdown, error)
}

// PricingParams holds the inputs for price calculation. A nil Rates selects the
// flat per-day fallback using FallbackDailyCents.
type PricingParams struct {
	Rates              *RateCard
	FallbackDailyCents int64
	Currency           string
	Start              time.Time
	End                time.Time
	Insurance          InsuranceTier
}

// StandardPricingStrategy implements the tiered rental pricing.
type StandardPricingStrategy struct{}

// NewStandardPricingStrategy creates a new StandardPricingStrategy.
func NewStandardPricingStrategy() *StandardPricingStrategy {
	return &StandardPricingStrategy{}
}

// Calculate computes the breakdown in cents.
//
// With an hourly rate, windows under a day bill per hour and longer windows bill whole
// days plus remainder hours. Without one, the monthly, weekly, or daily tier is chosen by
// length. A partial unit is never charged more than the next whole unit, which keeps the
// price non-decreasing in duration. In particular hourly billing is capped at the daily
// rate: with $5/h and $40/day a 10 hour window costs $40 rather than 10 x $5, and the
// remainder hours of a mixed window are capped the same way.
func (s *StandardPricingStrategy) Calculate(params PricingParams) (PriceBreakdown, error) {
	if !params.End.After(params.Start) {
		return PriceBreakdown{}, fmt.Errorf("end must be after start")
	}
	tier := params.Insurance
	if tier == "" {
		tier = InsuranceNone
	}
	if !tier.IsValid() {
		return PriceBreakdown{}, fmt.Errorf("unknown insurance tier: %s", tier)
	}

	hours := params.End.Sub(params.Start).Hours()
	bd := PriceBreakdown{TotalHours: math.Round(hours*100) / 100}

	var raw float64
	adjust := defaultAdjust

	if params.Rates == nil {
		if params.FallbackDailyCents < 0 {
			return PriceBreakdown{}, fmt.Errorf("fallback daily price cannot be negative")
		}
		days := billableDays(hours)
		raw = float64(days * params.FallbackDailyCents)
		bd.PricingType = PricingDaily
		bd.BaseRateCents = params.FallbackDailyCents
		bd.Currency = params.Currency
		bd.Fallback = true
	} else {
		rates := params.Rates
		if rates.MarketAdjustment > 0 {
			adjust = rates.MarketAdjustment
		}
		bd.Currency = rates.Currency
		bd.SecurityDepositCents = rates.SecurityDepositCents

		var err error
		if rates.HourlyCents != nil {
			raw, bd.PricingType, bd.BaseRateCents = hourlyCost(hours, rates)
		} else {
			raw, bd.PricingType, bd.BaseRateCents, err = tieredCost(hours, rates)
			if err != nil {
				return PriceBreakdown{}, err
			}
		}
	}

	bd.SubtotalCents = int64(math.Round(raw * adjust))
	bd.PlatformFeeCents = percentOf(bd.SubtotalCents, PlatformFeeRate)
	bd.TaxCents = percentOf(bd.SubtotalCents, TaxRate)
	bd.InsuranceFeeCents = percentOf(bd.SubtotalCents, tier.Rate())
	bd.TotalCents = bd.SubtotalCents + bd.PlatformFeeCents + bd.TaxCents + bd.InsuranceFeeCents
	return bd, nil
}

func hourlyCost(hours float64, rates *RateCard) (float64, PricingType, int64) {
	hourly := float64(*rates.HourlyCents)
	daily := hourly * hoursPerDay
	if rates.DailyCents != nil {
		daily = float64(*rates.DailyCents)
	}

	if hours < hoursPerDay {
		return math.Min(hours*hourly, daily), PricingHourly, *rates.HourlyCents
	}

	days := math.Floor(hours / hoursPerDay)
	remainder := hours - days*hoursPerDay
	cost := days*daily + math.Min(remainder*hourly, daily)
	return cost, PricingMixed, int64(daily)
}

func tieredCost(hours float64, rates *RateCard) (float64, PricingType, int64, error) {
	daily, ok := derivedDaily(rates)
	if !ok {
		return 0, "", 0, fmt.Errorf("price record has no usable rate")
	}
	weekly := daily * daysPerWeek
	if rates.WeeklyCents != nil {
		weekly = float64(*rates.WeeklyCents)
	}

	days := billableDays(hours)
	weekPart := func(d int64) float64 {
		full := float64(d / daysPerWeek)
		rest := float64(d % daysPerWeek)
		return full*weekly + math.Min(rest*daily, weekly)
	}

	var cost float64
	if rates.MonthlyCents != nil {
		monthly := float64(*rates.MonthlyCents)
		cost = float64(days/daysPerMonth)*monthly + math.Min(weekPart(days%daysPerMonth), monthly)
	} else {
		cost = weekPart(days)
	}

	switch {
	case days >= daysPerMonth && rates.MonthlyCents != nil:
		return cost, PricingMonthly, *rates.MonthlyCents, nil
	case days >= daysPerWeek && rates.WeeklyCents != nil:
		return cost, PricingWeekly, *rates.WeeklyCents, nil
	default:
		return cost, PricingDaily, int64(daily), nil
	}
}

func derivedDaily(rates *RateCard) (float64, bool) {
	switch {
	case rates.DailyCents != nil:
		return float64(*rates.DailyCents), true
	case rates.WeeklyCents != nil:
		return math.Ceil(float64(*rates.WeeklyCents) / daysPerWeek), true
	case rates.MonthlyCents != nil:
		return math.Ceil(float64(*rates.MonthlyCents) / daysPerMonth), true
	default:
		return 0, false
	}
}

// billableDays rounds the window up to whole days, minimum one.
func billableDays(hours float64) int64 {
	days := int64(math.Ceil(hours / hoursPerDay))
	if days < 1 {
		days = 1
	}
	return days
}

func percentOf(cents int64, rate float64) int64 {
	return int64(math.Round(float64(cents) * rate))
}

// WithInsurance returns the breakdown re-priced for another insurance tier.
// Subtotal, platform fee and tax are unchanged.
func (b PriceBreakdown) WithInsurance(tier InsuranceTier) PriceBreakdown {
	b.InsuranceFeeCents = percentOf(b.SubtotalCents, tier.Rate())
	b.TotalCents = b.SubtotalCents + b.PlatformFeeCents + b.TaxCents + b.InsuranceFeeCents
	return b
}
