package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cents(v int64) *int64 { return &v }

var day0 = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

func calc(t *testing.T, rates *RateCard, hours float64, tier InsuranceTier) PriceBreakdown {
	t.Helper()
	bd, err := NewStandardPricingStrategy().Calculate(PricingParams{
		Rates:     rates,
		Start:     day0,
		End:       day0.Add(time.Duration(hours * float64(time.Hour))),
		Insurance: tier,
	})
	require.NoError(t, err)
	return bd
}

func TestPricing_HourlyUnderADay(t *testing.T) {
	rates := &RateCard{HourlyCents: cents(500), DailyCents: cents(4000), Currency: "USD"}
	bd := calc(t, rates, 6, InsuranceNone)

	assert.Equal(t, PricingHourly, bd.PricingType)
	assert.Equal(t, int64(3000), bd.SubtotalCents)
	assert.Equal(t, int64(300), bd.PlatformFeeCents)
	assert.Equal(t, int64(240), bd.TaxCents)
	assert.Equal(t, int64(0), bd.InsuranceFeeCents)
	assert.Equal(t, int64(3540), bd.TotalCents)
	assert.Equal(t, 6.0, bd.TotalHours)
}

func TestPricing_MixedDayAndHours(t *testing.T) {
	rates := &RateCard{HourlyCents: cents(500), DailyCents: cents(4000), Currency: "USD"}
	bd := calc(t, rates, 30, InsuranceNone)

	assert.Equal(t, PricingMixed, bd.PricingType)
	assert.Equal(t, int64(7000), bd.SubtotalCents)
}

func TestPricing_HourlyCappedAtDailyRate(t *testing.T) {
	rates := &RateCard{HourlyCents: cents(500), DailyCents: cents(4000)}
	bd := calc(t, rates, 10, InsuranceNone)
	assert.Equal(t, PricingHourly, bd.PricingType)
	assert.Equal(t, int64(4000), bd.SubtotalCents, "10h x $5 is capped at one day")

	bd = calc(t, rates, 8, InsuranceNone)
	assert.Equal(t, int64(4000), bd.SubtotalCents, "exactly one day's worth of hours")

	bd = calc(t, rates, 34, InsuranceNone)
	assert.Equal(t, PricingMixed, bd.PricingType)
	assert.Equal(t, int64(8000), bd.SubtotalCents, "remainder hours are capped too")
}

func TestPricing_Tiers(t *testing.T) {
	tests := []struct {
		name     string
		rates    *RateCard
		hours    float64
		wantType PricingType
		wantSub  int64
	}{
		{"daily minimum one day", &RateCard{DailyCents: cents(1000)}, 3, PricingDaily, 1000},
		{"partial day rounds up", &RateCard{DailyCents: cents(1000)}, 49, PricingDaily, 3000},
		{"weekly at seven days", &RateCard{DailyCents: cents(1000), WeeklyCents: cents(6000)}, 7 * 24, PricingWeekly, 6000},
		{"six days capped at week", &RateCard{DailyCents: cents(1000), WeeklyCents: cents(6000)}, 6 * 24, PricingDaily, 6000},
		{"week plus days", &RateCard{DailyCents: cents(1000), WeeklyCents: cents(6000)}, 10 * 24, PricingWeekly, 9000},
		{"monthly at thirty days", &RateCard{DailyCents: cents(1000), WeeklyCents: cents(6000), MonthlyCents: cents(20000)}, 30 * 24, PricingMonthly, 20000},
		{"weekly only record", &RateCard{WeeklyCents: cents(7000)}, 2 * 24, PricingDaily, 2000},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			bd := calc(t, tc.rates, tc.hours, InsuranceNone)
			assert.Equal(t, tc.wantType, bd.PricingType)
			assert.Equal(t, tc.wantSub, bd.SubtotalCents)
		})
	}
}

func TestPricing_InsuranceAndAdjustment(t *testing.T) {
	rates := &RateCard{HourlyCents: cents(500), DailyCents: cents(4000), MarketAdjustment: 1.5, SecurityDepositCents: 20000}
	bd := calc(t, rates, 6, InsurancePremium)

	assert.Equal(t, int64(4500), bd.SubtotalCents)
	assert.Equal(t, int64(270), bd.InsuranceFeeCents)
	assert.Equal(t, int64(20000), bd.SecurityDepositCents)
	assert.Equal(t, bd.SubtotalCents+bd.PlatformFeeCents+bd.TaxCents+bd.InsuranceFeeCents, bd.TotalCents)
}

func TestPricing_Fallback(t *testing.T) {
	bd, err := NewStandardPricingStrategy().Calculate(PricingParams{
		FallbackDailyCents: 2500,
		Currency:           "USD",
		Start:              day0,
		End:                day0.Add(30 * time.Hour),
		Insurance:          InsuranceBasic,
	})
	require.NoError(t, err)

	assert.True(t, bd.Fallback)
	assert.Equal(t, PricingDaily, bd.PricingType)
	assert.Equal(t, int64(5000), bd.SubtotalCents)
	assert.Equal(t, int64(100), bd.InsuranceFeeCents)
	assert.Equal(t, int64(5000+500+400+100), bd.TotalCents)
}

func TestPricing_RejectsBadInput(t *testing.T) {
	s := NewStandardPricingStrategy()

	_, err := s.Calculate(PricingParams{Rates: &RateCard{DailyCents: cents(100)}, Start: day0, End: day0})
	assert.Error(t, err)

	_, err = s.Calculate(PricingParams{Rates: &RateCard{DailyCents: cents(100)}, Start: day0, End: day0.Add(time.Hour), Insurance: "gold"})
	assert.Error(t, err)

	_, err = s.Calculate(PricingParams{Rates: &RateCard{}, Start: day0, End: day0.Add(time.Hour)})
	assert.Error(t, err)
}

func TestPricing_NonDecreasingInDuration(t *testing.T) {
	cards := map[string]*RateCard{
		"hourly":        {HourlyCents: cents(500), DailyCents: cents(4000)},
		"hourly only":   {HourlyCents: cents(300)},
		"daily":         {DailyCents: cents(1000)},
		"daily weekly":  {DailyCents: cents(1000), WeeklyCents: cents(6000)},
		"all tiers":     {DailyCents: cents(1000), WeeklyCents: cents(6000), MonthlyCents: cents(20000)},
		"cheap monthly": {DailyCents: cents(1000), MonthlyCents: cents(4000)},
	}
	for name, rates := range cards {
		t.Run(name, func(t *testing.T) {
			var prev int64
			for h := 0.5; h <= 24*70; h += 0.5 {
				bd := calc(t, rates, h, InsuranceStandard)
				require.GreaterOrEqual(t, bd.TotalCents, prev, "price dropped at %.1fh", h)
				prev = bd.TotalCents
			}
		})
	}
}

func TestPriceBreakdown_WithInsurance(t *testing.T) {
	rates := &RateCard{HourlyCents: cents(500), DailyCents: cents(4000)}
	bd := calc(t, rates, 6, InsuranceNone)

	up := bd.WithInsurance(InsuranceStandard)
	assert.Equal(t, int64(120), up.InsuranceFeeCents)
	assert.Equal(t, int64(3660), up.TotalCents)
	assert.Equal(t, bd.SubtotalCents, up.SubtotalCents)
	assert.Equal(t, int64(3540), bd.TotalCents, "receiver is not modified")
}
