package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	bookingDomain "github.com/rentora/service-booking/internal/domain/booking"
	"github.com/rentora/service-booking/internal/platform/domain"
)

func newPriceService(f *fixture) *PriceService {
	return NewPriceService(f.prices, f.catalog, bookingDomain.NewStandardPricingStrategy(), zap.NewNop())
}

func TestCreatePriceRecord(t *testing.T) {
	f := newFixture(nil)
	svc := newPriceService(f)

	_, err := svc.CreatePriceRecord(context.Background(), f.renterActor(), f.product.ID, CreatePriceRecordRequest{
		CountryID: "US", DailyCents: int64Ptr(3000),
	})
	requireCode(t, err, domain.CodeForbidden)

	_, err = svc.CreatePriceRecord(context.Background(), f.ownerActor(), f.product.ID, CreatePriceRecordRequest{CountryID: "US"})
	requireCode(t, err, domain.CodeValidation)

	dto, err := svc.CreatePriceRecord(context.Background(), f.ownerActor(), f.product.ID, CreatePriceRecordRequest{
		CountryID:   "US",
		DailyCents:  int64Ptr(3000),
		WeeklyCents: int64Ptr(18000),
	})
	require.NoError(t, err)
	assert.True(t, dto.Active)
	assert.Equal(t, 1.0, dto.MarketAdjustment)
	assert.Equal(t, "USD", dto.Currency)

	list, err := svc.ListPriceRecords(context.Background(), f.product.ID, "US")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestDeactivatePriceRecord_FallsBackToBasePrice(t *testing.T) {
	f := newFixture(nil)
	svc := newPriceService(f)

	list, err := svc.ListPriceRecords(context.Background(), f.product.ID, "")
	require.NoError(t, err)
	require.Len(t, list, 1)

	err = svc.DeactivatePriceRecord(context.Background(), f.renterActor(), list[0].ID)
	requireCode(t, err, domain.CodeForbidden)
	require.NoError(t, svc.DeactivatePriceRecord(context.Background(), f.ownerActor(), list[0].ID))

	start := time.Now().UTC().AddDate(0, 0, 3)
	quote, err := svc.Quote(context.Background(), f.product.ID, QuoteRequest{
		StartDate: start.Format(bookingDomain.DateLayout),
		EndDate:   start.Format(bookingDomain.DateLayout),
	})
	require.NoError(t, err)
	assert.True(t, quote.Fallback)
	assert.Equal(t, int64(5000), quote.SubtotalCents)
}

func TestQuote_MatchesScenarioA(t *testing.T) {
	f := newFixture(nil)
	svc := newPriceService(f)

	quote, err := svc.Quote(context.Background(), f.product.ID, QuoteRequest{
		StartDate: "2030-05-01", StartTime: "10:00",
		EndDate: "2030-05-01", EndTime: "16:00",
	})
	require.NoError(t, err)
	assert.Equal(t, bookingDomain.PricingHourly, quote.PricingType)
	assert.Equal(t, int64(3000), quote.SubtotalCents)
	assert.Equal(t, int64(300), quote.PlatformFeeCents)
	assert.Equal(t, int64(240), quote.TaxCents)
	assert.Equal(t, int64(3540), quote.TotalCents)
}
