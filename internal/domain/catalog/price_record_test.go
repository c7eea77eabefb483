package catalog

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cents(v int64) *int64 { return &v }

func TestNewPriceRecord_Validation(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	product := uuid.New()

	_, err := NewPriceRecord(product, "US", Rates{}, 1, 0, "USD", from, nil, uuid.New())
	assert.Error(t, err, "a record needs at least one rate")

	_, err = NewPriceRecord(product, "US", Rates{DailyCents: cents(0)}, 1, 0, "USD", from, nil, uuid.New())
	assert.Error(t, err)

	until := from.Add(-time.Hour)
	_, err = NewPriceRecord(product, "US", Rates{DailyCents: cents(4000)}, 1, 0, "USD", from, &until, uuid.New())
	assert.Error(t, err)

	rec, err := NewPriceRecord(product, "US", Rates{DailyCents: cents(4000)}, 0, 5000, "", from, nil, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 1.0, rec.MarketAdjustment())
	assert.Equal(t, "USD", rec.Currency())
	assert.True(t, rec.IsActive())
}

func TestSelectActive_PrefersNewest(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	at := from.AddDate(0, 1, 0)
	product := uuid.New()

	older := ReconstructPriceRecord(uuid.New(), product, "US", Rates{DailyCents: cents(3000)}, 1, 0, "USD",
		from, nil, true, uuid.New(), from, from)
	newer := ReconstructPriceRecord(uuid.New(), product, "US", Rates{DailyCents: cents(3500)}, 1, 0, "USD",
		from, nil, true, uuid.New(), from.Add(time.Hour), from)
	inactive := ReconstructPriceRecord(uuid.New(), product, "US", Rates{DailyCents: cents(100)}, 1, 0, "USD",
		from, nil, false, uuid.New(), from.Add(2*time.Hour), from)

	got := SelectActive([]*PriceRecord{older, inactive, newer}, at)
	require.NotNil(t, got)
	assert.Equal(t, newer.ID(), got.ID())
}

func TestSelectActive_RespectsWindow(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	until := from.AddDate(0, 0, 10)
	rec := ReconstructPriceRecord(uuid.New(), uuid.New(), "US", Rates{DailyCents: cents(3000)}, 1, 0, "USD",
		from, &until, true, uuid.New(), from, from)

	assert.NotNil(t, SelectActive([]*PriceRecord{rec}, from.AddDate(0, 0, 5)))
	assert.Nil(t, SelectActive([]*PriceRecord{rec}, until))
	assert.Nil(t, SelectActive([]*PriceRecord{rec}, from.Add(-time.Second)))
}

func TestPriceRecord_RateCard(t *testing.T) {
	rec, err := NewPriceRecord(uuid.New(), "US", Rates{HourlyCents: cents(500), DailyCents: cents(4000)}, 1.2, 10000, "USD",
		time.Now(), nil, uuid.New())
	require.NoError(t, err)

	card := rec.RateCard()
	assert.Equal(t, int64(500), *card.HourlyCents)
	assert.Equal(t, int64(4000), *card.DailyCents)
	assert.Nil(t, card.WeeklyCents)
	assert.Equal(t, 1.2, card.MarketAdjustment)
	assert.Equal(t, int64(10000), card.SecurityDepositCents)
}
