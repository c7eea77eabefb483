package booking

import (
	"math"
	"time"
)

// Refund policy reasons reported alongside a quote.
const (
	PolicyUnderDay   = "cancelled_less_than_24h_before_start"
	PolicyUnderThree = "cancelled_1_to_3_days_before_start"
	PolicyUnderWeek  = "cancelled_3_to_7_days_before_start"
	PolicyWeekPlus   = "cancelled_7_or_more_days_before_start"
)

// RefundQuote is the outcome of applying the cancellation policy. Refund and
// cancellation fee are reported separately; the platform fee is always withheld.
type RefundQuote struct {
	RefundCents          int64   `json:"refund_cents"`
	CancellationFeeCents int64   `json:"cancellation_fee_cents"`
	PlatformFeeCents     int64   `json:"platform_fee_cents"`
	HoursUntilStart      float64 `json:"hours_until_start"`
	Reason               string  `json:"reason"`
}

// CalculateRefund applies the time-based cancellation policy to a booking total.
func CalculateRefund(totalCents int64, now, start time.Time) RefundQuote {
	if totalCents < 0 {
		totalCents = 0
	}
	hours := start.Sub(now).Hours()
	days := hours / hoursPerDay

	q := RefundQuote{
		PlatformFeeCents: percentOf(totalCents, PlatformFeeRate),
		HoursUntilStart:  math.Round(hours*100) / 100,
	}

	switch {
	case hours < hoursPerDay:
		q.CancellationFeeCents = totalCents
		q.Reason = PolicyUnderDay
	case days < 3:
		q.CancellationFeeCents = percentOf(totalCents, 0.20)
		q.Reason = PolicyUnderThree
	case days < 7:
		q.RefundCents = nonNegative(percentOf(totalCents, 0.50) - q.PlatformFeeCents)
		q.Reason = PolicyUnderWeek
	default:
		q.RefundCents = nonNegative(totalCents - q.PlatformFeeCents)
		q.Reason = PolicyWeekPlus
	}
	return q
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
