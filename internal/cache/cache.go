// Package cache is the read-path cache for booking queries. It is never a source
// of truth; callers revalidate authorization on every hit.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Cache stores opaque values with a TTL and supports prefix invalidation.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// Key prefixes, one per identifier a mutation can touch.
const (
	prefixBooking = "booking:"
	prefixRenter  = "renter:"
	prefixOwner   = "owner:"
	prefixProduct = "product:"
)

func BookingKey(id uuid.UUID) string { return prefixBooking + id.String() }

func RenterPrefix(id uuid.UUID) string { return prefixRenter + id.String() + ":" }

func OwnerPrefix(id uuid.UUID) string { return prefixOwner + id.String() + ":" }

func ProductPrefix(id uuid.UUID) string { return prefixProduct + id.String() + ":" }

// RenterListKey caches one page of a renter's bookings.
func RenterListKey(id uuid.UUID, variant string) string {
	return fmt.Sprintf("%s%s", RenterPrefix(id), variant)
}

// OwnerListKey caches one page of an owner's bookings.
func OwnerListKey(id uuid.UUID, variant string) string {
	return fmt.Sprintf("%s%s", OwnerPrefix(id), variant)
}

// ProductCalendarKey caches a product's calendar for a range.
func ProductCalendarKey(id uuid.UUID, variant string) string {
	return fmt.Sprintf("%s%s", ProductPrefix(id), variant)
}
