// Package lock provides lease-based mutual exclusion keyed by string.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotAcquired is returned when the key is already held by someone else.
var ErrNotAcquired = errors.New("lock: already held")

// Lease is a held lock. Release is safe to call more than once.
type Lease interface {
	Key() string
	Release(ctx context.Context) error
}

// Locker grants exclusive leases that expire after ttl if never released.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// CreationKey is the serialization key for creating a booking on an exact window.
func CreationKey(productID uuid.UUID, start, end time.Time) string {
	return fmt.Sprintf("booking:create:%s:%d:%d", productID, start.UTC().Unix(), end.UTC().Unix())
}

// LedgerKey serializes ledger writes for one product.
func LedgerKey(productID uuid.UUID) string {
	return fmt.Sprintf("booking:ledger:%s", productID)
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
