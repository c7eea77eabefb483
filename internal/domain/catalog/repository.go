package catalog

import (
	"context"

	"github.com/google/uuid"
)

// PriceRecordRepository defines persistence operations for price records.
type PriceRecordRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*PriceRecord, error)
	FindByProduct(ctx context.Context, productID uuid.UUID, countryID string) ([]*PriceRecord, error)
	Save(ctx context.Context, record *PriceRecord) error
	Update(ctx context.Context, record *PriceRecord) error
}
