package application

import (
	"context"

	"github.com/google/uuid"

	"github.com/rentora/service-booking/internal/clients"
	"github.com/rentora/service-booking/internal/domain/catalog"
	"github.com/rentora/service-booking/internal/platform/kafka"
)

// Transactor runs fn inside one database transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// KYCVerifier answers whether a user may book.
type KYCVerifier interface {
	IsFullyVerified(ctx context.Context, userID uuid.UUID) (bool, error)
}

// ProductCatalog resolves products and their owners.
type ProductCatalog interface {
	GetProduct(ctx context.Context, productID uuid.UUID) (*catalog.Product, error)
}

// PaymentGateway moves refund money.
type PaymentGateway interface {
	ProcessRefund(ctx context.Context, originalTransactionID string, amountCents int64, reason string) (*clients.RefundResult, error)
}

// EventPublisher publishes CloudEvents to a topic.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}
