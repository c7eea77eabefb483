package clients

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rentora/service-booking/internal/domain/catalog"
	"github.com/rentora/service-booking/internal/platform/domain"
)

// CatalogClient fetches products from the catalog service.
type CatalogClient struct {
	base baseClient
}

// NewCatalogClient creates a new CatalogClient.
func NewCatalogClient(baseURL string, timeout time.Duration, logger *zap.Logger) *CatalogClient {
	return &CatalogClient{base: newBaseClient("catalog", baseURL, timeout, logger)}
}

// GetProduct returns the product or a NotFound error.
func (c *CatalogClient) GetProduct(ctx context.Context, productID uuid.UUID) (*catalog.Product, error) {
	var envelope struct {
		Data catalog.Product `json:"data"`
	}
	err := c.base.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/v1/products/%s", productID), nil, &envelope)
	if isNotFound(err) {
		return nil, domain.NewNotFoundError("Product", productID.String())
	}
	if err != nil {
		return nil, domain.NewUpstreamError("catalog service", err)
	}
	return &envelope.Data, nil
}
