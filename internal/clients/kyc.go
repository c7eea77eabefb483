package clients

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rentora/service-booking/internal/platform/domain"
)

// KYCClient queries the verification service.
type KYCClient struct {
	base baseClient
}

// NewKYCClient creates a new KYCClient.
func NewKYCClient(baseURL string, timeout time.Duration, logger *zap.Logger) *KYCClient {
	return &KYCClient{base: newBaseClient("kyc", baseURL, timeout, logger)}
}

type verificationStatus struct {
	UserID        uuid.UUID `json:"user_id"`
	FullyVerified bool      `json:"fully_verified"`
}

// IsFullyVerified reports whether the user passed every verification step.
// Unknown users are treated as unverified.
func (c *KYCClient) IsFullyVerified(ctx context.Context, userID uuid.UUID) (bool, error) {
	var out verificationStatus
	err := c.base.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/v1/verifications/%s", userID), nil, &out)
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, domain.NewUpstreamError("kyc service", err)
	}
	return out.FullyVerified, nil
}
