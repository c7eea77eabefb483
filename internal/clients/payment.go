package clients

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rentora/service-booking/internal/platform/domain"
)

// PaymentClient executes refunds through the payment service.
type PaymentClient struct {
	base baseClient
}

// NewPaymentClient creates a new PaymentClient.
func NewPaymentClient(baseURL string, timeout time.Duration, logger *zap.Logger) *PaymentClient {
	return &PaymentClient{base: newBaseClient("payment", baseURL, timeout, logger)}
}

// RefundResult is the payment service's answer to a refund request.
type RefundResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id"`
	Message       string `json:"message,omitempty"`
}

type refundRequest struct {
	OriginalTransactionID string `json:"original_transaction_id"`
	AmountCents           int64  `json:"amount_cents"`
	Reason                string `json:"reason"`
}

// ProcessRefund asks the payment service to return amountCents of the original charge.
func (c *PaymentClient) ProcessRefund(ctx context.Context, originalTransactionID string, amountCents int64, reason string) (*RefundResult, error) {
	var out RefundResult
	req := refundRequest{
		OriginalTransactionID: originalTransactionID,
		AmountCents:           amountCents,
		Reason:                reason,
	}
	if err := c.base.doJSON(ctx, http.MethodPost, "/api/v1/refunds", req, &out); err != nil {
		return nil, domain.NewUpstreamError("payment service", err)
	}
	return &out, nil
}
