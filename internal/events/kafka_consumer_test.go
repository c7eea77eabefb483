package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rentora/service-booking/internal/platform/domain"
	"github.com/rentora/service-booking/internal/platform/events"
	"github.com/rentora/service-booking/internal/platform/kafka"
)

type recordingHandler struct {
	captured []events.PaymentCapturedEvent
	refunded []events.RefundResultEvent
	failed   []events.RefundResultEvent
	err      error
}

func (h *recordingHandler) HandlePaymentCaptured(_ context.Context, evt events.PaymentCapturedEvent) error {
	h.captured = append(h.captured, evt)
	return h.err
}

func (h *recordingHandler) HandleRefundCompleted(_ context.Context, evt events.RefundResultEvent) error {
	h.refunded = append(h.refunded, evt)
	return h.err
}

func (h *recordingHandler) HandleRefundFailed(_ context.Context, evt events.RefundResultEvent) error {
	h.failed = append(h.failed, evt)
	return h.err
}

func message(t *testing.T, eventType string, data interface{}) kafkago.Message {
	t.Helper()
	ce, err := kafka.NewCloudEvent("service-payment", eventType, data)
	require.NoError(t, err)
	raw, err := json.Marshal(ce)
	require.NoError(t, err)
	return kafkago.Message{Value: raw}
}

func newTestConsumer(h PaymentEventHandler) *PaymentEventConsumer {
	return &PaymentEventConsumer{handler: h, logger: zap.NewNop()}
}

func TestHandleMessage_Dispatches(t *testing.T) {
	h := &recordingHandler{}
	c := newTestConsumer(h)
	id := uuid.New()

	require.NoError(t, c.handleMessage(context.Background(), message(t, events.PaymentCaptured, events.PaymentCapturedEvent{BookingID: id, TransactionID: "pay-1"})))
	require.NoError(t, c.handleMessage(context.Background(), message(t, events.PaymentRefundCompleted, events.RefundResultEvent{BookingID: id, TransactionID: "rf-1"})))
	require.NoError(t, c.handleMessage(context.Background(), message(t, events.PaymentRefundFailed, events.RefundResultEvent{BookingID: id, FailureReason: "card expired"})))

	require.Len(t, h.captured, 1)
	assert.Equal(t, "pay-1", h.captured[0].TransactionID)
	require.Len(t, h.refunded, 1)
	assert.Equal(t, "rf-1", h.refunded[0].TransactionID)
	require.Len(t, h.failed, 1)
	assert.Equal(t, "card expired", h.failed[0].FailureReason)
}

func TestHandleMessage_IgnoresMalformedAndUnknown(t *testing.T) {
	h := &recordingHandler{}
	c := newTestConsumer(h)

	assert.NoError(t, c.handleMessage(context.Background(), kafkago.Message{Value: []byte("{not json")}))
	assert.NoError(t, c.handleMessage(context.Background(), message(t, "payment.escrow_held", map[string]string{"x": "y"})))
	assert.NoError(t, c.handleMessage(context.Background(), message(t, events.PaymentCaptured, "not an object")))
	assert.Empty(t, h.captured)
}

func TestHandleMessage_RetriesOnlyInfrastructureErrors(t *testing.T) {
	id := uuid.New()

	h := &recordingHandler{err: domain.NewNotFoundError("Booking", id.String())}
	c := newTestConsumer(h)
	assert.NoError(t, c.handleMessage(context.Background(), message(t, events.PaymentCaptured, events.PaymentCapturedEvent{BookingID: id})))

	h.err = domain.NewInvalidStateError("pending", "refunded")
	assert.NoError(t, c.handleMessage(context.Background(), message(t, events.PaymentRefundCompleted, events.RefundResultEvent{BookingID: id})))

	h.err = errors.New("connection refused")
	assert.Error(t, c.handleMessage(context.Background(), message(t, events.PaymentCaptured, events.PaymentCapturedEvent{BookingID: id})))

	h.err = domain.NewConflictError("booking was modified by another transaction")
	assert.Error(t, c.handleMessage(context.Background(), message(t, events.PaymentCaptured, events.PaymentCapturedEvent{BookingID: id})))
}
