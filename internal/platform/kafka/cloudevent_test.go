package kafka

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloudEvent_RoundTripThroughWireFormat(t *testing.T) {
	type payload struct {
		BookingID string `json:"booking_id"`
		Amount    int64  `json:"amount"`
	}

	ce, err := NewCloudEvent("service-booking", "booking.requested", payload{BookingID: "b-1", Amount: 3540})
	require.NoError(t, err)
	assert.Equal(t, "1.0", ce.SpecVersion)
	assert.NotEmpty(t, ce.ID)

	raw, err := json.Marshal(ce)
	require.NoError(t, err)

	parsed, err := ParseCloudEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "booking.requested", parsed.Type)

	var got payload
	require.NoError(t, parsed.ParseData(&got))
	assert.Equal(t, int64(3540), got.Amount)
}

func TestParseCloudEvent_RejectsGarbage(t *testing.T) {
	_, err := ParseCloudEvent([]byte("{not json"))
	assert.Error(t, err)
}
