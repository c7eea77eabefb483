package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBookingStatus_TransitionGraph(t *testing.T) {
	legal := []struct{ from, to BookingStatus }{
		{StatusPending, StatusConfirmed},
		{StatusPending, StatusCancellationRequested},
		{StatusPending, StatusCancelled},
		{StatusPending, StatusDeleted},
		{StatusConfirmed, StatusInProgress},
		{StatusConfirmed, StatusCancellationRequested},
		{StatusConfirmed, StatusCancelled},
		{StatusCancellationRequested, StatusCancelled},
		{StatusCancellationRequested, StatusConfirmed},
		{StatusInProgress, StatusCompleted},
		{StatusInProgress, StatusCancelled},
		{StatusCancelled, StatusRefunded},
		{StatusCancelled, StatusDeleted},
	}
	for _, tc := range legal {
		assert.True(t, tc.from.CanTransitionTo(tc.to), "%s -> %s should be legal", tc.from, tc.to)
	}

	illegal := []struct{ from, to BookingStatus }{
		{StatusPending, StatusInProgress},
		{StatusPending, StatusCompleted},
		{StatusConfirmed, StatusCompleted},
		{StatusConfirmed, StatusDeleted},
		{StatusInProgress, StatusConfirmed},
		{StatusCompleted, StatusCancelled},
		{StatusRefunded, StatusCancelled},
		{StatusDeleted, StatusPending},
		{StatusCancelled, StatusConfirmed},
	}
	for _, tc := range illegal {
		assert.False(t, tc.from.CanTransitionTo(tc.to), "%s -> %s should be illegal", tc.from, tc.to)
	}
}

func TestBookingStatus_Terminal(t *testing.T) {
	for _, s := range []BookingStatus{StatusCompleted, StatusRefunded, StatusDeleted} {
		assert.True(t, s.IsTerminal(), s)
	}
	for _, s := range []BookingStatus{StatusPending, StatusConfirmed, StatusInProgress, StatusCancellationRequested, StatusCancelled} {
		assert.False(t, s.IsTerminal(), s)
	}
	assert.True(t, BookingStatus("bogus").IsTerminal())
}

func TestBookingStatus_BlocksCalendar(t *testing.T) {
	assert.False(t, StatusPending.BlocksCalendar())
	assert.True(t, StatusConfirmed.BlocksCalendar())
	assert.True(t, StatusInProgress.BlocksCalendar())
	assert.False(t, StatusCancelled.BlocksCalendar())
	assert.False(t, StatusCompleted.BlocksCalendar())
}

func TestParseBookingStatus(t *testing.T) {
	s, err := ParseBookingStatus("cancellation_requested")
	assert.NoError(t, err)
	assert.Equal(t, StatusCancellationRequested, s)

	_, err = ParseBookingStatus("requested")
	assert.Error(t, err)
}
