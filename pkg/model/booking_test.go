package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBookingStatus_TransitionTable(t *testing.T) {
	allowed := map[BookingStatus][]BookingStatus{
		StatusPending:   {StatusConfirmed, StatusConflict, StatusCancelled},
		StatusConfirmed: {StatusConflict, StatusCheckedIn, StatusCancelled, StatusNoShow},
		StatusConflict:  {StatusConfirmed, StatusCancelled},
		StatusCheckedIn: {StatusCheckout},
		StatusCheckout:  {StatusCompleted},
	}

	for _, from := range AllStatuses() {
		for _, to := range AllStatuses() {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestBookingStatus_TerminalHaveNoExits(t *testing.T) {
	for _, s := range []BookingStatus{StatusCancelled, StatusCompleted, StatusNoShow} {
		assert.True(t, s.IsTerminal())
		for _, to := range AllStatuses() {
			assert.False(t, s.CanTransitionTo(to), "%s -> %s", s, to)
		}
	}
}

func TestBookingStatus_Classes(t *testing.T) {
	tests := []struct {
		status       BookingStatus
		active       bool
		live         bool
		displaceable bool
	}{
		{StatusPending, true, false, true},
		{StatusConfirmed, true, true, true},
		{StatusConflict, true, false, true},
		{StatusCheckedIn, true, true, false},
		{StatusCheckout, true, true, false},
		{StatusCompleted, true, true, false},
		{StatusCancelled, false, false, false},
		{StatusNoShow, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.Equal(t, tt.active, tt.status.IsActive())
			assert.Equal(t, tt.live, tt.status.IsLive())
			assert.Equal(t, tt.displaceable, tt.status.IsDisplaceable())
		})
	}
}

func TestParseBookingStatus(t *testing.T) {
	s, ok := ParseBookingStatus("checked_in")
	assert.True(t, ok)
	assert.Equal(t, StatusCheckedIn, s)

	_, ok = ParseBookingStatus("CONFIRMED")
	assert.False(t, ok)
}

func TestBooking_Recipient(t *testing.T) {
	b := &Booking{Party: Party{Email: "guest@example.com"}}
	assert.Equal(t, "guest@example.com", b.Recipient())

	b.NotificationEmail = "ops@example.com"
	assert.Equal(t, "ops@example.com", b.Recipient())
}

func TestSpace_Padding(t *testing.T) {
	s := &Space{BufferMinutes: 10, CleaningDurationMinutes: 5}
	assert.Equal(t, 15*time.Minute, s.Padding())
}

func TestLease_ExpiredAt(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l := &Lease{ExpiresAt: now}
	assert.True(t, l.ExpiredAt(now))
	assert.False(t, l.ExpiredAt(now.Add(-time.Second)))
}
