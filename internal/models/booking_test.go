package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanBeCancelled(t *testing.T) {
	now := time.Date(2026, time.May, 4, 9, 0, 0, 0, time.UTC)
	booking := func(status BookingStatus, at string) *Booking {
		return &Booking{Status: status, AppointmentDate: DateOf(now), AppointmentTime: at}
	}

	tests := []struct {
		name string
		b    *Booking
		want bool
	}{
		{"pending well ahead", booking(BookingPending, "15:00"), true},
		{"confirmed well ahead", booking(BookingConfirmed, "15:00"), true},
		{"exactly two hours", booking(BookingPending, "11:00"), false},
		{"one minute past the window", booking(BookingPending, "11:01"), true},
		{"already started", booking(BookingPending, "08:00"), false},
		{"in progress", booking(BookingInProgress, "15:00"), false},
		{"completed", booking(BookingCompleted, "15:00"), false},
		{"cancelled", booking(BookingCancelled, "15:00"), false},
		{"no-show", booking(BookingNoShow, "15:00"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.b.CanBeCancelled(now, time.UTC))
		})
	}
}

func TestAppointmentDateTimeUsesShopZone(t *testing.T) {
	riyadh, err := time.LoadLocation("Asia/Riyadh")
	require.NoError(t, err)

	b := &Booking{AppointmentDate: Date{2026, time.June, 1}, AppointmentTime: "9:30"}
	at := b.AppointmentDateTime(riyadh)
	assert.Equal(t, time.Date(2026, time.June, 1, 6, 30, 0, 0, time.UTC), at.UTC())

	// 11:00 in Riyadh is 08:00 UTC, so at 07:30 UTC it is within the window.
	b.Status = BookingConfirmed
	b.AppointmentTime = "11:00"
	now := time.Date(2026, time.June, 1, 7, 30, 0, 0, time.UTC)
	assert.False(t, b.CanBeCancelled(now, riyadh))
	assert.True(t, b.CanBeCancelled(now, time.UTC))
}

func TestAppointmentDateTimeAcrossDST(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	// Clocks go forward on 2026-03-29; 10:00 local is 08:00 UTC that day.
	b := &Booking{AppointmentDate: Date{2026, time.March, 29}, AppointmentTime: "10:00"}
	assert.Equal(t, time.Date(2026, time.March, 29, 8, 0, 0, 0, time.UTC), b.AppointmentDateTime(berlin).UTC())
}

func TestSlotKeyAndNormalizeTime(t *testing.T) {
	d := Date{2026, time.January, 5}
	assert.Equal(t, "2026-01-05|09:00", SlotKey(d, "9:00"))
	assert.Equal(t, SlotKey(d, "09:00"), SlotKey(d, "9:00"))
	assert.Equal(t, "23:59", NormalizeTime("23:59"))
	assert.Equal(t, "25:00", NormalizeTime("25:00"), "invalid times are left alone")
}

func TestBeforeSaveTracksActiveStatus(t *testing.T) {
	b := &Booking{AppointmentDate: Date{2026, time.January, 5}, AppointmentTime: "10:00"}
	require.NoError(t, b.BeforeSave(nil))
	assert.Equal(t, BookingPending, b.Status)
	require.NotNil(t, b.SlotKey)
	assert.Equal(t, "2026-01-05|10:00", *b.SlotKey)

	for _, status := range []BookingStatus{BookingCompleted, BookingCancelled, BookingNoShow} {
		b.Status = status
		require.NoError(t, b.BeforeSave(nil))
		assert.Nil(t, b.SlotKey, status)
	}

	b.Status = BookingInProgress
	require.NoError(t, b.BeforeSave(nil))
	assert.NotNil(t, b.SlotKey)
}

func TestBookingStatusSets(t *testing.T) {
	for _, s := range ActiveBookingStatuses {
		assert.True(t, s.IsActive())
		assert.True(t, s.Valid())
	}
	assert.False(t, BookingCompleted.IsActive())
	assert.False(t, BookingStatus("archived").Valid())
}

func TestOwnershipAccessors(t *testing.T) {
	tech := "tech-1"
	b := &Booking{CustomerID: "cust-1"}
	assert.Equal(t, "cust-1", b.OwnerID())
	assert.Equal(t, "", b.AssigneeID())
	b.TechnicianID = &tech
	assert.Equal(t, "tech-1", b.AssigneeID())

	r := &Review{CustomerID: "cust-2"}
	assert.Equal(t, "cust-2", r.OwnerID())
}
