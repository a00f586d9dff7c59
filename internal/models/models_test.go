package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func TestSlotBooking_PastAndOngoing(t *testing.T) {
	b := SlotBooking{Machine: "W1", Date: day(2024, 6, 10), SlotStart: 90, SlotDuration: 90}

	tests := []struct {
		name    string
		now     time.Time
		past    bool
		ongoing bool
	}{
		{"before start", time.Date(2024, 6, 10, 1, 0, 0, 0, time.UTC), false, false},
		{"at start", time.Date(2024, 6, 10, 1, 30, 0, 0, time.UTC), false, false},
		{"running", time.Date(2024, 6, 10, 2, 0, 0, 0, time.UTC), false, true},
		{"at end", time.Date(2024, 6, 10, 3, 0, 0, 0, time.UTC), false, true},
		{"after end", time.Date(2024, 6, 10, 3, 0, 1, 0, time.UTC), true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.past, b.IsInPast(tt.now))
			assert.Equal(t, tt.ongoing, b.IsOngoing(tt.now))
		})
	}
}

func TestSlotBooking_OverlapsWith(t *testing.T) {
	late := SlotBooking{Machine: "D1", Date: day(2024, 6, 10), SlotStart: 1350, SlotDuration: 180}
	early := SlotBooking{Machine: "D1", Date: day(2024, 6, 11), SlotStart: 0, SlotDuration: 180}
	other := SlotBooking{Machine: "D2", Date: day(2024, 6, 11), SlotStart: 0, SlotDuration: 180}

	assert.True(t, late.OverlapsWith(&early), "bookings crossing midnight must collide")
	assert.False(t, late.OverlapsWith(&other))
}

func TestRole_Includes(t *testing.T) {
	assert.True(t, RoleMasterAdmin.Includes(RoleLaundryAdmin))
	assert.True(t, RoleMasterAdmin.Includes(RoleUser))
	assert.True(t, RoleRooftopAdmin.Includes(RoleStaff))
	assert.False(t, RoleRooftopAdmin.Includes(RoleLaundryAdmin))
	assert.False(t, RoleUser.Includes(RoleStaff))
	assert.False(t, Role("GUEST").Valid())
}

func TestUser_WeeklyCap(t *testing.T) {
	limit := 600
	u := &User{MaxDryerMinutesPerWeek: &limit}
	assert.Nil(t, u.WeeklyCap(MachineWasher))
	assert.Equal(t, &limit, u.WeeklyCap(MachineDryer))
	assert.False(t, (*User)(nil).HasRole(RoleUser))
}

func TestRooftopBooking_Redacted(t *testing.T) {
	b := RooftopBooking{ID: 1, Reason: "birthday"}
	assert.Empty(t, b.Redacted().Reason)
	assert.Equal(t, "birthday", b.Reason)
}
