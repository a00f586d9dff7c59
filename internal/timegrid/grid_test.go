package timegrid

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func TestIsValidSlotStart(t *testing.T) {
	for s := -180; s < MinutesPerDay+180; s++ {
		want := s >= 0 && s < MinutesPerDay && s%90 == 0
		if got := IsValidSlotStart(s); got != want {
			t.Fatalf("slot %d: expected %v, got %v", s, want, got)
		}
	}
}

func TestLastSlotOfDay(t *testing.T) {
	assert.Equal(t, 1350, LastSlotOfDay())
	slots := DaySlots()
	assert.Len(t, slots, 16)
	assert.Equal(t, 0, slots[0])
	assert.Equal(t, LastSlotOfDay(), slots[len(slots)-1])
}

func TestSlotBounds(t *testing.T) {
	d := day(2024, 6, 10)

	assert.Equal(t, time.Date(2024, 6, 10, 1, 30, 0, 0, time.UTC), SlotStart(d, 90))
	assert.Equal(t, time.Date(2024, 6, 10, 3, 0, 0, 0, time.UTC), SlotEnd(d, 90, 0))
	assert.Equal(t, time.Date(2024, 6, 11, 1, 0, 0, 0, time.UTC), SlotEnd(d, LastSlotOfDay(), 180))
}

func TestSlotBounds_DSTTransitions(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	tests := []struct {
		name     string
		date     time.Time
		slot     int
		wantHour int
		wantMin  int
		wantZone string
	}{
		{"fall back, before switch", time.Date(2024, 10, 27, 0, 0, 0, 0, berlin), 90, 1, 30, "CEST"},
		{"fall back, after switch", time.Date(2024, 10, 27, 0, 0, 0, 0, berlin), 180, 3, 0, "CET"},
		{"fall back, evening", time.Date(2024, 10, 27, 0, 0, 0, 0, berlin), 1260, 21, 0, "CET"},
		{"spring forward, after switch", time.Date(2024, 3, 31, 0, 0, 0, 0, berlin), 270, 4, 30, "CEST"},
		{"spring forward, evening", time.Date(2024, 3, 31, 0, 0, 0, 0, berlin), 1350, 22, 30, "CEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := SlotStart(tt.date, tt.slot)
			zone, _ := start.Zone()
			assert.Equal(t, tt.wantHour, start.Hour())
			assert.Equal(t, tt.wantMin, start.Minute())
			assert.Equal(t, tt.wantZone, zone)
			assert.Equal(t, 90*time.Minute, SlotEnd(tt.date, tt.slot, 0).Sub(start))
		})
	}
}

func TestOverlaps(t *testing.T) {
	d := day(2024, 6, 10)
	tests := []struct {
		name     string
		a, b     [2]int
		expected bool
	}{
		{"same slot", [2]int{0, 90}, [2]int{0, 90}, true},
		{"touching end", [2]int{0, 90}, [2]int{90, 180}, false},
		{"partial", [2]int{0, 135}, [2]int{90, 180}, true},
		{"contained", [2]int{0, 300}, [2]int{90, 180}, true},
		{"disjoint", [2]int{0, 90}, [2]int{180, 270}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Overlaps(
				SlotStart(d, tt.a[0]), SlotStart(d, tt.a[1]),
				SlotStart(d, tt.b[0]), SlotStart(d, tt.b[1]),
			)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestWeekBounds(t *testing.T) {
	tests := []struct {
		date   time.Time
		monday time.Time
	}{
		{day(2024, 6, 10), day(2024, 6, 10)}, // Monday
		{day(2024, 6, 12), day(2024, 6, 10)},
		{day(2024, 6, 16), day(2024, 6, 10)}, // Sunday
		{day(2024, 6, 17), day(2024, 6, 17)},
		{day(2025, 1, 1), day(2024, 12, 30)},
	}
	for _, tt := range tests {
		t.Run(tt.date.Format(DateLayout), func(t *testing.T) {
			mon, sun := WeekBounds(tt.date)
			assert.Equal(t, tt.monday, mon)
			assert.Equal(t, tt.monday.AddDate(0, 0, 6), sun)
			assert.Equal(t, time.Sunday, sun.Weekday())
		})
	}
}

func TestFormatSlot(t *testing.T) {
	assert.Equal(t, "0:00", FormatSlot(0))
	assert.Equal(t, "1:30", FormatSlot(90))
	assert.Equal(t, "22:30", FormatSlot(1350))
	assert.Equal(t, "2024-06-10 0:45", FormatSlotOn(day(2024, 6, 10), 45))
}

func TestParseDate(t *testing.T) {
	loc := time.FixedZone("CET", 3600)

	d, err := ParseDate("2024-06-10", loc)
	require.NoError(t, err)
	assert.Equal(t, loc, d.Location())
	assert.Equal(t, 10, d.Day())

	_, err = ParseDate("10.06.2024", loc)
	assert.Error(t, err)
}
