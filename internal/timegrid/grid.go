// Package timegrid provides arithmetic over the fixed daily slot grid.
package timegrid

import (
	"fmt"
	"time"
)

const (
	// BaseSlotWidth is the width of a regular slot in minutes.
	BaseSlotWidth = 90
	// MinutesPerDay is the number of minutes in a calendar day.
	MinutesPerDay = 24 * 60

	// DateLayout is the calendar date format used across the store and the API.
	DateLayout = "2006-01-02"
)

// IsValidSlotStart reports whether slot is a regular grid start.
func IsValidSlotStart(slot int) bool {
	return slot >= 0 && slot < MinutesPerDay && slot%BaseSlotWidth == 0
}

// InDay reports whether slot is a minute offset inside a day.
func InDay(slot int) bool {
	return slot >= 0 && slot < MinutesPerDay
}

// LastSlotOfDay returns the start of the final regular slot.
func LastSlotOfDay() int {
	return MinutesPerDay - BaseSlotWidth
}

// DaySlots returns all regular slot starts of a day in order.
func DaySlots() []int {
	slots := make([]int, 0, MinutesPerDay/BaseSlotWidth)
	for s := 0; s < MinutesPerDay; s += BaseSlotWidth {
		slots = append(slots, s)
	}
	return slots
}

// Duration normalises a machine slot duration; zero or negative means the base width.
func Duration(minutes int) int {
	if minutes <= 0 {
		return BaseSlotWidth
	}
	return minutes
}

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SlotStart returns the wall-clock start of slot on date in date's location.
// The offset is read as a clock reading, so on DST transition days slot 180 is still 03:00.
func SlotStart(date time.Time, slot int) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, slot, 0, 0, date.Location())
}

// SlotEnd returns the wall-clock end of slot on date for a machine with the given duration.
func SlotEnd(date time.Time, slot, duration int) time.Time {
	return SlotStart(date, slot).Add(time.Duration(Duration(duration)) * time.Minute)
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// WeekBounds returns the Monday and Sunday of the week containing date.
func WeekBounds(date time.Time) (monday, sunday time.Time) {
	d := Day(date)
	offset := (int(d.Weekday()) + 6) % 7 // Monday = 0
	monday = d.AddDate(0, 0, -offset)
	return monday, monday.AddDate(0, 0, 6)
}

// FormatSlot renders a slot offset as H:MM.
func FormatSlot(slot int) string {
	return fmt.Sprintf("%d:%02d", slot/60, slot%60)
}

// FormatSlotOn renders a slot offset together with its date.
func FormatSlotOn(date time.Time, slot int) string {
	return date.Format(DateLayout) + " " + FormatSlot(slot)
}

// ParseDate parses a YYYY-MM-DD date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DateLayout, s, loc)
}
