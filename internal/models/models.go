package models

import (
	"time"

	"guckelsberg/internal/timegrid"
)

// MachineType distinguishes washers from dryers for quota purposes.
type MachineType string

const (
	MachineWasher MachineType = "WASHER"
	MachineDryer  MachineType = "DRYER"
)

// Valid reports whether t is a known machine type.
func (t MachineType) Valid() bool {
	return t == MachineWasher || t == MachineDryer
}

// Plural returns the lower-case plural used in user-facing messages.
func (t MachineType) Plural() string {
	switch t {
	case MachineWasher:
		return "washers"
	case MachineDryer:
		return "dryers"
	default:
		return "machines"
	}
}

// Machine is a laundry machine bookable on the slot grid.
type Machine struct {
	Name         string      `json:"name"`
	Type         MachineType `json:"type"`
	SlotDuration int         `json:"slot_duration"` // minutes, 0 means the base slot width
	CreatedAt    time.Time   `json:"created_at"`
}

// EffectiveSlotDuration returns the slot length in minutes.
func (m *Machine) EffectiveSlotDuration() int {
	return timegrid.Duration(m.SlotDuration)
}

// SlotBooking is a reservation of one slot on one machine.
type SlotBooking struct {
	ID           int64       `json:"id"`
	Machine      string      `json:"machine"`
	MachineType  MachineType `json:"machine_type"`
	SlotDuration int         `json:"slot_duration"`
	Booker       string      `json:"booker"`
	Date         time.Time   `json:"date"`
	SlotStart    int         `json:"slot_start"`
	ReminderSent bool        `json:"reminder_sent"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Start returns the wall-clock start of the booking.
func (b *SlotBooking) Start() time.Time {
	return timegrid.SlotStart(b.Date, b.SlotStart)
}

// End returns the wall-clock end of the booking.
func (b *SlotBooking) End() time.Time {
	return timegrid.SlotEnd(b.Date, b.SlotStart, b.SlotDuration)
}

// IsInPast reports whether the booking has fully elapsed at now.
func (b *SlotBooking) IsInPast(now time.Time) bool {
	return b.End().Before(now)
}

// IsOngoing reports whether the booking has started but not finished at now.
func (b *SlotBooking) IsOngoing(now time.Time) bool {
	return !b.IsInPast(now) && b.Start().Before(now)
}

// OverlapsWith reports whether both bookings occupy the same machine at the same time.
func (b *SlotBooking) OverlapsWith(other *SlotBooking) bool {
	if b.Machine != other.Machine {
		return false
	}
	return timegrid.Overlaps(b.Start(), b.End(), other.Start(), other.End())
}

// OverrideStatus is the effect of an override rule.
type OverrideStatus string

const (
	OverrideBlocked  OverrideStatus = "BLOCKED"
	OverrideExtended OverrideStatus = "EXTENDED"
)

// Override blocks or extends slots of a machine over a date range.
// Nil slot bounds mean the rule is open on that side.
type Override struct {
	ID        int64          `json:"id"`
	Machine   string         `json:"machine"`
	StartDate time.Time      `json:"start_date"`
	EndDate   time.Time      `json:"end_date"`
	StartSlot *int           `json:"start_slot,omitempty"`
	EndSlot   *int           `json:"end_slot,omitempty"`
	Status    OverrideStatus `json:"status"`
	CreatedBy string         `json:"created_by"`
	CreatedAt time.Time      `json:"created_at"`
}

// RooftopBooking is the single booking of the rooftop on a date.
type RooftopBooking struct {
	ID        int64     `json:"id"`
	Booker    string    `json:"booker"`
	Date      time.Time `json:"date"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Redacted returns a copy without the free-text reason.
func (b RooftopBooking) Redacted() RooftopBooking {
	b.Reason = ""
	return b
}

// RequestStatus is the state of a rooftop booking request.
type RequestStatus string

const (
	RequestRequested RequestStatus = "REQUESTED"
	RequestApproved  RequestStatus = "APPROVED"
	RequestRejected  RequestStatus = "REJECTED"
	RequestCancelled RequestStatus = "CANCELLED"
)

// RooftopRequest asks for the rooftop on a date and awaits review.
type RooftopRequest struct {
	ID             int64         `json:"id"`
	Booker         string        `json:"booker"`
	Date           time.Time     `json:"date"`
	Reason         string        `json:"reason"`
	Contact        string        `json:"contact"`
	TimeSpan       string        `json:"time_span"`
	Status         RequestStatus `json:"status"`
	ReviewedBy     string        `json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time    `json:"reviewed_at,omitempty"`
	DecisionReason string        `json:"decision_reason,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}
