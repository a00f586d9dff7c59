// Package domain holds the rejection kinds and the store contract shared by the booking engines.
package domain

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"guckelsberg/internal/models"
	"guckelsberg/internal/timegrid"
)

// Kind classifies why an operation was rejected.
type Kind string

const (
	KindInvalidSlot          Kind = "invalid_slot"
	KindPastSlot             Kind = "past_slot"
	KindSlotBlocked          Kind = "slot_blocked"
	KindSlotOverlap          Kind = "slot_overlap"
	KindCooldownActive       Kind = "cooldown_active"
	KindQuotaExceeded        Kind = "quota_exceeded"
	KindHorizonExceeded      Kind = "horizon_exceeded"
	KindNotFound             Kind = "not_found"
	KindForbidden            Kind = "forbidden"
	KindConflict             Kind = "conflict"
	KindInvalidOverrideRange Kind = "invalid_override_range"
	KindRejected             Kind = "rejected"
)

// ErrDuplicate is returned by the store when a write violates a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate record")

// Error is a business-rule rejection with a user-facing message.
type Error struct {
	Kind    Kind
	Message string

	RemainingSeconds int                // cooldown_active
	MachineType      models.MachineType // quota_exceeded
	CapMinutes       int                // quota_exceeded
	UsedMinutes      int                // quota_exceeded
	MaxDays          int                // horizon_exceeded
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Is matches another *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// UsedHours returns the quota usage in hours.
func (e *Error) UsedHours() float64 {
	return float64(e.UsedMinutes) / 60
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidSlot          = &Error{Kind: KindInvalidSlot}
	ErrPastSlot             = &Error{Kind: KindPastSlot}
	ErrSlotBlocked          = &Error{Kind: KindSlotBlocked}
	ErrSlotOverlap          = &Error{Kind: KindSlotOverlap}
	ErrCooldownActive       = &Error{Kind: KindCooldownActive}
	ErrQuotaExceeded        = &Error{Kind: KindQuotaExceeded}
	ErrHorizonExceeded      = &Error{Kind: KindHorizonExceeded}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrForbidden            = &Error{Kind: KindForbidden}
	ErrConflict             = &Error{Kind: KindConflict}
	ErrInvalidOverrideRange = &Error{Kind: KindInvalidOverrideRange}
	ErrRejected             = &Error{Kind: KindRejected}
)

// KindOf returns the rejection kind of err, or "" when err is not a rejection.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func InvalidSlot(machine string, slot int) *Error {
	return &Error{
		Kind:    KindInvalidSlot,
		Message: fmt.Sprintf("Invalid slot start %s for machine %s", timegrid.FormatSlot(slot), machine),
	}
}

func PastSlot(date time.Time, slot int) *Error {
	return &Error{
		Kind:    KindPastSlot,
		Message: "Cannot book a slot in the past: " + timegrid.FormatSlotOn(date, slot),
	}
}

func SlotBlocked(machine string, date time.Time, slot int) *Error {
	return &Error{
		Kind: KindSlotBlocked,
		Message: fmt.Sprintf("The selected time slot %s for machine %s is blocked.",
			timegrid.FormatSlotOn(date, slot), machine),
	}
}

func SlotOverlap(machine string, date time.Time, slot int) *Error {
	return &Error{
		Kind: KindSlotOverlap,
		Message: fmt.Sprintf("The selected time slot %s for machine %s is already booked or is overlapping with another slot.",
			timegrid.FormatSlotOn(date, slot), machine),
	}
}

func CooldownActive(window time.Duration, remainingSeconds int) *Error {
	return &Error{
		Kind: KindCooldownActive,
		Message: fmt.Sprintf("You can only make a booking every %d seconds. Please try again in %d seconds.",
			int(window.Seconds()), remainingSeconds),
		RemainingSeconds: remainingSeconds,
	}
}

func QuotaExceeded(t models.MachineType, capMinutes, usedMinutes int) *Error {
	return &Error{
		Kind: KindQuotaExceeded,
		Message: fmt.Sprintf("You are not allowed to book %s for more than %s hours per week. "+
			"You already booked %s hours so far this week. "+
			"If you consistently need more slots, please contact the administrators.",
			t.Plural(), hours(capMinutes), hours(usedMinutes)),
		MachineType: t,
		CapMinutes:  capMinutes,
		UsedMinutes: usedMinutes,
	}
}

func HorizonExceeded(maxDays int) *Error {
	return &Error{
		Kind:    KindHorizonExceeded,
		Message: fmt.Sprintf("Can't book more than %d days in advance.", maxDays),
		MaxDays: maxDays,
	}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func InvalidOverrideRange(msg string) *Error {
	return &Error{Kind: KindInvalidOverrideRange, Message: msg}
}

func Rejected(format string, args ...any) *Error {
	return &Error{Kind: KindRejected, Message: fmt.Sprintf(format, args...)}
}

func hours(minutes int) string {
	return strconv.FormatFloat(float64(minutes)/60, 'f', -1, 64)
}
