// Package clock supplies the current time to the booking engines.
package clock

import (
	"sync"
	"time"

	"guckelsberg/internal/timegrid"
)

// Clock returns the current instant.
type Clock interface {
	Now() time.Time
}

// Real reads the system clock in a fixed location.
type Real struct {
	Location *time.Location
}

// Now returns the current time in the configured location.
func (c Real) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// Today returns midnight of the current day according to c.
func Today(c Clock) time.Time {
	return timegrid.Day(c.Now())
}

// Manual is a settable clock for tests and replays.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual creates a manual clock starting at now.
func NewManual(now time.Time) *Manual {
	return &Manual{now: now}
}

// Now returns the current manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}
