// Package dashboard aggregates the figures shown on a resident's start page.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"guckelsberg/internal/clock"
	"guckelsberg/internal/domain"
	"guckelsberg/internal/limits"
	"guckelsberg/internal/models"
)

const upcomingDays = 7

// Usage is the weekly consumption of one machine type.
type Usage struct {
	UsedMinutes int `json:"used_minutes"`
	CapMinutes  int `json:"cap_minutes"`
}

// Laundry summarises the resident's laundry situation.
type Laundry struct {
	NextBooking   *models.SlotBooking `json:"next_booking,omitempty"`
	Washer        Usage               `json:"washer"`
	Dryer         Usage               `json:"dryer"`
	UpcomingCount int                 `json:"upcoming_count"`
}

// Rooftop summarises the resident's rooftop situation.
type Rooftop struct {
	NextBooking  *models.RooftopBooking `json:"next_booking,omitempty"`
	PendingCount int                    `json:"pending_requests"`
}

// Admin holds the figures shown to staff.
type Admin struct {
	PendingRequests      int `json:"pending_requests"`
	LaundryBookingsToday int `json:"laundry_bookings_today"`
	RooftopEventsWeek    int `json:"rooftop_events_next_7_days"`
}

// Summary is the dashboard of one resident.
type Summary struct {
	Laundry Laundry `json:"laundry"`
	Rooftop Rooftop `json:"rooftop"`
	Admin   *Admin  `json:"admin,omitempty"`
}

// Service builds dashboard summaries.
type Service struct {
	store domain.Tx
	guard *limits.Guard
	clock clock.Clock
}

// NewService creates the dashboard service.
func NewService(store domain.Tx, guard *limits.Guard, clk clock.Clock) *Service {
	return &Service{store: store, guard: guard, clock: clk}
}

// Summary returns the dashboard of room. Staff also get the admin figures.
func (s *Service) Summary(ctx context.Context, room string) (*Summary, error) {
	user, err := domain.EnsureUser(ctx, s.store, room)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	today := clock.Today(s.clock)

	laundry, err := s.laundry(ctx, user, now, today)
	if err != nil {
		return nil, err
	}
	rooftop, err := s.rooftop(ctx, room, today)
	if err != nil {
		return nil, err
	}
	summary := &Summary{Laundry: *laundry, Rooftop: *rooftop}

	if user.HasRole(models.RoleStaff) {
		admin, err := s.admin(ctx, today)
		if err != nil {
			return nil, err
		}
		summary.Admin = admin
	}
	return summary, nil
}

func (s *Service) laundry(ctx context.Context, user *models.User, now, today time.Time) (*Laundry, error) {
	bookings, err := s.store.ListSlotBookings(ctx, domain.SlotBookingFilter{
		Booker: user.RoomNumber,
		From:   today,
		To:     today.AddDate(0, 0, upcomingDays),
	})
	if err != nil {
		return nil, fmt.Errorf("load upcoming laundry: %w", err)
	}

	out := &Laundry{}
	for i := range bookings {
		if bookings[i].IsInPast(now) {
			continue
		}
		if out.NextBooking == nil {
			out.NextBooking = &bookings[i]
		}
		out.UpcomingCount++
	}

	for _, u := range []struct {
		t     models.MachineType
		usage *Usage
	}{
		{models.MachineWasher, &out.Washer},
		{models.MachineDryer, &out.Dryer},
	} {
		used, err := limits.UsedMinutes(ctx, s.store, user.RoomNumber, u.t, today)
		if err != nil {
			return nil, err
		}
		u.usage.UsedMinutes = used
		u.usage.CapMinutes = s.guard.CapFor(user, u.t)
	}
	return out, nil
}

func (s *Service) rooftop(ctx context.Context, room string, today time.Time) (*Rooftop, error) {
	bookings, err := s.store.ListRooftopBookings(ctx, domain.RooftopFilter{Booker: room, From: today})
	if err != nil {
		return nil, fmt.Errorf("load rooftop bookings: %w", err)
	}
	pending, err := s.store.CountRequests(ctx, domain.RequestFilter{Booker: room, Status: models.RequestRequested})
	if err != nil {
		return nil, fmt.Errorf("count rooftop requests: %w", err)
	}

	out := &Rooftop{PendingCount: pending}
	if len(bookings) > 0 {
		out.NextBooking = &bookings[0]
	}
	return out, nil
}

func (s *Service) admin(ctx context.Context, today time.Time) (*Admin, error) {
	pending, err := s.store.CountRequests(ctx, domain.RequestFilter{Status: models.RequestRequested})
	if err != nil {
		return nil, fmt.Errorf("count pending requests: %w", err)
	}
	laundryToday, err := s.store.CountSlotBookings(ctx, domain.SlotBookingFilter{From: today, To: today})
	if err != nil {
		return nil, fmt.Errorf("count today's laundry: %w", err)
	}
	events, err := s.store.ListRooftopBookings(ctx, domain.RooftopFilter{From: today, To: today.AddDate(0, 0, upcomingDays)})
	if err != nil {
		return nil, fmt.Errorf("load rooftop events: %w", err)
	}
	return &Admin{
		PendingRequests:      pending,
		LaundryBookingsToday: laundryToday,
		RooftopEventsWeek:    len(events),
	}, nil
}
