package laundry

import (
	"context"
	"fmt"
	"time"

	"guckelsberg/internal/clock"
	"guckelsberg/internal/domain"
	"guckelsberg/internal/models"
	"guckelsberg/internal/timegrid"
)

// ListFrom returns all bookings dated from onwards.
func (s *Service) ListFrom(ctx context.Context, from time.Time) ([]models.SlotBooking, error) {
	bookings, err := s.store.ListSlotBookings(ctx, domain.SlotBookingFilter{From: timegrid.Day(from)})
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

// ListUpcomingForUser returns booker's bookings that have not finished yet, soonest first.
func (s *Service) ListUpcomingForUser(ctx context.Context, booker string) ([]models.SlotBooking, error) {
	bookings, err := s.store.ListSlotBookings(ctx, domain.SlotBookingFilter{
		Booker: booker,
		From:   clock.Today(s.clock),
	})
	if err != nil {
		return nil, fmt.Errorf("list upcoming bookings: %w", err)
	}

	now := s.clock.Now()
	upcoming := bookings[:0]
	for _, b := range bookings {
		if !b.IsInPast(now) {
			upcoming = append(upcoming, b)
		}
	}
	return upcoming, nil
}

// ListMine returns a page of booker's full history, newest first. Pages start at 0.
func (s *Service) ListMine(ctx context.Context, booker string, page int) (*Page, error) {
	if page < 0 {
		page = 0
	}
	filter := domain.SlotBookingFilter{Booker: booker, Newest: true, Limit: PageSize, Offset: page * PageSize}

	items, err := s.store.ListSlotBookings(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	total, err := s.store.CountSlotBookings(ctx, domain.SlotBookingFilter{Booker: booker})
	if err != nil {
		return nil, fmt.Errorf("count history: %w", err)
	}
	return &Page{Items: items, Page: page, PageSize: PageSize, Total: total}, nil
}

// ListByDate returns the bookings of date. With includeBuffer the first slot of the next
// day and the last slot of the previous day are added, so a grid view can show bookings
// that spill over midnight.
func (s *Service) ListByDate(ctx context.Context, date time.Time, includeBuffer bool) ([]models.SlotBooking, error) {
	day := timegrid.Day(date)
	bookings, err := s.store.ListSlotBookings(ctx, domain.SlotBookingFilter{From: day, To: day})
	if err != nil {
		return nil, fmt.Errorf("list bookings by date: %w", err)
	}
	if !includeBuffer {
		return bookings, nil
	}

	first, last := 0, timegrid.LastSlotOfDay()
	next := day.AddDate(0, 0, 1)
	prev := day.AddDate(0, 0, -1)
	after, err := s.store.ListSlotBookings(ctx, domain.SlotBookingFilter{From: next, To: next, SlotStart: &first})
	if err != nil {
		return nil, fmt.Errorf("list next day bookings: %w", err)
	}
	before, err := s.store.ListSlotBookings(ctx, domain.SlotBookingFilter{From: prev, To: prev, SlotStart: &last})
	if err != nil {
		return nil, fmt.Errorf("list previous day bookings: %w", err)
	}

	bookings = append(bookings, after...)
	return append(bookings, before...), nil
}
