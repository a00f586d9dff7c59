// Package rooftop books the rooftop by calendar date, directly or through reviewed requests.
package rooftop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"guckelsberg/internal/cache"
	"guckelsberg/internal/clock"
	"guckelsberg/internal/domain"
	"guckelsberg/internal/events"
	"guckelsberg/internal/metrics"
	"guckelsberg/internal/models"
	"guckelsberg/internal/timegrid"
)

const errBookingExists = "A booking for this date already exists"

// Viewer identifies who reads a listing. Reasons are shown to admins and to the booker only.
type Viewer struct {
	Room  string
	Admin bool
}

func (v Viewer) canSee(b *models.RooftopBooking) bool {
	return v.Admin || b.Booker == v.Room
}

// Bookings manages confirmed rooftop bookings. At most one booking exists per date.
type Bookings struct {
	store  domain.Store
	clock  clock.Clock
	events events.Publisher
	cache  *cache.Cache
	logger zerolog.Logger
}

// NewBookings creates the rooftop booking service. cache may be nil.
func NewBookings(store domain.Store, clk clock.Clock, pub events.Publisher, c *cache.Cache, logger zerolog.Logger) *Bookings {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Bookings{
		store:  store,
		clock:  clk,
		events: pub,
		cache:  c,
		logger: logger.With().Str("component", "rooftop").Logger(),
	}
}

// Create books date directly for booker. Administrator-only.
func (s *Bookings) Create(ctx context.Context, booker string, date time.Time, reason string) (*models.RooftopBooking, error) {
	date = timegrid.Day(date)
	if date.Before(clock.Today(s.clock)) {
		return nil, s.fail(domain.Rejected("Cannot book a date in the past."), "create booking", booker)
	}

	booking := &models.RooftopBooking{Booker: booker, Date: date, Reason: reason}
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		if _, err := domain.EnsureUser(ctx, tx, booker); err != nil {
			return err
		}
		return s.insert(ctx, tx, booking)
	})
	if err != nil {
		return nil, s.fail(err, "create booking", booker)
	}

	s.created(ctx, booking, booker)
	return booking, nil
}

// insert stores booking inside tx. The date uniqueness is checked up front and again by
// the store, so a lost race still surfaces as a conflict.
func (s *Bookings) insert(ctx context.Context, tx domain.Tx, booking *models.RooftopBooking) error {
	existing, err := tx.GetRooftopBookingByDate(ctx, booking.Date)
	if err != nil {
		return err
	}
	if existing != nil {
		return domain.Conflict(errBookingExists)
	}
	booking.CreatedAt = s.clock.Now()
	if err := tx.InsertRooftopBooking(ctx, booking); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return domain.Conflict(errBookingExists)
		}
		return err
	}
	return nil
}

// created runs the post-commit side effects of a new booking.
func (s *Bookings) created(ctx context.Context, b *models.RooftopBooking, actor string) {
	s.invalidate(ctx, b.Date)
	metrics.IncBookingCreated(metrics.Rooftop)
	s.events.Publish(events.Event{
		Type:   events.RooftopBookingCreated,
		ID:     b.ID,
		Booker: b.Booker,
		Actor:  actor,
		Date:   b.Date,
		Reason: b.Reason,
	})
	s.logger.Info().
		Int64("booking_id", b.ID).
		Str("booker", b.Booker).
		Str("date", b.Date.Format(timegrid.DateLayout)).
		Str("by", actor).
		Msg("rooftop booking created")
}

// Delete cancels a booking. Only the booker or an admin may do so, and only before its date.
func (s *Bookings) Delete(ctx context.Context, id int64, requester string, isAdmin bool) error {
	var booking *models.RooftopBooking
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		booking, err = tx.GetRooftopBooking(ctx, id)
		if err != nil {
			return err
		}
		if booking == nil {
			return domain.NotFound("Booking not found.")
		}
		if !isAdmin && booking.Booker != requester {
			return domain.Forbidden("You can only cancel your own bookings.")
		}
		if !booking.Date.After(clock.Today(s.clock)) {
			return domain.Rejected("Bookings can only be cancelled before their date.")
		}
		return tx.DeleteRooftopBooking(ctx, id)
	})
	if err != nil {
		return s.fail(err, "delete booking", requester)
	}

	s.invalidate(ctx, booking.Date)
	metrics.IncBookingDeleted(metrics.Rooftop)
	s.events.Publish(events.Event{
		Type:   events.RooftopBookingDeleted,
		ID:     booking.ID,
		Booker: booking.Booker,
		Actor:  requester,
		Date:   booking.Date,
	})
	s.logger.Info().Int64("booking_id", id).Str("by", requester).Msg("rooftop booking deleted")
	return nil
}

// ListByMonth returns the bookings of the month containing date.
func (s *Bookings) ListByMonth(ctx context.Context, date time.Time, viewer Viewer) ([]models.RooftopBooking, error) {
	first, last := monthBounds(date)
	key := monthKey(first)

	var bookings []models.RooftopBooking
	if !s.cache.Read(ctx, key, &bookings) {
		var err error
		bookings, err = s.store.ListRooftopBookings(ctx, domain.RooftopFilter{From: first, To: last})
		if err != nil {
			return nil, fmt.Errorf("list month: %w", err)
		}
		s.cache.Write(ctx, key, bookings)
	}
	return redact(bookings, viewer), nil
}

// ListByRange returns the bookings dated within [from, to].
func (s *Bookings) ListByRange(ctx context.Context, from, to time.Time, viewer Viewer) ([]models.RooftopBooking, error) {
	bookings, err := s.store.ListRooftopBookings(ctx, domain.RooftopFilter{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("list range: %w", err)
	}
	return redact(bookings, viewer), nil
}

// ListMine returns booker's bookings within the optional range, newest first.
func (s *Bookings) ListMine(ctx context.Context, booker string, from, to time.Time) ([]models.RooftopBooking, error) {
	bookings, err := s.store.ListRooftopBookings(ctx, domain.RooftopFilter{Booker: booker, From: from, To: to, Newest: true})
	if err != nil {
		return nil, fmt.Errorf("list my bookings: %w", err)
	}
	return bookings, nil
}

// Search lists bookings by optional range and booker, newest first. Administrator-only.
func (s *Bookings) Search(ctx context.Context, from, to time.Time, booker string) ([]models.RooftopBooking, error) {
	bookings, err := s.store.ListRooftopBookings(ctx, domain.RooftopFilter{Booker: booker, From: from, To: to, Newest: true})
	if err != nil {
		return nil, fmt.Errorf("search bookings: %w", err)
	}
	return bookings, nil
}

func (s *Bookings) invalidate(ctx context.Context, date time.Time) {
	first, _ := monthBounds(date)
	s.cache.Invalidate(ctx, monthKey(first))
}

func (s *Bookings) fail(err error, op, requester string) error {
	var rejection *domain.Error
	if errors.As(err, &rejection) {
		metrics.IncBookingRejected(metrics.Rooftop, string(rejection.Kind))
		s.logger.Debug().Str("op", op).Str("by", requester).Str("kind", string(rejection.Kind)).Msg(rejection.Message)
		return err
	}
	s.logger.Error().Err(err).Str("op", op).Str("by", requester).Msg("rooftop operation failed")
	return fmt.Errorf("%s: %w", op, err)
}

func redact(bookings []models.RooftopBooking, viewer Viewer) []models.RooftopBooking {
	out := make([]models.RooftopBooking, len(bookings))
	for i := range bookings {
		if viewer.canSee(&bookings[i]) {
			out[i] = bookings[i]
		} else {
			out[i] = bookings[i].Redacted()
		}
	}
	return out
}

func monthBounds(date time.Time) (first, last time.Time) {
	d := timegrid.Day(date)
	first = d.AddDate(0, 0, 1-d.Day())
	return first, first.AddDate(0, 1, -1)
}

func monthKey(first time.Time) string {
	return "rooftop:month:" + first.Format("2006-01")
}
