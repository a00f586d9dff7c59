// Package laundry books machines on the daily slot grid.
package laundry

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
	"guckelsberg/internal/limits"
	"guckelsberg/internal/metrics"
	"guckelsberg/internal/models"
	"guckelsberg/internal/overrides"
	"guckelsberg/internal/timegrid"
)

// PageSize is the number of bookings per page of a resident's history.
const PageSize = 20

const machinesCacheKey = "laundry:machines"

// Item is a requested slot.
type Item struct {
	Machine   string    `json:"machine"`
	Date      time.Time `json:"date"`
	SlotStart int       `json:"slot_start"`
}

// Page is one page of a resident's booking history.
type Page struct {
	Items    []models.SlotBooking `json:"items"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
	Total    int                  `json:"total"`
}

// Service creates and deletes laundry bookings.
type Service struct {
	store  domain.Store
	guard  *limits.Guard
	clock  clock.Clock
	events events.Publisher
	cache  *cache.Cache
	logger zerolog.Logger
}

// NewService creates a new laundry service. cache may be nil.
func NewService(store domain.Store, guard *limits.Guard, clk clock.Clock, pub events.Publisher,
	c *cache.Cache, logger zerolog.Logger,
) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{
		store:  store,
		guard:  guard,
		clock:  clk,
		events: pub,
		cache:  c,
		logger: logger.With().Str("component", "laundry").Logger(),
	}
}

// Create books one slot for requester.
func (s *Service) Create(ctx context.Context, requester string, item Item) (*models.SlotBooking, error) {
	var booking *models.SlotBooking
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		user, err := domain.EnsureUser(ctx, tx, requester)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		booking, err = s.book(ctx, tx, user, item, now, true)
		if err != nil {
			return err
		}
		return tx.TouchBookingActivity(ctx, requester, now)
	})
	if err != nil {
		return nil, s.fail(err, "create booking", requester)
	}

	metrics.IncBookingCreated(metrics.Laundry)
	s.publish(events.LaundryBookingCreated, booking, requester)
	s.logger.Info().
		Int64("booking_id", booking.ID).
		Str("machine", booking.Machine).
		Str("booker", requester).
		Str("slot", timegrid.FormatSlotOn(booking.Date, booking.SlotStart)).
		Msg("laundry booking created")
	return booking, nil
}

// CreateBatch books all items or none. The cooldown is checked for the first item only,
// against the activity stamp from before the batch.
func (s *Service) CreateBatch(ctx context.Context, requester string, items []Item) ([]models.SlotBooking, error) {
	if len(items) == 0 {
		return nil, domain.Rejected("At least one booking is required.")
	}

	var created []models.SlotBooking
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		user, err := domain.EnsureUser(ctx, tx, requester)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		created = make([]models.SlotBooking, 0, len(items))
		for i, item := range items {
			b, err := s.book(ctx, tx, user, item, now, i == 0)
			if err != nil {
				return err
			}
			created = append(created, *b)
		}
		return tx.TouchBookingActivity(ctx, requester, now)
	})
	if err != nil {
		return nil, s.fail(err, "create booking batch", requester)
	}

	metrics.AddBookingsCreated(metrics.Laundry, len(created))
	for i := range created {
		s.publish(events.LaundryBookingCreated, &created[i], requester)
	}
	s.logger.Info().Str("booker", requester).Int("count", len(created)).Msg("laundry booking batch created")
	return created, nil
}

// book validates item for user and inserts it inside tx.
func (s *Service) book(ctx context.Context, tx domain.Tx, user *models.User, item Item, now time.Time,
	checkCooldown bool,
) (*models.SlotBooking, error) {
	machine, err := tx.GetMachine(ctx, item.Machine)
	if err != nil {
		return nil, err
	}
	if machine == nil {
		return nil, domain.NotFound("Machine not found: %s", item.Machine)
	}

	date := timegrid.Day(item.Date)
	rules, err := overrides.ActiveFor(ctx, tx, machine.Name, date)
	if err != nil {
		return nil, err
	}

	if !timegrid.InDay(item.SlotStart) ||
		(!timegrid.IsValidSlotStart(item.SlotStart) && !overrides.IsExtended(rules, date, item.SlotStart)) {
		return nil, domain.InvalidSlot(machine.Name, item.SlotStart)
	}

	candidate := &models.SlotBooking{
		Machine:      machine.Name,
		MachineType:  machine.Type,
		SlotDuration: machine.SlotDuration,
		Booker:       user.RoomNumber,
		Date:         date,
		SlotStart:    item.SlotStart,
		CreatedAt:    now,
	}
	if !candidate.End().After(now) {
		return nil, domain.PastSlot(date, item.SlotStart)
	}
	if overrides.IsBlocked(rules, date, item.SlotStart) {
		return nil, domain.SlotBlocked(machine.Name, date, item.SlotStart)
	}

	// Bookings crossing midnight can overlap with the neighbouring days.
	neighbours, err := tx.ListSlotBookings(ctx, domain.SlotBookingFilter{
		Machine: machine.Name,
		From:    date.AddDate(0, 0, -1),
		To:      date.AddDate(0, 0, 1),
	})
	if err != nil {
		return nil, err
	}
	for i := range neighbours {
		if candidate.OverlapsWith(&neighbours[i]) {
			return nil, domain.SlotOverlap(machine.Name, date, item.SlotStart)
		}
	}

	if err := s.guard.Check(ctx, tx, user, machine, date, checkCooldown); err != nil {
		return nil, err
	}

	if err := tx.InsertSlotBooking(ctx, candidate); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.SlotOverlap(machine.Name, date, item.SlotStart)
		}
		return nil, err
	}
	return candidate, nil
}

// Delete removes requester's booking while it is still in the future.
func (s *Service) Delete(ctx context.Context, id int64, requester string) error {
	var booking *models.SlotBooking
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		booking, err = tx.GetSlotBooking(ctx, id)
		if err != nil {
			return err
		}
		if booking == nil {
			return domain.NotFound("Booking not found.")
		}
		if booking.Booker != requester {
			return domain.Forbidden("You can only delete your own bookings.")
		}
		now := s.clock.Now()
		if booking.IsInPast(now) || booking.IsOngoing(now) {
			return domain.Rejected("Cannot delete a booking that is in the past or ongoing.")
		}
		return tx.DeleteSlotBooking(ctx, id)
	})
	if err != nil {
		return s.fail(err, "delete booking", requester)
	}

	metrics.IncBookingDeleted(metrics.Laundry)
	s.publish(events.LaundryBookingDeleted, booking, requester)
	s.logger.Info().Int64("booking_id", id).Str("booker", requester).Msg("laundry booking deleted")
	return nil
}

func (s *Service) publish(eventType string, b *models.SlotBooking, actor string) {
	s.events.Publish(events.Event{
		Type:      eventType,
		ID:        b.ID,
		Booker:    b.Booker,
		Actor:     actor,
		Machine:   b.Machine,
		Date:      b.Date,
		SlotStart: b.SlotStart,
	})
}

// fail logs err and wraps unexpected failures. Rejections pass through untouched.
func (s *Service) fail(err error, op, requester string) error {
	var rejection *domain.Error
	if errors.As(err, &rejection) {
		metrics.IncBookingRejected(metrics.Laundry, string(rejection.Kind))
		s.logger.Debug().Str("op", op).Str("booker", requester).Str("kind", string(rejection.Kind)).Msg(rejection.Message)
		return err
	}
	s.logger.Error().Err(err).Str("op", op).Str("booker", requester).Msg("laundry operation failed")
	return fmt.Errorf("%s: %w", op, err)
}
