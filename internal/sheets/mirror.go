package sheets

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"guckelsberg/internal/clock"
	"guckelsberg/internal/domain"
	"guckelsberg/internal/events"
	"guckelsberg/internal/models"
	"guckelsberg/internal/timegrid"
)

const (
	horizonDays = 90
	syncTimeout = 30 * time.Second
)

var header = []interface{}{"Date", "Weekday", "Room", "Booked at"}

// Mirror rewrites the sheet with the rooftop bookings of the coming months.
// Reasons are not exported.
type Mirror struct {
	writer  Writer
	store   domain.RooftopRepository
	clock   clock.Clock
	sheet   string
	trigger chan struct{}
	logger  zerolog.Logger
}

// NewMirror creates the calendar mirror for sheet.
func NewMirror(writer Writer, store domain.RooftopRepository, clk clock.Clock, sheet string, logger zerolog.Logger) *Mirror {
	return &Mirror{
		writer:  writer,
		store:   store,
		clock:   clk,
		sheet:   sheet,
		trigger: make(chan struct{}, 1),
		logger:  logger.With().Str("component", "sheets").Logger(),
	}
}

// Subscribe requests a sync whenever a rooftop booking appears or disappears.
func (m *Mirror) Subscribe(bus *events.EventBus) {
	bus.Subscribe(func(events.Event) error {
		m.Request()
		return nil
	}, events.RooftopBookingCreated, events.RooftopBookingDeleted)
}

// Request schedules a sync. Requests made while one is pending are merged.
func (m *Mirror) Request() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

// Run syncs once on start and then on every request until ctx is done.
func (m *Mirror) Run(ctx context.Context) {
	m.Request()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.trigger:
			syncCtx, cancel := context.WithTimeout(ctx, syncTimeout)
			if err := m.Sync(syncCtx); err != nil {
				m.logger.Error().Err(err).Msg("sheet sync failed")
			}
			cancel()
		}
	}
}

// Sync rewrites the sheet.
func (m *Mirror) Sync(ctx context.Context) error {
	today := clock.Today(m.clock)
	bookings, err := m.store.ListRooftopBookings(ctx, domain.RooftopFilter{
		From: today,
		To:   today.AddDate(0, 0, horizonDays),
	})
	if err != nil {
		return fmt.Errorf("list rooftop bookings: %w", err)
	}

	rows := make([][]interface{}, 0, len(bookings)+1)
	rows = append(rows, header)
	for i := range bookings {
		rows = append(rows, rowValues(&bookings[i]))
	}

	if err := m.writer.Clear(ctx, m.sheet+"!A:D"); err != nil {
		return err
	}
	if err := m.writer.Update(ctx, m.sheet+"!A1", rows); err != nil {
		return err
	}
	m.logger.Debug().Int("rows", len(bookings)).Msg("sheet synced")
	return nil
}

func rowValues(b *models.RooftopBooking) []interface{} {
	return []interface{}{
		b.Date.Format(timegrid.DateLayout),
		b.Date.Weekday().String(),
		b.Booker,
		b.CreatedAt.Format(time.DateTime),
	}
}
