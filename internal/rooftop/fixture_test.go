package rooftop

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"guckelsberg/internal/clock"
	"guckelsberg/internal/database"
	"guckelsberg/internal/events"
)

// Wednesday 2024-06-12 10:00 UTC.
var start = time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC)

func day(d int) time.Time {
	return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	bookings *Bookings
	workflow *Workflow
	db       *database.DB
	clock    *clock.Manual

	mu     sync.Mutex
	events []events.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), time.UTC, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{db: db, clock: clock.NewManual(start)}
	bus := events.NewEventBus(logger)
	bus.Subscribe(func(e events.Event) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.events = append(f.events, e)
		return nil
	},
		events.RooftopBookingCreated, events.RooftopBookingDeleted,
		events.RooftopRequestSubmitted, events.RooftopRequestApproved,
		events.RooftopRequestRejected, events.RooftopRequestCancelled,
	)

	f.bookings = NewBookings(db, f.clock, bus, nil, logger)
	f.workflow = NewWorkflow(db, f.bookings, f.clock, bus, logger)
	return f
}

func (f *fixture) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]string, 0, len(f.events))
	for _, e := range f.events {
		types = append(types, e.Type)
	}
	return types
}

func (f *fixture) submit(t *testing.T, requester string, date time.Time) int64 {
	t.Helper()
	req, err := f.workflow.Submit(context.Background(), requester, RequestInput{Date: date, Reason: "party", Contact: "+49 1"})
	require.NoError(t, err)
	return req.ID
}
