package rooftop

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guckelsberg/internal/cache"
	"guckelsberg/internal/domain"
	"guckelsberg/internal/events"
)

func TestBookings_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.bookings.Create(ctx, "101", day(20), "birthday")
	require.NoError(t, err)
	assert.NotZero(t, b.ID)
	assert.Equal(t, day(20), b.Date)
	assert.True(t, start.Equal(b.CreatedAt))
	assert.Equal(t, []string{events.RooftopBookingCreated}, f.eventTypes())

	user, err := f.db.GetUser(ctx, "101")
	require.NoError(t, err)
	assert.NotNil(t, user, "booker is registered on first use")

	t.Run("today is allowed", func(t *testing.T) {
		_, err := f.bookings.Create(ctx, "102", day(12), "")
		assert.NoError(t, err)
	})

	t.Run("same date conflicts", func(t *testing.T) {
		_, err := f.bookings.Create(ctx, "102", day(20), "")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrConflict)
		assert.Equal(t, "A booking for this date already exists", err.Error())
	})

	t.Run("past date is rejected", func(t *testing.T) {
		_, err := f.bookings.Create(ctx, "102", day(11), "")
		assert.ErrorIs(t, err, domain.ErrRejected)
	})

	t.Run("missing identity", func(t *testing.T) {
		_, err := f.bookings.Create(ctx, "", day(25), "")
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})
}

func TestBookings_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tomorrow, err := f.bookings.Create(ctx, "101", day(13), "")
	require.NoError(t, err)
	today, err := f.bookings.Create(ctx, "101", day(12), "")
	require.NoError(t, err)

	tests := []struct {
		name      string
		id        int64
		requester string
		admin     bool
		want      error
	}{
		{"unknown booking", 999, "101", false, domain.ErrNotFound},
		{"someone else's booking", tomorrow.ID, "102", false, domain.ErrForbidden},
		{"booking dated today", today.ID, "101", false, domain.ErrRejected},
		{"admin cannot cancel today either", today.ID, "admin", true, domain.ErrRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.bookings.Delete(ctx, tt.id, tt.requester, tt.admin)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	require.NoError(t, f.bookings.Delete(ctx, tomorrow.ID, "admin", true))
	got, err := f.db.GetRooftopBooking(ctx, tomorrow.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Contains(t, f.eventTypes(), events.RooftopBookingDeleted)

	// the freed date can be booked again
	_, err = f.bookings.Create(ctx, "102", day(13), "")
	assert.NoError(t, err)
}

func TestBookings_ListByMonthRedactsReasons(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	f.bookings.cache = cache.New(rdb, time.Minute, zerolog.New(io.Discard))

	_, err := f.bookings.Create(ctx, "101", day(20), "birthday")
	require.NoError(t, err)
	_, err = f.bookings.Create(ctx, "102", day(30), "")
	require.NoError(t, err)
	_, err = f.bookings.Create(ctx, "102", time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), "")
	require.NoError(t, err)

	mine, err := f.bookings.ListByMonth(ctx, day(1), Viewer{Room: "101"})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "birthday", mine[0].Reason)
	assert.True(t, mr.Exists("guckelsberg:rooftop:month:2024-06"))

	other, err := f.bookings.ListByMonth(ctx, day(15), Viewer{Room: "102"})
	require.NoError(t, err)
	require.Len(t, other, 2)
	assert.Empty(t, other[0].Reason)

	admin, err := f.bookings.ListByMonth(ctx, day(15), Viewer{Admin: true})
	require.NoError(t, err)
	assert.Equal(t, "birthday", admin[0].Reason)

	// a new booking in the month drops the cached listing
	_, err = f.bookings.Create(ctx, "103", day(21), "")
	require.NoError(t, err)
	assert.False(t, mr.Exists("guckelsberg:rooftop:month:2024-06"))

	all, err := f.bookings.ListByMonth(ctx, day(15), Viewer{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestBookings_ListMineAndSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, d := range []int{14, 20, 26} {
		_, err := f.bookings.Create(ctx, "101", day(d), "")
		require.NoError(t, err)
	}
	_, err := f.bookings.Create(ctx, "102", day(15), "secret")
	require.NoError(t, err)

	mine, err := f.bookings.ListMine(ctx, "101", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, mine, 3)
	assert.Equal(t, day(26), mine[0].Date)

	found, err := f.bookings.Search(ctx, day(15), day(20), "")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, day(20), found[0].Date)
	assert.Equal(t, "secret", found[1].Reason)

	ranged, err := f.bookings.ListByRange(ctx, day(14), day(15), Viewer{Room: "101"})
	require.NoError(t, err)
	require.Len(t, ranged, 2)
	assert.Equal(t, day(14), ranged[0].Date)
	assert.Empty(t, ranged[1].Reason)
}
