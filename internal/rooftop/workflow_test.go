package rooftop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guckelsberg/internal/domain"
	"guckelsberg/internal/events"
	"guckelsberg/internal/models"
)

func TestWorkflow_Submit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.workflow.Submit(ctx, "101", RequestInput{Date: day(20), Reason: " BBQ ", Contact: "101@dorm", TimeSpan: "18-22"})
	require.NoError(t, err)
	assert.Equal(t, models.RequestRequested, req.Status)
	assert.Equal(t, "BBQ", req.Reason)
	assert.Equal(t, []string{events.RooftopRequestSubmitted}, f.eventTypes())

	_, err = f.bookings.Create(ctx, "103", day(22), "")
	require.NoError(t, err)

	tests := []struct {
		name      string
		requester string
		date      time.Time
		want      error
	}{
		{"past date", "102", day(11), domain.ErrRejected},
		{"second request for same date", "101", day(20), domain.ErrConflict},
		{"date already booked", "102", day(22), domain.ErrRejected},
		{"no identity", "", day(25), domain.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.workflow.Submit(ctx, tt.requester, RequestInput{Date: tt.date})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("other residents may request the same date", func(t *testing.T) {
		_, err := f.workflow.Submit(ctx, "102", RequestInput{Date: day(20)})
		assert.NoError(t, err)
	})
}

func TestWorkflow_Approve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.submit(t, "101", day(20))
	rival := f.submit(t, "102", day(20))

	req, err := f.workflow.Approve(ctx, id, "admin", "enjoy")
	require.NoError(t, err)
	assert.Equal(t, models.RequestApproved, req.Status)
	assert.Equal(t, "admin", req.ReviewedBy)
	require.NotNil(t, req.ReviewedAt)
	assert.Equal(t, "enjoy", req.DecisionReason)

	booking, err := f.db.GetRooftopBookingByDate(ctx, day(20))
	require.NoError(t, err)
	require.NotNil(t, booking)
	assert.Equal(t, "101", booking.Booker)
	assert.Equal(t, "party", booking.Reason)
	assert.Contains(t, f.eventTypes(), events.RooftopBookingCreated)
	assert.Contains(t, f.eventTypes(), events.RooftopRequestApproved)

	t.Run("approving twice", func(t *testing.T) {
		_, err := f.workflow.Approve(ctx, id, "admin", "")
		assert.ErrorIs(t, err, domain.ErrRejected)
	})

	t.Run("competing request loses and stays pending", func(t *testing.T) {
		_, err := f.workflow.Approve(ctx, rival, "admin", "")
		assert.ErrorIs(t, err, domain.ErrConflict)

		got, err := f.db.GetRequest(ctx, rival)
		require.NoError(t, err)
		assert.Equal(t, models.RequestRequested, got.Status)
		assert.Nil(t, got.ReviewedAt)
	})

	t.Run("unknown request", func(t *testing.T) {
		_, err := f.workflow.Approve(ctx, 999, "admin", "")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestWorkflow_ConcurrentApprovalsBookOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 5
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = f.submit(t, string(rune('A'+i)), day(20))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		approved  int
		conflicts int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := f.workflow.Approve(ctx, id, "admin", "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				approved++
			case domain.KindOf(err) == domain.KindConflict:
				conflicts++
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, approved)
	assert.Equal(t, n-1, conflicts)
}

func TestWorkflow_Reject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.submit(t, "101", day(20))

	_, err := f.workflow.Reject(ctx, id, "admin", "   ")
	require.Error(t, err)
	assert.Equal(t, "Rejection reason is required", err.Error())

	req, err := f.workflow.Reject(ctx, id, "admin", "noise")
	require.NoError(t, err)
	assert.Equal(t, models.RequestRejected, req.Status)
	assert.Equal(t, "noise", req.DecisionReason)

	_, err = f.workflow.Reject(ctx, id, "admin", "again")
	require.Error(t, err)
	assert.Equal(t, "Request is not pending", err.Error())

	booking, err := f.db.GetRooftopBookingByDate(ctx, day(20))
	require.NoError(t, err)
	assert.Nil(t, booking)

	// a rejected request no longer blocks a new one
	_, err = f.workflow.Submit(ctx, "101", RequestInput{Date: day(20)})
	assert.NoError(t, err)
}

func TestWorkflow_Cancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.submit(t, "101", day(13))

	_, err := f.workflow.Cancel(ctx, id, "102")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	t.Run("past request", func(t *testing.T) {
		f.clock.Set(start.Add(48 * time.Hour))
		defer f.clock.Set(start)

		_, err := f.workflow.Cancel(ctx, id, "101")
		require.Error(t, err)
		assert.Equal(t, "Cannot cancel past requests", err.Error())
	})

	req, err := f.workflow.Cancel(ctx, id, "101")
	require.NoError(t, err)
	assert.Equal(t, models.RequestCancelled, req.Status)
	assert.Empty(t, req.ReviewedBy)
	require.NotNil(t, req.ReviewedAt)
	assert.True(t, start.Equal(*req.ReviewedAt))

	_, err = f.workflow.Cancel(ctx, id, "101")
	require.Error(t, err)
	assert.Equal(t, "Only pending requests can be cancelled", err.Error())
	assert.Contains(t, f.eventTypes(), events.RooftopRequestCancelled)
}

func TestWorkflow_Queries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.submit(t, "101", day(14))
	f.submit(t, "101", day(20))
	f.submit(t, "102", day(20))
	_, err := f.workflow.Reject(ctx, a, "admin", "no")
	require.NoError(t, err)

	pending, err := f.workflow.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, pending)

	mine, err := f.workflow.ListMine(ctx, "101", "", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, day(20), mine[0].Date)

	rejected, err := f.workflow.ListMine(ctx, "101", models.RequestRejected, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, a, rejected[0].ID)

	all, err := f.workflow.Search(ctx, domain.RequestFilter{From: day(20), To: day(20)})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.workflow.Get(ctx, a, Viewer{Room: "102"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	got, err := f.workflow.Get(ctx, a, Viewer{Admin: true})
	require.NoError(t, err)
	assert.Equal(t, "101", got.Booker)
	_, err = f.workflow.Get(ctx, 999, Viewer{Admin: true})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
