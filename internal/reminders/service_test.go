package reminders

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"guckelsberg/internal/clock"
	"guckelsberg/internal/database"
	"guckelsberg/internal/models"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendReminder(ctx context.Context, chatID int64, b models.SlotBooking) error {
	return m.Called(ctx, chatID, b.ID).Error(0)
}

func TestRunOnce(t *testing.T) {
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), time.UTC, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()

	require.NoError(t, db.InsertMachine(ctx, &models.Machine{Name: "W1", Type: models.MachineWasher}))
	require.NoError(t, db.InsertMachine(ctx, &models.Machine{Name: "W2", Type: models.MachineWasher}))
	require.NoError(t, db.UpsertUser(ctx, &models.User{RoomNumber: "101", TelegramChatID: 555}))
	require.NoError(t, db.UpsertUser(ctx, &models.User{RoomNumber: "102"}))
	require.NoError(t, db.UpsertUser(ctx, &models.User{RoomNumber: "103", TelegramChatID: 777}))

	date := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
	due := &models.SlotBooking{Machine: "W1", Booker: "101", Date: date, SlotStart: 630}     // 10:30
	silent := &models.SlotBooking{Machine: "W2", Booker: "102", Date: date, SlotStart: 630}  // no chat linked
	later := &models.SlotBooking{Machine: "W1", Booker: "101", Date: date, SlotStart: 720}   // 12:00
	started := &models.SlotBooking{Machine: "W1", Booker: "103", Date: date, SlotStart: 540} // already running
	for _, b := range []*models.SlotBooking{due, silent, later, started} {
		require.NoError(t, db.InsertSlotBooking(ctx, b))
	}

	clk := clock.NewManual(time.Date(2024, 6, 12, 10, 20, 0, 0, time.UTC))
	notifier := &mockNotifier{}
	notifier.On("SendReminder", mock.Anything, int64(555), due.ID).Return(nil).Once()

	metrics := NewMetrics(prometheus.NewRegistry(), "test")
	svc := NewService(db, notifier, clk, Config{Lead: 15 * time.Minute}, metrics, logger)

	sent, err := svc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	notifier.AssertExpectations(t)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SentTotal.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SentTotal.WithLabelValues("skipped")))

	// nothing is sent twice
	sent, err = svc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)

	t.Run("failed send is retried", func(t *testing.T) {
		b := &models.SlotBooking{Machine: "W2", Booker: "103", Date: date, SlotStart: 720}
		require.NoError(t, db.InsertSlotBooking(ctx, b))
		clk.Set(time.Date(2024, 6, 12, 11, 50, 0, 0, time.UTC))

		notifier.On("SendReminder", mock.Anything, int64(555), later.ID).Return(nil)
		notifier.On("SendReminder", mock.Anything, int64(777), b.ID).Return(errors.New("network down")).Once()
		sent, err := svc.RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, sent)

		notifier.On("SendReminder", mock.Anything, int64(777), b.ID).Return(nil).Once()
		sent, err = svc.RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, sent)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SentTotal.WithLabelValues("failed")))
	})
}

func TestStart_ReturnsAndScansInBackground(t *testing.T) {
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), time.UTC, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, db.InsertMachine(ctx, &models.Machine{Name: "W1", Type: models.MachineWasher}))
	require.NoError(t, db.UpsertUser(ctx, &models.User{RoomNumber: "101", TelegramChatID: 555}))
	b := &models.SlotBooking{Machine: "W1", Booker: "101", Date: time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC), SlotStart: 630}
	require.NoError(t, db.InsertSlotBooking(ctx, b))

	reminded := make(chan struct{})
	notifier := &mockNotifier{}
	notifier.On("SendReminder", mock.Anything, int64(555), b.ID).
		Run(func(mock.Arguments) { close(reminded) }).
		Return(nil).Once()

	clk := clock.NewManual(time.Date(2024, 6, 12, 10, 20, 0, 0, time.UTC))
	svc := NewService(db, notifier, clk, Config{Interval: 10 * time.Millisecond}, nil, logger)

	returned := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Start did not return")
	}

	select {
	case <-reminded:
	case <-time.After(2 * time.Second):
		t.Fatal("no reminder sent by the background loop")
	}
}
