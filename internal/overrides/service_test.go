package overrides

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guckelsberg/internal/clock"
	"guckelsberg/internal/database"
	"guckelsberg/internal/domain"
	"guckelsberg/internal/models"
)

func newService(t *testing.T) (*Service, *database.DB) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), time.UTC, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, db.InsertMachine(ctx, &models.Machine{Name: "W1", Type: models.MachineWasher}))
	require.NoError(t, db.InsertMachine(ctx, &models.Machine{Name: "D1", Type: models.MachineDryer, SlotDuration: 135}))

	clk := clock.NewManual(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	return NewService(db, clk, logger), db
}

func TestService_CreateAndSearch(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, models.Override{
		Machine: "W1", StartDate: date(6, 10), EndDate: date(6, 12),
		StartSlot: slot(0), EndSlot: slot(180), Status: models.OverrideBlocked,
	}, "001")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "001", created.CreatedBy)

	_, err = svc.Create(ctx, models.Override{
		Machine: "D1", StartDate: date(7, 1), EndDate: date(7, 1), Status: models.OverrideExtended,
	}, "001")
	require.NoError(t, err)

	found, err := svc.Search(ctx, "", date(6, 12), date(6, 30))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, created.ID, found[0].ID)

	all, err := svc.Search(ctx, "", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyDryer, err := svc.Search(ctx, "D1", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, onlyDryer, 1)
}

func TestService_CreateRejects(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, models.Override{Machine: "X9", StartDate: date(6, 1), EndDate: date(6, 1), Status: models.OverrideBlocked}, "001")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Create(ctx, models.Override{Machine: "W1", StartDate: date(6, 1), EndDate: date(6, 1), StartSlot: slot(45), Status: models.OverrideBlocked}, "001")
	assert.ErrorIs(t, err, domain.ErrInvalidOverrideRange)
}

func TestService_UpdatePatch(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, models.Override{
		Machine: "W1", StartDate: date(6, 10), EndDate: date(6, 12),
		StartSlot: slot(90), EndSlot: slot(270), Status: models.OverrideBlocked,
	}, "001")
	require.NoError(t, err)

	newEnd := date(6, 20)
	updated, err := svc.Update(ctx, created.ID, Patch{EndDate: &newEnd})
	require.NoError(t, err)
	assert.Equal(t, newEnd, updated.EndDate)
	assert.Equal(t, date(6, 10), updated.StartDate)
	require.NotNil(t, updated.StartSlot)
	assert.Equal(t, 90, *updated.StartSlot)
	assert.Equal(t, models.OverrideBlocked, updated.Status)

	// The merged rule is re-validated.
	_, err = svc.Update(ctx, created.ID, Patch{StartSlot: slot(360)})
	assert.EqualError(t, err, "End slot must be greater than or equal to start slot.")

	extended := models.OverrideExtended
	updated, err = svc.Update(ctx, created.ID, Patch{Status: &extended})
	require.NoError(t, err)
	assert.Equal(t, models.OverrideExtended, updated.Status)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OverrideExtended, got.Status)
	assert.Equal(t, newEnd, got.EndDate)

	_, err = svc.Update(ctx, 999, Patch{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_Delete(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, models.Override{Machine: "W1", StartDate: date(6, 10), EndDate: date(6, 10), Status: models.OverrideBlocked}, "001")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))
	assert.ErrorIs(t, svc.Delete(ctx, created.ID), domain.ErrNotFound)

	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestActiveFor(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, models.Override{Machine: "W1", StartDate: date(6, 10), EndDate: date(6, 12), Status: models.OverrideBlocked}, "001")
	require.NoError(t, err)

	rules, err := ActiveFor(ctx, db, "W1", date(6, 11))
	require.NoError(t, err)
	assert.True(t, IsBlocked(rules, date(6, 11), 0))

	rules, err = ActiveFor(ctx, db, "D1", date(6, 11))
	require.NoError(t, err)
	assert.Empty(t, rules)
}
