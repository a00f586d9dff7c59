package laundry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"guckelsberg/internal/domain"
	"guckelsberg/internal/models"
	"guckelsberg/internal/timegrid"
)

// ListMachines returns all machines, from cache when possible.
func (s *Service) ListMachines(ctx context.Context) ([]models.Machine, error) {
	var machines []models.Machine
	if s.cache.Read(ctx, machinesCacheKey, &machines) {
		return machines, nil
	}

	machines, err := s.store.ListMachines(ctx)
	if err != nil {
		return nil, fmt.Errorf("list machines: %w", err)
	}
	s.cache.Write(ctx, machinesCacheKey, machines)
	return machines, nil
}

// CreateMachine registers a new machine. Administrator-only.
func (s *Service) CreateMachine(ctx context.Context, m models.Machine) (*models.Machine, error) {
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return nil, domain.Rejected("Machine name is required.")
	}
	if !m.Type.Valid() {
		return nil, domain.Rejected("Machine type must be WASHER or DRYER.")
	}
	if m.SlotDuration < 0 || m.SlotDuration >= timegrid.MinutesPerDay {
		return nil, domain.Rejected("Slot duration must be between 0 and 1439 minutes.")
	}
	m.CreatedAt = s.clock.Now()

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		existing, err := tx.GetMachine(ctx, m.Name)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.Conflict("Machine with this name already exists")
		}
		if err := tx.InsertMachine(ctx, &m); err != nil {
			if errors.Is(err, domain.ErrDuplicate) {
				return domain.Conflict("Machine with this name already exists")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(err, "create machine", "")
	}

	s.cache.Invalidate(ctx, machinesCacheKey)
	s.logger.Info().Str("machine", m.Name).Str("type", string(m.Type)).Int("slot_duration", m.SlotDuration).Msg("machine created")
	return &m, nil
}

// DeleteMachine removes a machine with its bookings and overrides. Administrator-only.
func (s *Service) DeleteMachine(ctx context.Context, name string) error {
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		existing, err := tx.GetMachine(ctx, name)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.NotFound("Machine not found: %s", name)
		}
		return tx.DeleteMachine(ctx, name)
	})
	if err != nil {
		return s.fail(err, "delete machine", "")
	}

	s.cache.Invalidate(ctx, machinesCacheKey)
	s.logger.Info().Str("machine", name).Msg("machine deleted")
	return nil
}

// InvalidateMachines drops the cached catalog, e.g. after a catalog file sync.
func (s *Service) InvalidateMachines(ctx context.Context) {
	s.cache.Invalidate(ctx, machinesCacheKey)
}
