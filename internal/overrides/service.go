// Package overrides manages administrator rules that block or extend laundry slots.
package overrides

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"guckelsberg/internal/clock"
	"guckelsberg/internal/domain"
	"guckelsberg/internal/models"
)

// Patch carries the fields of an override update. Nil fields keep their current value.
type Patch struct {
	StartDate *time.Time
	EndDate   *time.Time
	StartSlot *int
	EndSlot   *int
	Status    *models.OverrideStatus
}

// Service manages override rules. All mutating methods are administrator-only.
type Service struct {
	store  domain.Store
	clock  clock.Clock
	logger zerolog.Logger
}

// NewService creates a new override service.
func NewService(store domain.Store, clk clock.Clock, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		clock:  clk,
		logger: logger.With().Str("component", "overrides").Logger(),
	}
}

// Create validates and stores a new rule on behalf of admin.
func (s *Service) Create(ctx context.Context, rule models.Override, admin string) (*models.Override, error) {
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		machine, err := tx.GetMachine(ctx, rule.Machine)
		if err != nil {
			return err
		}
		if machine == nil {
			return domain.NotFound("Machine not found: %s", rule.Machine)
		}
		if err := ValidateRule(&rule, machine); err != nil {
			return err
		}
		rule.CreatedBy = admin
		rule.CreatedAt = s.clock.Now()
		return tx.InsertOverride(ctx, &rule)
	})
	if err != nil {
		return nil, s.fail(err, "create override")
	}

	s.logger.Info().
		Int64("override_id", rule.ID).
		Str("machine", rule.Machine).
		Str("status", string(rule.Status)).
		Str("by", admin).
		Msg("override created")
	return &rule, nil
}

// Update applies p to the rule with the given id and re-validates the result.
func (s *Service) Update(ctx context.Context, id int64, p Patch) (*models.Override, error) {
	var updated *models.Override
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		rule, err := tx.GetOverride(ctx, id)
		if err != nil {
			return err
		}
		if rule == nil {
			return domain.NotFound("Override not found.")
		}
		machine, err := tx.GetMachine(ctx, rule.Machine)
		if err != nil {
			return err
		}
		if machine == nil {
			return domain.NotFound("Machine not found: %s", rule.Machine)
		}

		if p.StartDate != nil {
			rule.StartDate = *p.StartDate
		}
		if p.EndDate != nil {
			rule.EndDate = *p.EndDate
		}
		if p.StartSlot != nil {
			rule.StartSlot = p.StartSlot
		}
		if p.EndSlot != nil {
			rule.EndSlot = p.EndSlot
		}
		if p.Status != nil {
			rule.Status = *p.Status
		}
		if err := ValidateRule(rule, machine); err != nil {
			return err
		}
		if err := tx.UpdateOverride(ctx, rule); err != nil {
			return err
		}
		updated = rule
		return nil
	})
	if err != nil {
		return nil, s.fail(err, "update override")
	}

	s.logger.Info().Int64("override_id", id).Msg("override updated")
	return updated, nil
}

// Delete removes the rule with the given id.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		rule, err := tx.GetOverride(ctx, id)
		if err != nil {
			return err
		}
		if rule == nil {
			return domain.NotFound("Override not found.")
		}
		return tx.DeleteOverride(ctx, id)
	})
	if err != nil {
		return s.fail(err, "delete override")
	}

	s.logger.Info().Int64("override_id", id).Msg("override deleted")
	return nil
}

// Get returns a single rule.
func (s *Service) Get(ctx context.Context, id int64) (*models.Override, error) {
	rule, err := s.store.GetOverride(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get override: %w", err)
	}
	if rule == nil {
		return nil, domain.NotFound("Override not found.")
	}
	return rule, nil
}

// Search lists rules overlapping [from, to]. Empty machine and zero dates are not filtered.
func (s *Service) Search(ctx context.Context, machine string, from, to time.Time) ([]models.Override, error) {
	rules, err := s.store.ListOverrides(ctx, domain.OverrideFilter{Machine: machine, From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("search overrides: %w", err)
	}
	return rules, nil
}

// ActiveFor loads the rules of machine that are in force on date.
func ActiveFor(ctx context.Context, repo domain.OverrideRepository, machine string, date time.Time) ([]models.Override, error) {
	rules, err := repo.ListOverrides(ctx, domain.OverrideFilter{Machine: machine, From: date, To: date})
	if err != nil {
		return nil, fmt.Errorf("load overrides: %w", err)
	}
	return Active(rules, date), nil
}

func (s *Service) fail(err error, op string) error {
	var rejection *domain.Error
	if errors.As(err, &rejection) {
		s.logger.Debug().Str("op", op).Str("kind", string(rejection.Kind)).Msg(rejection.Message)
		return err
	}
	s.logger.Error().Err(err).Str("op", op).Msg("override operation failed")
	return fmt.Errorf("%s: %w", op, err)
}
