// Package limits enforces per-resident booking limits: cooldown, horizon and weekly quota.
package limits

import (
	"context"
	"fmt"
	"time"

	"guckelsberg/internal/clock"
	"guckelsberg/internal/domain"
	"guckelsberg/internal/models"
	"guckelsberg/internal/timegrid"
)

// Defaults used when Config fields are zero.
const (
	DefaultCooldown      = 15 * time.Second
	DefaultHorizonDays   = 7
	DefaultWasherMinutes = 9 * 60
	DefaultDryerMinutes  = 18 * 60
)

// Config holds the system-wide limits.
type Config struct {
	Cooldown      time.Duration
	HorizonDays   int
	WasherMinutes int // weekly cap when the resident has no personal cap
	DryerMinutes  int
}

func (c Config) withDefaults() Config {
	if c.Cooldown == 0 {
		c.Cooldown = DefaultCooldown
	}
	if c.HorizonDays == 0 {
		c.HorizonDays = DefaultHorizonDays
	}
	if c.WasherMinutes == 0 {
		c.WasherMinutes = DefaultWasherMinutes
	}
	if c.DryerMinutes == 0 {
		c.DryerMinutes = DefaultDryerMinutes
	}
	return c
}

// Guard checks a candidate laundry booking against the resident's limits.
type Guard struct {
	cfg   Config
	clock clock.Clock
}

// NewGuard creates a guard; zero config fields take the defaults.
func NewGuard(cfg Config, clk clock.Clock) *Guard {
	return &Guard{cfg: cfg.withDefaults(), clock: clk}
}

// Config returns the effective limits.
func (g *Guard) Config() Config {
	return g.cfg
}

// Check runs the cooldown (when requested), horizon and quota checks in that order.
func (g *Guard) Check(ctx context.Context, repo domain.SlotBookingRepository, user *models.User,
	machine *models.Machine, date time.Time, cooldown bool,
) error {
	if cooldown {
		if err := g.CheckCooldown(user.LastBookingActivity); err != nil {
			return err
		}
	}
	if err := g.CheckHorizon(date); err != nil {
		return err
	}
	return g.CheckQuota(ctx, repo, user, machine, date)
}

// CheckCooldown rejects when the last booking action happened less than the cooldown ago.
func (g *Guard) CheckCooldown(lastActivity *time.Time) error {
	if lastActivity == nil {
		return nil
	}
	elapsed := int(g.clock.Now().Sub(*lastActivity) / time.Second)
	window := int(g.cfg.Cooldown / time.Second)
	if elapsed < window {
		return domain.CooldownActive(g.cfg.Cooldown, window-elapsed)
	}
	return nil
}

// CheckHorizon rejects dates more than HorizonDays after today.
func (g *Guard) CheckHorizon(date time.Time) error {
	last := clock.Today(g.clock).AddDate(0, 0, g.cfg.HorizonDays)
	if timegrid.Day(date).After(last) {
		return domain.HorizonExceeded(g.cfg.HorizonDays)
	}
	return nil
}

// CheckQuota rejects when the machine's slot would push the resident's weekly usage of
// that machine type over the cap.
func (g *Guard) CheckQuota(ctx context.Context, repo domain.SlotBookingRepository, user *models.User,
	machine *models.Machine, date time.Time,
) error {
	used, err := UsedMinutes(ctx, repo, user.RoomNumber, machine.Type, date)
	if err != nil {
		return err
	}
	limit := g.CapFor(user, machine.Type)
	if used+machine.EffectiveSlotDuration() > limit {
		return domain.QuotaExceeded(machine.Type, limit, used)
	}
	return nil
}

// CapFor returns the weekly minute cap of user for machines of type t.
func (g *Guard) CapFor(user *models.User, t models.MachineType) int {
	if user != nil {
		if personal := user.WeeklyCap(t); personal != nil {
			return *personal
		}
	}
	if t == models.MachineDryer {
		return g.cfg.DryerMinutes
	}
	return g.cfg.WasherMinutes
}

// UsedMinutes sums the slot durations of booker's bookings of type t in the Monday–Sunday
// week containing date.
func UsedMinutes(ctx context.Context, repo domain.SlotBookingRepository, booker string,
	t models.MachineType, date time.Time,
) (int, error) {
	monday, sunday := timegrid.WeekBounds(date)
	bookings, err := repo.ListSlotBookings(ctx, domain.SlotBookingFilter{
		Booker:      booker,
		MachineType: t,
		From:        monday,
		To:          sunday,
	})
	if err != nil {
		return 0, fmt.Errorf("load weekly bookings: %w", err)
	}

	used := 0
	for _, b := range bookings {
		used += timegrid.Duration(b.SlotDuration)
	}
	return used, nil
}
