// Package reminders messages residents shortly before their laundry slot starts.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"guckelsberg/internal/clock"
	"guckelsberg/internal/domain"
	"guckelsberg/internal/models"
)

// Store is the storage the reminder service reads and marks.
type Store interface {
	ListSlotBookings(ctx context.Context, f domain.SlotBookingFilter) ([]models.SlotBooking, error)
	MarkReminderSent(ctx context.Context, id int64) error
	GetUser(ctx context.Context, roomNumber string) (*models.User, error)
}

// Notifier delivers a reminder to a Telegram chat.
type Notifier interface {
	SendReminder(ctx context.Context, chatID int64, b models.SlotBooking) error
}

// Config tunes the reminder loop.
type Config struct {
	Lead     time.Duration
	Interval time.Duration
	// Rate caps outgoing messages per second.
	Rate  float64
	Burst int
}

// Service finds bookings that start within the lead time and reminds their bookers once.
type Service struct {
	store    Store
	notifier Notifier
	clock    clock.Clock
	cfg      Config
	limiter  *rate.Limiter
	metrics  *Metrics
	logger   zerolog.Logger
}

// NewService creates the reminder service. metrics may be nil.
func NewService(store Store, notifier Notifier, clk clock.Clock, cfg Config, metrics *Metrics, logger zerolog.Logger) *Service {
	if cfg.Lead <= 0 {
		cfg.Lead = 15 * time.Minute
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 20
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 30
	}
	return &Service{
		store:    store,
		notifier: notifier,
		clock:    clk,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		metrics:  metrics,
		logger:   logger.With().Str("component", "reminders").Logger(),
	}
}

// Start launches the scan loop in the background and returns. The loop stops when ctx is done.
func (s *Service) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
					s.logger.Error().Err(err).Msg("reminder scan failed")
				}
			}
		}
	}()
	s.logger.Info().Dur("lead", s.cfg.Lead).Dur("interval", s.cfg.Interval).Msg("reminders started")
}

// RunOnce sends the reminders that are due now and returns how many were delivered.
func (s *Service) RunOnce(ctx context.Context) (int, error) {
	due, err := s.due(ctx)
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.Due.Set(float64(len(due)))
	}

	sent := 0
	for i := range due {
		if err := s.limiter.Wait(ctx); err != nil {
			return sent, fmt.Errorf("rate limiter: %w", err)
		}
		ok, err := s.remind(ctx, &due[i])
		if err != nil {
			return sent, err
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}

// due returns unreminded bookings starting in (now, now+lead].
func (s *Service) due(ctx context.Context) ([]models.SlotBooking, error) {
	now := s.clock.Now()
	horizon := now.Add(s.cfg.Lead)
	bookings, err := s.store.ListSlotBookings(ctx, domain.SlotBookingFilter{
		From: clock.Today(s.clock),
		To:   horizon,
	})
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	due := bookings[:0]
	for _, b := range bookings {
		start := b.Start()
		if !b.ReminderSent && start.After(now) && !start.After(horizon) {
			due = append(due, b)
		}
	}
	return due, nil
}

// remind sends one reminder. Bookers without a linked chat are marked as handled.
// A failed send is retried on the next scan while the slot is still within the lead time.
func (s *Service) remind(ctx context.Context, b *models.SlotBooking) (bool, error) {
	user, err := s.store.GetUser(ctx, b.Booker)
	if err != nil {
		return false, fmt.Errorf("load user %s: %w", b.Booker, err)
	}
	if user == nil || user.TelegramChatID == 0 {
		s.observe("skipped")
		return false, s.mark(ctx, b)
	}

	started := time.Now()
	err = s.notifier.SendReminder(ctx, user.TelegramChatID, *b)
	if s.metrics != nil {
		s.metrics.SendDuration.Observe(time.Since(started).Seconds())
	}
	if err != nil {
		s.observe("failed")
		s.logger.Warn().Err(err).Int64("booking_id", b.ID).Str("booker", b.Booker).Msg("reminder not delivered")
		return false, nil
	}

	s.observe("sent")
	s.logger.Info().Int64("booking_id", b.ID).Str("booker", b.Booker).Msg("reminder sent")
	return true, s.mark(ctx, b)
}

func (s *Service) mark(ctx context.Context, b *models.SlotBooking) error {
	if err := s.store.MarkReminderSent(ctx, b.ID); err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return nil
}

func (s *Service) observe(status string) {
	if s.metrics != nil {
		s.metrics.SentTotal.WithLabelValues(status).Inc()
	}
}
