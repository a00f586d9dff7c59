package rooftop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"guckelsberg/internal/clock"
	"guckelsberg/internal/domain"
	"guckelsberg/internal/events"
	"guckelsberg/internal/metrics"
	"guckelsberg/internal/models"
	"guckelsberg/internal/timegrid"
)

// RequestInput is what a resident submits when asking for the rooftop.
type RequestInput struct {
	Date     time.Time `json:"date"`
	Reason   string    `json:"reason"`
	Contact  string    `json:"contact"`
	TimeSpan string    `json:"time_span"`
}

// Workflow reviews rooftop requests. Approval materialises a booking through Bookings.
type Workflow struct {
	store    domain.Store
	bookings *Bookings
	fsm      *FSM
	clock    clock.Clock
	events   events.Publisher
	logger   zerolog.Logger
}

// NewWorkflow creates the request workflow.
func NewWorkflow(store domain.Store, bookings *Bookings, clk clock.Clock, pub events.Publisher, logger zerolog.Logger) *Workflow {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Workflow{
		store:    store,
		bookings: bookings,
		fsm:      NewFSM(),
		clock:    clk,
		events:   pub,
		logger:   logger.With().Str("component", "rooftop_requests").Logger(),
	}
}

// Submit files a new request for requester.
func (w *Workflow) Submit(ctx context.Context, requester string, in RequestInput) (*models.RooftopRequest, error) {
	date := timegrid.Day(in.Date)
	if date.Before(clock.Today(w.clock)) {
		return nil, w.fail(domain.Rejected("Cannot request a date in the past."), "submit", requester)
	}

	req := &models.RooftopRequest{
		Booker:    requester,
		Date:      date,
		Reason:    strings.TrimSpace(in.Reason),
		Contact:   strings.TrimSpace(in.Contact),
		TimeSpan:  strings.TrimSpace(in.TimeSpan),
		Status:    models.RequestRequested,
		CreatedAt: w.clock.Now(),
	}
	err := w.store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		if _, err := domain.EnsureUser(ctx, tx, requester); err != nil {
			return err
		}
		active, err := tx.FindActiveRequest(ctx, requester, date)
		if err != nil {
			return err
		}
		if active != nil {
			return domain.Conflict("You already have a request for this date")
		}
		booking, err := tx.GetRooftopBookingByDate(ctx, date)
		if err != nil {
			return err
		}
		if booking != nil {
			return domain.Rejected(errBookingExists)
		}
		if err := tx.InsertRequest(ctx, req); err != nil {
			if errors.Is(err, domain.ErrDuplicate) {
				return domain.Conflict("You already have a request for this date")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, w.fail(err, "submit", requester)
	}

	w.publish(events.RooftopRequestSubmitted, req, requester)
	w.logger.Info().
		Int64("request_id", req.ID).
		Str("booker", requester).
		Str("date", date.Format(timegrid.DateLayout)).
		Msg("rooftop request submitted")
	return req, nil
}

// Approve accepts a pending request and books its date for the requester. Administrator-only.
func (w *Workflow) Approve(ctx context.Context, id int64, reviewer, decisionReason string) (*models.RooftopRequest, error) {
	var (
		req     *models.RooftopRequest
		booking *models.RooftopBooking
	)
	err := w.store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		req, err = w.pending(ctx, tx, id, models.RequestApproved)
		if err != nil {
			return err
		}

		now := w.clock.Now()
		req.Status = models.RequestApproved
		req.ReviewedBy = reviewer
		req.ReviewedAt = &now
		req.DecisionReason = strings.TrimSpace(decisionReason)
		if err := tx.UpdateRequest(ctx, req); err != nil {
			return err
		}

		booking = &models.RooftopBooking{Booker: req.Booker, Date: req.Date, Reason: req.Reason}
		return w.bookings.insert(ctx, tx, booking)
	})
	if err != nil {
		return nil, w.fail(err, "approve", reviewer)
	}

	metrics.IncRequestDecision("approved")
	w.bookings.created(ctx, booking, reviewer)
	w.publish(events.RooftopRequestApproved, req, reviewer)
	w.logger.Info().Int64("request_id", id).Str("by", reviewer).Int64("booking_id", booking.ID).Msg("rooftop request approved")
	return req, nil
}

// Reject declines a pending request. A non-blank reason is mandatory. Administrator-only.
func (w *Workflow) Reject(ctx context.Context, id int64, reviewer, decisionReason string) (*models.RooftopRequest, error) {
	var req *models.RooftopRequest
	err := w.store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		req, err = w.pending(ctx, tx, id, models.RequestRejected)
		if err != nil {
			return err
		}
		reason := strings.TrimSpace(decisionReason)
		if reason == "" {
			return domain.Rejected("Rejection reason is required")
		}

		now := w.clock.Now()
		req.Status = models.RequestRejected
		req.ReviewedBy = reviewer
		req.ReviewedAt = &now
		req.DecisionReason = reason
		return tx.UpdateRequest(ctx, req)
	})
	if err != nil {
		return nil, w.fail(err, "reject", reviewer)
	}

	metrics.IncRequestDecision("rejected")
	w.publish(events.RooftopRequestRejected, req, reviewer)
	w.logger.Info().Int64("request_id", id).Str("by", reviewer).Msg("rooftop request rejected")
	return req, nil
}

// Cancel withdraws requester's own pending request for a date that has not passed.
func (w *Workflow) Cancel(ctx context.Context, id int64, requester string) (*models.RooftopRequest, error) {
	var req *models.RooftopRequest
	err := w.store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		req, err = tx.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if req == nil {
			return domain.NotFound("Request not found")
		}
		if req.Booker != requester {
			return domain.Forbidden("You can only cancel your own requests.")
		}
		if !w.fsm.CanTransition(req.Status, models.RequestCancelled) {
			return domain.Rejected("Only pending requests can be cancelled")
		}
		if req.Date.Before(clock.Today(w.clock)) {
			return domain.Rejected("Cannot cancel past requests")
		}

		now := w.clock.Now()
		req.Status = models.RequestCancelled
		req.ReviewedBy = ""
		req.ReviewedAt = &now
		req.DecisionReason = ""
		return tx.UpdateRequest(ctx, req)
	})
	if err != nil {
		return nil, w.fail(err, "cancel", requester)
	}

	metrics.IncRequestDecision("cancelled")
	w.publish(events.RooftopRequestCancelled, req, requester)
	w.logger.Info().Int64("request_id", id).Str("by", requester).Msg("rooftop request cancelled")
	return req, nil
}

// pending loads a request that may move to next.
func (w *Workflow) pending(ctx context.Context, tx domain.Tx, id int64, next models.RequestStatus) (*models.RooftopRequest, error) {
	req, err := tx.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, domain.NotFound("Request not found")
	}
	if !w.fsm.CanTransition(req.Status, next) {
		return nil, domain.Rejected("Request is not pending")
	}
	return req, nil
}

// Get returns a request visible to viewer: its requester or an admin.
func (w *Workflow) Get(ctx context.Context, id int64, viewer Viewer) (*models.RooftopRequest, error) {
	req, err := w.store.GetRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if req == nil {
		return nil, domain.NotFound("Request not found")
	}
	if !viewer.Admin && req.Booker != viewer.Room {
		return nil, domain.Forbidden("You can only view your own requests.")
	}
	return req, nil
}

// ListMine returns requester's requests filtered by optional status and range.
func (w *Workflow) ListMine(ctx context.Context, requester string, status models.RequestStatus, from, to time.Time) ([]models.RooftopRequest, error) {
	return w.Search(ctx, domain.RequestFilter{Booker: requester, Status: status, From: from, To: to})
}

// Search lists requests, newest date first. Administrator-only unless scoped to the caller.
func (w *Workflow) Search(ctx context.Context, f domain.RequestFilter) ([]models.RooftopRequest, error) {
	requests, err := w.store.ListRequests(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("search requests: %w", err)
	}
	return requests, nil
}

// PendingCount returns the number of requests awaiting review.
func (w *Workflow) PendingCount(ctx context.Context) (int, error) {
	n, err := w.store.CountRequests(ctx, domain.RequestFilter{Status: models.RequestRequested})
	if err != nil {
		return 0, fmt.Errorf("count pending requests: %w", err)
	}
	return n, nil
}

func (w *Workflow) publish(eventType string, req *models.RooftopRequest, actor string) {
	w.events.Publish(events.Event{
		Type:   eventType,
		ID:     req.ID,
		Booker: req.Booker,
		Actor:  actor,
		Date:   req.Date,
		Reason: req.DecisionReason,
	})
}

func (w *Workflow) fail(err error, op, actor string) error {
	var rejection *domain.Error
	if errors.As(err, &rejection) {
		w.logger.Debug().Str("op", op).Str("by", actor).Str("kind", string(rejection.Kind)).Msg(rejection.Message)
		return err
	}
	w.logger.Error().Err(err).Str("op", op).Str("by", actor).Msg("rooftop request operation failed")
	return fmt.Errorf("%s: %w", op, err)
}
