// Package api exposes the booking engines over a JSON HTTP interface.
// Callers are identified by a room number header set by an upstream identity provider.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"guckelsberg/internal/access"
	"guckelsberg/internal/clock"
	"guckelsberg/internal/dashboard"
	"guckelsberg/internal/laundry"
	"guckelsberg/internal/overrides"
	"guckelsberg/internal/rooftop"
)

// Config holds the HTTP adapter settings.
type Config struct {
	Address        string
	APIKey         string
	IdentityHeader string
	RateLimit      float64
	Burst          int
}

// Services are the engines the adapter exposes. Clock defaults to the real clock in loc.
type Services struct {
	Clock     clock.Clock
	Access    *access.Service
	Laundry   *laundry.Service
	Overrides *overrides.Service
	Rooftop   *rooftop.Bookings
	Requests  *rooftop.Workflow
	Dashboard *dashboard.Service
}

// HTTPServer serves the JSON API.
type HTTPServer struct {
	cfg     Config
	svc     Services
	loc     *time.Location
	limiter *limiterSet
	server  *http.Server
	logger  zerolog.Logger
}

// NewHTTPServer builds the server and its routes. Dates in requests are read in loc.
func NewHTTPServer(cfg Config, svc Services, loc *time.Location, logger zerolog.Logger) *HTTPServer {
	if cfg.IdentityHeader == "" {
		cfg.IdentityHeader = "X-Room-Number"
	}
	if loc == nil {
		loc = time.Local
	}
	if svc.Clock == nil {
		svc.Clock = clock.Real{Location: loc}
	}
	s := &HTTPServer{
		cfg:     cfg,
		svc:     svc,
		loc:     loc,
		limiter: newLimiterSet(cfg.RateLimit, cfg.Burst),
		logger:  logger.With().Str("component", "api").Logger(),
	}

	mux := http.NewServeMux()
	s.routes(mux)
	s.server = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.withRequestID(s.withAPIKey(mux)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the root handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start listens in the background. A listener failure is logged.
func (s *HTTPServer) Start() {
	go func() {
		s.logger.Info().Str("addr", s.cfg.Address).Msg("api server started")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("api server error")
		}
	}()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown api server: %w", err)
	}
	return nil
}

func (s *HTTPServer) routes(mux *http.ServeMux) {
	s.handle(mux, "GET /api/me", "me", s.handleMe)
	s.handle(mux, "PUT /api/me/telegram", "link_telegram", s.handleLinkTelegram)
	s.handle(mux, "GET /api/dashboard", "dashboard", s.handleDashboard)
	s.handle(mux, "GET /api/users", "users_list", s.handleUsers)
	s.handle(mux, "PUT /api/users/{room}/role", "users_role", s.handleSetRole)
	s.handle(mux, "PUT /api/users/{room}/limits", "users_limits", s.handleSetLimits)

	s.handle(mux, "GET /api/laundry/slots", "laundry_slots", s.handleSlots)
	s.handle(mux, "GET /api/laundry/machines", "machines_list", s.handleMachines)
	s.handle(mux, "POST /api/laundry/machines", "machines_create", s.handleCreateMachine)
	s.handle(mux, "DELETE /api/laundry/machines/{name}", "machines_delete", s.handleDeleteMachine)
	s.handle(mux, "GET /api/laundry/bookings", "laundry_list", s.handleLaundryBookings)
	s.handle(mux, "GET /api/laundry/bookings/mine", "laundry_mine", s.handleLaundryMine)
	s.handle(mux, "GET /api/laundry/bookings/upcoming", "laundry_upcoming", s.handleLaundryUpcoming)
	s.handle(mux, "POST /api/laundry/bookings", "laundry_create", s.handleLaundryCreate)
	s.handle(mux, "POST /api/laundry/bookings/batch", "laundry_batch", s.handleLaundryBatch)
	s.handle(mux, "DELETE /api/laundry/bookings/{id}", "laundry_delete", s.handleLaundryDelete)

	s.handle(mux, "GET /api/laundry/overrides", "overrides_search", s.handleOverrides)
	s.handle(mux, "GET /api/laundry/overrides/{id}", "overrides_get", s.handleGetOverride)
	s.handle(mux, "POST /api/laundry/overrides", "overrides_create", s.handleCreateOverride)
	s.handle(mux, "PATCH /api/laundry/overrides/{id}", "overrides_update", s.handleUpdateOverride)
	s.handle(mux, "DELETE /api/laundry/overrides/{id}", "overrides_delete", s.handleDeleteOverride)

	s.handle(mux, "GET /api/rooftop/bookings", "rooftop_list", s.handleRooftopBookings)
	s.handle(mux, "GET /api/rooftop/bookings/mine", "rooftop_mine", s.handleRooftopMine)
	s.handle(mux, "GET /api/rooftop/bookings/search", "rooftop_search", s.handleRooftopSearch)
	s.handle(mux, "POST /api/rooftop/bookings", "rooftop_create", s.handleRooftopCreate)
	s.handle(mux, "DELETE /api/rooftop/bookings/{id}", "rooftop_delete", s.handleRooftopDelete)

	s.handle(mux, "POST /api/rooftop/requests", "requests_submit", s.handleSubmitRequest)
	s.handle(mux, "GET /api/rooftop/requests", "requests_search", s.handleSearchRequests)
	s.handle(mux, "GET /api/rooftop/requests/mine", "requests_mine", s.handleMyRequests)
	s.handle(mux, "GET /api/rooftop/requests/pending/count", "requests_pending", s.handlePendingCount)
	s.handle(mux, "GET /api/rooftop/requests/{id}", "requests_get", s.handleGetRequest)
	s.handle(mux, "POST /api/rooftop/requests/{id}/approve", "requests_approve", s.handleApprove)
	s.handle(mux, "POST /api/rooftop/requests/{id}/reject", "requests_reject", s.handleReject)
	s.handle(mux, "POST /api/rooftop/requests/{id}/cancel", "requests_cancel", s.handleCancel)
}
