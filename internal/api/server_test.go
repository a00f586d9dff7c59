package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guckelsberg/internal/access"
	"guckelsberg/internal/clock"
	"guckelsberg/internal/dashboard"
	"guckelsberg/internal/database"
	"guckelsberg/internal/domain"
	"guckelsberg/internal/events"
	"guckelsberg/internal/laundry"
	"guckelsberg/internal/limits"
	"guckelsberg/internal/models"
	"guckelsberg/internal/overrides"
	"guckelsberg/internal/rooftop"
)

const (
	testAPIKey = "valid-key"
	adminRoom  = "900"
)

// Wednesday 2024-06-12 10:00 UTC.
var start = time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, cfg Config) *HTTPServer {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), time.UTC, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, db.InsertMachine(ctx, &models.Machine{Name: "W1", Type: models.MachineWasher}))
	require.NoError(t, db.UpsertUser(ctx, &models.User{RoomNumber: adminRoom, Role: models.RoleMasterAdmin}))

	clk := clock.NewManual(start)
	bus := events.NewEventBus(logger)
	guard := limits.NewGuard(limits.Config{}, clk)
	bookings := rooftop.NewBookings(db, clk, bus, nil, logger)

	svc := Services{
		Clock:     clk,
		Access:    access.NewService(db, logger),
		Laundry:   laundry.NewService(db, guard, clk, bus, nil, logger),
		Overrides: overrides.NewService(db, clk, logger),
		Rooftop:   bookings,
		Requests:  rooftop.NewWorkflow(db, bookings, clk, bus, logger),
		Dashboard: dashboard.NewService(db, guard, clk),
	}
	if cfg.APIKey == "" {
		cfg.APIKey = testAPIKey
	}
	return NewHTTPServer(cfg, svc, time.UTC, logger)
}

// call sends body as JSON on behalf of room and decodes the response into out when given.
func call(t *testing.T, s *HTTPServer, method, path, room string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testAPIKey)
	if room != "" {
		req.Header.Set("X-Room-Number", room)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if out != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w
}

func TestMiddleware(t *testing.T) {
	s := newTestServer(t, Config{})

	t.Run("invalid api key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("X-API-Key", "wrong")
		req.Header.Set("X-Room-Number", "101")
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "invalid api key")
	})

	t.Run("missing identity", func(t *testing.T) {
		var resp ErrorResponse
		w := call(t, s, http.MethodGet, "/api/me", "", nil, &resp)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "missing X-Room-Number header", resp.Error)
	})

	t.Run("request id", func(t *testing.T) {
		w := call(t, s, http.MethodGet, "/api/me", "101", nil, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})
}

func TestMiddleware_RateLimit(t *testing.T) {
	s := newTestServer(t, Config{RateLimit: 0.001, Burst: 2})

	for i := 0; i < 2; i++ {
		w := call(t, s, http.MethodGet, "/api/laundry/slots", "101", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := call(t, s, http.MethodGet, "/api/laundry/slots", "101", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// Buckets are per room.
	w = call(t, s, http.MethodGet, "/api/laundry/slots", "102", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLaundryBookings_Validation(t *testing.T) {
	s := newTestServer(t, Config{})

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantError  string
	}{
		{
			name:       "invalid JSON",
			body:       "not json",
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid JSON body",
		},
		{
			name:       "missing machine",
			body:       map[string]any{"date": "2024-06-13", "slot_start": 90},
			wantStatus: http.StatusBadRequest,
			wantError:  "machine is required",
		},
		{
			name:       "missing slot",
			body:       map[string]any{"machine": "W1", "date": "2024-06-13"},
			wantStatus: http.StatusBadRequest,
			wantError:  "slot_start is required",
		},
		{
			name:       "invalid date",
			body:       map[string]any{"machine": "W1", "date": "13.06.2024", "slot_start": 90},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid date format; expected YYYY-MM-DD",
		},
		{
			name:       "unknown machine",
			body:       map[string]any{"machine": "W9", "date": "2024-06-13", "slot_start": 90},
			wantStatus: http.StatusNotFound,
			wantError:  "Machine not found: W9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp ErrorResponse
			w := call(t, s, http.MethodPost, "/api/laundry/bookings", "101", tt.body, &resp)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantError, resp.Error)
		})
	}
}

func TestLaundryBookings_Lifecycle(t *testing.T) {
	s := newTestServer(t, Config{})
	body := map[string]any{"machine": "W1", "date": "2024-06-13", "slot_start": 90}

	var booking models.SlotBooking
	w := call(t, s, http.MethodPost, "/api/laundry/bookings", "101", body, &booking)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "101", booking.Booker)

	var conflict ErrorResponse
	w = call(t, s, http.MethodPost, "/api/laundry/bookings", "102", body, &conflict)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, domain.KindSlotOverlap, conflict.Kind)

	var listed struct {
		Bookings []models.SlotBooking `json:"bookings"`
	}
	w = call(t, s, http.MethodGet, "/api/laundry/bookings?date=2024-06-13", "102", nil, &listed)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, listed.Bookings, 1)

	path := fmt.Sprintf("/api/laundry/bookings/%d", booking.ID)
	w = call(t, s, http.MethodDelete, path, "102", nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(t, s, http.MethodDelete, path, "101", nil, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = call(t, s, http.MethodDelete, path, "101", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMachines_RequireLaundryAdmin(t *testing.T) {
	s := newTestServer(t, Config{})
	body := map[string]any{"name": "D1", "type": "DRYER", "slot_duration": 180}

	w := call(t, s, http.MethodPost, "/api/laundry/machines", "101", body, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(t, s, http.MethodPost, "/api/laundry/machines", adminRoom, body, nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Machines []models.Machine `json:"machines"`
	}
	w = call(t, s, http.MethodGet, "/api/laundry/machines", "101", nil, &resp)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Machines, 2)
}

func TestRooftopRequests_Flow(t *testing.T) {
	s := newTestServer(t, Config{})
	body := map[string]any{"date": "2024-06-20", "reason": "birthday", "contact": "@anna", "time_span": "18-22"}

	var req models.RooftopRequest
	w := call(t, s, http.MethodPost, "/api/rooftop/requests", "101", body, &req)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.RequestRequested, req.Status)

	var dup ErrorResponse
	w = call(t, s, http.MethodPost, "/api/rooftop/requests", "101", body, &dup)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, domain.KindConflict, dup.Kind)

	var count map[string]int
	w = call(t, s, http.MethodGet, "/api/rooftop/requests/pending/count", adminRoom, nil, &count)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, count["pending"])

	approve := fmt.Sprintf("/api/rooftop/requests/%d/approve", req.ID)
	w = call(t, s, http.MethodPost, approve, "101", nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(t, s, http.MethodPost, approve, adminRoom, map[string]string{"reason": "enjoy"}, &req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RequestApproved, req.Status)
	assert.Equal(t, adminRoom, req.ReviewedBy)

	w = call(t, s, http.MethodPost, approve, adminRoom, nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var listed struct {
		Bookings []models.RooftopBooking `json:"bookings"`
	}
	w = call(t, s, http.MethodGet, "/api/rooftop/bookings?month=2024-06-01", "102", nil, &listed)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, listed.Bookings, 1)
	assert.Empty(t, listed.Bookings[0].Reason)

	cancel := fmt.Sprintf("/api/rooftop/requests/%d/cancel", req.ID)
	w = call(t, s, http.MethodPost, cancel, "101", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRooftopRequests_QueryValidation(t *testing.T) {
	s := newTestServer(t, Config{})

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "bad status",
			path:       "/api/rooftop/requests/mine?status=MAYBE",
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid status",
		},
		{
			name:       "inverted range",
			path:       "/api/rooftop/requests/mine?from=2024-06-20&to=2024-06-10",
			wantStatus: http.StatusBadRequest,
			wantError:  "from must be before or equal to to",
		},
		{
			name:       "bad id",
			path:       "/api/rooftop/requests/abc",
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid id",
		},
		{
			name:       "unknown request",
			path:       "/api/rooftop/requests/42",
			wantStatus: http.StatusNotFound,
			wantError:  "Request not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp ErrorResponse
			w := call(t, s, http.MethodGet, tt.path, "101", nil, &resp)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantError, resp.Error)
		})
	}
}

func TestSetRole(t *testing.T) {
	s := newTestServer(t, Config{})
	call(t, s, http.MethodGet, "/api/me", "101", nil, nil)

	w := call(t, s, http.MethodPut, "/api/users/101/role", "101", map[string]string{"role": "STAFF"}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(t, s, http.MethodPut, "/api/users/101/role", adminRoom, map[string]string{"role": "STAFF"}, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	var me models.User
	w = call(t, s, http.MethodGet, "/api/me", "101", nil, &me)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RoleStaff, me.Role)
}
