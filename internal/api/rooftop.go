package api

import (
	"context"
	"net/http"

	"guckelsberg/internal/domain"
	"guckelsberg/internal/models"
	"guckelsberg/internal/rooftop"
)

// RooftopBookingRequest books a date directly on behalf of a resident.
type RooftopBookingRequest struct {
	Booker string `json:"booker"`
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

// RooftopRequestBody asks for the rooftop on a date.
type RooftopRequestBody struct {
	Date     string `json:"date"`
	Reason   string `json:"reason"`
	Contact  string `json:"contact"`
	TimeSpan string `json:"time_span"`
}

// DecisionRequest carries the reviewer's reason.
type DecisionRequest struct {
	Reason string `json:"reason"`
}

// viewer resolves the caller and whether it administers the rooftop.
func (s *HTTPServer) viewer(ctx context.Context, room string) (rooftop.Viewer, error) {
	user, err := s.svc.Access.EnsureUser(ctx, room)
	if err != nil {
		return rooftop.Viewer{}, err
	}
	return rooftop.Viewer{Room: user.RoomNumber, Admin: user.HasRole(models.RoleRooftopAdmin)}, nil
}

// GET /api/rooftop/bookings?month=YYYY-MM-DD or ?from=&to=
func (s *HTTPServer) handleRooftopBookings(w http.ResponseWriter, r *http.Request) {
	viewer, err := s.viewer(r.Context(), roomFrom(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	var bookings []models.RooftopBooking
	if r.URL.Query().Has("from") || r.URL.Query().Has("to") {
		from, to, err := s.queryRange(r)
		if err != nil {
			s.writeFailure(w, r, err)
			return
		}
		bookings, err = s.svc.Rooftop.ListByRange(r.Context(), from, to, viewer)
		if err != nil {
			s.writeFailure(w, r, err)
			return
		}
	} else {
		month := s.svc.Clock.Now()
		if v := r.URL.Query().Get("month"); v != "" {
			if month, err = s.parseDate("month", v); err != nil {
				s.writeFailure(w, r, err)
				return
			}
		}
		if bookings, err = s.svc.Rooftop.ListByMonth(r.Context(), month, viewer); err != nil {
			s.writeFailure(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": nonNil(bookings)})
}

// GET /api/rooftop/bookings/mine?from=&to=
func (s *HTTPServer) handleRooftopMine(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.queryRange(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	bookings, err := s.svc.Rooftop.ListMine(r.Context(), roomFrom(r), from, to)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": nonNil(bookings)})
}

// GET /api/rooftop/bookings/search?from=&to=&booker=
func (s *HTTPServer) handleRooftopSearch(w http.ResponseWriter, r *http.Request) {
	if _, err := s.svc.Access.Require(r.Context(), roomFrom(r), models.RoleRooftopAdmin); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	from, to, err := s.queryRange(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	bookings, err := s.svc.Rooftop.Search(r.Context(), from, to, r.URL.Query().Get("booker"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": nonNil(bookings)})
}

// POST /api/rooftop/bookings
func (s *HTTPServer) handleRooftopCreate(w http.ResponseWriter, r *http.Request) {
	if _, err := s.svc.Access.Require(r.Context(), roomFrom(r), models.RoleRooftopAdmin); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	var req RooftopBookingRequest
	if err := decode(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if err := requireField("booker", req.Booker); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	date, err := s.parseDate("date", req.Date)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	booking, err := s.svc.Rooftop.Create(r.Context(), req.Booker, date, req.Reason)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

// DELETE /api/rooftop/bookings/{id}
func (s *HTTPServer) handleRooftopDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	viewer, err := s.viewer(r.Context(), roomFrom(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if err := s.svc.Rooftop.Delete(r.Context(), id, viewer.Room, viewer.Admin); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/rooftop/requests
func (s *HTTPServer) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	var body RooftopRequestBody
	if err := decode(r, &body); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	date, err := s.parseDate("date", body.Date)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	req, err := s.svc.Requests.Submit(r.Context(), roomFrom(r), rooftop.RequestInput{
		Date:     date,
		Reason:   body.Reason,
		Contact:  body.Contact,
		TimeSpan: body.TimeSpan,
	})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// GET /api/rooftop/requests?status=&booker=&from=&to=
func (s *HTTPServer) handleSearchRequests(w http.ResponseWriter, r *http.Request) {
	if _, err := s.svc.Access.Require(r.Context(), roomFrom(r), models.RoleRooftopAdmin); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	filter, err := s.requestFilter(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	filter.Booker = r.URL.Query().Get("booker")
	requests, err := s.svc.Requests.Search(r.Context(), filter)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": nonNil(requests)})
}

// GET /api/rooftop/requests/mine?status=&from=&to=
func (s *HTTPServer) handleMyRequests(w http.ResponseWriter, r *http.Request) {
	filter, err := s.requestFilter(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	requests, err := s.svc.Requests.ListMine(r.Context(), roomFrom(r), filter.Status, filter.From, filter.To)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": nonNil(requests)})
}

// GET /api/rooftop/requests/pending/count
func (s *HTTPServer) handlePendingCount(w http.ResponseWriter, r *http.Request) {
	if _, err := s.svc.Access.Require(r.Context(), roomFrom(r), models.RoleRooftopAdmin); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	n, err := s.svc.Requests.PendingCount(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"pending": n})
}

// GET /api/rooftop/requests/{id}
func (s *HTTPServer) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	viewer, err := s.viewer(r.Context(), roomFrom(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	req, err := s.svc.Requests.Get(r.Context(), id, viewer)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// POST /api/rooftop/requests/{id}/approve
func (s *HTTPServer) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.decide(w, r, s.svc.Requests.Approve)
}

// POST /api/rooftop/requests/{id}/reject
func (s *HTTPServer) handleReject(w http.ResponseWriter, r *http.Request) {
	s.decide(w, r, s.svc.Requests.Reject)
}

type decision func(ctx context.Context, id int64, reviewer, reason string) (*models.RooftopRequest, error)

func (s *HTTPServer) decide(w http.ResponseWriter, r *http.Request, fn decision) {
	admin, err := s.svc.Access.Require(r.Context(), roomFrom(r), models.RoleRooftopAdmin)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	var body DecisionRequest
	if r.ContentLength != 0 {
		if err := decode(r, &body); err != nil {
			s.writeFailure(w, r, err)
			return
		}
	}
	req, err := fn(r.Context(), id, admin.RoomNumber, body.Reason)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// POST /api/rooftop/requests/{id}/cancel
func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	req, err := s.svc.Requests.Cancel(r.Context(), id, roomFrom(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *HTTPServer) requestFilter(r *http.Request) (domain.RequestFilter, error) {
	from, to, err := s.queryRange(r)
	if err != nil {
		return domain.RequestFilter{}, err
	}
	status := models.RequestStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.RequestRequested, models.RequestApproved, models.RequestRejected, models.RequestCancelled:
	default:
		return domain.RequestFilter{}, domain.Rejected("invalid status")
	}
	return domain.RequestFilter{Status: status, From: from, To: to}, nil
}
