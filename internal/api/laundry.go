package api

import (
	"net/http"
	"strings"

	"guckelsberg/internal/clock"
	"guckelsberg/internal/domain"
	"guckelsberg/internal/laundry"
	"guckelsberg/internal/models"
	"guckelsberg/internal/timegrid"
)

// BookingRequest asks for one laundry slot.
type BookingRequest struct {
	Machine   string `json:"machine"`
	Date      string `json:"date"` // YYYY-MM-DD
	SlotStart *int   `json:"slot_start"`
}

// BatchRequest asks for several slots at once.
type BatchRequest struct {
	Items []BookingRequest `json:"items"`
}

// MachineRequest registers a machine.
type MachineRequest struct {
	Name         string             `json:"name"`
	Type         models.MachineType `json:"type"`
	SlotDuration int                `json:"slot_duration"`
}

// SlotResponse describes one regular grid slot.
type SlotResponse struct {
	Start int    `json:"start"`
	Label string `json:"label"`
}

func (s *HTTPServer) toItem(req BookingRequest) (laundry.Item, error) {
	if err := requireField("machine", req.Machine); err != nil {
		return laundry.Item{}, err
	}
	if err := requireField("date", req.Date); err != nil {
		return laundry.Item{}, err
	}
	if req.SlotStart == nil {
		return laundry.Item{}, domain.Rejected("slot_start is required")
	}
	date, err := s.parseDate("date", req.Date)
	if err != nil {
		return laundry.Item{}, err
	}
	return laundry.Item{Machine: req.Machine, Date: date, SlotStart: *req.SlotStart}, nil
}

// GET /api/laundry/slots
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	slots := timegrid.DaySlots()
	out := make([]SlotResponse, len(slots))
	for i, slot := range slots {
		out[i] = SlotResponse{Start: slot, Label: timegrid.FormatSlot(slot)}
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": out})
}

// GET /api/laundry/machines
func (s *HTTPServer) handleMachines(w http.ResponseWriter, r *http.Request) {
	machines, err := s.svc.Laundry.ListMachines(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"machines": machines})
}

// POST /api/laundry/machines
func (s *HTTPServer) handleCreateMachine(w http.ResponseWriter, r *http.Request) {
	if _, err := s.svc.Access.Require(r.Context(), roomFrom(r), models.RoleLaundryAdmin); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	var req MachineRequest
	if err := decode(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	m, err := s.svc.Laundry.CreateMachine(r.Context(), models.Machine{
		Name:         req.Name,
		Type:         models.MachineType(strings.ToUpper(string(req.Type))),
		SlotDuration: req.SlotDuration,
	})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// DELETE /api/laundry/machines/{name}
func (s *HTTPServer) handleDeleteMachine(w http.ResponseWriter, r *http.Request) {
	if _, err := s.svc.Access.Require(r.Context(), roomFrom(r), models.RoleLaundryAdmin); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if err := s.svc.Laundry.DeleteMachine(r.Context(), r.PathValue("name")); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/laundry/bookings?date=YYYY-MM-DD&buffer=true or ?from=YYYY-MM-DD
func (s *HTTPServer) handleLaundryBookings(w http.ResponseWriter, r *http.Request) {
	var (
		bookings []models.SlotBooking
		err      error
	)
	if r.URL.Query().Has("date") {
		date, perr := s.parseDate("date", r.URL.Query().Get("date"))
		if perr != nil {
			s.writeFailure(w, r, perr)
			return
		}
		bookings, err = s.svc.Laundry.ListByDate(r.Context(), date, r.URL.Query().Get("buffer") == "true")
	} else {
		from := clock.Today(s.svc.Clock)
		if r.URL.Query().Has("from") {
			from, err = s.parseDate("from", r.URL.Query().Get("from"))
		}
		if err == nil {
			bookings, err = s.svc.Laundry.ListFrom(r.Context(), from)
		}
	}
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": nonNil(bookings)})
}

// GET /api/laundry/bookings/mine?page=0
func (s *HTTPServer) handleLaundryMine(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 0)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	result, err := s.svc.Laundry.ListMine(r.Context(), roomFrom(r), page)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GET /api/laundry/bookings/upcoming
func (s *HTTPServer) handleLaundryUpcoming(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.svc.Laundry.ListUpcomingForUser(r.Context(), roomFrom(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": nonNil(bookings)})
}

// POST /api/laundry/bookings
func (s *HTTPServer) handleLaundryCreate(w http.ResponseWriter, r *http.Request) {
	var req BookingRequest
	if err := decode(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	item, err := s.toItem(req)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	booking, err := s.svc.Laundry.Create(r.Context(), roomFrom(r), item)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

// POST /api/laundry/bookings/batch
func (s *HTTPServer) handleLaundryBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := decode(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	items := make([]laundry.Item, 0, len(req.Items))
	for _, it := range req.Items {
		item, err := s.toItem(it)
		if err != nil {
			s.writeFailure(w, r, err)
			return
		}
		items = append(items, item)
	}
	bookings, err := s.svc.Laundry.CreateBatch(r.Context(), roomFrom(r), items)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"bookings": bookings})
}

// DELETE /api/laundry/bookings/{id}
func (s *HTTPServer) handleLaundryDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if err := s.svc.Laundry.Delete(r.Context(), id, roomFrom(r)); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
