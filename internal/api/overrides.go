package api

import (
	"net/http"
	"time"

	"guckelsberg/internal/models"
	"guckelsberg/internal/overrides"
)

// OverrideRequest creates an override rule. Omitted slots leave the rule open on that side.
type OverrideRequest struct {
	Machine   string                `json:"machine"`
	StartDate string                `json:"start_date"`
	EndDate   string                `json:"end_date"`
	StartSlot *int                  `json:"start_slot"`
	EndSlot   *int                  `json:"end_slot"`
	Status    models.OverrideStatus `json:"status"`
}

// OverridePatchRequest changes the given fields of a rule.
type OverridePatchRequest struct {
	StartDate *string                `json:"start_date"`
	EndDate   *string                `json:"end_date"`
	StartSlot *int                   `json:"start_slot"`
	EndSlot   *int                   `json:"end_slot"`
	Status    *models.OverrideStatus `json:"status"`
}

// optionalDate parses v when set; an empty string stays the zero date so the
// rule validation reports it.
func (s *HTTPServer) optionalDate(field, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return s.parseDate(field, v)
}

// GET /api/laundry/overrides?machine=&from=&to=
func (s *HTTPServer) handleOverrides(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.queryRange(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	rules, err := s.svc.Overrides.Search(r.Context(), r.URL.Query().Get("machine"), from, to)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"overrides": nonNil(rules)})
}

// GET /api/laundry/overrides/{id}
func (s *HTTPServer) handleGetOverride(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	rule, err := s.svc.Overrides.Get(r.Context(), id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// POST /api/laundry/overrides
func (s *HTTPServer) handleCreateOverride(w http.ResponseWriter, r *http.Request) {
	admin, err := s.svc.Access.Require(r.Context(), roomFrom(r), models.RoleLaundryAdmin)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	var req OverrideRequest
	if err := decode(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	start, err := s.optionalDate("start_date", req.StartDate)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	end, err := s.optionalDate("end_date", req.EndDate)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	rule, err := s.svc.Overrides.Create(r.Context(), models.Override{
		Machine:   req.Machine,
		StartDate: start,
		EndDate:   end,
		StartSlot: req.StartSlot,
		EndSlot:   req.EndSlot,
		Status:    req.Status,
	}, admin.RoomNumber)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

// PATCH /api/laundry/overrides/{id}
func (s *HTTPServer) handleUpdateOverride(w http.ResponseWriter, r *http.Request) {
	if _, err := s.svc.Access.Require(r.Context(), roomFrom(r), models.RoleLaundryAdmin); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	var req OverridePatchRequest
	if err := decode(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}

	patch := overrides.Patch{StartSlot: req.StartSlot, EndSlot: req.EndSlot, Status: req.Status}
	for _, f := range []struct {
		name string
		in   *string
		out  **time.Time
	}{
		{"start_date", req.StartDate, &patch.StartDate},
		{"end_date", req.EndDate, &patch.EndDate},
	} {
		if f.in == nil {
			continue
		}
		d, err := s.optionalDate(f.name, *f.in)
		if err != nil {
			s.writeFailure(w, r, err)
			return
		}
		*f.out = &d
	}

	rule, err := s.svc.Overrides.Update(r.Context(), id, patch)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// DELETE /api/laundry/overrides/{id}
func (s *HTTPServer) handleDeleteOverride(w http.ResponseWriter, r *http.Request) {
	if _, err := s.svc.Access.Require(r.Context(), roomFrom(r), models.RoleLaundryAdmin); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if err := s.svc.Overrides.Delete(r.Context(), id); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
