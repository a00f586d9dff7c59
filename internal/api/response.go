package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"guckelsberg/internal/access"
	"guckelsberg/internal/domain"
	"guckelsberg/internal/models"
	"guckelsberg/internal/timegrid"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error            string             `json:"error"`
	Kind             domain.Kind        `json:"kind,omitempty"`
	RemainingSeconds int                `json:"remaining_seconds,omitempty"`
	MachineType      models.MachineType `json:"machine_type,omitempty"`
	CapMinutes       int                `json:"cap_minutes,omitempty"`
	UsedMinutes      int                `json:"used_minutes,omitempty"`
	MaxDays          int                `json:"max_days,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// statusFor maps a rejection kind to its HTTP status.
func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindConflict, domain.KindSlotOverlap:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// writeFailure reports err. Rejections keep their message; anything else is an internal error.
func (s *HTTPServer) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	if access.IsAccessDenied(err) {
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: err.Error(), Kind: domain.KindForbidden})
		return
	}
	var rejection *domain.Error
	if errors.As(err, &rejection) {
		writeJSON(w, statusFor(rejection.Kind), ErrorResponse{
			Error:            rejection.Error(),
			Kind:             rejection.Kind,
			RemainingSeconds: rejection.RemainingSeconds,
			MachineType:      rejection.MachineType,
			CapMinutes:       rejection.CapMinutes,
			UsedMinutes:      rejection.UsedMinutes,
			MaxDays:          rejection.MaxDays,
		})
		return
	}
	s.logger.Error().Err(err).Str("request_id", requestID(r.Context())).Str("path", r.URL.Path).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

// decode reads a JSON body into v, rejecting unknown fields.
func decode(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return domain.Rejected("invalid JSON body")
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Rejected("invalid id")
	}
	return id, nil
}

func (s *HTTPServer) parseDate(field, value string) (time.Time, error) {
	d, err := timegrid.ParseDate(value, s.loc)
	if err != nil {
		return time.Time{}, domain.Rejected("invalid %s format; expected YYYY-MM-DD", field)
	}
	return d, nil
}

// queryDate parses an optional date query parameter. Absent means zero.
func (s *HTTPServer) queryDate(r *http.Request, field string) (time.Time, error) {
	v := r.URL.Query().Get(field)
	if v == "" {
		return time.Time{}, nil
	}
	return s.parseDate(field, v)
}

func (s *HTTPServer) queryRange(r *http.Request) (from, to time.Time, err error) {
	if from, err = s.queryDate(r, "from"); err != nil {
		return
	}
	if to, err = s.queryDate(r, "to"); err != nil {
		return
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		err = domain.Rejected("from must be before or equal to to")
	}
	return
}

func queryInt(r *http.Request, field string, def int) (int, error) {
	v := r.URL.Query().Get(field)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, domain.Rejected("invalid %s", field)
	}
	return n, nil
}

func requireField(name, value string) error {
	if value == "" {
		return domain.Rejected("%s is required", name)
	}
	return nil
}
