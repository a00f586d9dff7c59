package api

import (
	"net/http"

	"guckelsberg/internal/models"
)

type roleRequest struct {
	Role models.Role `json:"role"`
}

type limitsRequest struct {
	WasherMinutes *int `json:"washer_minutes_per_week"`
	DryerMinutes  *int `json:"dryer_minutes_per_week"`
}

type telegramRequest struct {
	ChatID int64 `json:"chat_id"`
}

// GET /api/me
func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.svc.Access.EnsureUser(r.Context(), roomFrom(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// PUT /api/me/telegram
func (s *HTTPServer) handleLinkTelegram(w http.ResponseWriter, r *http.Request) {
	var req telegramRequest
	if err := decode(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if err := s.svc.Access.LinkTelegram(r.Context(), roomFrom(r), req.ChatID); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/dashboard
func (s *HTTPServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.Dashboard.Summary(r.Context(), roomFrom(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GET /api/users
func (s *HTTPServer) handleUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Access.List(r.Context(), roomFrom(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// PUT /api/users/{room}/role
func (s *HTTPServer) handleSetRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decode(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if err := s.svc.Access.SetRole(r.Context(), roomFrom(r), r.PathValue("room"), req.Role); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PUT /api/users/{room}/limits
func (s *HTTPServer) handleSetLimits(w http.ResponseWriter, r *http.Request) {
	var req limitsRequest
	if err := decode(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	err := s.svc.Access.SetWeeklyLimits(r.Context(), roomFrom(r), r.PathValue("room"), req.WasherMinutes, req.DryerMinutes)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
