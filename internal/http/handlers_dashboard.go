package http

import (
	"net/http"

	"pfm/internal/core"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := s.dashboard.Summary(r.Context(), identity(r))
	if err != nil {
		s.failPage(w, r, err, "dashboard", "Dashboard", "dashboard")
		return
	}
	s.renderPage(w, r, http.StatusOK, "dashboard", "Dashboard", "dashboard", "", summary)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := s.transactions.Overview(r.Context(), identity(r))
	if err != nil {
		s.failPage(w, r, err, "overview", "Overview", "overview")
		return
	}
	s.renderPage(w, r, http.StatusOK, "overview", "Overview", "overview", "", overview)
}

const adminActivityLimit = 100

type adminView struct {
	Stats  core.ActivityStats
	Recent []core.Activity
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	if s.activity == nil {
		s.renderPage(w, r, http.StatusOK, "admin", "Activity", "admin", "The activity journal is not configured", nil)
		return
	}
	stats, err := s.activity.Stats(r.Context())
	if err != nil {
		s.failPage(w, r, err, "admin", "Activity", "admin")
		return
	}
	recent, err := s.activity.Recent(r.Context(), adminActivityLimit)
	if err != nil {
		s.failPage(w, r, err, "admin", "Activity", "admin")
		return
	}
	s.renderPage(w, r, http.StatusOK, "admin", "Activity", "admin", "", adminView{Stats: stats, Recent: recent})
}
