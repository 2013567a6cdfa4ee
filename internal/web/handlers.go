package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/bulkmail/internal/core"
	"github.com/JonMunkholm/bulkmail/internal/logging"
	"github.com/JonMunkholm/bulkmail/internal/web/views"
)

var errHistoryDisabled = errors.New("campaign history is not enabled")

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// renderFragment writes HTML components in order with one status.
func renderFragment(w http.ResponseWriter, r *http.Request, status int, parts ...templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	for _, c := range parts {
		if err := c.Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Error("render fragment", "error", err)
			return
		}
	}
}

// handlePage renders the full page with the session's current state.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	sess.mu.Lock()
	data := views.PageData{
		Templates:  core.AllTemplates(),
		Recipients: sess.store.Recipients(),
		Invalid:    sess.store.Invalid(),
		Summary:    sess.summary,
	}
	sess.mu.Unlock()

	renderFragment(w, r, http.StatusOK, views.Page(data))
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status   string                  `json:"status"`
	Provider string                  `json:"provider"`
	Sessions int                     `json:"sessions"`
	Sends    *core.SendLimiterStatus `json:"sends,omitempty"`
	History  bool                    `json:"history"`
	Uptime   string                  `json:"uptime"`
}

// handleHealth reports liveness plus send capacity.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "ok",
		Provider: s.submitter.Provider(),
		Sessions: s.sessions.count(),
		History:  s.history != nil,
		Uptime:   time.Since(s.startedAt).Round(time.Second).String(),
	}
	if l := s.submitter.Limiter(); l != nil {
		st := l.Status()
		resp.Sends = &st
	}
	writeJSON(w, http.StatusOK, resp)
}

// CampaignsResponse is the body of GET /api/campaigns.
type CampaignsResponse struct {
	Campaigns []core.CampaignRecord `json:"campaigns"`
	Count     int                   `json:"count"`
}

// handleListCampaigns returns recent send attempts, newest first.
func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondError(w, r, errHistoryDisabled, http.StatusNotFound)
		return
	}

	limit := parseIntParam(r, "limit", s.cfg.History.PageSize)
	records, err := s.history.List(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []core.CampaignRecord{}
	}
	writeJSON(w, http.StatusOK, CampaignsResponse{Campaigns: records, Count: len(records)})
}
