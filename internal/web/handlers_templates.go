package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/bulkmail/internal/core"
	"github.com/JonMunkholm/bulkmail/internal/web/views"
)

// handleListTemplates returns the template catalog in display order.
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, core.AllTemplates())
}

func (s *Server) renderTemplate(key string) (core.RenderedTemplate, error) {
	return core.RenderTemplate(key, core.TemplateVars{
		SenderName: s.cfg.Mail.FromName,
		Now:        time.Now(),
	})
}

// handleGetTemplate returns one template rendered for the sender.
func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.renderTemplate(chi.URLParam(r, "key"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, core.ErrTemplateNotFound) {
			status = http.StatusNotFound
		}
		s.respondError(w, r, err, status)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleSelectTemplate swaps the compose fields for the selected template.
// An empty selection clears both fields.
func (s *Server) handleSelectTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.renderTemplate(r.URL.Query().Get("template"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, core.ErrTemplateNotFound) {
			status = http.StatusNotFound
		}
		s.respondError(w, r, err, status)
		return
	}
	if !isHTMX(r) {
		writeJSON(w, http.StatusOK, t)
		return
	}
	renderFragment(w, r, http.StatusOK, views.ComposeFields(t))
}
