package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"financas/internal/core"
)

func (s *Server) recurringAvailable(w http.ResponseWriter) bool {
	if s.deps.Templates == nil || s.deps.Materializer == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "recurring templates are not configured"})
		return false
	}
	return true
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	if !s.recurringAvailable(w) {
		return
	}
	templates, err := s.deps.Templates.ListTemplates(r.Context(), queryBool(r, "active"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]templateJSON, len(templates))
	for i, t := range templates {
		out[i] = toTemplateJSON(t)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	if !s.recurringAvailable(w) {
		return
	}
	var body templateJSON
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := body.template()
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := s.deps.Templates.CreateTemplate(r.Context(), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t.ID = id
	writeJSON(w, http.StatusCreated, toTemplateJSON(t))
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	if !s.recurringAvailable(w) {
		return
	}
	t, err := s.deps.Templates.GetTemplate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateJSON(t))
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if !s.recurringAvailable(w) {
		return
	}
	if err := s.deps.Templates.DeleteTemplate(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMaterialize runs the materializer for the requested period, or for
// the current one when the body is empty or names no period.
func (s *Server) handleMaterialize(w http.ResponseWriter, r *http.Request) {
	if !s.recurringAvailable(w) {
		return
	}
	var body materializeRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, r, err)
			return
		}
	}
	period, err := parsePeriodOr(body.Period, core.PeriodOf(s.deps.Clock.Now()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	templates, err := s.deps.Templates.ListTemplates(r.Context(), true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.deps.Materializer.Materialize(r.Context(), templates, period)
	status, failed, err := batchOutcome(err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, materializeResponse{
		Period:  res.Period.String(),
		Created: toRecordsJSON(res.Created),
		Existed: res.Existed,
		NotDue:  res.NotDue,
		Failed:  failed,
	})
}
