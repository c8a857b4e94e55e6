package server

import (
	"context"
	"net/http"

	"github.com/mwarner/greenflow/internal/history"
	"github.com/mwarner/greenflow/internal/script"
)

func (s *Server) listScriptsHandler(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.scripts.List()
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"scripts": summaries})
}

func (s *Server) createScriptHandler(w http.ResponseWriter, r *http.Request) {
	var sc script.Script
	if !s.decode(w, r, &sc) {
		return
	}
	if sc.ID == "" || sc.Name == "" || sc.Host == "" {
		s.writeError(w, http.StatusBadRequest, "id, name and host are required")
		return
	}
	if err := s.scripts.Create(&sc); err != nil {
		s.writeOpError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, &sc)
}

func (s *Server) getScriptHandler(w http.ResponseWriter, r *http.Request) {
	sc, err := s.scripts.Get(r.PathValue("id"))
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sc)
}

func (s *Server) updateScriptHandler(w http.ResponseWriter, r *http.Request) {
	var sc script.Script
	if !s.decode(w, r, &sc) {
		return
	}
	// The path, not the body, names the script being replaced.
	sc.ID = r.PathValue("id")
	if err := s.scripts.Update(&sc); err != nil {
		s.writeOpError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, &sc)
}

func (s *Server) deleteScriptHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.scripts.Delete(id); err != nil {
		s.writeOpError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

// executeHandler runs a stored script to completion. The run is persisted
// best-effort; a history failure never fails the request. The session the
// run created stays registered so the caller can inspect or watch it.
func (s *Server) executeHandler(w http.ResponseWriter, r *http.Request) {
	sc, err := s.scripts.Get(r.PathValue("id"))
	if err != nil {
		s.writeOpError(w, err)
		return
	}

	run, err := s.executor.Run(r.Context(), sc)
	if err != nil {
		s.writeOpError(w, err)
		return
	}

	if s.history != nil {
		if err := s.history.SaveRun(context.WithoutCancel(r.Context()), run); err != nil {
			s.log.Warn("saving run history failed", "run_id", run.ID, "error", err)
		}
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) listRunsHandler(w http.ResponseWriter, r *http.Request) {
	runs := []history.RunSummary{}
	if s.history != nil {
		var err error
		runs, err = s.history.ListRuns(r.Context())
		if err != nil {
			s.writeOpError(w, err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) getRunHandler(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusNotFound, "run history is disabled")
		return
	}
	run, err := s.history.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}
