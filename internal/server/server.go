// Package server exposes the terminal registry, script store, executor, and
// run history over a plain HTTP JSON API.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mwarner/greenflow/internal/config"
	"github.com/mwarner/greenflow/internal/history"
	"github.com/mwarner/greenflow/internal/script"
	"github.com/mwarner/greenflow/internal/terminal"
)

// Deps are the collaborators the HTTP layer dispatches into.
type Deps struct {
	Log      *slog.Logger
	Cfg      *config.Config
	Registry *terminal.Registry
	Scripts  *script.Store
	Executor *script.Executor
	History  *history.Store
}

type Server struct {
	log      *slog.Logger
	cfg      *config.Config
	registry *terminal.Registry
	scripts  *script.Store
	executor *script.Executor
	history  *history.Store
	handler  http.Handler
}

// New builds the route table. History may be nil; run persistence is then
// skipped and the runs endpoints report empty history.
func New(deps Deps) *Server {
	s := &Server{
		log:      deps.Log,
		cfg:      deps.Cfg,
		registry: deps.Registry,
		scripts:  deps.Scripts,
		executor: deps.Executor,
		history:  deps.History,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.healthHandler)

	mux.HandleFunc("POST /v1/connections/connect", s.connectHandler)
	mux.HandleFunc("POST /v1/connections/disconnect/{id}", s.disconnectHandler)
	mux.HandleFunc("GET /v1/connections/sessions", s.sessionsHandler)
	mux.HandleFunc("GET /v1/connections/screen/{id}", s.screenHandler)
	mux.HandleFunc("POST /v1/connections/input", s.inputHandler)

	mux.HandleFunc("GET /v1/automation/scripts", s.listScriptsHandler)
	mux.HandleFunc("POST /v1/automation/scripts", s.createScriptHandler)
	mux.HandleFunc("GET /v1/automation/scripts/{id}", s.getScriptHandler)
	mux.HandleFunc("PUT /v1/automation/scripts/{id}", s.updateScriptHandler)
	mux.HandleFunc("DELETE /v1/automation/scripts/{id}", s.deleteScriptHandler)
	mux.HandleFunc("POST /v1/automation/execute/{id}", s.executeHandler)
	mux.HandleFunc("GET /v1/automation/runs", s.listRunsHandler)
	mux.HandleFunc("GET /v1/automation/runs/{id}", s.getRunHandler)

	mux.HandleFunc("GET /v1/watch/{id}", s.watchHandler)

	s.handler = corsMiddleware(deps.Cfg.CORSOrigins, mux)
	return s
}

// Handler returns the fully wired HTTP handler, CORS included.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// writeOpError maps domain errors onto HTTP statuses: missing things are
// 404, state violations 409, driver and connect failures 502, anything
// else 500.
func (s *Server) writeOpError(w http.ResponseWriter, err error) {
	var (
		connErr   *terminal.ConnectionError
		driverErr *terminal.DriverError
	)
	switch {
	case errors.Is(err, script.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, history.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, script.ErrExists):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, terminal.ErrNotConnected), errors.Is(err, terminal.ErrAlreadyConnected):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &connErr), errors.As(err, &driverErr):
		s.writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func corsMiddleware(origins []string, next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
