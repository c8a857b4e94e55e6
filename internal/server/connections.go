package server

import (
	"context"
	"net/http"

	"github.com/mwarner/greenflow/internal/terminal"
)

type connectRequest struct {
	Host   string `json:"host"`
	Port   int    `json:"port"`
	UseTLS bool   `json:"use_tls"`
}

type inputRequest struct {
	SessionID string `json:"session_id"`
	Row       *int   `json:"row,omitempty"`
	Col       *int   `json:"col,omitempty"`
	Text      string `json:"text,omitempty"`
	Key       string `json:"key,omitempty"`
}

func (s *Server) connectHandler(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Host == "" {
		s.writeError(w, http.StatusBadRequest, "host is required")
		return
	}
	if req.Port == 0 {
		req.Port = 23
	}

	sess := s.registry.Create(req.Host, req.Port, req.UseTLS)
	if err := sess.Connect(r.Context()); err != nil {
		s.registry.Remove(context.WithoutCancel(r.Context()), sess.ID)
		s.writeOpError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, terminal.SessionInfo{
		ID:        sess.ID,
		Host:      sess.Host,
		Port:      sess.Port,
		UseTLS:    sess.UseTLS,
		Connected: true,
	})
}

func (s *Server) disconnectHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.registry.Get(id); !ok {
		s.writeError(w, http.StatusNotFound, "unknown session: "+id)
		return
	}
	s.registry.Remove(r.Context(), id)
	s.writeJSON(w, http.StatusOK, map[string]string{"session_id": id, "status": "disconnected"})
}

func (s *Server) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"sessions": s.registry.List()})
}

func (s *Server) screenHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, ok := s.registry.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown session: "+id)
		return
	}
	snap, err := sess.ReadScreen(r.Context())
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// inputHandler applies a free-form input: an optional cursor move, then
// optional text, then an optional key, in that order.
func (s *Server) inputHandler(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if !s.decode(w, r, &req) {
		return
	}
	sess, ok := s.registry.Get(req.SessionID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown session: "+req.SessionID)
		return
	}
	if (req.Row == nil) != (req.Col == nil) {
		s.writeError(w, http.StatusBadRequest, "row and col must be given together")
		return
	}

	ctx := r.Context()
	if req.Row != nil {
		if err := sess.MoveCursor(ctx, *req.Row, *req.Col); err != nil {
			s.writeOpError(w, err)
			return
		}
	}
	if req.Text != "" {
		if err := sess.SendText(ctx, req.Text); err != nil {
			s.writeOpError(w, err)
			return
		}
	}
	if req.Key != "" {
		if err := sess.SendKey(ctx, req.Key); err != nil {
			s.writeOpError(w, err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
