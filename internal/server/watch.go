package server

import (
	"encoding/json"
	"net/http"

	"github.com/mwarner/greenflow/internal/stream"
)

// watchHandler streams screen events for one session as NDJSON until the
// client goes away. Each line is a screen_update or error event.
func (s *Server) watchHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, ok := s.registry.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown session: "+id)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	enc := json.NewEncoder(w)
	sink := stream.SinkFunc(func(e stream.Event) error {
		if err := enc.Encode(e); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})

	// A sink error means the client connection broke; nothing to do but stop.
	streamer := stream.New(s.log, sess, sink, 0)
	if err := streamer.Run(r.Context()); err != nil {
		s.log.Debug("watch stream ended", "session_id", id, "error", err)
	}
}
