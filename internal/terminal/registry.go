package terminal

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mwarner/greenflow/internal/tn3270"
)

// SessionInfo is a point-in-time summary of one session.
type SessionInfo struct {
	ID        string `json:"session_id"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	UseTLS    bool   `json:"use_tls"`
	Connected bool   `json:"connected"`
}

// Registry creates, looks up and tears down terminal sessions. It is the
// process-wide lifecycle authority: removing a session always disconnects
// it first, so no driver handle outlives its registry entry.
type Registry struct {
	log    *slog.Logger
	dialer tn3270.Dialer
	pool   *Pool

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry. Sessions it creates dial through
// the given dialer and run their driver calls on the given pool.
func NewRegistry(log *slog.Logger, dialer tn3270.Dialer, pool *Pool) *Registry {
	return &Registry{
		log:      log,
		dialer:   dialer,
		pool:     pool,
		sessions: make(map[string]*Session),
	}
}

// Create allocates a new disconnected session. It does not connect.
func (r *Registry) Create(host string, port int, useTLS bool) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		Host:      host,
		Port:      port,
		UseTLS:    useTLS,
		log:       r.log,
		dialer:    r.dialer,
		pool:      r.pool,
		createdAt: time.Now(),
		state:     StateDisconnected,
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	r.log.Info("session created", "session_id", s.ID, "host", host, "port", port)
	return s
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove disconnects the session if needed and evicts it. Disconnect
// failures are logged and do not prevent eviction; removing an unknown id
// is a no-op.
func (r *Registry) Remove(ctx context.Context, id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	// The entry is already gone from the map, so the disconnect must not
	// be abandoned on cancellation: a cancelled context waiting for a pool
	// slot would otherwise leak the driver handle.
	if err := s.Disconnect(context.WithoutCancel(ctx)); err != nil {
		r.log.Warn("disconnect during remove failed", "session_id", id, "error", err)
	}
	r.log.Info("session removed", "session_id", id)
}

// List returns summaries of all sessions in creation order.
func (r *Registry) List() []SessionInfo {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].createdAt.Before(sessions[j].createdAt)
	})

	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, SessionInfo{
			ID:        s.ID,
			Host:      s.Host,
			Port:      s.Port,
			UseTLS:    s.UseTLS,
			Connected: s.Connected(),
		})
	}
	return infos
}

// Shutdown removes every session, disconnecting each one.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		r.Remove(ctx, id)
	}
}
