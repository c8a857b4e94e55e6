// Package terminal owns 3270 terminal sessions: the per-session state
// machine and single-flight serialization around one driver handle, the
// worker pool that keeps blocking driver calls off the callers, and the
// registry that manages session lifecycle.
package terminal

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/mwarner/greenflow/internal/tn3270"
)

// State is the lifecycle state of a session.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// pollInterval is the fixed cadence at which WaitForText re-reads the
// screen.
const pollInterval = 100 * time.Millisecond

// Session is a single logical connection to a 3270 host. It owns at most
// one driver handle and serializes every driver call: the handle is not
// safe for concurrent use, so script steps and live screen reads alike
// queue on the session's operation lock.
type Session struct {
	ID     string
	Host   string
	Port   int
	UseTLS bool

	log       *slog.Logger
	dialer    tn3270.Dialer
	pool      *Pool
	createdAt time.Time

	// opMu enforces single-flight: it is held for the full duration of
	// every driver operation, including the move+send pair issued by
	// SendTextAt.
	opMu sync.Mutex

	mu    sync.RWMutex // guards state and br
	state State
	br    *bridge
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Connected reports whether the session is in the connected state.
func (s *Session) Connected() bool {
	return s.State() == StateConnected
}

// conn returns the live bridge, or ErrNotConnected.
func (s *Session) conn() (*bridge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateConnected || s.br == nil {
		return nil, ErrNotConnected
	}
	return s.br, nil
}

// Connect acquires a fresh driver handle. It is valid only from the
// disconnected state. On failure the handle is discarded, the session
// remains disconnected and a ConnectionError is returned.
func (s *Session) Connect(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.state = StateConnecting
	s.mu.Unlock()

	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	var (
		h    tn3270.Handle
		derr error
	)
	err := s.pool.Do(ctx, func() { h, derr = s.dialer.Dial(addr, s.UseTLS) })
	if err == nil {
		err = derr
	}
	if err != nil {
		s.mu.Lock()
		s.state = StateDisconnected
		s.mu.Unlock()
		return &ConnectionError{Host: s.Host, Port: s.Port, Err: err}
	}

	s.mu.Lock()
	s.br = &bridge{pool: s.pool, h: h}
	s.state = StateConnected
	s.mu.Unlock()

	s.log.Info("session connected", "session_id", s.ID, "host", s.Host, "port", s.Port, "tls", s.UseTLS)
	return nil
}

// Disconnect closes the driver handle if one exists. It is valid from any
// state and idempotent: with no handle it is a no-op success.
func (s *Session) Disconnect(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	br := s.br
	s.mu.RUnlock()
	if br == nil {
		return nil
	}

	if err := br.disconnect(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.br = nil
	s.state = StateDisconnected
	s.mu.Unlock()

	s.log.Info("session disconnected", "session_id", s.ID)
	return nil
}

// SendText types text at the current cursor position.
func (s *Session) SendText(ctx context.Context, text string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	c, err := s.conn()
	if err != nil {
		return err
	}
	return c.sendText(ctx, text)
}

// SendTextAt moves the cursor to the 0-indexed position and then types
// text, as one serialized operation: no other driver call can interleave
// between the move and the send.
func (s *Session) SendTextAt(ctx context.Context, text string, row, col int) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	c, err := s.conn()
	if err != nil {
		return err
	}
	if err := c.moveCursor(ctx, row, col); err != nil {
		return err
	}
	return c.sendText(ctx, text)
}

// SendKey presses a logical key. Names are resolved case-insensitively via
// tn3270.KeyName; unrecognized names pass through to the driver verbatim.
func (s *Session) SendKey(ctx context.Context, key string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	c, err := s.conn()
	if err != nil {
		return err
	}
	return c.sendKey(ctx, tn3270.KeyName(key))
}

// MoveCursor positions the cursor at the 0-indexed row and column.
func (s *Session) MoveCursor(ctx context.Context, row, col int) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	c, err := s.conn()
	if err != nil {
		return err
	}
	return c.moveCursor(ctx, row, col)
}

// ReadScreen returns a fresh snapshot of the screen.
func (s *Session) ReadScreen(ctx context.Context) (*tn3270.Snapshot, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	c, err := s.conn()
	if err != nil {
		return nil, err
	}
	return c.readScreen(ctx)
}

// WaitForText polls the screen every 100ms until text appears as a
// substring or the timeout elapses. A timeout is a normal negative result,
// not an error. The operation lock is released between polls so other
// callers can interleave. Context cancellation aborts the wait.
func (s *Session) WaitForText(ctx context.Context, text string, timeout time.Duration) (bool, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		snap, err := s.ReadScreen(ctx)
		if err != nil {
			return false, err
		}
		if snap.Contains(text) {
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			return false, nil
		case <-ticker.C:
		}
	}
}
