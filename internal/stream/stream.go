// Package stream feeds live screen snapshots from a terminal session to a
// subscriber at a fixed cadence.
package stream

import (
	"context"
	"log/slog"
	"time"

	"github.com/mwarner/greenflow/internal/terminal"
	"github.com/mwarner/greenflow/internal/tn3270"
)

// DefaultInterval is the tick cadence when none is configured.
const DefaultInterval = time.Second

// Event types delivered to a Sink.
const (
	EventScreenUpdate = "screen_update"
	EventError        = "error"
)

// Event is one message delivered to a stream subscriber.
type Event struct {
	Type    string           `json:"type"`
	Data    *tn3270.Snapshot `json:"data,omitempty"`
	Message string           `json:"message,omitempty"`
}

// Sink receives events from a Streamer. A Sink error ends the stream; the
// streamer owns no session cleanup.
type Sink interface {
	Send(Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event) error

func (f SinkFunc) Send(e Event) error { return f(e) }

// Streamer periodically reads a session's screen and forwards each snapshot
// to its sink. Read failures become error events rather than ending the
// loop; only cancellation or a sink failure stops it.
type Streamer struct {
	log      *slog.Logger
	sess     *terminal.Session
	sink     Sink
	interval time.Duration
}

// New creates a streamer. An interval of zero falls back to
// DefaultInterval.
func New(log *slog.Logger, sess *terminal.Session, sink Sink, interval time.Duration) *Streamer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Streamer{log: log, sess: sess, sink: sink, interval: interval}
}

// Run reads and emits immediately, then once per interval, until ctx is
// cancelled or the sink fails. Cancellation returns nil without emitting
// further events. Reads while the session is not connected are skipped.
func (s *Streamer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if s.sess.Connected() {
			if err := s.emit(ctx); err != nil {
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// emit sends one screen_update, or one error event if the read fails. Its
// error is a sink failure; read failures are absorbed into the stream.
func (s *Streamer) emit(ctx context.Context) error {
	snap, err := s.sess.ReadScreen(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		s.log.Debug("screen read failed", "session_id", s.sess.ID, "error", err)
		return s.sink.Send(Event{Type: EventError, Message: err.Error()})
	}
	return s.sink.Send(Event{Type: EventScreenUpdate, Data: snap})
}
