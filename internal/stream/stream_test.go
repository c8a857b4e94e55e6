package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwarner/greenflow/internal/terminal"
	"github.com/mwarner/greenflow/internal/tn3270/tn3270test"
)

type collectSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (c *collectSink) Send(e Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return c.err
}

func (c *collectSink) snapshot() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

func newStreamerUnderTest(t *testing.T) (*tn3270test.Dialer, *terminal.Session, *collectSink, *Streamer) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	dialer := tn3270test.NewDialer()
	reg := terminal.NewRegistry(log, dialer, terminal.NewPool(2))
	sess := reg.Create("mainframe.example", 992, true)
	require.NoError(t, sess.Connect(context.Background()))
	sink := &collectSink{}
	return dialer, sess, sink, New(log, sess, sink, 10*time.Millisecond)
}

func TestStreamer_EmitsScreenUpdates(t *testing.T) {
	dialer, _, sink, st := newStreamerUnderTest(t)
	dialer.LastHandle().SetScreen("READY")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, st.Run(ctx))

	events := sink.snapshot()
	require.NotEmpty(t, events)
	for _, e := range events {
		assert.Equal(t, EventScreenUpdate, e.Type)
		require.NotNil(t, e.Data)
		assert.Equal(t, "READY", e.Data.Text)
		assert.Equal(t, 24, e.Data.Rows)
	}
}

func TestStreamer_FirstUpdateIsImmediate(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	dialer := tn3270test.NewDialer()
	reg := terminal.NewRegistry(log, dialer, terminal.NewPool(2))
	sess := reg.Create("mainframe.example", 992, true)
	require.NoError(t, sess.Connect(context.Background()))
	dialer.LastHandle().SetScreen("READY")

	sink := &collectSink{}
	st := New(log, sess, sink, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- st.Run(ctx) }()

	require.Eventually(t, func() bool { return len(sink.snapshot()) >= 1 },
		200*time.Millisecond, 5*time.Millisecond,
		"first screen_update must not wait for a full interval")
	cancel()
	require.NoError(t, <-done)

	events := sink.snapshot()
	assert.Equal(t, EventScreenUpdate, events[0].Type)
	require.NotNil(t, events[0].Data)
	assert.Equal(t, "READY", events[0].Data.Text)
}

func TestStreamer_SurvivesReadFailures(t *testing.T) {
	dialer, _, sink, st := newStreamerUnderTest(t)
	h := dialer.LastHandle()
	h.FailWith("read_screen", errors.New("link dropped"))

	go func() {
		time.Sleep(40 * time.Millisecond)
		h.FailWith("read_screen", nil)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	require.NoError(t, st.Run(ctx))

	events := sink.snapshot()
	var sawError, sawUpdate bool
	for _, e := range events {
		switch e.Type {
		case EventError:
			sawError = true
			assert.Contains(t, e.Message, "link dropped")
		case EventScreenUpdate:
			sawUpdate = true
		}
	}
	assert.True(t, sawError, "read failures surface as error events")
	assert.True(t, sawUpdate, "the loop keeps ticking after a failure")
}

func TestStreamer_SkipsWhileDisconnected(t *testing.T) {
	_, sess, sink, st := newStreamerUnderTest(t)
	require.NoError(t, sess.Disconnect(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	require.NoError(t, st.Run(ctx))

	assert.Empty(t, sink.snapshot())
}

func TestStreamer_StopsOnSinkFailure(t *testing.T) {
	_, _, sink, st := newStreamerUnderTest(t)
	sink.err = errors.New("subscriber gone")

	err := st.Run(context.Background())
	require.ErrorIs(t, err, sink.err)
	assert.Len(t, sink.snapshot(), 1)
}

func TestStreamer_CancelStopsCleanly(t *testing.T) {
	_, _, sink, st := newStreamerUnderTest(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- st.Run(ctx) }()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("streamer did not stop after cancellation")
	}

	// No further events after cancellation.
	n := len(sink.snapshot())
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, len(sink.snapshot()))
}
