package terminal

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwarner/greenflow/internal/tn3270/tn3270test"
)

func TestRegistry_CreateAndGet(t *testing.T) {
	reg := newTestRegistry(t, tn3270test.NewDialer())

	sess := reg.Create("mainframe.example", 23, false)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, StateDisconnected, sess.State())

	got, ok := reg.Get(sess.ID)
	require.True(t, ok)
	assert.Same(t, sess, got)

	_, ok = reg.Get("no-such-session")
	assert.False(t, ok)
}

func TestRegistry_Remove_DisconnectsFirst(t *testing.T) {
	dialer := tn3270test.NewDialer()
	reg := newTestRegistry(t, dialer)

	sess := reg.Create("mainframe.example", 992, true)
	require.NoError(t, sess.Connect(context.Background()))
	require.Equal(t, 1, dialer.OpenHandles())

	reg.Remove(context.Background(), sess.ID)

	assert.Zero(t, dialer.OpenHandles(), "remove must leave no open driver handle")
	_, ok := reg.Get(sess.ID)
	assert.False(t, ok)
}

func TestRegistry_Remove_CancelledContextStillDisconnects(t *testing.T) {
	dialer := tn3270test.NewDialer()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool := NewPool(1)
	reg := NewRegistry(log, dialer, pool)

	sess := reg.Create("mainframe.example", 23, false)
	require.NoError(t, sess.Connect(context.Background()))
	require.Equal(t, 1, dialer.OpenHandles())

	// Occupy the only pool slot so the disconnect has to queue.
	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = pool.Do(context.Background(), func() {
			close(started)
			<-release
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		reg.Remove(ctx, sess.ID)
		close(done)
	}()

	// Give the disconnect time to queue behind the held slot before
	// freeing it; the cancelled context must not abandon the handle.
	time.Sleep(50 * time.Millisecond)
	close(release)
	<-done

	assert.Zero(t, dialer.OpenHandles(), "remove must leave no open driver handle")
	_, ok := reg.Get(sess.ID)
	assert.False(t, ok)
}

func TestRegistry_Remove_Unknown(t *testing.T) {
	reg := newTestRegistry(t, tn3270test.NewDialer())
	reg.Remove(context.Background(), "no-such-session")
}

func TestRegistry_List(t *testing.T) {
	dialer := tn3270test.NewDialer()
	reg := newTestRegistry(t, dialer)

	a := reg.Create("host-a.example", 23, false)
	b := reg.Create("host-b.example", 992, true)
	require.NoError(t, b.Connect(context.Background()))

	infos := reg.List()
	require.Len(t, infos, 2)
	assert.Equal(t, a.ID, infos[0].ID)
	assert.False(t, infos[0].Connected)
	assert.Equal(t, b.ID, infos[1].ID)
	assert.True(t, infos[1].Connected)
	assert.Equal(t, 992, infos[1].Port)
}

func TestRegistry_Shutdown(t *testing.T) {
	dialer := tn3270test.NewDialer()
	reg := newTestRegistry(t, dialer)

	for i := 0; i < 3; i++ {
		sess := reg.Create("mainframe.example", 992, true)
		require.NoError(t, sess.Connect(context.Background()))
	}
	require.Equal(t, 3, dialer.OpenHandles())

	reg.Shutdown(context.Background())

	assert.Zero(t, dialer.OpenHandles())
	assert.Empty(t, reg.List())
}
