package terminal

import "context"

// DefaultPoolSize bounds in-flight driver calls when no explicit size is
// configured.
const DefaultPoolSize = 8

// Pool bounds the number of driver calls in flight across all sessions.
// Driver calls are synchronous and can block on network I/O for seconds, so
// every call must go through a pool slot instead of running unbounded.
type Pool struct {
	slots chan struct{}
}

// NewPool creates a pool with the given number of worker slots. A size of
// zero or less falls back to DefaultPoolSize.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	return &Pool{slots: make(chan struct{}, size)}
}

// Do runs fn once a slot is free and returns after fn completes.
// Cancellation applies only while queued: once fn starts it runs to
// completion, so a serialized driver handle is never released mid-call.
func (p *Pool) Do(ctx context.Context, fn func()) error {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.slots }()
	fn()
	return nil
}
