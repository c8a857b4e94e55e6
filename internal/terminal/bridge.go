package terminal

import (
	"context"

	"github.com/mwarner/greenflow/internal/tn3270"
)

// bridge adapts one synchronous driver handle for asynchronous callers. It
// offloads every call onto the shared worker pool, converts the session's
// 0-indexed coordinates to the driver's 1-indexed convention (and back for
// cursor positions read off the screen), and normalizes driver failures
// into DriverError.
type bridge struct {
	pool *Pool
	h    tn3270.Handle
}

func (b *bridge) sendText(ctx context.Context, text string) error {
	var err error
	if perr := b.pool.Do(ctx, func() { err = b.h.SendText(text) }); perr != nil {
		return perr
	}
	if err != nil {
		return &DriverError{Op: "send_text", Err: err}
	}
	return nil
}

func (b *bridge) sendKey(ctx context.Context, key string) error {
	var err error
	if perr := b.pool.Do(ctx, func() { err = b.h.SendKey(key) }); perr != nil {
		return perr
	}
	if err != nil {
		return &DriverError{Op: "send_key", Err: err}
	}
	return nil
}

func (b *bridge) moveCursor(ctx context.Context, row, col int) error {
	var err error
	if perr := b.pool.Do(ctx, func() { err = b.h.MoveCursor(row+1, col+1) }); perr != nil {
		return perr
	}
	if err != nil {
		return &DriverError{Op: "move_cursor", Err: err}
	}
	return nil
}

func (b *bridge) readScreen(ctx context.Context) (*tn3270.Snapshot, error) {
	var (
		raw tn3270.RawScreen
		err error
	)
	if perr := b.pool.Do(ctx, func() { raw, err = b.h.ReadScreen() }); perr != nil {
		return nil, perr
	}
	if err != nil {
		return nil, &DriverError{Op: "read_screen", Err: err}
	}
	return &tn3270.Snapshot{
		Rows:      raw.Rows,
		Cols:      raw.Cols,
		CursorRow: raw.CursorRow - 1,
		CursorCol: raw.CursorCol - 1,
		Text:      raw.Text,
		Fields:    []map[string]any{},
	}, nil
}

func (b *bridge) disconnect(ctx context.Context) error {
	return b.pool.Do(ctx, func() { b.h.Disconnect() })
}
