// Package tn3270 defines the boundary to a 3270 protocol driver: the
// Dialer/Handle capability the rest of the system consumes, and the screen
// value types that cross it.
package tn3270

// Dialer establishes connections to 3270 hosts. Dial is synchronous and may
// block on network I/O for seconds; callers are expected to offload it onto
// a worker pool.
type Dialer interface {
	Dial(address string, useTLS bool) (Handle, error)
}

// Handle is a live connection to a 3270 host. A Handle is not safe for
// concurrent use; the owning session serializes all access. All calls are
// synchronous and may block.
//
// Coordinates on this interface are 1-indexed, matching the convention of
// the underlying emulators. The session layer exposes 0-indexed coordinates
// and translates at this boundary.
type Handle interface {
	// Disconnect closes the connection. It is idempotent and never fails.
	Disconnect()
	// SendText types text at the current cursor position.
	SendText(text string) error
	// SendKey presses a named AID or movement key (Enter, PF1, Clear, ...).
	SendKey(key string) error
	// MoveCursor positions the cursor at the 1-indexed row and column.
	MoveCursor(row, col int) error
	// ReadScreen returns the full screen contents and cursor position.
	ReadScreen() (RawScreen, error)
}

// RawScreen is one screen read as reported by the driver. The cursor
// position is 1-indexed.
type RawScreen struct {
	Rows      int
	Cols      int
	CursorRow int
	CursorCol int
	Text      string
}
