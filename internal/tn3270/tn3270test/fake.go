// Package tn3270test provides in-memory test doubles for the tn3270 driver
// boundary. The fakes record every call, allow error injection per
// operation, and detect concurrent use of a handle.
package tn3270test

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mwarner/greenflow/internal/tn3270"
)

// Dialer is a tn3270.Dialer that hands out fake handles.
type Dialer struct {
	// DialErr, when set, makes every Dial fail.
	DialErr error
	// Delay is applied to every call on handles created by this dialer.
	Delay time.Duration

	mu      sync.Mutex
	dials   int
	handles []*Handle
}

// NewDialer creates a fake dialer.
func NewDialer() *Dialer {
	return &Dialer{}
}

// Dial creates a new fake handle, or fails with DialErr.
func (d *Dialer) Dial(address string, useTLS bool) (tn3270.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.DialErr != nil {
		return nil, d.DialErr
	}
	h := &Handle{
		Address:   address,
		UseTLS:    useTLS,
		delay:     d.Delay,
		rows:      24,
		cols:      80,
		cursorRow: 1,
		cursorCol: 1,
	}
	d.handles = append(d.handles, h)
	return h, nil
}

// Dials returns the number of Dial calls, including failed ones.
func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// OpenHandles returns the number of handles that have not been disconnected.
func (d *Dialer) OpenHandles() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	open := 0
	for _, h := range d.handles {
		if !h.Closed() {
			open++
		}
	}
	return open
}

// LastHandle returns the most recently dialed handle, or nil.
func (d *Dialer) LastHandle() *Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.handles) == 0 {
		return nil
	}
	return d.handles[len(d.handles)-1]
}

// Handle is a scriptable in-memory tn3270.Handle. Cursor coordinates are
// stored exactly as received, i.e. 1-indexed.
type Handle struct {
	Address string
	UseTLS  bool

	delay time.Duration

	mu          sync.Mutex
	rows, cols  int
	cursorRow   int
	cursorCol   int
	text        string
	calls       []string
	disconnects int
	errs        map[string]error

	inFlight atomic.Int32
	overlaps atomic.Int32
}

// SetScreen replaces the screen text returned by ReadScreen.
func (h *Handle) SetScreen(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.text = text
}

// FailWith makes the named operation ("send_text", "send_key",
// "move_cursor", "read_screen") fail with err until cleared with a nil err.
func (h *Handle) FailWith(op string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.errs == nil {
		h.errs = make(map[string]error)
	}
	h.errs[op] = err
}

// Calls returns a copy of the recorded call log.
func (h *Handle) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.calls))
	copy(out, h.calls)
	return out
}

// Disconnects returns how many times Disconnect was called.
func (h *Handle) Disconnects() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.disconnects
}

// Closed reports whether Disconnect has been called at least once.
func (h *Handle) Closed() bool {
	return h.Disconnects() > 0
}

// Overlaps returns how many calls observed another call already in flight.
func (h *Handle) Overlaps() int {
	return int(h.overlaps.Load())
}

func (h *Handle) enter() func() {
	if h.inFlight.Add(1) > 1 {
		h.overlaps.Add(1)
	}
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	return func() { h.inFlight.Add(-1) }
}

func (h *Handle) record(op, call string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, call)
	return h.errs[op]
}

func (h *Handle) Disconnect() {
	defer h.enter()()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnects++
}

func (h *Handle) SendText(text string) error {
	defer h.enter()()
	return h.record("send_text", fmt.Sprintf("send_text(%s)", text))
}

func (h *Handle) SendKey(key string) error {
	defer h.enter()()
	return h.record("send_key", fmt.Sprintf("send_key(%s)", key))
}

func (h *Handle) MoveCursor(row, col int) error {
	defer h.enter()()
	if err := h.record("move_cursor", fmt.Sprintf("move_cursor(%d,%d)", row, col)); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cursorRow, h.cursorCol = row, col
	return nil
}

func (h *Handle) ReadScreen() (tn3270.RawScreen, error) {
	defer h.enter()()
	if err := h.record("read_screen", "read_screen"); err != nil {
		return tn3270.RawScreen{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return tn3270.RawScreen{
		Rows:      h.rows,
		Cols:      h.cols,
		CursorRow: h.cursorRow,
		CursorCol: h.cursorCol,
		Text:      h.text,
	}, nil
}
