// Package s3270 implements the tn3270 driver boundary on top of the
// standard s3270 scripted emulator. Each handle owns one s3270 child
// process and drives it through the stdin/stdout scripting protocol: an
// action per line in, zero or more "data:" lines, a status line and an
// "ok"/"error" terminator back. The 3270 data stream itself (negotiation,
// EBCDIC translation, field attributes) stays inside s3270.
package s3270

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/mwarner/greenflow/internal/tn3270"
)

// killGrace is how long a quitting s3270 process gets before being killed.
const killGrace = 2 * time.Second

// Dialer starts s3270 processes and connects them to 3270 hosts.
type Dialer struct {
	log  *slog.Logger
	path string
}

// NewDialer creates a dialer using the s3270 binary at path (or "s3270"
// from PATH when empty).
func NewDialer(log *slog.Logger, path string) *Dialer {
	if path == "" {
		path = "s3270"
	}
	return &Dialer{log: log, path: path}
}

// Dial starts a fresh s3270 process and connects it to address. With
// useTLS the L: prefix makes s3270 negotiate TLS. On failure the process
// is torn down and no handle is returned.
func (d *Dialer) Dial(address string, useTLS bool) (tn3270.Handle, error) {
	cmd := exec.Command(d.path, "-utf8")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("s3270 stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("s3270 stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", d.path, err)
	}

	h := &handle{
		log:   d.log,
		cmd:   cmd,
		stdin: stdin,
		out:   bufio.NewReader(stdout),
	}

	target := address
	if useTLS {
		target = "L:" + address
	}
	if _, _, err := h.command("Connect(" + target + ")"); err != nil {
		h.Disconnect()
		return nil, err
	}

	d.log.Debug("s3270 connected", "address", address, "tls", useTLS, "pid", cmd.Process.Pid)
	return h, nil
}

// handle is one live s3270 process. Not safe for concurrent use; the
// owning session serializes all calls.
type handle struct {
	log   *slog.Logger
	cmd   *exec.Cmd
	stdin io.WriteCloser
	out   *bufio.Reader

	closeOnce sync.Once
}

// status is the parsed s3270 status line. Cursor coordinates are 0-origin
// as s3270 reports them.
type status struct {
	rows      int
	cols      int
	cursorRow int
	cursorCol int
	connected bool
}

// parseStatus parses the 12-field status line s3270 prints after every
// action, e.g.
//
//	U F U C(mainframe.example) I 2 24 80 5 10 0x0 0.012
func parseStatus(line string) (status, error) {
	f := strings.Fields(line)
	if len(f) < 12 {
		return status{}, fmt.Errorf("malformed s3270 status line: %q", line)
	}
	var st status
	for _, field := range []struct {
		dst *int
		src string
	}{
		{&st.rows, f[6]},
		{&st.cols, f[7]},
		{&st.cursorRow, f[8]},
		{&st.cursorCol, f[9]},
	} {
		if _, err := fmt.Sscanf(field.src, "%d", field.dst); err != nil {
			return status{}, fmt.Errorf("malformed s3270 status line: %q", line)
		}
	}
	st.connected = strings.HasPrefix(f[3], "C(")
	return st, nil
}

// command writes one action and reads its full response: the data lines,
// the status line, and the ok/error terminator.
func (h *handle) command(action string) ([]string, status, error) {
	if _, err := io.WriteString(h.stdin, action+"\n"); err != nil {
		return nil, status{}, fmt.Errorf("writing %s: %w", action, err)
	}

	var (
		data []string
		st   status
	)
	for {
		line, err := h.out.ReadString('\n')
		if err != nil {
			return nil, status{}, fmt.Errorf("reading %s response: %w", action, err)
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case strings.HasPrefix(line, "data: "):
			data = append(data, strings.TrimPrefix(line, "data: "))
		case line == "ok":
			return data, st, nil
		case line == "error":
			msg := strings.Join(data, " ")
			if msg == "" {
				msg = "command failed"
			}
			return nil, status{}, fmt.Errorf("%s: %s", action, msg)
		default:
			parsed, perr := parseStatus(line)
			if perr != nil {
				return nil, status{}, perr
			}
			st = parsed
		}
	}
}

// escapeText quotes text for use inside a String() action argument.
func escapeText(text string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return r.Replace(text)
}

// keyAction maps a canonical key name to the s3270 action that presses it.
func keyAction(name string) string {
	switch name {
	case "Enter", "Clear", "Tab", "BackTab":
		return name + "()"
	}
	if n, ok := strings.CutPrefix(name, "PF"); ok && isDigits(n) {
		return "PF(" + n + ")"
	}
	if n, ok := strings.CutPrefix(name, "PA"); ok && isDigits(n) {
		return "PA(" + n + ")"
	}
	return "Key(" + name + ")"
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (h *handle) SendText(text string) error {
	_, _, err := h.command(`String("` + escapeText(text) + `")`)
	return err
}

func (h *handle) SendKey(key string) error {
	_, _, err := h.command(keyAction(key))
	return err
}

// MoveCursor positions the cursor. The incoming coordinates are 1-indexed;
// the legacy MoveCursor action is 0-origin, so they are shifted down here.
func (h *handle) MoveCursor(row, col int) error {
	_, _, err := h.command(fmt.Sprintf("MoveCursor(%d,%d)", row-1, col-1))
	return err
}

// ReadScreen reads the full screen via Ascii() and takes the dimensions
// and cursor position from the status line, shifting the 0-origin cursor
// up to the 1-indexed handle convention.
func (h *handle) ReadScreen() (tn3270.RawScreen, error) {
	data, st, err := h.command("Ascii()")
	if err != nil {
		return tn3270.RawScreen{}, err
	}
	return tn3270.RawScreen{
		Rows:      st.rows,
		Cols:      st.cols,
		CursorRow: st.cursorRow + 1,
		CursorCol: st.cursorCol + 1,
		Text:      strings.Join(data, "\n"),
	}, nil
}

// Disconnect asks s3270 to quit and kills it if it lingers. Idempotent.
func (h *handle) Disconnect() {
	h.closeOnce.Do(func() {
		// Quit exits the process; no response is read.
		_, _ = io.WriteString(h.stdin, "Quit()\n")
		_ = h.stdin.Close()

		if h.cmd == nil || h.cmd.Process == nil {
			return
		}
		done := make(chan struct{})
		go func() {
			_ = h.cmd.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(killGrace):
			_ = h.cmd.Process.Kill()
			<-done
		}
		h.log.Debug("s3270 process stopped", "pid", h.cmd.Process.Pid)
	})
}
