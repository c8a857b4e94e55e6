// Package script holds the automation script model, the JSON file store
// scripts persist in, and the executor that runs a script's steps against a
// terminal session.
package script

import (
	"encoding/json"
	"fmt"
	"time"
)

// Action identifies the kind of an automation step.
type Action string

const (
	ActionConnect      Action = "connect"
	ActionSendText     Action = "send_text"
	ActionSendKey      Action = "send_key"
	ActionMoveCursor   Action = "move_cursor"
	ActionWait         Action = "wait"
	ActionWaitForText  Action = "wait_for_text"
	ActionReadScreen   Action = "read_screen"
	ActionReadPosition Action = "read_position"
	ActionAssertText   Action = "assert_text"
	ActionScreenshot   Action = "screenshot"
	ActionDisconnect   Action = "disconnect"
)

// Default timeouts applied when a wait step omits one.
const (
	DefaultWaitTimeout        = time.Second
	DefaultWaitForTextTimeout = 10 * time.Second
)

// Step is one unit of scripted action. Each action kind has its own
// variant carrying only the fields that kind needs; the step id is
// caller-assigned and used for log correlation only.
type Step interface {
	ID() string
	Action() Action
}

type base struct {
	id          string
	description string
}

func (b base) ID() string { return b.id }

// SendText types text, optionally moving the cursor first when both Row and
// Col are present.
type SendText struct {
	base
	Text string
	Row  *int
	Col  *int
}

func (SendText) Action() Action { return ActionSendText }

// SendKey presses a logical key.
type SendKey struct {
	base
	Key string
}

func (SendKey) Action() Action { return ActionSendKey }

// MoveCursor positions the cursor. The step is silently skipped unless both
// coordinates are present.
type MoveCursor struct {
	base
	Row *int
	Col *int
}

func (MoveCursor) Action() Action { return ActionMoveCursor }

// Wait suspends for the given duration without touching the driver.
type Wait struct {
	base
	Timeout time.Duration
}

func (Wait) Action() Action { return ActionWait }

// WaitForText polls the screen until the text appears or the timeout
// elapses; elapsing fails the step.
type WaitForText struct {
	base
	Text    string
	Timeout time.Duration
}

func (WaitForText) Action() Action { return ActionWaitForText }

// ReadScreen reads the screen; the result is discarded and the step only
// proves the read succeeded.
type ReadScreen struct{ base }

func (ReadScreen) Action() Action { return ActionReadScreen }

// AssertText fails unless the text is currently on screen.
type AssertText struct {
	base
	Text string
}

func (AssertText) Action() Action { return ActionAssertText }

// Disconnect closes the session. Idempotent, never fails.
type Disconnect struct{ base }

func (Disconnect) Action() Action { return ActionDisconnect }

// Connect is accepted in scripts but has no runner behavior: the runner
// connects before the first step. It is logged and skipped.
type Connect struct{ base }

func (Connect) Action() Action { return ActionConnect }

// ReadPosition is accepted in scripts but has no runner behavior yet. It is
// logged and skipped.
type ReadPosition struct{ base }

func (ReadPosition) Action() Action { return ActionReadPosition }

// Screenshot is accepted in scripts but has no runner behavior yet. It is
// logged and skipped.
type Screenshot struct{ base }

func (Screenshot) Action() Action { return ActionScreenshot }

// Script is an ordered automation script plus the connection parameters
// used to open its session. Step order is execution order.
type Script struct {
	ID          string
	Name        string
	Description string
	Host        string
	Port        int
	UseTLS      bool
	Steps       []Step
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// stepWire is the flat JSON form of a step: every kind-specific field is
// optional on the wire and resolved into a typed variant on decode.
type stepWire struct {
	ID          string   `json:"id"`
	Action      Action   `json:"action"`
	Description string   `json:"description,omitempty"`
	Row         *int     `json:"row,omitempty"`
	Col         *int     `json:"col,omitempty"`
	Text        *string  `json:"text,omitempty"`
	Key         *string  `json:"key,omitempty"`
	Timeout     *float64 `json:"timeout,omitempty"` // seconds
}

type scriptWire struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Host        string     `json:"host"`
	Port        int        `json:"port"`
	UseTLS      bool       `json:"use_tls"`
	Steps       []stepWire `json:"steps"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

func decodeStep(w stepWire) (Step, error) {
	if w.ID == "" {
		return nil, fmt.Errorf("step with action %q has no id", w.Action)
	}
	b := base{id: w.ID, description: w.Description}

	text := ""
	if w.Text != nil {
		text = *w.Text
	}
	timeout := func(def time.Duration) time.Duration {
		if w.Timeout == nil || *w.Timeout <= 0 {
			return def
		}
		return time.Duration(*w.Timeout * float64(time.Second))
	}

	switch w.Action {
	case ActionSendText:
		return &SendText{base: b, Text: text, Row: w.Row, Col: w.Col}, nil
	case ActionSendKey:
		key := "enter"
		if w.Key != nil && *w.Key != "" {
			key = *w.Key
		}
		return &SendKey{base: b, Key: key}, nil
	case ActionMoveCursor:
		return &MoveCursor{base: b, Row: w.Row, Col: w.Col}, nil
	case ActionWait:
		return &Wait{base: b, Timeout: timeout(DefaultWaitTimeout)}, nil
	case ActionWaitForText:
		return &WaitForText{base: b, Text: text, Timeout: timeout(DefaultWaitForTextTimeout)}, nil
	case ActionReadScreen:
		return &ReadScreen{base: b}, nil
	case ActionReadPosition:
		return &ReadPosition{base: b}, nil
	case ActionAssertText:
		return &AssertText{base: b, Text: text}, nil
	case ActionScreenshot:
		return &Screenshot{base: b}, nil
	case ActionConnect:
		return &Connect{base: b}, nil
	case ActionDisconnect:
		return &Disconnect{base: b}, nil
	default:
		return nil, fmt.Errorf("unknown action %q in step %q", w.Action, w.ID)
	}
}

func encodeStep(s Step) stepWire {
	w := stepWire{ID: s.ID(), Action: s.Action()}
	seconds := func(d time.Duration) *float64 {
		v := d.Seconds()
		return &v
	}
	switch st := s.(type) {
	case *SendText:
		w.Description = st.description
		w.Text = &st.Text
		w.Row, w.Col = st.Row, st.Col
	case *SendKey:
		w.Description = st.description
		w.Key = &st.Key
	case *MoveCursor:
		w.Description = st.description
		w.Row, w.Col = st.Row, st.Col
	case *Wait:
		w.Description = st.description
		w.Timeout = seconds(st.Timeout)
	case *WaitForText:
		w.Description = st.description
		w.Text = &st.Text
		w.Timeout = seconds(st.Timeout)
	case *AssertText:
		w.Description = st.description
		w.Text = &st.Text
	case *ReadScreen:
		w.Description = st.description
	case *ReadPosition:
		w.Description = st.description
	case *Screenshot:
		w.Description = st.description
	case *Connect:
		w.Description = st.description
	case *Disconnect:
		w.Description = st.description
	}
	return w
}

// UnmarshalJSON decodes the flat wire form, resolving each step into its
// typed variant and applying per-kind defaults.
func (s *Script) UnmarshalJSON(data []byte) error {
	var w scriptWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	steps := make([]Step, 0, len(w.Steps))
	for i, sw := range w.Steps {
		st, err := decodeStep(sw)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		steps = append(steps, st)
	}

	s.ID = w.ID
	s.Name = w.Name
	s.Description = w.Description
	s.Host = w.Host
	s.Port = w.Port
	if s.Port == 0 {
		s.Port = 23
	}
	s.UseTLS = w.UseTLS
	s.Steps = steps
	if w.CreatedAt != nil {
		s.CreatedAt = *w.CreatedAt
	}
	if w.UpdatedAt != nil {
		s.UpdatedAt = *w.UpdatedAt
	}
	return nil
}

// MarshalJSON encodes the script in its flat wire form.
func (s Script) MarshalJSON() ([]byte, error) {
	w := scriptWire{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Host:        s.Host,
		Port:        s.Port,
		UseTLS:      s.UseTLS,
		Steps:       make([]stepWire, 0, len(s.Steps)),
	}
	if !s.CreatedAt.IsZero() {
		t := s.CreatedAt
		w.CreatedAt = &t
	}
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		w.UpdatedAt = &t
	}
	for _, st := range s.Steps {
		w.Steps = append(w.Steps, encodeStep(st))
	}
	return json.Marshal(w)
}
