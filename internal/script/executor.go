package script

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mwarner/greenflow/internal/terminal"
)

// Executor runs automation scripts against terminal sessions.
type Executor struct {
	log      *slog.Logger
	registry *terminal.Registry
}

// NewExecutor creates an executor that opens sessions through the given
// registry.
func NewExecutor(log *slog.Logger, registry *terminal.Registry) *Executor {
	return &Executor{log: log, registry: registry}
}

// Run creates a session for the script, connects it, executes the steps and
// returns the run record. A failed connect removes the partially-created
// session and is returned as an error; a failed step is recorded in the log
// and ends the run with RunFailed, leaving the session connected.
func (e *Executor) Run(ctx context.Context, sc *Script) (*Run, error) {
	sess := e.registry.Create(sc.Host, sc.Port, sc.UseTLS)
	run := &Run{
		ID:        uuid.NewString(),
		ScriptID:  sc.ID,
		SessionID: sess.ID,
		StartedAt: time.Now().UTC(),
	}

	if err := sess.Connect(ctx); err != nil {
		e.registry.Remove(context.WithoutCancel(ctx), sess.ID)
		return nil, err
	}
	run.Log = append(run.Log, LogEntry{
		StepID:    "connect",
		Status:    StatusSuccess,
		Message:   fmt.Sprintf("connected to %s:%d", sc.Host, sc.Port),
		Timestamp: time.Now().UTC(),
	})

	entries, ok := e.Execute(ctx, sess, sc.Steps)
	run.Log = append(run.Log, entries...)
	run.Status = RunCompleted
	if !ok {
		run.Status = RunFailed
	}
	run.FinishedAt = time.Now().UTC()

	e.log.Info("script run finished",
		"script_id", sc.ID,
		"run_id", run.ID,
		"session_id", sess.ID,
		"status", run.Status,
		"entries", len(run.Log),
	)
	return run, nil
}

// Execute runs the steps in order against an already-connected session,
// stopping at the first failing step. It returns one log entry per
// attempted step and whether every step succeeded. Step failures are
// absorbed into the log; they never escape as errors.
func (e *Executor) Execute(ctx context.Context, sess *terminal.Session, steps []Step) ([]LogEntry, bool) {
	entries := make([]LogEntry, 0, len(steps))
	for _, step := range steps {
		msg, err := e.executeStep(ctx, sess, step)
		if err != nil {
			entries = append(entries, LogEntry{
				StepID:    step.ID(),
				Status:    StatusError,
				Message:   err.Error(),
				Timestamp: time.Now().UTC(),
			})
			e.log.Warn("step failed", "step_id", step.ID(), "action", step.Action(), "error", err)
			return entries, false
		}
		entries = append(entries, LogEntry{
			StepID:    step.ID(),
			Status:    StatusSuccess,
			Message:   msg,
			Timestamp: time.Now().UTC(),
		})
	}
	return entries, true
}

func (e *Executor) executeStep(ctx context.Context, sess *terminal.Session, step Step) (string, error) {
	executed := fmt.Sprintf("executed: %s", step.Action())

	switch st := step.(type) {
	case *SendText:
		if st.Row != nil && st.Col != nil {
			return executed, sess.SendTextAt(ctx, st.Text, *st.Row, *st.Col)
		}
		return executed, sess.SendText(ctx, st.Text)

	case *SendKey:
		return executed, sess.SendKey(ctx, st.Key)

	case *MoveCursor:
		if st.Row == nil || st.Col == nil {
			return "skipped: move_cursor without coordinates", nil
		}
		return executed, sess.MoveCursor(ctx, *st.Row, *st.Col)

	case *Wait:
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(st.Timeout):
			return executed, nil
		}

	case *WaitForText:
		found, err := sess.WaitForText(ctx, st.Text, st.Timeout)
		if err != nil {
			return "", err
		}
		if !found {
			return "", fmt.Errorf("timeout waiting for text: %s", st.Text)
		}
		return executed, nil

	case *ReadScreen:
		_, err := sess.ReadScreen(ctx)
		return executed, err

	case *AssertText:
		snap, err := sess.ReadScreen(ctx)
		if err != nil {
			return "", err
		}
		if !snap.Contains(st.Text) {
			return "", fmt.Errorf("assertion failed: %q not found on screen", st.Text)
		}
		return executed, nil

	case *Disconnect:
		return executed, sess.Disconnect(ctx)

	case *Connect, *ReadPosition, *Screenshot:
		// These kinds are part of the script vocabulary but have no
		// runner behavior; they are logged and skipped.
		return fmt.Sprintf("skipped: %s has no effect", step.Action()), nil

	default:
		return "", fmt.Errorf("unsupported action: %s", step.Action())
	}
}
