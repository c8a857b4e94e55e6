package script

import "time"

// Status is the outcome of one attempted step.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// LogEntry records one attempted step. Entries are appended in execution
// order and never mutated once the run ends.
type LogEntry struct {
	StepID    string    `json:"step_id"`
	Status    Status    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// RunStatus is the terminal outcome of a script run.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is the record of one script execution.
type Run struct {
	ID         string     `json:"run_id"`
	ScriptID   string     `json:"script_id"`
	SessionID  string     `json:"session_id"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Log        []LogEntry `json:"logs"`
}
