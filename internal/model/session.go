package model

import "time"

// Run mode constants. The mode is the first path segment of every
// project-scoped resource URL.
const (
	ModeLab = "lab"
	ModeWeb = "web"
)

// Session status constants.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusSuspended = "suspended"
	StatusCompleted = "completed"
	StatusStopped   = "stopped"
	StatusFailed    = "failed"
)

// Lifecycle event types recorded for a session.
const (
	EventSessionStarted      = "session_started"
	EventExecutableStarted   = "executable_started"
	EventExecutableSuspended = "executable_suspended"
	EventExecutableResumed   = "executable_resumed"
	EventExecutableStopped   = "executable_stopped"
	EventExecutableFinished  = "executable_finished"
	EventExecutableFailed    = "executable_failed"
	EventModuleStopped       = "module_stopped"
	EventSessionCancelled    = "session_cancelled"
)

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusRunning: true,
		StatusFailed:  true,
		StatusStopped: true,
	},
	StatusRunning: {
		StatusSuspended: true,
		StatusCompleted: true,
		StatusStopped:   true,
		StatusFailed:    true,
	},
	StatusSuspended: {
		StatusRunning:   true,
		StatusCompleted: true,
		StatusStopped:   true,
		StatusFailed:    true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// IsTerminal reports whether no further transitions leave status.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusStopped || status == StatusFailed
}

// Session is one participation instance: a module queue of executables run
// under a run mode with its own resource token.
type Session struct {
	ID              string     `json:"id"`
	ModuleID        string     `json:"module_id"`
	Token           string     `json:"token,omitempty"`
	Mode            string     `json:"mode"`
	Status          string     `json:"status"`
	Executables     []string   `json:"executables"`
	Current         int        `json:"current"`
	SessionComplete *bool      `json:"session_complete,omitempty"`
	Error           string     `json:"error,omitempty"`
	DurationMS      *int       `json:"duration_ms,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// Event is a single persisted lifecycle transition of a session.
type Event struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	Seq        int       `json:"seq"`
	Type       string    `json:"type"`
	Executable string    `json:"executable,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
