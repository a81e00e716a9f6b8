package executable

import (
	"context"
	"errors"
)

var (
	// ErrNoExecutor is returned when a SessionContext has no Executor.
	ErrNoExecutor = errors.New("session context has no executor")

	// ErrNoMode is returned when a SessionContext has no run mode.
	ErrNoMode = errors.New("session context has no run mode")
)

// Executor is the host capability that owns lifecycle semantics. The
// controller calls it synchronously from the trial's goroutine.
type Executor interface {
	// StopExecutable halts the current executable immediately.
	StopExecutable()

	// SuspendExecutable pauses the current executable without ending it.
	SuspendExecutable()

	// FailExecutable ends the current executable with an unrecoverable error.
	FailExecutable(err error)

	// FinishExecutable marks the current executable as done.
	FinishExecutable()

	// StopModule ends the module run. sessionComplete tells the host whether
	// the owning session counts as complete.
	StopModule(sessionComplete bool)
}

// SessionContext is the state a controller is initialized with.
type SessionContext struct {
	Executor Executor
	Token    string
	Mode     string
}

// Validate reports misuse that would leave a controller unusable.
func (sc SessionContext) Validate() error {
	if sc.Executor == nil {
		return ErrNoExecutor
	}
	if sc.Mode == "" {
		return ErrNoMode
	}
	return nil
}

// Executable is a trial script. Run should return when the trial is done or
// ctx is cancelled.
type Executable interface {
	Run(ctx context.Context, c *Controller) error
}

// ExecutableFunc adapts a function to the Executable interface.
type ExecutableFunc func(ctx context.Context, c *Controller) error

// Run calls f(ctx, c).
func (f ExecutableFunc) Run(ctx context.Context, c *Controller) error {
	return f(ctx, c)
}

// Describer is implemented by executables that carry a human-readable
// description for the catalog listing.
type Describer interface {
	Description() string
}
