package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/seantiz/tatool/internal/executable"
	"github.com/seantiz/tatool/internal/model"
)

// run is the in-memory state of one session's module queue. Fields below
// mu are guarded by it.
type run struct {
	queue   []executable.Executable
	ctx     context.Context
	cancel  context.CancelFunc
	resumed chan struct{}

	mu         sync.Mutex
	sess       model.Session
	start      time.Time
	cancelled  bool
	ended      bool
	stopped    bool
	failErr    error
	stopModule *bool
}

func newRun(sess model.Session, queue []executable.Executable) *run {
	ctx, cancel := context.WithCancel(context.Background())
	return &run{
		queue:   queue,
		ctx:     ctx,
		cancel:  cancel,
		resumed: make(chan struct{}, 1),
		sess:    sess,
	}
}

// resetExecutable clears the per-executable outcome flags.
func (r *run) resetExecutable() {
	r.stopped = false
	r.failErr = nil
	r.stopModule = nil
}

func (r *run) currentName() string {
	if r.sess.Current < 0 || r.sess.Current >= len(r.sess.Executables) {
		return ""
	}
	return r.sess.Executables[r.sess.Current]
}

// errUnspecifiedFailure stands in when an executable fails without a cause.
var errUnspecifiedFailure = errors.New("executable failed")

// handle is the executable.Executor given to one executable's controller.
// Once the executable's Run returns the handle is done, and calls from
// callbacks the executable left behind are dropped. done is guarded by
// run.mu.
type handle struct {
	engine *Engine
	run    *run
	name   string
	cancel context.CancelFunc
	logger *slog.Logger
	done   bool
}

var _ executable.Executor = (*handle)(nil)

// expired reports whether the executable has already returned. run.mu must
// be held.
func (h *handle) expired(call string) bool {
	if h.done {
		h.logger.Debug("ignoring call after executable returned", "call", call)
	}
	return h.done
}

// release marks the handle done.
func (h *handle) release() {
	h.run.mu.Lock()
	h.done = true
	h.run.mu.Unlock()
}

// StopExecutable ends the executable and cancels its context.
func (h *handle) StopExecutable() {
	h.run.mu.Lock()
	if h.expired("stop") {
		h.run.mu.Unlock()
		return
	}
	h.run.stopped = true
	h.engine.emit(h.run, model.EventExecutableStopped, h.name, "")
	h.run.mu.Unlock()
	h.cancel()
}

// SuspendExecutable marks the session suspended until Engine.Resume.
func (h *handle) SuspendExecutable() {
	h.run.mu.Lock()
	defer h.run.mu.Unlock()

	if h.expired("suspend") || h.run.sess.Status != model.StatusRunning {
		return
	}
	if err := h.engine.setStatus(context.Background(), h.run, model.StatusSuspended); err != nil {
		h.logger.Error("failed to suspend session", "error", err)
		return
	}
	h.engine.emit(h.run, model.EventExecutableSuspended, h.name, "")
}

// FailExecutable records err. The session fails once Run returns.
func (h *handle) FailExecutable(err error) {
	if err == nil {
		err = errUnspecifiedFailure
	}

	h.run.mu.Lock()
	defer h.run.mu.Unlock()

	if h.expired("fail") {
		return
	}
	if h.run.failErr == nil {
		h.run.failErr = err
	}
	h.engine.emit(h.run, model.EventExecutableFailed, h.name, err.Error())
}

// FinishExecutable records that the executable completed its work.
func (h *handle) FinishExecutable() {
	h.run.mu.Lock()
	defer h.run.mu.Unlock()

	if h.expired("finish") {
		return
	}
	h.engine.emit(h.run, model.EventExecutableFinished, h.name, "")
}

// StopModule ends the module after the current executable returns.
func (h *handle) StopModule(sessionComplete bool) {
	h.run.mu.Lock()
	defer h.run.mu.Unlock()

	if h.expired("stop_module") {
		return
	}
	h.run.stopModule = &sessionComplete
	h.engine.emit(h.run, model.EventModuleStopped, h.name, fmt.Sprintf("session_complete=%t", sessionComplete))
}
