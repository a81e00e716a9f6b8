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
	"github.com/seantiz/tatool/internal/store"
)

var (
	// ErrSessionNotFound is returned when no session has the given ID.
	ErrSessionNotFound = errors.New("session not found")

	// ErrEmptyModule is returned when a module queue has no executables.
	ErrEmptyModule = errors.New("module has no executables")
)

// StartRequest describes a module run.
type StartRequest struct {
	ModuleID    string
	Executables []string
}

// Engine runs module queues asynchronously and tracks the sessions it has
// in flight.
type Engine struct {
	store    store.Store
	registry *executable.Registry
	logger   *slog.Logger
	broker   *EventBroker
	mode     string
	ctlOpts  []executable.Option
	wg       sync.WaitGroup

	mu   sync.Mutex
	runs map[string]*run
}

// Option configures an Engine.
type Option func(*Engine)

// WithMode sets the run mode given to every session. The default is web.
func WithMode(mode string) Option {
	return func(e *Engine) {
		if mode != "" {
			e.mode = mode
		}
	}
}

// WithControllerOptions adds options applied to every controller the
// engine builds, such as resource loader settings.
func WithControllerOptions(opts ...executable.Option) Option {
	return func(e *Engine) {
		e.ctlOpts = append(e.ctlOpts, opts...)
	}
}

// NewEngine creates a new execution engine.
func NewEngine(s store.Store, reg *executable.Registry, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		registry: reg,
		logger:   logger,
		broker:   NewEventBroker(),
		mode:     model.ModeWeb,
		runs:     make(map[string]*run),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Broker returns the engine's event broker for SSE subscription.
func (e *Engine) Broker() *EventBroker {
	return e.broker
}

// Mode returns the run mode sessions are started in.
func (e *Engine) Mode() string {
	return e.mode
}

// Start validates the module queue, stores a pending session and launches
// the run in a goroutine. The returned session includes its resource token.
func (e *Engine) Start(ctx context.Context, req StartRequest) (*model.Session, error) {
	if len(req.Executables) == 0 {
		return nil, ErrEmptyModule
	}

	queue := make([]executable.Executable, len(req.Executables))
	for i, name := range req.Executables {
		x, err := e.registry.Resolve(name)
		if err != nil {
			return nil, err
		}
		queue[i] = x
	}

	sess := &model.Session{
		ID:          model.NewID(),
		ModuleID:    req.ModuleID,
		Token:       model.NewToken(),
		Mode:        e.mode,
		Status:      model.StatusPending,
		Executables: append([]string(nil), req.Executables...),
		CreatedAt:   time.Now().UTC(),
	}
	if err := e.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	r := newRun(*sess, queue)
	e.mu.Lock()
	e.runs[sess.ID] = r
	e.mu.Unlock()

	e.wg.Go(func() {
		e.execute(r)
	})

	return sess, nil
}

// Wait blocks until all in-flight module runs complete.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Shutdown cancels every in-flight session and waits for the runs to exit
// or ctx to end.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	ids := make([]string, 0, len(e.runs))
	for id := range e.runs {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for _, id := range ids {
		if _, err := e.Cancel(ctx, id); err != nil && !errors.Is(err, store.ErrInvalidTransition) {
			e.logger.Warn("cancel on shutdown failed", "session_id", id, "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resume moves a suspended session back to running. A run whose
// executable returned while suspended continues with the next one.
func (e *Engine) Resume(ctx context.Context, id string) (*model.Session, error) {
	r, err := e.active(ctx, id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sess.Status != model.StatusSuspended {
		return nil, fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, r.sess.Status, model.StatusRunning)
	}
	if err := e.setStatus(ctx, r, model.StatusRunning); err != nil {
		return nil, err
	}
	e.emit(r, model.EventExecutableResumed, r.currentName(), "")

	select {
	case r.resumed <- struct{}{}:
	default:
	}

	sess := r.sess
	return &sess, nil
}

// Cancel stops a session that has not ended yet. The running executable's
// context is cancelled.
func (e *Engine) Cancel(ctx context.Context, id string) (*model.Session, error) {
	r, err := e.active(ctx, id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ended {
		return nil, fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, r.sess.Status, model.StatusStopped)
	}
	if err := e.setStatus(ctx, r, model.StatusStopped); err != nil {
		return nil, err
	}
	r.cancelled = true
	e.emit(r, model.EventSessionCancelled, r.currentName(), "")
	r.cancel()

	sess := r.sess
	return &sess, nil
}

// active returns the in-flight run for id. Sessions that exist but are no
// longer running yield ErrInvalidTransition.
func (e *Engine) active(ctx context.Context, id string) (*run, error) {
	e.mu.Lock()
	r, ok := e.runs[id]
	e.mu.Unlock()
	if ok {
		return r, nil
	}

	sess, err := e.store.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return nil, fmt.Errorf("%w: session is %s", store.ErrInvalidTransition, sess.Status)
}

// execute runs the module queue: pending→running→completed/stopped/failed.
func (e *Engine) execute(r *run) {
	id := r.sess.ID
	logger := e.logger.With("session_id", id, "module_id", r.sess.ModuleID)

	sessionsActive.Inc()
	defer sessionsActive.Dec()
	defer e.broker.Close(id)
	defer func() {
		e.mu.Lock()
		delete(e.runs, id)
		e.mu.Unlock()
	}()
	defer r.cancel()

	r.mu.Lock()
	if r.cancelled {
		e.finish(r, model.StatusStopped, nil, "")
		r.mu.Unlock()
		return
	}
	if err := e.setStatus(context.Background(), r, model.StatusRunning); err != nil {
		logger.Error("failed to transition to running", "error", err)
		e.finish(r, model.StatusFailed, nil, fmt.Sprintf("failed to start: %v", err))
		r.mu.Unlock()
		return
	}
	r.start = time.Now()
	e.emit(r, model.EventSessionStarted, "", "")
	r.mu.Unlock()
	logger.Info("session started", "executables", len(r.queue))

	for i, x := range r.queue {
		r.mu.Lock()
		if r.cancelled {
			e.finish(r, model.StatusStopped, nil, "")
			r.mu.Unlock()
			logger.Info("session cancelled")
			return
		}
		r.sess.Current = i
		r.resetExecutable()
		name := r.currentName()
		if err := e.store.UpdateSession(context.Background(), &r.sess); err != nil {
			logger.Error("failed to record current executable", "executable", name, "error", err)
		}
		e.emit(r, model.EventExecutableStarted, name, "")
		r.mu.Unlock()

		runErr := e.runExecutable(r, name, x, logger)

		r.mu.Lock()
		switch {
		case r.cancelled:
			e.finish(r, model.StatusStopped, nil, "")
			r.mu.Unlock()
			logger.Info("session cancelled", "executable", name)
			return

		case r.failErr != nil || (runErr != nil && !(r.stopped && errors.Is(runErr, context.Canceled))):
			cause := r.failErr
			if cause == nil {
				cause = runErr
				e.emit(r, model.EventExecutableFailed, name, runErr.Error())
			}
			e.finish(r, model.StatusFailed, nil, fmt.Sprintf("%s: %v", name, cause))
			r.mu.Unlock()
			logger.Warn("session failed", "executable", name, "error", cause)
			return
		}

		for r.sess.Status == model.StatusSuspended && !r.cancelled {
			r.mu.Unlock()
			select {
			case <-r.resumed:
			case <-r.ctx.Done():
			}
			r.mu.Lock()
		}
		if r.cancelled {
			e.finish(r, model.StatusStopped, nil, "")
			r.mu.Unlock()
			logger.Info("session cancelled", "executable", name)
			return
		}

		if r.stopModule != nil {
			complete := *r.stopModule
			status := model.StatusStopped
			if complete {
				status = model.StatusCompleted
			}
			e.finish(r, status, &complete, "")
			r.mu.Unlock()
			logger.Info("module stopped", "executable", name, "session_complete", complete)
			return
		}
		r.mu.Unlock()
	}

	r.mu.Lock()
	complete := true
	e.finish(r, model.StatusCompleted, &complete, "")
	r.mu.Unlock()
	logger.Info("session completed")
}

// runExecutable builds the controller for one executable and runs it with a
// context the handle can cancel.
func (e *Engine) runExecutable(r *run, name string, x executable.Executable, logger *slog.Logger) error {
	trialCtx, cancel := context.WithCancel(r.ctx)
	defer cancel()

	xlog := logger.With("executable", name)
	h := &handle{engine: e, run: r, name: name, cancel: cancel, logger: xlog}
	defer h.release()

	opts := append([]executable.Option{executable.WithLogger(xlog)}, e.ctlOpts...)

	ctl, err := executable.New(executable.SessionContext{
		Executor: h,
		Token:    r.sess.Token,
		Mode:     r.sess.Mode,
	}, opts...)
	if err != nil {
		return fmt.Errorf("create controller: %w", err)
	}

	start := time.Now()
	err = x.Run(trialCtx, ctl)
	executableDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return err
}

// setStatus persists a validated status change and mirrors it in memory.
// r.mu must be held.
func (e *Engine) setStatus(ctx context.Context, r *run, status string) error {
	if err := e.store.UpdateSessionStatus(ctx, r.sess.ID, status); err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	r.sess.Status = status
	return nil
}

// finish records the terminal state of a session. A status already set by
// Cancel is kept. r.mu must be held.
func (e *Engine) finish(r *run, status string, complete *bool, errMsg string) {
	if r.ended {
		return
	}
	r.ended = true

	if r.sess.Status != status && !model.ValidTransition(r.sess.Status, status) {
		e.logger.Error("invalid terminal transition", "session_id", r.sess.ID, "from", r.sess.Status, "to", status)
	}

	now := time.Now().UTC()
	r.sess.Status = status
	r.sess.SessionComplete = complete
	r.sess.Error = errMsg
	r.sess.FinishedAt = &now
	if !r.start.IsZero() {
		started := r.start.UTC()
		dur := int(time.Since(r.start).Milliseconds())
		r.sess.StartedAt = &started
		r.sess.DurationMS = &dur
	}

	if err := e.store.UpdateSession(context.Background(), &r.sess); err != nil {
		e.logger.Error("failed to update finished session", "session_id", r.sess.ID, "error", err)
	}
	sessionsFinished.WithLabelValues(status).Inc()
}

// emit persists an event and publishes it to live subscribers.
func (e *Engine) emit(r *run, typ, name, detail string) {
	ev := &model.Event{
		SessionID:  r.sess.ID,
		Type:       typ,
		Executable: name,
		Detail:     detail,
	}
	if err := e.store.InsertEvent(context.Background(), ev); err != nil {
		e.logger.Error("failed to persist event", "session_id", r.sess.ID, "type", typ, "error", err)
	}
	e.broker.Publish(*ev)
}
