package executable

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/seantiz/tatool/internal/model"
	"github.com/seantiz/tatool/internal/resource"
	"github.com/seantiz/tatool/internal/stimulus"
	"github.com/seantiz/tatool/internal/tabular"
	"github.com/seantiz/tatool/internal/timing"
)

// Controller is the facade handed to a running executable.
type Controller struct {
	session  SessionContext
	loader   *resource.Loader
	timing   *timing.Source
	selector *stimulus.Selector
	logger   *slog.Logger

	loaderOpts []resource.Option
}

// Option configures a Controller.
type Option func(*Controller)

// WithTiming sets the timestamp source. The default is timing.Default().
func WithTiming(src *timing.Source) Option {
	return func(c *Controller) {
		if src != nil {
			c.timing = src
		}
	}
}

// WithSelector sets the stimulus selector.
func WithSelector(s *stimulus.Selector) Option {
	return func(c *Controller) {
		if s != nil {
			c.selector = s
		}
	}
}

// WithLogger sets the logger used for lifecycle and fetch diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithResourceOptions passes options through to the resource loader.
func WithResourceOptions(opts ...resource.Option) Option {
	return func(c *Controller) {
		c.loaderOpts = append(c.loaderOpts, opts...)
	}
}

// New initializes a controller with sc. The session context cannot be
// changed afterwards.
func New(sc SessionContext, opts ...Option) (*Controller, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		session:  sc,
		timing:   timing.Default(),
		selector: stimulus.NewSelector(nil),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}

	loaderOpts := append([]resource.Option{resource.WithLogger(c.logger)}, c.loaderOpts...)
	loader, err := resource.NewLoader(sc.Mode, sc.Token, loaderOpts...)
	if err != nil {
		return nil, fmt.Errorf("create resource loader: %w", err)
	}
	c.loader = loader
	c.loaderOpts = nil

	return c, nil
}

// Session returns the context the controller was initialized with.
func (c *Controller) Session() SessionContext {
	return c.session
}

// Mode returns the session run mode.
func (c *Controller) Mode() string {
	return c.session.Mode
}

// Logger returns the logger scoped to this executable.
func (c *Controller) Logger() *slog.Logger {
	return c.logger
}

// Stop halts the current executable.
func (c *Controller) Stop() {
	c.logger.Debug("executable stop requested")
	c.session.Executor.StopExecutable()
}

// Suspend pauses the current executable, typically while awaiting input.
func (c *Controller) Suspend() {
	c.logger.Debug("executable suspend requested")
	c.session.Executor.SuspendExecutable()
}

// Fail reports an unrecoverable condition. err reaches the executor as is.
func (c *Controller) Fail(err error) {
	c.logger.Debug("executable failure reported", "error", err)
	c.session.Executor.FailExecutable(err)
}

type stopOptions struct {
	sessionComplete bool
}

// StopOption configures StopModule.
type StopOption func(*stopOptions)

// SessionComplete sets whether the owning session counts as complete.
func SessionComplete(complete bool) StopOption {
	return func(o *stopOptions) { o.sessionComplete = complete }
}

// SessionIncomplete marks the owning session as not complete.
func SessionIncomplete() StopOption {
	return SessionComplete(false)
}

// StopModule finishes the current executable and then asks the executor to
// end the module run. The session counts as complete unless an option says
// otherwise.
func (c *Controller) StopModule(opts ...StopOption) {
	o := stopOptions{sessionComplete: true}
	for _, opt := range opts {
		opt(&o)
	}

	c.logger.Debug("module stop requested", "session_complete", o.sessionComplete)
	c.session.Executor.FinishExecutable()
	c.session.Executor.StopModule(o.sessionComplete)
}

// Now returns the current timestamp in milliseconds. See package timing for
// the precision guarantees.
func (c *Controller) Now() float64 {
	return c.timing.Now()
}

// Timing returns the controller's timestamp source.
func (c *Controller) Timing() *timing.Source {
	return c.timing
}

// ResolvePath returns the location of the resource described by d.
func (c *Controller) ResolvePath(d model.ResourceDescriptor) string {
	return c.loader.ResolvePath(d)
}

// Fetch loads the raw content of d. Stopping the executable does not
// cancel the request; cancel ctx for that.
func (c *Controller) Fetch(ctx context.Context, d model.ResourceDescriptor) ([]byte, error) {
	return c.loader.Fetch(ctx, d)
}

// FetchAsync starts loading d and returns a future for the result.
func (c *Controller) FetchAsync(ctx context.Context, d model.ResourceDescriptor) *resource.Future[[]byte] {
	return c.loader.FetchAsync(ctx, d)
}

// FetchTabular loads d and decodes it as delimited text.
func (c *Controller) FetchTabular(ctx context.Context, d model.ResourceDescriptor, header bool) (*tabular.Table, error) {
	return c.loader.FetchTabular(ctx, d, header)
}

// FetchTabularAsync starts FetchTabular and returns a future for the result.
func (c *Controller) FetchTabularAsync(ctx context.Context, d model.ResourceDescriptor, header bool) *resource.Future[*tabular.Table] {
	return c.loader.FetchTabularAsync(ctx, d, header)
}

// Selector returns the selector to pass to the stimulus draw functions.
func (c *Controller) Selector() *stimulus.Selector {
	return c.selector
}

// RandomInt returns a uniform integer in [min, max].
func (c *Controller) RandomInt(min, max int) int {
	return c.selector.RandomInt(min, max)
}
