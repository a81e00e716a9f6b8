package resource

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/seantiz/tatool/internal/model"
	"github.com/seantiz/tatool/internal/tabular"
)

// maxBodySize caps how much of a response body is read (64 MiB).
const maxBodySize = 64 << 20

// FetchError is returned when the server answers a fetch with a non-2xx
// status. Payload is the response body exactly as received.
type FetchError struct {
	StatusCode int
	URL        string
	Payload    []byte
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

// Loader fetches resources on behalf of one session.
type Loader struct {
	client  *http.Client
	baseURL *url.URL
	mode    string
	token   string
	logger  *slog.Logger
	optErr  error
}

// Option configures a Loader.
type Option func(*Loader)

// WithHTTPClient sets the client used for every request.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) {
		if c != nil {
			l.client = c
		}
	}
}

// WithBaseURL sets the URL that relative resource paths are resolved
// against. An unparsable URL is reported by NewLoader.
func WithBaseURL(raw string) Option {
	return func(l *Loader) {
		if raw == "" {
			return
		}
		u, err := url.Parse(raw)
		if err != nil {
			l.optErr = fmt.Errorf("parse base URL: %w", err)
			return
		}
		if !u.IsAbs() {
			l.optErr = fmt.Errorf("base URL %q must be absolute", raw)
			return
		}
		l.baseURL = u
	}
}

// WithLogger sets the logger for fetch failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a loader for a session running in mode with token.
func NewLoader(mode, token string, opts ...Option) (*Loader, error) {
	l := &Loader{
		client: http.DefaultClient,
		mode:   mode,
		token:  token,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.optErr != nil {
		return nil, l.optErr
	}
	return l, nil
}

// ResolvePath returns the location of d for this loader's session.
func (l *Loader) ResolvePath(d model.ResourceDescriptor) string {
	return ResolvePath(d, l.mode, l.token)
}

// Fetch issues one GET for d and returns the raw response body.
func (l *Loader) Fetch(ctx context.Context, d model.ResourceDescriptor) ([]byte, error) {
	scope := scopeProject
	if d.External() {
		scope = scopeExternal
	}

	target, err := l.locate(d)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	body, err := l.get(ctx, target)
	fetchDuration.WithLabelValues(scope).Observe(time.Since(start).Seconds())

	switch err.(type) {
	case nil:
		fetchesTotal.WithLabelValues(scope, outcomeOK).Inc()
	case *FetchError:
		fetchesTotal.WithLabelValues(scope, outcomeHTTPError).Inc()
		l.logger.Warn("resource fetch rejected", "url", redact(target), "error", err)
	default:
		fetchesTotal.WithLabelValues(scope, outcomeTransportError).Inc()
		l.logger.Warn("resource fetch failed", "url", redact(target), "error", err)
	}

	return body, err
}

// FetchTabular fetches d and decodes it as delimited text with dynamic
// typing. With header set, the first row names the fields of each record.
func (l *Loader) FetchTabular(ctx context.Context, d model.ResourceDescriptor, header bool) (*tabular.Table, error) {
	body, err := l.Fetch(ctx, d)
	if err != nil {
		return nil, err
	}
	return tabular.Decode(body, tabular.Options{Header: header})
}

// FetchAsync starts Fetch in the background and returns its Future.
func (l *Loader) FetchAsync(ctx context.Context, d model.ResourceDescriptor) *Future[[]byte] {
	f := newFuture[[]byte]()
	go func() {
		f.settle(l.Fetch(ctx, d))
	}()
	return f
}

// FetchTabularAsync starts FetchTabular in the background and returns its Future.
func (l *Loader) FetchTabularAsync(ctx context.Context, d model.ResourceDescriptor, header bool) *Future[*tabular.Table] {
	f := newFuture[*tabular.Table]()
	go func() {
		f.settle(l.FetchTabular(ctx, d, header))
	}()
	return f
}

// locate turns the resolved path into an absolute URL.
func (l *Loader) locate(d model.ResourceDescriptor) (*url.URL, error) {
	raw := l.ResolvePath(d)
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse resource url: %w", err)
	}
	if l.baseURL != nil && !u.IsAbs() {
		u = l.baseURL.ResolveReference(u)
	}
	return u, nil
}

// get performs the request. Transport errors are returned as the client
// produced them.
func (l *Loader) get(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{
			StatusCode: resp.StatusCode,
			URL:        redact(u),
			Payload:    body,
		}
	}
	return body, nil
}
