package executable

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/seantiz/tatool/internal/model"
	"github.com/seantiz/tatool/internal/resource"
	"github.com/seantiz/tatool/internal/stimulus"
	"github.com/seantiz/tatool/internal/timing"
)

// recordingExecutor records every lifecycle call in order.
type recordingExecutor struct {
	mu       sync.Mutex
	calls    []string
	failErr  error
	complete []bool
}

func (r *recordingExecutor) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recordingExecutor) StopExecutable()    { r.record("stop") }
func (r *recordingExecutor) SuspendExecutable() { r.record("suspend") }
func (r *recordingExecutor) FinishExecutable()  { r.record("finish") }

func (r *recordingExecutor) FailExecutable(err error) {
	r.mu.Lock()
	r.failErr = err
	r.mu.Unlock()
	r.record("fail")
}

func (r *recordingExecutor) StopModule(sessionComplete bool) {
	r.mu.Lock()
	r.complete = append(r.complete, sessionComplete)
	r.mu.Unlock()
	r.record("stopModule")
}

func newTestController(t *testing.T, exec Executor, opts ...Option) *Controller {
	t.Helper()
	c, err := New(SessionContext{Executor: exec, Token: "tok", Mode: model.ModeLab}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewRejectsIncompleteSession(t *testing.T) {
	if _, err := New(SessionContext{Mode: model.ModeLab}); !errors.Is(err, ErrNoExecutor) {
		t.Errorf("New without executor = %v, want ErrNoExecutor", err)
	}
	if _, err := New(SessionContext{Executor: &recordingExecutor{}}); !errors.Is(err, ErrNoMode) {
		t.Errorf("New without mode = %v, want ErrNoMode", err)
	}
}

func TestNewRejectsBadResourceOptions(t *testing.T) {
	_, err := New(
		SessionContext{Executor: &recordingExecutor{}, Mode: model.ModeWeb},
		WithResourceOptions(resource.WithBaseURL("not/absolute")),
	)
	if err == nil {
		t.Error("expected error for relative base URL")
	}
}

func TestLifecycleDelegation(t *testing.T) {
	tests := []struct {
		name string
		call func(c *Controller)
		want []string
	}{
		{"stop", func(c *Controller) { c.Stop() }, []string{"stop"}},
		{"suspend", func(c *Controller) { c.Suspend() }, []string{"suspend"}},
		{"fail", func(c *Controller) { c.Fail(errors.New("boom")) }, []string{"fail"}},
		{"stopModule", func(c *Controller) { c.StopModule() }, []string{"finish", "stopModule"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &recordingExecutor{}
			c := newTestController(t, exec)
			tt.call(c)
			if !reflect.DeepEqual(exec.calls, tt.want) {
				t.Errorf("calls = %v, want %v", exec.calls, tt.want)
			}
		})
	}
}

func TestFailForwardsErrorVerbatim(t *testing.T) {
	exec := &recordingExecutor{}
	c := newTestController(t, exec)

	payload := &resource.FetchError{StatusCode: 404, Payload: []byte(`{"status":404}`)}
	c.Fail(payload)

	if exec.failErr != error(payload) {
		t.Errorf("executor received %v, want the same error value", exec.failErr)
	}
}

func TestStopModuleSessionCompleteDefaults(t *testing.T) {
	tests := []struct {
		name string
		opts []StopOption
		want bool
	}{
		{"default", nil, true},
		{"explicit true", []StopOption{SessionComplete(true)}, true},
		{"explicit false", []StopOption{SessionComplete(false)}, false},
		{"incomplete", []StopOption{SessionIncomplete()}, false},
		{"last option wins", []StopOption{SessionIncomplete(), SessionComplete(true)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &recordingExecutor{}
			c := newTestController(t, exec)
			c.StopModule(tt.opts...)
			if len(exec.complete) != 1 || exec.complete[0] != tt.want {
				t.Errorf("sessionComplete = %v, want [%v]", exec.complete, tt.want)
			}
		})
	}
}

func TestSessionIsImmutableCopy(t *testing.T) {
	exec := &recordingExecutor{}
	c := newTestController(t, exec)

	sc := c.Session()
	sc.Token = "changed"
	sc.Mode = model.ModeWeb

	if c.Session().Token != "tok" || c.Mode() != model.ModeLab {
		t.Errorf("session changed through copy: %+v", c.Session())
	}
}

func TestControllersAreIndependent(t *testing.T) {
	a := newTestController(t, &recordingExecutor{})
	b, err := New(SessionContext{Executor: &recordingExecutor{}, Token: "other", Mode: model.ModeWeb})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	d := model.ResourceDescriptor{
		Project:      model.Project{Access: model.AccessInternal, Name: "p1"},
		ResourceType: "images",
		ResourceName: "a.png",
	}
	if got := a.ResolvePath(d); got != "/lab/resources/internal/p1/images/a.png?token=tok" {
		t.Errorf("a.ResolvePath() = %q", got)
	}
	if got := b.ResolvePath(d); got != "/web/resources/internal/p1/images/a.png?token=other" {
		t.Errorf("b.ResolvePath() = %q", got)
	}
}

type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (s *steppingClock) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.now
	s.now = s.now.Add(time.Millisecond)
	return t
}

func TestNowUsesInjectedTiming(t *testing.T) {
	src := timing.New(&steppingClock{now: time.Now()})
	c := newTestController(t, &recordingExecutor{}, WithTiming(src))

	first := c.Now()
	second := c.Now()
	if second <= first {
		t.Errorf("Now() did not advance: %v then %v", first, second)
	}
	if c.Timing() != src {
		t.Error("Timing() did not return the injected source")
	}
}

func TestSelectorAndRandomInt(t *testing.T) {
	sel := stimulus.NewSeededSelector(1)
	c := newTestController(t, &recordingExecutor{}, WithSelector(sel))
	if c.Selector() != sel {
		t.Error("Selector() did not return the injected selector")
	}
	for i := 0; i < 100; i++ {
		if v := c.RandomInt(0, 3); v < 0 || v > 3 {
			t.Fatalf("RandomInt(0, 3) = %d", v)
		}
	}

	pool := stimulus.NewSequence("a", "b")
	if _, ok := stimulus.DrawWithoutReplacement(c.Selector(), pool); !ok {
		t.Error("draw through controller selector failed")
	}
}

func TestFetchThroughController(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte("x,y\n1,2\n"))
	}))
	defer ts.Close()

	exec := &recordingExecutor{}
	c := newTestController(t, exec, WithResourceOptions(resource.WithBaseURL(ts.URL)))
	d := model.ResourceDescriptor{
		Project:      model.Project{Access: model.AccessInternal, Name: "p1"},
		ResourceType: "stimuli",
		ResourceName: "list.csv",
	}

	body, err := c.Fetch(context.Background(), d)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(body) != "x,y\n1,2\n" {
		t.Errorf("body = %q", body)
	}

	table, err := c.FetchTabular(context.Background(), d, true)
	if err != nil {
		t.Fatalf("FetchTabular: %v", err)
	}
	if table.Len() != 1 || table.Records[0]["y"] != float64(2) {
		t.Errorf("table = %+v", table)
	}

	async, err := c.FetchAsync(context.Background(), d).Wait(context.Background())
	if err != nil || string(async) != string(body) {
		t.Errorf("FetchAsync = (%q, %v)", async, err)
	}
	tableAsync, err := c.FetchTabularAsync(context.Background(), d, false).Wait(context.Background())
	if err != nil || tableAsync.Len() != 2 {
		t.Errorf("FetchTabularAsync = (%+v, %v)", tableAsync, err)
	}
}

func TestStopDoesNotCancelInFlightFetch(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte("done"))
	}))
	defer ts.Close()

	exec := &recordingExecutor{}
	c := newTestController(t, exec, WithResourceOptions(resource.WithBaseURL(ts.URL)))
	d := model.ResourceDescriptor{
		Project:      model.Project{Access: model.AccessExternal},
		ResourceName: ts.URL + "/slow",
	}

	f := c.FetchAsync(context.Background(), d)
	c.Stop()
	close(release)

	body, err := f.Wait(context.Background())
	if err != nil || string(body) != "done" {
		t.Errorf("future after Stop = (%q, %v), want (done, nil)", body, err)
	}
	if !reflect.DeepEqual(exec.calls, []string{"stop"}) {
		t.Errorf("calls = %v", exec.calls)
	}
}
