package e2e

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/seantiz/tatool/internal/api"
	"github.com/seantiz/tatool/internal/executable"
	"github.com/seantiz/tatool/internal/executor"
	"github.com/seantiz/tatool/internal/model"
	"github.com/seantiz/tatool/internal/resource"
	"github.com/seantiz/tatool/internal/store"
	"github.com/seantiz/tatool/internal/trials"
)

const pollInterval = 20 * time.Millisecond

// stack is a full in-process deployment: the trials fetch their resources
// from the same server that runs them.
type stack struct {
	ts        *httptest.Server
	eng       *executor.Engine
	store     *store.SQLiteStore
	presented chan trials.Presentation
}

func newStack(t *testing.T, mode string) *stack {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	dir := t.TempDir()
	stimuli := filepath.Join(dir, "public", "stroop", "stimuli")
	if err := os.MkdirAll(stimuli, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	csv := "word,color,congruent\nRED,red,true\nRED,blue,false\nBLUE,blue,true\nBLUE,red,false\n"
	if err := os.WriteFile(filepath.Join(stimuli, "words.csv"), []byte(csv), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// The listener exists before the server starts, so the controllers can
	// be pointed at it.
	ts := httptest.NewUnstartedServer(nil)
	baseURL := "http://" + ts.Listener.Addr().String()

	st := &stack{ts: ts, store: s, presented: make(chan trials.Presentation, 16)}

	reg := executable.NewRegistry()
	reg.Register("timing-probe", &trials.TimingProbe{Samples: 50})
	reg.Register("stimulus-list", &trials.StimulusList{
		Resource: model.ResourceDescriptor{
			Project:      model.Project{Access: model.AccessPublic, Name: "stroop"},
			ResourceType: "stimuli",
			ResourceName: "words.csv",
		},
		OnPresent: func(p trials.Presentation) { st.presented <- p },
	})
	reg.Register("missing-list", &trials.StimulusList{
		Resource: model.ResourceDescriptor{
			Project:      model.Project{Access: model.AccessPublic, Name: "stroop"},
			ResourceType: "stimuli",
			ResourceName: "absent.csv",
		},
	})

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	st.eng = executor.NewEngine(s, reg, logger,
		executor.WithMode(mode),
		executor.WithControllerOptions(executable.WithResourceOptions(resource.WithBaseURL(baseURL))),
	)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		st.eng.Shutdown(ctx)
	})

	ts.Config.Handler = api.NewServer(":0", s, reg, st.eng, logger, api.WithProjectsDir(dir)).Router()
	ts.Start()
	t.Cleanup(ts.Close)
	return st
}

func (st *stack) start(t *testing.T, executables ...string) model.Session {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"module_id": "stroop", "executables": executables})
	resp, err := http.Post(st.ts.URL+"/v1/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /v1/sessions: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, body = %s", resp.StatusCode, b)
	}
	var sess model.Session
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return sess
}

func (st *stack) waitFor(t *testing.T, id, status string) model.Session {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(st.ts.URL + "/v1/sessions/" + id)
		if err != nil {
			t.Fatalf("GET session: %v", err)
		}
		var sess model.Session
		json.NewDecoder(resp.Body).Decode(&sess)
		resp.Body.Close()
		if sess.Status == status {
			return sess
		}
		time.Sleep(pollInterval)
	}
	t.Fatalf("session %s did not reach %q", id, status)
	return model.Session{}
}

func TestModuleRunsBothTrials(t *testing.T) {
	for _, mode := range []string{model.ModeLab, model.ModeWeb} {
		t.Run(mode, func(t *testing.T) {
			st := newStack(t, mode)

			sess := st.start(t, "timing-probe", "stimulus-list")
			if sess.Mode != mode {
				t.Errorf("mode = %q, want %q", sess.Mode, mode)
			}

			// timing-probe stops the module, so the stimulus list never runs.
			done := st.waitFor(t, sess.ID, model.StatusCompleted)
			if done.Current != 0 {
				t.Errorf("current = %d, want 0", done.Current)
			}
			if len(st.presented) != 0 {
				t.Errorf("stimulus list ran after timing-probe stopped the module")
			}
		})
	}
}

func TestStimulusListFetchesThroughServer(t *testing.T) {
	st := newStack(t, model.ModeWeb)

	sess := st.start(t, "stimulus-list")
	done := st.waitFor(t, sess.ID, model.StatusCompleted)
	if done.SessionComplete == nil || !*done.SessionComplete {
		t.Errorf("session_complete = %v, want true", done.SessionComplete)
	}

	seen := make(map[string]bool)
	for range 4 {
		p := <-st.presented
		key := p.Stimulus["word"].(string) + "/" + p.Stimulus["color"].(string)
		if seen[key] {
			t.Errorf("stimulus %s presented twice", key)
		}
		seen[key] = true
	}
	if len(seen) != 4 {
		t.Errorf("presented %d distinct stimuli, want 4", len(seen))
	}
}

func TestMissingResourceFailsSession(t *testing.T) {
	st := newStack(t, model.ModeWeb)

	sess := st.start(t, "missing-list")
	failed := st.waitFor(t, sess.ID, model.StatusFailed)
	if !strings.Contains(failed.Error, "404") {
		t.Errorf("error = %q, want fetch status", failed.Error)
	}
}

func TestResourceEndpointRequiresSessionToken(t *testing.T) {
	st := newStack(t, model.ModeLab)
	sess := st.start(t, "timing-probe")
	st.waitFor(t, sess.ID, model.StatusCompleted)

	path := st.ts.URL + "/lab/resources/public/stroop/stimuli/words.csv"

	resp, err := http.Get(path + "?token=" + sess.Token)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(string(body), "word,color") {
		t.Errorf("with token: status %d body %q", resp.StatusCode, body)
	}

	resp, err = http.Get(path + "?token=forged")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("forged token status = %d, want 401", resp.StatusCode)
	}
}

func TestEventStreamEndsWithDone(t *testing.T) {
	st := newStack(t, model.ModeWeb)
	sess := st.start(t, "stimulus-list")

	resp, err := http.Get(st.ts.URL + "/v1/sessions/" + sess.ID + "/events")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()

	var last string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if name, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
			last = name
		}
	}
	if last != "done" {
		t.Errorf("last event = %q, want done", last)
	}
}
