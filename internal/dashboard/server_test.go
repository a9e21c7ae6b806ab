package dashboard

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/skimmer/internal/archive"
	"github.com/zulandar/skimmer/internal/browser"
	"github.com/zulandar/skimmer/internal/events"
	"github.com/zulandar/skimmer/internal/models"
	"github.com/zulandar/skimmer/internal/persist"
	"github.com/zulandar/skimmer/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubController records calls and returns canned errors.
type stubController struct {
	mu       sync.Mutex
	calls    []string
	settings session.Settings
	err      error
	store    *archive.Store
	state    session.State
}

func (s *stubController) record(call string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
	return s.err
}

func (s *stubController) Start(_ context.Context, st session.Settings) error {
	s.mu.Lock()
	s.settings = st
	s.mu.Unlock()
	return s.record("start")
}
func (s *stubController) Pause() error { return s.record("pause") }
func (s *stubController) Resume() error { return s.record("resume") }
func (s *stubController) Stop(context.Context) error { return s.record("stop") }
func (s *stubController) ClearData(context.Context) error { return s.record("clear") }
func (s *stubController) State() session.State { return s.state }
func (s *stubController) Store() *archive.Store { return s.store }

func newStub() *stubController {
	return &stubController{store: archive.NewStore(), state: session.State{Phase: session.PhaseIdle}}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestStart_NilSession(t *testing.T) {
	err := Start(context.Background(), StartOpts{})
	if err == nil || !strings.Contains(err.Error(), "session is required") {
		t.Fatalf("err = %v, want session is required", err)
	}
}

func TestCommands(t *testing.T) {
	tests := []struct {
		path string
		call string
	}{
		{"/api/pause", "pause"},
		{"/api/resume", "resume"},
		{"/api/stop", "stop"},
		{"/api/clear", "clear"},
	}
	for _, tt := range tests {
		t.Run(tt.call, func(t *testing.T) {
			stub := newStub()
			w := do(t, newRouter(StartOpts{Session: stub}), http.MethodPost, tt.path, "")
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
			}
			if len(stub.calls) != 1 || stub.calls[0] != tt.call {
				t.Errorf("calls = %v", stub.calls)
			}
		})
	}
}

func TestCommand_Conflict(t *testing.T) {
	stub := newStub()
	stub.err = session.ErrNotRunning
	w := do(t, newRouter(StartOpts{Session: stub}), http.MethodPost, "/api/pause", "")
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
	if !strings.Contains(w.Body.String(), "not running") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestStartRoute_Settings(t *testing.T) {
	defaults := session.DefaultSettings()

	t.Run("defaults", func(t *testing.T) {
		stub := newStub()
		w := do(t, newRouter(StartOpts{Session: stub, Defaults: defaults}), http.MethodPost, "/api/start", "")
		if w.Code != http.StatusAccepted {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		if stub.settings != defaults {
			t.Errorf("settings = %+v, want defaults", stub.settings)
		}
	})

	t.Run("override", func(t *testing.T) {
		stub := newStub()
		body := `{"includeThreads": false, "timeRangeFrom": "2026-01-01T00:00"}`
		w := do(t, newRouter(StartOpts{Session: stub, Defaults: defaults}), http.MethodPost, "/api/start", body)
		if w.Code != http.StatusAccepted {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		want := defaults
		want.IncludeThreads = false
		want.TimeRangeFrom = "2026-01-01T00:00"
		if stub.settings != want {
			t.Errorf("settings = %+v, want %+v", stub.settings, want)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		stub := newStub()
		w := do(t, newRouter(StartOpts{Session: stub}), http.MethodPost, "/api/start", `{"scrollDelaySeconds": "slow"}`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
		if len(stub.calls) != 0 {
			t.Errorf("Start called on a bad body")
		}
	})

	t.Run("already running", func(t *testing.T) {
		stub := newStub()
		stub.err = session.ErrAlreadyRunning
		w := do(t, newRouter(StartOpts{Session: stub}), http.MethodPost, "/api/start", "")
		if w.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", w.Code)
		}
	})
}

func TestStateRoute(t *testing.T) {
	stub := newStub()
	stub.state = session.State{Phase: session.PhaseScrolling, Running: true, Messages: 12}
	w := do(t, newRouter(StartOpts{Session: stub}), http.MethodGet, "/api/state", "")
	var got session.State
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Phase != session.PhaseScrolling || !got.Running || got.Messages != 12 {
		t.Errorf("state = %+v", got)
	}
}

func TestExportRoute(t *testing.T) {
	stub := newStub()
	stub.state.ChannelName = "general"
	m := archive.Message{TS: "1700000000.000100", UserName: "al", Text: `He said "hi", then left`}
	m.Annotate(time.UTC)
	stub.store.Insert(m)
	router := newRouter(StartOpts{Session: stub})

	w := do(t, router, http.MethodGet, "/api/export/csv", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content-type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "skimmer-general-") {
		t.Errorf("content-disposition = %q", cd)
	}
	rows, err := csv.NewReader(w.Body).ReadAll()
	if err != nil || len(rows) != 2 || rows[1][5] != `He said "hi", then left` {
		t.Errorf("rows = %v, err %v", rows, err)
	}

	if w := do(t, router, http.MethodGet, "/api/export/xml", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown format status = %d, want 404", w.Code)
	}
}

type stubRuns []models.Run

func (r stubRuns) Recent(_ context.Context, limit int) ([]models.Run, error) {
	return r[:min(limit, len(r))], nil
}

func TestRunsRoute(t *testing.T) {
	runs := stubRuns{{ID: "b", Phase: "completed"}, {ID: "a", Phase: "stopped"}}
	router := newRouter(StartOpts{Session: newStub(), Runs: runs})

	w := do(t, router, http.MethodGet, "/api/runs?limit=1", "")
	var body struct {
		Runs []models.Run `json:"runs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Runs) != 1 || body.Runs[0].ID != "b" {
		t.Errorf("runs = %+v", body.Runs)
	}
	if w := do(t, router, http.MethodGet, "/api/runs?limit=zero", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", w.Code)
	}
}

func TestSSE_NilHub(t *testing.T) {
	w := do(t, newRouter(StartOpts{Session: newStub()}), http.MethodGet, "/api/events", "")
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Errorf("content-type = %q", ct)
	}
	if !strings.HasPrefix(w.Body.String(), "event: connected\n") {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestSSE_StreamsHubEvents(t *testing.T) {
	hub := events.NewHub(8)
	srv := httptest.NewServer(newRouter(StartOpts{Session: newStub(), Hub: hub}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/events: %v", err)
	}
	defer resp.Body.Close()

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		for lines.Scan() {
			if l := lines.Text(); strings.HasPrefix(l, "event: ") {
				return strings.TrimPrefix(l, "event: ")
			}
		}
		return ""
	}
	if got := next(); got != "connected" {
		t.Fatalf("first event = %q", got)
	}

	deadline := time.Now().Add(3 * time.Second)
	for hub.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	hub.Emit(events.Event{Kind: events.KindProgress, Progress: &events.Progress{Phase: "scrolling", Messages: 3}})
	if got := next(); got != "progress" {
		t.Fatalf("second event = %q", got)
	}
	if !lines.Scan() || !strings.Contains(lines.Text(), `"messages":3`) {
		t.Errorf("data line = %q", lines.Text())
	}
}

func TestWriteSSE(t *testing.T) {
	var b strings.Builder
	writeSSE(&b, "saved", map[string]int{"messages": 4})
	if b.String() != "event: saved\ndata: {\"messages\":4}\n\n" {
		t.Errorf("writeSSE = %q", b.String())
	}
}

// instantClock never waits but still moves time forward.
type instantClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *instantClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *instantClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}

func TestAPI_DrivesSession(t *testing.T) {
	tune := session.DefaultTuning()
	tune.PanelInterval = 0
	tune.ObserveInterval = 0
	sess := session.New(session.Opts{
		Page:     browser.NewFakePage(browser.FakeHistory(1700000000, 30, 60)),
		KV:       persist.NewMemoryKV(),
		Clock:    &instantClock{now: time.Unix(1700100000, 0)},
		Location: time.UTC,
		Tuning:   &tune,
	})
	router := newRouter(StartOpts{Session: sess, Defaults: session.DefaultSettings()})

	if w := do(t, router, http.MethodPost, "/api/start", `{"includeThreads": false}`); w.Code != http.StatusAccepted {
		t.Fatalf("start status = %d, body %s", w.Code, w.Body.String())
	}
	select {
	case <-sess.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish")
	}

	w := do(t, router, http.MethodGet, "/api/state", "")
	var st session.State
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Phase != session.PhaseCompleted || st.Messages != 30 {
		t.Errorf("state = %+v", st)
	}

	w = do(t, router, http.MethodGet, "/api/export/json", "")
	var doc struct {
		Metadata struct {
			MessageCount int    `json:"messageCount"`
			ChannelName  string `json:"channelName"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if doc.Metadata.MessageCount != 30 || doc.Metadata.ChannelName != "general" {
		t.Errorf("metadata = %+v", doc.Metadata)
	}
}
