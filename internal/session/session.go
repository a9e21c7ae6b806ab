// Package session drives one extraction run against a chat page: an
// optional jump to the configured time range, the scroll loop over the
// virtualized message list, and thread reply extraction.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/zulandar/skimmer/internal/archive"
	"github.com/zulandar/skimmer/internal/browser"
	"github.com/zulandar/skimmer/internal/events"
	"github.com/zulandar/skimmer/internal/models"
	"github.com/zulandar/skimmer/internal/parse"
	"github.com/zulandar/skimmer/internal/persist"
	"golang.org/x/time/rate"
)

var (
	// ErrAlreadyRunning is returned by Start and ClearData while a run is active.
	ErrAlreadyRunning = errors.New("session: already running")
	// ErrNotRunning is returned by Pause, Resume and Stop when idle.
	ErrNotRunning = errors.New("session: not running")
)

// Phase is the controller state.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseJumping   Phase = "jumping"
	PhaseScrolling Phase = "scrolling"
	PhaseThreads   Phase = "threads"
	PhaseCompleted Phase = "completed"
	PhaseStopped   Phase = "stopped"
	PhaseError     Phase = "error"
)

// RunLog records run history.
type RunLog interface {
	SaveRun(ctx context.Context, run models.Run) error
}

// Opts wires a Session. Page and KV are required; everything else has a
// default.
type Opts struct {
	Page      browser.Page
	KV        persist.KV
	Store     *archive.Store
	Parser    *parse.Parser
	Selectors browser.Selectors
	Clock     Clock
	Rand      *rand.Rand
	Events    events.Emitter
	Location  *time.Location
	Tuning    *Tuning
	Runs      RunLog
}

// State is a point-in-time view of the session.
type State struct {
	RunID            string             `json:"runId,omitempty"`
	Phase            Phase              `json:"phase"`
	Running          bool               `json:"running"`
	Paused           bool               `json:"paused"`
	Completed        bool               `json:"completed"`
	PendingThreads   int                `json:"pendingThreads"`
	ExtractedThreads int                `json:"extractedThreads"`
	QueuedThreads    int                `json:"queuedThreads"`
	ActiveTimeRange  *archive.TimeRange `json:"activeTimeRange,omitempty"`
	ChannelID        string             `json:"channelId,omitempty"`
	ChannelName      string             `json:"channelName,omitempty"`
	Messages         int                `json:"messages"`
	Threads          int                `json:"threads"`
	Users            int                `json:"users"`
	Percent          int                `json:"percent"`
	StartedAt        *time.Time         `json:"startedAt,omitempty"`
	LastSaveTime     *time.Time         `json:"lastSaveTime,omitempty"`
	LastError        string             `json:"lastError,omitempty"`
}

type queuedThread struct {
	ts  string
	key string
}

// Session is the extraction controller. Only one run is active at a time.
type Session struct {
	page    browser.Page
	kv      persist.KV
	store   *archive.Store
	parser  *parse.Parser
	sel     browser.Selectors
	clock   Clock
	rng     *rand.Rand
	emitter events.Emitter
	loc     *time.Location
	tune    Tuning
	runs    RunLog
	limiter *rate.Limiter

	mu        sync.Mutex
	state     State
	settings  Settings
	timeRange archive.TimeRange
	pending   map[string]struct{}
	extracted map[string]struct{}
	queue     []queuedThread
	unsaved   int
	resume    chan struct{}
	cancel    context.CancelFunc
	done      chan struct{}
	mainList  string
}

// New returns an idle session.
func New(opts Opts) *Session {
	s := &Session{
		page:    opts.Page,
		kv:      opts.KV,
		store:   opts.Store,
		parser:  opts.Parser,
		sel:     opts.Selectors,
		clock:   opts.Clock,
		rng:     opts.Rand,
		emitter: opts.Events,
		loc:     opts.Location,
		runs:    opts.Runs,
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.store == nil {
		s.store = archive.NewStore()
	}
	if s.parser == nil {
		s.parser = parse.New(s.loc)
	}
	if len(s.sel.MainList) == 0 {
		s.sel = browser.DefaultSelectors()
	}
	if s.clock == nil {
		s.clock = SystemClock{}
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))
	}
	if s.emitter == nil {
		s.emitter = events.Discard
	}
	if opts.Tuning != nil {
		s.tune = *opts.Tuning
	} else {
		s.tune = DefaultTuning()
	}
	limit := rate.Inf
	if s.tune.PanelInterval > 0 {
		limit = rate.Every(s.tune.PanelInterval)
	}
	s.limiter = rate.NewLimiter(limit, 1)
	s.state.Phase = PhaseIdle
	s.pending = make(map[string]struct{})
	s.extracted = make(map[string]struct{})
	return s
}

// Store returns the archive the session writes into.
func (s *Session) Store() *archive.Store {
	return s.store
}

// Restore hydrates the archive from the persisted store. A failure is
// logged and the session continues with what it has in memory.
func (s *Session) Restore(ctx context.Context) error {
	st, err := persist.Restore(ctx, s.kv, s.store, s.loc)
	if err != nil {
		s.logf(events.LevelError, "could not load saved data: %v", err)
		return err
	}
	s.mu.Lock()
	if st.ChannelID != "" {
		s.state.ChannelID = st.ChannelID
		s.state.ChannelName = st.ChannelName
	}
	if !st.LastSaveTime.IsZero() {
		t := st.LastSaveTime
		s.state.LastSaveTime = &t
	}
	s.mu.Unlock()
	s.logf(events.LevelInfo, "loaded %d saved messages", s.store.Len())
	return nil
}

// Start begins a run in the background. The run is not bound to ctx's
// cancellation; use Stop.
func (s *Session) Start(ctx context.Context, settings Settings) error {
	tr, swapped, err := settings.TimeRange(s.loc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state.Running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	now := s.clock.Now()
	s.settings = settings
	s.timeRange = tr
	s.pending = make(map[string]struct{})
	s.extracted = make(map[string]struct{})
	s.queue = nil
	s.unsaved = 0
	s.resume = nil
	s.mainList = ""
	s.state.RunID = uuid.NewString()
	s.state.Phase = PhaseIdle
	s.state.Running = true
	s.state.Paused = false
	s.state.Completed = false
	s.state.LastError = ""
	s.state.Percent = 0
	s.state.StartedAt = &now
	s.state.ActiveTimeRange = nil
	if tr.Active() {
		s.state.ActiveTimeRange = &tr
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	if swapped {
		s.logf(events.LevelWarn, "time range was inverted; bounds swapped")
	}
	s.recordRun(ctx)
	s.logf(events.LevelInfo, "extraction started (run %s)", s.State().RunID)

	go func() {
		defer close(done)
		defer cancel()

		obsCtx, stopObserver := context.WithCancel(runCtx)
		observerDone := make(chan struct{})
		go func() {
			defer close(observerDone)
			s.observe(obsCtx)
		}()

		err := s.run(runCtx)
		stopObserver()
		<-observerDone
		s.finish(runCtx, err)
	}()
	return nil
}

// Pause suspends the run at its next checkpoint.
func (s *Session) Pause() error {
	s.mu.Lock()
	if !s.state.Running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	if s.resume == nil {
		s.resume = make(chan struct{})
		s.state.Paused = true
	}
	s.mu.Unlock()
	s.logf(events.LevelInfo, "paused")
	s.emitProgress()
	return nil
}

// Resume continues a paused run in the phase it was paused in.
func (s *Session) Resume() error {
	s.mu.Lock()
	if !s.state.Running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	if s.resume != nil {
		close(s.resume)
		s.resume = nil
		s.state.Paused = false
	}
	s.mu.Unlock()
	s.logf(events.LevelInfo, "resumed")
	s.emitProgress()
	return nil
}

// Stop cancels the run and waits until its final save has been attempted
// or ctx is done.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.state.Running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.cancel()
	if s.resume != nil {
		close(s.resume)
		s.resume = nil
		s.state.Paused = false
	}
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when the current run ends. It returns a closed channel
// when no run was ever started.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.done
}

// ClearData wipes the archive, the run bookkeeping and the persisted keys.
func (s *Session) ClearData(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.store.Clear()
	s.pending = make(map[string]struct{})
	s.extracted = make(map[string]struct{})
	s.queue = nil
	s.unsaved = 0
	s.state = State{Phase: PhaseIdle}
	s.mu.Unlock()

	if err := persist.Clear(ctx, s.kv); err != nil {
		return fmt.Errorf("session: clear: %w", err)
	}
	s.logf(events.LevelInfo, "all data cleared")
	return nil
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	st := s.state
	st.PendingThreads = len(s.pending)
	st.ExtractedThreads = len(s.extracted)
	st.QueuedThreads = len(s.queue)
	s.mu.Unlock()

	st.Messages = s.store.Len()
	st.Threads = s.store.Threads().Len()
	st.Users = len(s.store.Users())
	return st
}

// Flush persists a snapshot now.
func (s *Session) Flush(ctx context.Context) error {
	return s.save(ctx)
}

func (s *Session) run(ctx context.Context) error {
	info, err := s.page.Channel(ctx)
	if err != nil {
		s.logf(events.LevelWarn, "could not identify the channel: %v", err)
	} else {
		s.mu.Lock()
		s.state.ChannelID, s.state.ChannelName = info.ID, info.Name
		s.mu.Unlock()
	}

	container, err := s.mainContainer(ctx)
	if err != nil {
		return err
	}
	if err := s.page.Observe(ctx, container); err != nil {
		s.logf(events.LevelWarn, "change observer unavailable: %v", err)
	}

	if s.timeRange.Active() {
		s.setPhase(PhaseJumping)
		if err := s.jump(ctx, container); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logf(events.LevelWarn, "jump failed, extracting from the current position: %v", err)
		}
	}

	s.setPhase(PhaseScrolling)
	if err := s.scroll(ctx, container); err != nil {
		return err
	}

	if s.settings.IncludeThreads {
		s.setPhase(PhaseThreads)
		if err := s.retryPending(ctx, container); err != nil {
			return err
		}
	}
	return nil
}

// finish settles the terminal phase, saves and signals.
func (s *Session) finish(runCtx context.Context, err error) {
	phase := PhaseCompleted
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		phase = PhaseStopped
	default:
		phase = PhaseError
	}

	s.mu.Lock()
	s.state.Phase = phase
	s.state.Paused = false
	s.state.Completed = phase == PhaseCompleted
	if phase == PhaseCompleted {
		s.state.Percent = 100
	}
	if phase == PhaseError {
		s.state.LastError = err.Error()
	}
	s.mu.Unlock()

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(runCtx), 30*time.Second)
	defer cancel()
	_ = s.save(saveCtx)

	s.mu.Lock()
	s.state.Running = false
	s.mu.Unlock()
	s.recordRun(saveCtx)

	st := s.State()
	switch phase {
	case PhaseCompleted:
		s.emit(events.Event{Kind: events.KindCompleted, Message: fmt.Sprintf(
			"extraction complete: %d messages, %d threads", st.Messages, st.Threads)})
	case PhaseStopped:
		s.logf(events.LevelInfo, "extraction stopped: %d messages saved", st.Messages)
	case PhaseError:
		s.emit(events.Event{Kind: events.KindError, Level: events.LevelError, Message: err.Error()})
	}
	s.emitProgress()
}

// checkpoint blocks while paused and reports cancellation.
func (s *Session) checkpoint(ctx context.Context) error {
	for {
		s.mu.Lock()
		resume := s.resume
		s.mu.Unlock()
		if resume == nil {
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-resume:
		}
	}
}

func (s *Session) save(ctx context.Context) error {
	s.mu.Lock()
	st := persist.ExtractorState{
		ChannelID:   s.state.ChannelID,
		ChannelName: s.state.ChannelName,
		TimeRange:   s.state.ActiveTimeRange,
	}
	s.mu.Unlock()

	now := s.clock.Now()
	snap := persist.Capture(s.store, st, now)
	if err := persist.Save(ctx, s.kv, snap); err != nil {
		s.logf(events.LevelError, "save failed, continuing in memory: %v", err)
		return err
	}

	s.mu.Lock()
	s.unsaved = 0
	s.state.LastSaveTime = &now
	s.mu.Unlock()
	s.emit(events.Event{Kind: events.KindSaved, Message: fmt.Sprintf("saved %d messages", len(snap.Messages))})
	return nil
}

func (s *Session) recordRun(ctx context.Context) {
	if s.runs == nil {
		return
	}
	st := s.State()
	run := models.Run{
		ID:          st.RunID,
		ChannelID:   st.ChannelID,
		ChannelName: st.ChannelName,
		Phase:       string(st.Phase),
		Messages:    st.Messages,
		Threads:     st.Threads,
		Error:       st.LastError,
	}
	if st.StartedAt != nil {
		run.StartedAt = *st.StartedAt
	}
	if tr := st.ActiveTimeRange; tr != nil {
		run.RangeFrom, run.RangeTo = tr.FromTS, tr.ToTS
	}
	if !st.Running {
		now := s.clock.Now()
		run.FinishedAt = &now
	}
	if err := s.runs.SaveRun(ctx, run); err != nil {
		log.Warn().Err(err).Str("run", run.ID).Msg("session: record run")
	}
}

func (s *Session) setPhase(p Phase) {
	s.mu.Lock()
	s.state.Phase = p
	s.mu.Unlock()
	log.Debug().Str("phase", string(p)).Msg("session: phase")
	s.emitProgress()
}

func (s *Session) setPercent(p int) {
	s.mu.Lock()
	s.state.Percent = p
	s.mu.Unlock()
}

func (s *Session) emit(e events.Event) {
	if e.Time.IsZero() {
		e.Time = s.clock.Now()
	}
	s.emitter.Emit(e)
}

func (s *Session) emitProgress() {
	st := s.State()
	s.emit(events.Event{
		Kind: events.KindProgress,
		Progress: &events.Progress{
			Phase:          string(st.Phase),
			Messages:       st.Messages,
			Threads:        st.Threads,
			PendingThreads: st.PendingThreads - st.ExtractedThreads,
			Percent:        st.Percent,
			Paused:         st.Paused,
		},
	})
}

func (s *Session) logf(level events.Level, format string, args ...any) {
	s.emit(events.Event{Kind: events.KindLog, Level: level, Message: fmt.Sprintf(format, args...)})
}
