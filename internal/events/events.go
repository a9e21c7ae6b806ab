// Package events carries the extractor's outbound signals to whoever renders
// them: the dashboard stream, the log and chat notifiers.
package events

import (
	"sync"
	"time"
)

// Kind names a signal.
type Kind string

const (
	KindLog       Kind = "log"
	KindProgress  Kind = "progress"
	KindJump      Kind = "jump"
	KindSaved     Kind = "saved"
	KindCompleted Kind = "completed"
	KindError     Kind = "error"
)

// Level is the severity of a log signal.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Progress is a snapshot of session counters.
type Progress struct {
	Phase          string `json:"phase"`
	Messages       int    `json:"messages"`
	Threads        int    `json:"threads"`
	PendingThreads int    `json:"pendingThreads"`
	Percent        int    `json:"percent"`
	Paused         bool   `json:"paused"`
}

// JumpProgress reports one sample of the jump loop.
type JumpProgress struct {
	Target    string `json:"target"`
	Direction string `json:"direction"`
	Attempt   int    `json:"attempt"`
	Oldest    string `json:"oldest,omitempty"`
	Newest    string `json:"newest,omitempty"`
}

// Event is one outbound signal.
type Event struct {
	Kind     Kind          `json:"kind"`
	Time     time.Time     `json:"time"`
	Level    Level         `json:"level,omitempty"`
	Message  string        `json:"message,omitempty"`
	Progress *Progress     `json:"progress,omitempty"`
	Jump     *JumpProgress `json:"jump,omitempty"`
}

// Emitter receives signals. Emit must not block for long.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

func (f EmitterFunc) Emit(e Event) { f(e) }

// Multi fans an event out to several emitters.
type Multi []Emitter

func (m Multi) Emit(e Event) {
	for _, em := range m {
		if em != nil {
			em.Emit(e)
		}
	}
}

// Discard drops every event.
var Discard Emitter = EmitterFunc(func(Event) {})

// Recorder keeps every event it sees, for tests and replay.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of what was recorded.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds returns the recorded events of kind k.
func (r *Recorder) Kinds(k Kind) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}
