package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/zulandar/skimmer/internal/events"
)

type recordingSender struct {
	name string
	err  error

	mu   sync.Mutex
	sent []Notice
}

func (r *recordingSender) Name() string { return r.name }

func (r *recordingSender) Send(_ context.Context, n Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.err
}

func (r *recordingSender) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.sent {
		out = append(out, n.Title)
	}
	return out
}

func TestNotifier_ForwardsSelectedKinds(t *testing.T) {
	a := &recordingSender{name: "a"}
	b := &recordingSender{name: "b", err: errors.New("down")}
	n := New(Opts{Senders: []Sender{a, b}, Channel: "general"})

	n.Emit(events.Event{Kind: events.KindProgress})
	n.Emit(events.Event{Kind: events.KindLog, Message: "noise"})
	n.Emit(events.Event{Kind: events.KindSaved})
	n.Emit(events.Event{Kind: events.KindError, Message: "boom"})
	n.Emit(events.Event{Kind: events.KindCompleted, Message: "done"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n.Run(ctx)
	n.Wait()

	want := []string{"Extraction failed", "Extraction complete"}
	if diff := cmp.Diff(want, a.titles()); diff != "" {
		t.Errorf("sender a (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, b.titles()); diff != "" {
		t.Errorf("failing sender b should still be attempted (-want +got):\n%s", diff)
	}
}

func TestNotifier_CustomKinds(t *testing.T) {
	s := &recordingSender{name: "s"}
	n := New(Opts{Senders: []Sender{s}, Kinds: []events.Kind{events.KindSaved}})
	n.Emit(events.Event{Kind: events.KindCompleted})
	n.Emit(events.Event{Kind: events.KindSaved})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n.Run(ctx)

	if diff := cmp.Diff([]string{"Archive saved"}, s.titles()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestNotifier_NoSendersDropsSilently(t *testing.T) {
	n := New(Opts{})
	for range 100 {
		n.Emit(events.Event{Kind: events.KindCompleted})
	}
	if len(n.queue) != 0 {
		t.Errorf("queue = %d, want 0", len(n.queue))
	}
}

func TestNotifier_FullQueueDrops(t *testing.T) {
	n := New(Opts{Senders: []Sender{&recordingSender{name: "s"}}})
	for range cap(n.queue) + 5 {
		n.Emit(events.Event{Kind: events.KindError})
	}
	if len(n.queue) != cap(n.queue) {
		t.Errorf("queue = %d, want %d", len(n.queue), cap(n.queue))
	}
}

func TestFormat(t *testing.T) {
	at := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	got := Format(events.Event{Kind: events.KindCompleted, Time: at, Message: "90 messages"}, "general")
	want := Notice{
		Title:    "Extraction complete",
		Body:     "90 messages",
		Severity: "success",
		Color:    "#36a64f",
		Fields: []Field{
			{Name: "Channel", Value: "general", Short: true},
			{Name: "Time", Value: "2023-11-14T22:13:20Z", Short: true},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Format (-want +got):\n%s", diff)
	}

	bare := Format(events.Event{Kind: events.KindError}, "")
	if bare.Severity != "error" || len(bare.Fields) != 0 {
		t.Errorf("bare = %+v", bare)
	}
}
