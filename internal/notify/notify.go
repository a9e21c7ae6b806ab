// Package notify posts session milestones to chat platforms. Platform
// senders live in the slack and discord subpackages.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zulandar/skimmer/internal/events"
)

// Notice is a message formatted for display in chat.
type Notice struct {
	Title    string  // headline, e.g. "Extraction complete"
	Body     string  // detail text
	Severity string  // "info", "warning", "error", "success"
	Color    string  // sidebar color hint, e.g. "#36a64f"
	Fields   []Field // key-value metadata pairs
}

// Field is a key-value pair displayed with a notice.
type Field struct {
	Name  string
	Value string
	Short bool // hint: render side-by-side with another field
}

// Sender delivers notices to one platform.
type Sender interface {
	Name() string
	Send(ctx context.Context, n Notice) error
}

// Notifier is an events.Emitter that forwards selected signals to senders
// from a background goroutine, so a slow platform never stalls a run.
type Notifier struct {
	senders []Sender
	kinds   map[events.Kind]bool
	channel string
	timeout time.Duration

	queue chan events.Event
	done  chan struct{}
}

// Opts configures a Notifier.
type Opts struct {
	Senders []Sender
	// Kinds selects the forwarded signals; completed and error by default.
	Kinds []events.Kind
	// Channel labels notices with the archived conversation.
	Channel string
	// Timeout bounds each send.
	Timeout time.Duration
}

// New returns a Notifier. Call Run to start delivering.
func New(opts Opts) *Notifier {
	kinds := opts.Kinds
	if len(kinds) == 0 {
		kinds = []events.Kind{events.KindCompleted, events.KindError}
	}
	n := &Notifier{
		senders: opts.Senders,
		kinds:   make(map[events.Kind]bool, len(kinds)),
		channel: opts.Channel,
		timeout: opts.Timeout,
		queue:   make(chan events.Event, 16),
		done:    make(chan struct{}),
	}
	if n.timeout <= 0 {
		n.timeout = 15 * time.Second
	}
	for _, k := range kinds {
		n.kinds[k] = true
	}
	return n
}

// Emit queues e when its kind is selected. A full queue drops the event.
func (n *Notifier) Emit(e events.Event) {
	if !n.kinds[e.Kind] || len(n.senders) == 0 {
		return
	}
	select {
	case n.queue <- e:
	default:
		log.Warn().Str("kind", string(e.Kind)).Msg("notify: queue full, dropping")
	}
}

// Run delivers queued events until ctx is done, then drains what is left.
func (n *Notifier) Run(ctx context.Context) {
	defer close(n.done)
	for {
		select {
		case e := <-n.queue:
			n.deliver(ctx, e)
		case <-ctx.Done():
			drain := context.WithoutCancel(ctx)
			for {
				select {
				case e := <-n.queue:
					n.deliver(drain, e)
				default:
					return
				}
			}
		}
	}
}

// Wait blocks until Run has returned.
func (n *Notifier) Wait() {
	<-n.done
}

func (n *Notifier) deliver(ctx context.Context, e events.Event) {
	notice := Format(e, n.channel)
	var errs []error
	for _, s := range n.senders {
		sendCtx, cancel := context.WithTimeout(ctx, n.timeout)
		if err := s.Send(sendCtx, notice); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
		cancel()
	}
	if err := errors.Join(errs...); err != nil {
		log.Warn().Err(err).Str("kind", string(e.Kind)).Msg("notify: delivery failed")
	}
}

// Format renders a session signal as a notice.
func Format(e events.Event, channel string) Notice {
	n := Notice{Body: e.Message}
	switch e.Kind {
	case events.KindCompleted:
		n.Title, n.Severity, n.Color = "Extraction complete", "success", "#36a64f"
	case events.KindError:
		n.Title, n.Severity, n.Color = "Extraction failed", "error", "#e01e5a"
	case events.KindSaved:
		n.Title, n.Severity, n.Color = "Archive saved", "info", "#439fe0"
	default:
		n.Title, n.Severity = string(e.Kind), "info"
	}
	if channel != "" {
		n.Fields = append(n.Fields, Field{Name: "Channel", Value: channel, Short: true})
	}
	if !e.Time.IsZero() {
		n.Fields = append(n.Fields, Field{Name: "Time", Value: e.Time.UTC().Format(time.RFC3339), Short: true})
	}
	return n
}
