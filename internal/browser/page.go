// Package browser is the DOM accessor used by the extraction session. Page is
// implemented against a live Chrome tab (Chrome) and by an in-memory
// virtualized list (FakePage) for tests.
package browser

import (
	"context"
	"errors"
)

// ErrNoContainer is returned when a scroll container selector matches nothing.
var ErrNoContainer = errors.New("browser: container not found")

// Metrics describes a scroll container.
type Metrics struct {
	ScrollTop    float64 `json:"scrollTop"`
	ScrollHeight float64 `json:"scrollHeight"`
	ClientHeight float64 `json:"clientHeight"`
}

// AtTop reports whether the container is scrolled to its start.
func (m Metrics) AtTop() bool {
	return m.ScrollTop <= 1
}

// AtBottom reports whether the container is scrolled to its end.
func (m Metrics) AtBottom() bool {
	return m.ScrollTop+m.ClientHeight >= m.ScrollHeight-2
}

// Node is one rendered list item: a stable key usable as an element
// reference plus its outer HTML.
type Node struct {
	Key  string `json:"key"`
	HTML string `json:"html"`
}

// ChannelInfo identifies the conversation open in the page.
type ChannelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Page is everything the session needs from the DOM. Selectors are CSS
// selectors; keys are Node.Key values. Click-style methods report false when
// the target is absent rather than returning an error.
type Page interface {
	Metrics(ctx context.Context, container string) (Metrics, error)
	SetScrollTop(ctx context.Context, container string, top float64) error
	Wheel(ctx context.Context, container string, deltaY float64) error
	Nodes(ctx context.Context, container, item string) ([]Node, error)

	Exists(ctx context.Context, selector string) (bool, error)
	Click(ctx context.Context, selector string) (bool, error)
	ClickWithin(ctx context.Context, key, selector string) (bool, error)
	ClickNode(ctx context.Context, key string) (bool, error)
	Hover(ctx context.Context, key string) (bool, error)
	Attached(ctx context.Context, key string) (bool, error)
	Press(ctx context.Context, key string) error

	// Observe starts counting DOM mutations under container; Mutations
	// returns the running count.
	Observe(ctx context.Context, container string) error
	Mutations(ctx context.Context) (int64, error)

	Channel(ctx context.Context) (ChannelInfo, error)
}

// Selectors lists the DOM lookups the session tries, in priority order.
type Selectors struct {
	MainList     []string
	MessageItem  string
	ThreadPanel  []string
	PanelList    []string
	OpenThread   []string
	CloseThread  []string
	MainPane     []string
	ThreadHotkey string
}

// DefaultSelectors returns the lookups for the current chat web client.
func DefaultSelectors() Selectors {
	return Selectors{
		MainList: []string{
			`[data-qa="slack_kit_list"] .c-scrollbar__hider`,
			`.p-message_pane .c-scrollbar__hider`,
			`[data-qa="message_pane"] [role="presentation"]`,
		},
		MessageItem: `.c-virtual_list__item`,
		ThreadPanel: []string{
			`[data-qa="threads_flexpane"]`,
			`.p-threads_flexpane`,
			`.p-flexpane`,
		},
		PanelList: []string{
			`[data-qa="threads_flexpane"] .c-scrollbar__hider`,
			`.p-threads_flexpane .c-scrollbar__hider`,
			`.p-flexpane .c-scrollbar__hider`,
		},
		OpenThread: []string{
			`[data-qa="reply_bar_count"]`,
			`.c-message__reply_count`,
			`.c-message__reply_bar`,
			`button[aria-label*="repl"]`,
		},
		CloseThread: []string{
			`[data-qa="close_flexpane"]`,
			`.p-flexpane_header button[aria-label="Close"]`,
			`.p-flexpane__close`,
		},
		MainPane: []string{
			`[data-qa="message_pane"]`,
			`.p-workspace__primary_view`,
		},
		ThreadHotkey: "t",
	}
}
