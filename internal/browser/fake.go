package browser

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"
)

// FakeMessage is one message rendered by FakePage.
type FakeMessage struct {
	TS      string
	User    string
	Name    string
	Text    string
	Replies []FakeMessage
}

// FakePage is an in-memory Page that renders a virtualized, lazily loaded
// message list (oldest first, opened at the newest message) and a thread
// side panel. Only the first selector of each Selectors cascade is
// recognized.
type FakePage struct {
	mu sync.Mutex

	ItemHeight   float64
	ClientHeight float64
	// Batch is how many older messages load when the view nears the top,
	// and how many replies the panel loads per page.
	Batch int
	// Overscan is the number of items rendered past each viewport edge.
	Overscan int

	// Err, when set, is returned by every call.
	Err error
	// FrozenScroll makes SetScrollTop a no-op; Wheel still scrolls.
	FrozenScroll bool
	// NoButtons makes the open-thread button unclickable.
	NoButtons bool
	// NoHotkey disables the hover + hotkey route.
	NoHotkey bool
	// NoCloseButton makes the close button unclickable.
	NoCloseButton bool

	Selectors Selectors
	Info      ChannelInfo

	msgs      []FakeMessage
	loaded    int
	top       float64
	mutations int64
	hovered   string
	panel     *fakePanel
	opened    []string
	actions   []string
}

type fakePanel struct {
	root   FakeMessage
	loaded int
	top    float64
}

// NewFakePage returns a page showing msgs, which must be sorted oldest
// first. The view starts at the newest message.
func NewFakePage(msgs []FakeMessage) *FakePage {
	f := &FakePage{
		ItemHeight:   100,
		ClientHeight: 500,
		Batch:        20,
		Overscan:     1,
		Selectors:    DefaultSelectors(),
		Info:         ChannelInfo{ID: "C0FAKE", Name: "general"},
		msgs:         msgs,
	}
	f.loaded = min(f.Batch, len(msgs))
	f.top = f.maxTop(f.height())
	return f
}

// FakeHistory builds n messages starting at unix second start, step seconds
// apart.
func FakeHistory(start int64, n int, step int64) []FakeMessage {
	out := make([]FakeMessage, n)
	for i := range out {
		out[i] = FakeMessage{
			TS:   fmt.Sprintf("%d.000100", start+int64(i)*step),
			User: fmt.Sprintf("U%03d", i%3),
			Name: fmt.Sprintf("user%d", i%3),
			Text: fmt.Sprintf("message %d", i),
		}
	}
	return out
}

// LoadAll puts the whole history in the list, keeping the current view.
func (f *FakePage) LoadAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	add := len(f.msgs) - f.loaded
	f.loaded = len(f.msgs)
	f.top += float64(add) * f.ItemHeight
}

// ScrollTo positions the view so that the message ts is the first one
// visible. The whole history is loaded first.
func (f *FakePage) ScrollTo(ts string) bool {
	f.LoadAll()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.msgs {
		if m.TS == ts {
			f.top = min(float64(i)*f.ItemHeight, f.maxTop(f.height()))
			return true
		}
	}
	return false
}

// Actions returns the interactions performed so far, e.g. "hover:<key>".
func (f *FakePage) Actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.actions...)
}

// Opened returns the thread roots whose panel was opened, in order.
func (f *FakePage) Opened() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.opened...)
}

// PanelOpen reports whether a thread panel is showing.
func (f *FakePage) PanelOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.panel != nil
}

func (f *FakePage) window() []FakeMessage {
	return f.msgs[len(f.msgs)-f.loaded:]
}

func (f *FakePage) height() float64 {
	return float64(f.loaded) * f.ItemHeight
}

func (f *FakePage) maxTop(height float64) float64 {
	return max(0, height-f.ClientHeight)
}

// rendered returns the window indexes currently in the DOM.
func (f *FakePage) rendered() (lo, hi int) {
	n := f.loaded
	if n == 0 {
		return 0, 0
	}
	lo = int(f.top/f.ItemHeight) - f.Overscan
	hi = int((f.top+f.ClientHeight)/f.ItemHeight) + 1 + f.Overscan
	return max(0, lo), min(n, hi)
}

func (f *FakePage) renderedMessage(key string) (FakeMessage, bool) {
	lo, hi := f.rendered()
	for _, m := range f.window()[lo:hi] {
		if m.TS == key {
			return m, true
		}
	}
	return FakeMessage{}, false
}

func (f *FakePage) setMainTop(v float64) {
	v = min(max(0, v), f.maxTop(f.height()))
	if v == f.top {
		return
	}
	f.top = v
	f.mutations++
	if f.top < f.ClientHeight && f.loaded < len(f.msgs) {
		add := min(f.Batch, len(f.msgs)-f.loaded)
		f.loaded += add
		f.top += float64(add) * f.ItemHeight
		f.mutations++
	}
}

func (f *FakePage) panelHeight() float64 {
	return float64(1+f.panel.loaded) * f.ItemHeight
}

func (f *FakePage) setPanelTop(v float64) {
	p := f.panel
	v = min(max(0, v), f.maxTop(f.panelHeight()))
	if v != p.top {
		p.top = v
		f.mutations++
	}
	if p.top+f.ClientHeight >= f.panelHeight()-2 && p.loaded < len(p.root.Replies) {
		p.loaded = min(len(p.root.Replies), p.loaded+f.Batch)
		f.mutations++
	}
}

func (f *FakePage) open(m FakeMessage) {
	if len(m.Replies) == 0 {
		return
	}
	f.panel = &fakePanel{root: m, loaded: min(f.Batch, len(m.Replies))}
	f.opened = append(f.opened, m.TS)
	f.mutations++
}

func (f *FakePage) close() {
	if f.panel != nil {
		f.panel = nil
		f.mutations++
	}
}

func (f *FakePage) isMain(sel string) bool {
	return len(f.Selectors.MainList) > 0 && sel == f.Selectors.MainList[0]
}

func (f *FakePage) isPanel(sel string) bool {
	return f.panel != nil && len(f.Selectors.PanelList) > 0 && sel == f.Selectors.PanelList[0]
}

func first(list []string) string {
	if len(list) == 0 {
		return ""
	}
	return list[0]
}

func (f *FakePage) Metrics(_ context.Context, container string) (Metrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return Metrics{}, f.Err
	}
	switch {
	case f.isMain(container):
		return Metrics{ScrollTop: f.top, ScrollHeight: f.height(), ClientHeight: f.ClientHeight}, nil
	case f.isPanel(container):
		return Metrics{ScrollTop: f.panel.top, ScrollHeight: f.panelHeight(), ClientHeight: f.ClientHeight}, nil
	}
	return Metrics{}, fmt.Errorf("%w: %s", ErrNoContainer, container)
}

func (f *FakePage) SetScrollTop(_ context.Context, container string, top float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	switch {
	case f.isMain(container):
		if !f.FrozenScroll {
			f.setMainTop(top)
		}
		return nil
	case f.isPanel(container):
		f.setPanelTop(top)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNoContainer, container)
}

func (f *FakePage) Wheel(_ context.Context, container string, deltaY float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.actions = append(f.actions, "wheel")
	switch {
	case f.isMain(container):
		f.setMainTop(f.top + deltaY)
		return nil
	case f.isPanel(container):
		f.setPanelTop(f.panel.top + deltaY)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNoContainer, container)
}

func (f *FakePage) Nodes(_ context.Context, container, _ string) ([]Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	switch {
	case f.isMain(container):
		lo, hi := f.rendered()
		out := make([]Node, 0, hi-lo)
		for _, m := range f.window()[lo:hi] {
			out = append(out, Node{Key: m.TS, HTML: renderMessage(m, len(m.Replies))})
		}
		return out, nil
	case f.isPanel(container):
		p := f.panel
		out := []Node{{Key: p.root.TS, HTML: renderMessage(p.root, 0)}}
		for _, r := range p.root.Replies[:p.loaded] {
			out = append(out, Node{Key: r.TS, HTML: renderMessage(r, 0)})
		}
		return out, nil
	}
	return nil, nil
}

func (f *FakePage) Exists(_ context.Context, selector string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return false, f.Err
	}
	switch selector {
	case first(f.Selectors.MainList), first(f.Selectors.MainPane):
		return true, nil
	case first(f.Selectors.ThreadPanel), first(f.Selectors.PanelList):
		return f.panel != nil, nil
	}
	return false, nil
}

func (f *FakePage) Click(_ context.Context, selector string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return false, f.Err
	}
	switch selector {
	case first(f.Selectors.CloseThread):
		if f.panel == nil || f.NoCloseButton {
			return false, nil
		}
		f.actions = append(f.actions, "close")
		f.close()
		return true, nil
	case first(f.Selectors.MainPane):
		f.actions = append(f.actions, "click:pane")
		f.close()
		return true, nil
	}
	return false, nil
}

func (f *FakePage) ClickWithin(_ context.Context, key, selector string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return false, f.Err
	}
	m, ok := f.renderedMessage(key)
	if !ok || f.NoButtons || len(m.Replies) == 0 || selector != first(f.Selectors.OpenThread) {
		return false, nil
	}
	f.actions = append(f.actions, "button:"+key)
	f.open(m)
	return true, nil
}

func (f *FakePage) ClickNode(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return false, f.Err
	}
	m, ok := f.renderedMessage(key)
	if !ok {
		return false, nil
	}
	f.actions = append(f.actions, "click:"+key)
	f.open(m)
	return true, nil
}

func (f *FakePage) Hover(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return false, f.Err
	}
	if _, ok := f.renderedMessage(key); !ok {
		return false, nil
	}
	f.hovered = key
	f.actions = append(f.actions, "hover:"+key)
	return true, nil
}

func (f *FakePage) Attached(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return false, f.Err
	}
	_, ok := f.renderedMessage(key)
	return ok, nil
}

func (f *FakePage) Press(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.actions = append(f.actions, "press:"+key)
	switch key {
	case "Escape":
		f.close()
	case f.Selectors.ThreadHotkey:
		if f.NoHotkey {
			return nil
		}
		if m, ok := f.renderedMessage(f.hovered); ok {
			f.open(m)
		}
	}
	return nil
}

func (f *FakePage) Observe(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Err
}

func (f *FakePage) Mutations(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return 0, f.Err
	}
	return f.mutations, nil
}

func (f *FakePage) Channel(context.Context) (ChannelInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return ChannelInfo{}, f.Err
	}
	return f.Info, nil
}

// renderMessage produces markup shaped like the chat client's list items.
func renderMessage(m FakeMessage, replies int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<div class="c-virtual_list__item" data-item-key="%s">`, html.EscapeString(m.TS))
	b.WriteString(`<div class="c-message_kit__message">`)
	if m.User != "" || m.Name != "" {
		fmt.Fprintf(&b, `<button class="c-message__sender_button" data-message-sender="%s">%s</button>`,
			html.EscapeString(m.User), html.EscapeString(m.Name))
	}
	fmt.Fprintf(&b, `<div data-qa="message-text">%s</div>`, html.EscapeString(m.Text))
	if replies > 0 {
		fmt.Fprintf(&b, `<a class="c-message__reply_bar"><span data-qa="reply_bar_count">%d replies</span></a>`, replies)
	}
	b.WriteString(`</div></div>`)
	return b.String()
}
