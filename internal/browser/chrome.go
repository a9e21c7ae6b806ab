package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/corpix/uarand"
	"github.com/rs/zerolog/log"
)

// ChromeOpts configures how the browser is reached.
type ChromeOpts struct {
	// RemoteURL attaches to an already running browser (its DevTools
	// websocket URL). When empty a new browser process is started.
	RemoteURL   string
	ExecPath    string
	UserDataDir string
	UserAgent   string
	Headless    bool
	// URL is navigated to once the tab is ready.
	URL string
}

// Chrome implements Page over the Chrome DevTools protocol.
type Chrome struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// helperJS installs window.__skim once per document. Every call re-runs it
// so a navigation that drops the helpers does not break later calls.
const helperJS = `(function () {
  if (window.__skim) { return; }
  var s = { seq: 0, mutations: 0, observer: null };
  s.el = function (sel) { return document.querySelector(sel); };
  s.byKey = function (key) {
    var k = CSS.escape(key);
    return document.querySelector('[data-item-key="' + k + '"],[data-skim-key="' + k + '"]');
  };
  s.keyOf = function (el) {
    var k = el.getAttribute('data-item-key') || el.getAttribute('data-skim-key');
    if (!k) { s.seq += 1; k = 'skim-' + s.seq; el.setAttribute('data-skim-key', k); }
    return k;
  };
  s.metrics = function (sel) {
    var el = s.el(sel);
    if (!el) { return null; }
    return { scrollTop: el.scrollTop, scrollHeight: el.scrollHeight, clientHeight: el.clientHeight };
  };
  s.setTop = function (sel, top) { var el = s.el(sel); if (!el) { return false; } el.scrollTop = top; return true; };
  s.wheel = function (sel, dy) {
    var el = s.el(sel);
    if (!el) { return false; }
    el.dispatchEvent(new WheelEvent('wheel', { deltaY: dy, bubbles: true, cancelable: true }));
    return true;
  };
  s.nodes = function (container, item) {
    var root = s.el(container);
    if (!root) { return []; }
    return Array.prototype.map.call(root.querySelectorAll(item), function (el) {
      return { key: s.keyOf(el), html: el.outerHTML };
    });
  };
  s.exists = function (sel) { return !!s.el(sel); };
  s.click = function (sel) { var el = s.el(sel); if (!el) { return false; } el.click(); return true; };
  s.clickWithin = function (key, sel) {
    var n = s.byKey(key);
    if (!n) { return false; }
    var el = n.querySelector(sel);
    if (!el) { return false; }
    el.click();
    return true;
  };
  s.clickNode = function (key) { var n = s.byKey(key); if (!n || !n.isConnected) { return false; } n.click(); return true; };
  s.hover = function (key) {
    var n = s.byKey(key);
    if (!n) { return false; }
    ['mouseover', 'mouseenter', 'mousemove'].forEach(function (t) {
      n.dispatchEvent(new MouseEvent(t, { bubbles: true }));
    });
    return true;
  };
  s.attached = function (key) { var n = s.byKey(key); return !!(n && n.isConnected); };
  s.observe = function (sel) {
    var el = s.el(sel) || document.body;
    if (s.observer) { s.observer.disconnect(); }
    s.observer = new MutationObserver(function (records) { s.mutations += records.length; });
    s.observer.observe(el, { childList: true, subtree: true });
    return true;
  };
  s.channel = function () {
    var m = location.pathname.match(/\/(?:client\/[^\/]+|archives|messages)\/([A-Z0-9]+)/);
    var nameEl = document.querySelector('[data-qa="channel_name"]') ||
      document.querySelector('.p-view_header__channel_title');
    return { id: m ? m[1] : '', name: nameEl ? nameEl.textContent.trim() : document.title };
  };
  window.__skim = s;
})();
`

// NewChrome starts or attaches to a browser, opens a tab and installs the
// page helpers.
func NewChrome(parent context.Context, opts ChromeOpts) (*Chrome, error) {
	var (
		allocCtx    context.Context
		cancelAlloc context.CancelFunc
	)
	if opts.RemoteURL != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(parent, opts.RemoteURL)
	} else {
		ua := opts.UserAgent
		if ua == "" {
			ua = uarand.GetRandom()
		}
		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.UserAgent(ua),
		)
		if opts.UserDataDir != "" {
			allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
		}
		if opts.ExecPath != "" {
			allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
		}
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(parent, allocOpts...)
	}
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	c := &Chrome{
		ctx: tabCtx,
		cancel: func() {
			cancelTab()
			cancelAlloc()
		},
	}

	var actions []chromedp.Action
	if opts.URL != "" {
		actions = append(actions, chromedp.Navigate(opts.URL))
	}
	actions = append(actions, chromedp.Evaluate(helperJS, nil))
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		c.cancel()
		return nil, fmt.Errorf("browser: open tab: %w", err)
	}
	log.Info().Str("url", opts.URL).Bool("remote", opts.RemoteURL != "").Msg("browser: tab ready")
	return c, nil
}

// Close shuts the tab and, when it was started here, the browser.
func (c *Chrome) Close() error {
	c.cancel()
	return nil
}

// run executes actions on the tab, honoring cancellation of ctx.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(c.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// call evaluates window.__skim.<fn>(args...) and decodes the result into res.
func (c *Chrome) call(ctx context.Context, res any, fn string, args ...any) error {
	expr := helperJS + "window.__skim." + fn + "("
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("browser: encode %s arg: %w", fn, err)
		}
		if i > 0 {
			expr += ","
		}
		expr += string(b)
	}
	expr += ")"
	if err := c.run(ctx, chromedp.Evaluate(expr, res)); err != nil {
		return fmt.Errorf("browser: %s: %w", fn, err)
	}
	return nil
}

func (c *Chrome) Metrics(ctx context.Context, container string) (Metrics, error) {
	var m *Metrics
	if err := c.call(ctx, &m, "metrics", container); err != nil {
		return Metrics{}, err
	}
	if m == nil {
		return Metrics{}, fmt.Errorf("%w: %s", ErrNoContainer, container)
	}
	return *m, nil
}

func (c *Chrome) SetScrollTop(ctx context.Context, container string, top float64) error {
	var ok bool
	if err := c.call(ctx, &ok, "setTop", container, top); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoContainer, container)
	}
	return nil
}

func (c *Chrome) Wheel(ctx context.Context, container string, deltaY float64) error {
	var ok bool
	if err := c.call(ctx, &ok, "wheel", container, deltaY); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoContainer, container)
	}
	return nil
}

func (c *Chrome) Nodes(ctx context.Context, container, item string) ([]Node, error) {
	var nodes []Node
	if err := c.call(ctx, &nodes, "nodes", container, item); err != nil {
		return nil, err
	}
	return nodes, nil
}

func (c *Chrome) Exists(ctx context.Context, selector string) (bool, error) {
	var ok bool
	err := c.call(ctx, &ok, "exists", selector)
	return ok, err
}

func (c *Chrome) Click(ctx context.Context, selector string) (bool, error) {
	var ok bool
	err := c.call(ctx, &ok, "click", selector)
	return ok, err
}

func (c *Chrome) ClickWithin(ctx context.Context, key, selector string) (bool, error) {
	var ok bool
	err := c.call(ctx, &ok, "clickWithin", key, selector)
	return ok, err
}

func (c *Chrome) ClickNode(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := c.call(ctx, &ok, "clickNode", key)
	return ok, err
}

func (c *Chrome) Hover(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := c.call(ctx, &ok, "hover", key)
	return ok, err
}

func (c *Chrome) Attached(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := c.call(ctx, &ok, "attached", key)
	return ok, err
}

// Press sends a key press to the focused element. "Escape" and "Enter" are
// mapped to their control characters.
func (c *Chrome) Press(ctx context.Context, key string) error {
	switch key {
	case "Escape":
		key = kb.Escape
	case "Enter":
		key = kb.Enter
	}
	if err := c.run(ctx, chromedp.KeyEvent(key)); err != nil {
		return fmt.Errorf("browser: press %q: %w", key, err)
	}
	return nil
}

func (c *Chrome) Observe(ctx context.Context, container string) error {
	var ok bool
	return c.call(ctx, &ok, "observe", container)
}

func (c *Chrome) Mutations(ctx context.Context) (int64, error) {
	var n float64
	if err := c.run(ctx, chromedp.Evaluate(helperJS+"window.__skim.mutations", &n)); err != nil {
		return 0, fmt.Errorf("browser: mutations: %w", err)
	}
	return int64(n), nil
}

func (c *Chrome) Channel(ctx context.Context) (ChannelInfo, error) {
	var info ChannelInfo
	err := c.call(ctx, &info, "channel")
	return info, err
}
