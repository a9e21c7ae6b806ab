package session

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"
	"github.com/zulandar/skimmer/internal/events"
	"github.com/zulandar/skimmer/internal/timestamp"
)

// drainQueue extracts every queued thread while its root node is still
// rendered.
func (s *Session) drainQueue(ctx context.Context) {
	for {
		if s.checkpoint(ctx) != nil {
			return
		}
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		q := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.extractThread(ctx, q.ts, q.key)
	}
}

// retryPending searches for and extracts the threads whose root was
// virtualized away before its panel could be opened.
func (s *Session) retryPending(ctx context.Context, container string) error {
	s.mu.Lock()
	var todo []string
	for ts := range s.pending {
		if _, ok := s.extracted[ts]; !ok {
			todo = append(todo, ts)
		}
	}
	s.mu.Unlock()
	if len(todo) == 0 {
		return nil
	}
	slices.SortFunc(todo, timestamp.Compare)
	s.logf(events.LevelInfo, "retrying %d threads missed during scrolling", len(todo))

	for i, ts := range todo {
		if err := s.checkpoint(ctx); err != nil {
			return err
		}
		key, err := s.seek(ctx, container, ts)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			s.logf(events.LevelWarn, "thread %s: search failed: %v", ts, err)
		case key == "":
			s.logf(events.LevelWarn, "thread %s: root message not found", ts)
		default:
			s.extractThread(ctx, ts, key)
		}
		s.setPercent((i + 1) * 100 / len(todo))
		s.emitProgress()
	}
	return ctx.Err()
}

// extractThread opens the panel for rootTS, pulls every reply and closes
// the panel again. Failures are logged and yield zero replies.
func (s *Session) extractThread(ctx context.Context, rootTS, key string) (added int) {
	defer func() {
		if r := recover(); r != nil {
			s.logf(events.LevelWarn, "thread %s: extraction aborted: %v", rootTS, r)
			added = 0
		}
	}()
	if err := s.limiter.Wait(ctx); err != nil {
		return 0
	}

	panel, err := s.openThread(ctx, key)
	if err != nil {
		if ctx.Err() == nil {
			s.logf(events.LevelWarn, "thread %s: %v", rootTS, err)
		}
		return 0
	}
	defer s.closeThread(context.WithoutCancel(ctx))

	added, complete, err := s.collectReplies(ctx, panel, rootTS)
	if err != nil {
		if ctx.Err() == nil {
			s.logf(events.LevelWarn, "thread %s: reading replies: %v", rootTS, err)
		}
		return added
	}
	if !complete {
		s.logf(events.LevelWarn, "thread %s: panel kept growing; replies may be partial", rootTS)
	}

	s.mu.Lock()
	s.extracted[rootTS] = struct{}{}
	s.pending[rootTS] = struct{}{}
	s.unsaved += added
	s.mu.Unlock()
	log.Debug().Str("thread", rootTS).Int("replies", added).Msg("session: thread extracted")
	s.emitProgress()
	return added
}

// openThread tries each way of opening the panel for the node key and
// returns the panel's list container.
func (s *Session) openThread(ctx context.Context, key string) (string, error) {
	for _, sel := range s.sel.OpenThread {
		ok, err := s.page.ClickWithin(ctx, key, sel)
		if err != nil {
			return "", err
		}
		if ok {
			if panel, ok := s.waitPanel(ctx); ok {
				return panel, nil
			}
		}
	}

	if s.sel.ThreadHotkey != "" {
		ok, err := s.page.Hover(ctx, key)
		if err != nil {
			return "", err
		}
		if ok {
			if err := s.page.Press(ctx, s.sel.ThreadHotkey); err != nil {
				return "", err
			}
			if panel, ok := s.waitPanel(ctx); ok {
				return panel, nil
			}
		}
	}

	attached, err := s.page.Attached(ctx, key)
	if err != nil {
		return "", err
	}
	if attached {
		ok, err := s.page.ClickNode(ctx, key)
		if err != nil {
			return "", err
		}
		if ok {
			if panel, ok := s.waitPanel(ctx); ok {
				return panel, nil
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("thread panel did not open")
}

// waitPanel polls for the thread panel and its reply list.
func (s *Session) waitPanel(ctx context.Context) (string, bool) {
	deadline := s.clock.Now().Add(s.tune.PanelOpenTimeout)
	for {
		if list, ok := s.panelList(ctx); ok {
			if s.clock.Sleep(ctx, s.tune.PanelSettle) != nil {
				return "", false
			}
			return list, true
		}
		if s.tune.PanelPoll <= 0 || !s.clock.Now().Before(deadline) {
			return "", false
		}
		if s.clock.Sleep(ctx, s.tune.PanelPoll) != nil {
			return "", false
		}
	}
}

func (s *Session) panelList(ctx context.Context) (string, bool) {
	if !s.panelShowing(ctx) {
		return "", false
	}
	for _, sel := range s.sel.PanelList {
		if ok, err := s.page.Exists(ctx, sel); err == nil && ok {
			return sel, true
		}
	}
	return "", false
}

func (s *Session) panelShowing(ctx context.Context) bool {
	for _, sel := range s.sel.ThreadPanel {
		if ok, err := s.page.Exists(ctx, sel); err == nil && ok {
			return true
		}
	}
	return false
}

// collectReplies scrolls the panel to its end until its height holds
// steady, ingesting the rendered messages on every pass. complete is false
// when the scroll budget ran out first.
func (s *Session) collectReplies(ctx context.Context, panel, rootTS string) (added int, complete bool, err error) {
	lastHeight := -1.0
	stable := 0
	for range s.tune.PanelMaxScrolls {
		if err := s.checkpoint(ctx); err != nil {
			return added, false, err
		}
		nodes, err := s.page.Nodes(ctx, panel, s.sel.MessageItem)
		if err != nil {
			return added, false, err
		}
		for _, n := range nodes {
			m, ok := s.parser.ParseFragment(n.HTML)
			if !ok {
				continue
			}
			m.ThreadTS = rootTS
			m.IsReply = m.TS != rootTS
			if s.store.Insert(m) && m.IsReply {
				added++
			}
		}

		metrics, err := s.page.Metrics(ctx, panel)
		if err != nil {
			return added, false, err
		}
		if metrics.ScrollHeight == lastHeight {
			stable++
			if stable >= s.tune.PanelStableSamples {
				return added, true, nil
			}
		} else {
			stable = 0
		}
		lastHeight = metrics.ScrollHeight

		if err := s.page.SetScrollTop(ctx, panel, metrics.ScrollHeight); err != nil {
			return added, false, err
		}
		if err := s.clock.Sleep(ctx, s.tune.PanelSettle); err != nil {
			return added, false, err
		}
	}
	return added, false, nil
}

// closeThread dismisses the panel: the close button, then Escape, then a
// click on the main pane.
func (s *Session) closeThread(ctx context.Context) {
	for _, sel := range s.sel.CloseThread {
		if ok, err := s.page.Click(ctx, sel); err == nil && ok && s.waitClosed(ctx) {
			return
		}
	}
	if err := s.page.Press(ctx, "Escape"); err == nil && s.waitClosed(ctx) {
		return
	}
	for _, sel := range s.sel.MainPane {
		if ok, err := s.page.Click(ctx, sel); err == nil && ok && s.waitClosed(ctx) {
			return
		}
	}
	s.logf(events.LevelWarn, "thread panel did not close")
}

func (s *Session) waitClosed(ctx context.Context) bool {
	deadline := s.clock.Now().Add(s.tune.PanelCloseTimeout)
	for {
		if !s.panelShowing(ctx) {
			return true
		}
		if s.tune.PanelPoll <= 0 || !s.clock.Now().Before(deadline) {
			return false
		}
		if s.clock.Sleep(ctx, s.tune.PanelPoll) != nil {
			return false
		}
	}
}
