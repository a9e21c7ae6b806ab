package session

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zulandar/skimmer/internal/archive"
	"github.com/zulandar/skimmer/internal/browser"
	"github.com/zulandar/skimmer/internal/events"
	"github.com/zulandar/skimmer/internal/timestamp"
)

// stallCounters carry the termination bookkeeping between ticks.
type stallCounters struct {
	noProgress   int
	noNewInRange int
	belowRange   int
	failed       int
	lastOldest   string
}

// ingestResult summarizes one pass over rendered nodes. oldest and newest
// span every parsed node, in range or not.
type ingestResult struct {
	parsed int
	added  int
	oldest string
	newest string
}

// scroll runs the main loop from the current position toward the oldest
// message until a termination condition holds.
func (s *Session) scroll(ctx context.Context, container string) error {
	var c stallCounters
	for tick := 1; ; tick++ {
		if err := s.checkpoint(ctx); err != nil {
			return err
		}
		reason, err := s.tick(ctx, container, &c)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.failed++
			s.logf(events.LevelWarn, "tick %d failed (%d in a row): %v", tick, c.failed, err)
			if c.failed >= s.tune.MaxFailedTicks {
				return fmt.Errorf("session: %d consecutive ticks failed: %w", c.failed, err)
			}
			if err := s.clock.Sleep(ctx, s.delay()); err != nil {
				return err
			}
			continue
		}
		c.failed = 0
		if reason != "" {
			s.logf(events.LevelInfo, "scrolling finished after %d ticks: %s", tick, reason)
			return nil
		}
	}
}

// tick performs one scroll step and returns a non-empty reason when the
// loop should end.
func (s *Session) tick(ctx context.Context, container string, c *stallCounters) (string, error) {
	before, err := s.page.Metrics(ctx, container)
	if err != nil {
		return "", err
	}
	s.setPercent(progressPercent(before))
	s.emitProgress()

	step := s.step()
	if err := s.page.SetScrollTop(ctx, container, before.ScrollTop-step); err != nil {
		return "", err
	}
	after, err := s.page.Metrics(ctx, container)
	if err != nil {
		return "", err
	}
	if after == before && !before.AtTop() {
		if err := s.page.Wheel(ctx, container, -step); err != nil {
			return "", err
		}
		if after, err = s.page.Metrics(ctx, container); err != nil {
			return "", err
		}
	}
	moved := after.ScrollTop != before.ScrollTop
	grown := after.ScrollHeight != before.ScrollHeight
	if !grown && (moved || after.AtTop()) {
		if after, err = s.waitForExtent(ctx, container, before.ScrollHeight); err != nil {
			return "", err
		}
		grown = after.ScrollHeight != before.ScrollHeight
	}

	nodes, err := s.page.Nodes(ctx, container, s.sel.MessageItem)
	if err != nil {
		return "", err
	}
	res := s.ingest(nodes, true)
	s.drainQueue(ctx)
	s.emitProgress()

	if err := s.clock.Sleep(ctx, s.delay()); err != nil {
		return "", err
	}

	tr := s.activeRange()
	if !moved && !grown && res.added == 0 && res.oldest == c.lastOldest {
		c.noProgress++
	} else {
		c.noProgress = 0
	}
	if tr.Active() && res.added == 0 {
		c.noNewInRange++
	} else {
		c.noNewInRange = 0
	}
	if res.oldest != "" && tr.Before(res.oldest) {
		c.belowRange++
	} else {
		c.belowRange = 0
	}
	if res.oldest != "" {
		c.lastOldest = res.oldest
	}

	s.maybeAutoSave(ctx)

	switch {
	case after.AtTop() && c.noProgress >= s.tune.TopNoProgressTicks:
		return "reached the beginning of the channel", nil
	case c.noProgress > s.tune.NoProgressLimit:
		return fmt.Sprintf("no progress for %d ticks", c.noProgress), nil
	case c.belowRange >= s.tune.BelowRangeTicks:
		return "passed the start of the time range", nil
	}
	log.Debug().
		Int("noProgress", c.noProgress).
		Int("noNewInRange", c.noNewInRange).
		Int("belowRange", c.belowRange).
		Msg("session: tick")
	return "", nil
}

// waitForExtent polls until the list height differs from height or the
// load timeout passes, and returns the last metrics read.
func (s *Session) waitForExtent(ctx context.Context, container string, height float64) (browser.Metrics, error) {
	if s.tune.LoadWait <= 0 || s.tune.LoadPoll <= 0 {
		return s.page.Metrics(ctx, container)
	}
	deadline := s.clock.Now().Add(s.tune.LoadWait)
	for {
		if err := s.clock.Sleep(ctx, s.tune.LoadPoll); err != nil {
			return browser.Metrics{}, err
		}
		m, err := s.page.Metrics(ctx, container)
		if err != nil {
			return m, err
		}
		if m.ScrollHeight != height || !s.clock.Now().Before(deadline) {
			return m, nil
		}
	}
}

// ingest parses nodes and merges the in-range records. Roots with replies
// are queued for extraction when enqueue is set.
func (s *Session) ingest(nodes []browser.Node, enqueue bool) ingestResult {
	tr := s.activeRange()
	var res ingestResult
	for _, n := range nodes {
		m, ok := s.parser.ParseFragment(n.HTML)
		if !ok {
			continue
		}
		res.parsed++
		if res.oldest == "" || timestamp.Compare(m.TS, res.oldest) < 0 {
			res.oldest = m.TS
		}
		if res.newest == "" || timestamp.Compare(m.TS, res.newest) > 0 {
			res.newest = m.TS
		}
		if !tr.Contains(m.TS) {
			continue
		}
		if s.store.Insert(m) {
			res.added++
		}
		if enqueue && m.ReplyCount > 0 {
			s.enqueue(m.TS, n.Key)
		}
	}
	if res.added > 0 {
		s.mu.Lock()
		s.unsaved += res.added
		s.mu.Unlock()
	}
	return res
}

func (s *Session) enqueue(ts, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.settings.IncludeThreads {
		return
	}
	if _, ok := s.pending[ts]; ok {
		return
	}
	if _, ok := s.extracted[ts]; ok {
		return
	}
	s.pending[ts] = struct{}{}
	s.queue = append(s.queue, queuedThread{ts: ts, key: key})
}

func (s *Session) maybeAutoSave(ctx context.Context) {
	s.mu.Lock()
	due := s.settings.AutoSaveInterval > 0 && s.unsaved >= s.settings.AutoSaveInterval
	s.mu.Unlock()
	if due {
		_ = s.save(ctx)
	}
}

func (s *Session) activeRange() archive.TimeRange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeRange
}

// step returns a randomized scroll distance in pixels.
func (s *Session) step() float64 {
	lo, hi := s.tune.StepMin, s.tune.StepMax
	if s.activeRange().Active() {
		lo, hi = s.tune.RangeStepMin, s.tune.RangeStepMax
	}
	return lo + s.rng.Float64()*(hi-lo)
}

// delay returns the pause between ticks: the configured delay with jitter,
// occasionally stretched into a reading pause.
func (s *Session) delay() time.Duration {
	s.mu.Lock()
	base := s.settings.ScrollDelaySeconds * float64(time.Second)
	s.mu.Unlock()

	d := base * (1 + s.tune.Jitter*(2*s.rng.Float64()-1))
	if s.rng.Float64() < s.tune.ReadingPauseChance {
		d *= s.tune.ReadingPauseMin + s.rng.Float64()*(s.tune.ReadingPauseMax-s.tune.ReadingPauseMin)
	}
	return time.Duration(d)
}

// progressPercent estimates how far the traversal from the newest message
// (bottom) toward the oldest (top) has come.
func progressPercent(m browser.Metrics) int {
	span := m.ScrollHeight - m.ClientHeight
	if span <= 0 {
		return 0
	}
	p := math.Round((1 - m.ScrollTop/span) * 100)
	return int(min(max(p, 0), 100))
}

// mainContainer resolves the message list selector.
func (s *Session) mainContainer(ctx context.Context) (string, error) {
	for _, sel := range s.sel.MainList {
		ok, err := s.page.Exists(ctx, sel)
		if err != nil {
			return "", fmt.Errorf("session: find message list: %w", err)
		}
		if ok {
			s.mu.Lock()
			s.mainList = sel
			s.mu.Unlock()
			return sel, nil
		}
	}
	return "", fmt.Errorf("session: message list: %w", browser.ErrNoContainer)
}
