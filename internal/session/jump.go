package session

import (
	"context"

	"github.com/zulandar/skimmer/internal/archive"
	"github.com/zulandar/skimmer/internal/browser"
	"github.com/zulandar/skimmer/internal/events"
	"github.com/zulandar/skimmer/internal/timestamp"
)

// direction is the travel direction through the list.
type direction int

const (
	older direction = -1
	newer direction = 1
)

func (d direction) String() string {
	switch d {
	case older:
		return "older"
	case newer:
		return "newer"
	}
	return "undecided"
}

// jumpPlan is the target of the jump sub-phase. An empty target means the
// newest message; a zero dir is decided from the first sample.
type jumpPlan struct {
	target string
	dir    direction
	limit  int
}

func planJump(tr archive.TimeRange, t Tuning) jumpPlan {
	switch {
	case tr.FromTS != "" && tr.ToTS != "":
		return jumpPlan{target: tr.ToTS, dir: newer, limit: t.JumpDateCap}
	case tr.ToTS != "":
		return jumpPlan{target: tr.ToTS, limit: t.JumpDateCap}
	default:
		return jumpPlan{limit: t.JumpNewestCap}
	}
}

// extent is the ts span of the rendered messages.
type extent struct {
	oldest string
	newest string
}

func (e extent) empty() bool {
	return e.oldest == ""
}

// overshot reports whether the view has moved past target in direction
// dir. Travelling newer, the whole view must be newer than target so the
// older-bound main loop passes every message at or before it.
func overshot(dir direction, e extent, target string) bool {
	if e.empty() {
		return false
	}
	if dir == newer {
		return timestamp.Compare(e.oldest, target) > 0
	}
	return timestamp.Compare(e.oldest, target) <= 0
}

// survey parses the rendered nodes and returns their span plus a ts to
// node key index.
func (s *Session) survey(ctx context.Context, container string) (extent, map[string]string, error) {
	nodes, err := s.page.Nodes(ctx, container, s.sel.MessageItem)
	if err != nil {
		return extent{}, nil, err
	}
	var e extent
	keys := make(map[string]string, len(nodes))
	for _, n := range nodes {
		m, ok := s.parser.ParseFragment(n.HTML)
		if !ok {
			continue
		}
		keys[m.TS] = n.Key
		if e.oldest == "" || timestamp.Compare(m.TS, e.oldest) < 0 {
			e.oldest = m.TS
		}
		if e.newest == "" || timestamp.Compare(m.TS, e.newest) > 0 {
			e.newest = m.TS
		}
	}
	return e, keys, nil
}

// jump positions the view for the configured time range. A stall or the
// iteration cap ends the jump without error; the main loop then starts
// from wherever the view is.
func (s *Session) jump(ctx context.Context, container string) error {
	plan := planJump(s.activeRange(), s.tune)
	var prev extent
	unchanged := 0
	for attempt := 1; attempt <= plan.limit; attempt++ {
		if err := s.checkpoint(ctx); err != nil {
			return err
		}
		m, err := s.page.Metrics(ctx, container)
		if err != nil {
			return err
		}
		ext, _, err := s.survey(ctx, container)
		if err != nil {
			return err
		}
		if plan.target != "" && plan.dir == 0 && !ext.empty() {
			plan.dir = older
			if timestamp.Compare(ext.newest, plan.target) < 0 {
				plan.dir = newer
			}
		}

		target := plan.target
		if target == "" {
			target = "newest"
		}
		s.emit(events.Event{Kind: events.KindJump, Jump: &events.JumpProgress{
			Target:    target,
			Direction: plan.dir.String(),
			Attempt:   attempt,
			Oldest:    ext.oldest,
			Newest:    ext.newest,
		}})

		if plan.target == "" {
			if attempt > 1 && m.AtBottom() && ext == prev {
				s.logf(events.LevelInfo, "reached the newest message")
				return nil
			}
		} else if overshot(plan.dir, ext, plan.target) {
			s.logf(events.LevelInfo, "jump reached %s after %d samples", plan.target, attempt)
			return nil
		}

		if attempt > 1 && ext == prev {
			unchanged++
		} else {
			unchanged = 0
		}
		if unchanged >= s.tune.JumpStallSamples {
			s.logf(events.LevelWarn, "jump stalled at %s..%s; extracting from here", ext.oldest, ext.newest)
			return nil
		}
		prev = ext

		if plan.target == "" {
			err = s.page.SetScrollTop(ctx, container, m.ScrollHeight)
		} else {
			dir := plan.dir
			if dir == 0 {
				dir = older
			}
			err = s.nudge(ctx, container, m, s.tune.JumpStep*float64(dir))
		}
		if err != nil {
			return err
		}
		if err := s.clock.Sleep(ctx, s.tune.JumpSettle); err != nil {
			return err
		}
	}
	s.logf(events.LevelWarn, "jump gave up after %d samples; extracting from here", plan.limit)
	return nil
}

// nudge scrolls by delta, falling back to a wheel event when assigning the
// position has no effect.
func (s *Session) nudge(ctx context.Context, container string, m browser.Metrics, delta float64) error {
	if err := s.page.SetScrollTop(ctx, container, m.ScrollTop+delta); err != nil {
		return err
	}
	after, err := s.page.Metrics(ctx, container)
	if err != nil {
		return err
	}
	if after == m {
		return s.page.Wheel(ctx, container, delta)
	}
	return nil
}

// seek scrolls until the message ts is rendered and returns its node key,
// or "" when it cannot be found. The step halves whenever the search
// reverses direction.
func (s *Session) seek(ctx context.Context, container, ts string) (string, error) {
	step := s.tune.JumpStep
	var (
		last      direction
		prev      extent
		unchanged int
	)
	for attempt := 1; attempt <= s.tune.JumpDateCap; attempt++ {
		if err := s.checkpoint(ctx); err != nil {
			return "", err
		}
		m, err := s.page.Metrics(ctx, container)
		if err != nil {
			return "", err
		}
		ext, keys, err := s.survey(ctx, container)
		if err != nil {
			return "", err
		}
		if key, ok := keys[ts]; ok {
			return key, nil
		}

		if attempt > 1 && ext == prev {
			unchanged++
		} else {
			unchanged = 0
		}
		if unchanged >= s.tune.JumpStallSamples {
			return "", nil
		}
		prev = ext

		dir := older
		switch {
		case ext.empty():
		case timestamp.Compare(ts, ext.newest) > 0:
			dir = newer
		case timestamp.Compare(ts, ext.oldest) >= 0:
			// Inside the rendered span but not among the nodes.
			return "", nil
		}
		if last != 0 && dir != last {
			step = max(step/2, m.ClientHeight/2)
		}
		last = dir

		if err := s.nudge(ctx, container, m, step*float64(dir)); err != nil {
			return "", err
		}
		if err := s.clock.Sleep(ctx, s.tune.JumpSettle); err != nil {
			return "", err
		}
	}
	return "", nil
}
