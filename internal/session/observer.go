package session

import (
	"context"

	"github.com/rs/zerolog/log"
)

// observe re-parses the main list whenever the page reports DOM mutations
// between ticks. Inserts race with the tick loop but go through the same
// idempotent Store.Insert.
func (s *Session) observe(ctx context.Context) {
	if s.tune.ObserveInterval <= 0 {
		return
	}
	last := int64(-1)
	for {
		if err := s.clock.Sleep(ctx, s.tune.ObserveInterval); err != nil {
			return
		}

		s.mu.Lock()
		active := s.state.Running && s.resume == nil
		container := s.mainList
		s.mu.Unlock()
		if !active || container == "" {
			continue
		}

		n, err := s.page.Mutations(ctx)
		if err != nil || n == last {
			continue
		}
		last = n
		nodes, err := s.page.Nodes(ctx, container, s.sel.MessageItem)
		if err != nil {
			continue
		}
		if res := s.ingest(nodes, false); res.added > 0 {
			log.Debug().Int("added", res.added).Int64("mutations", n).Msg("session: observer ingest")
		}
	}
}
