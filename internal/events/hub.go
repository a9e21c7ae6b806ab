package events

import "sync"

// Hub broadcasts events to live subscribers. A subscriber that falls
// behind loses events rather than stalling the session.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	buffer int
	last   *Event
}

// NewHub returns a hub whose subscriber channels hold buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{subs: make(map[chan Event]struct{}), buffer: buffer}
}

// Subscribe registers a subscriber. The latest progress event, if any, is
// delivered first. Call cancel to unsubscribe; the channel is then closed.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	if h.last != nil {
		ch <- *h.last
	}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Emit(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e.Kind == KindProgress {
		ev := e
		h.last = &ev
	}
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
