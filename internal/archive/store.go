package archive

import (
	"sort"
	"sync"
	"time"
)

// Store is the deduplicated message collection. The ts of a message is its
// only identity: the first copy inserted is kept and later observations of
// the same ts are dropped. Insert is safe to call from several producers.
type Store struct {
	mu      sync.RWMutex
	order   []string
	byTS    map[string]Message
	users   map[string]struct{}
	threads *ThreadIndex
}

// NewStore returns an empty Store with its own ThreadIndex.
func NewStore() *Store {
	return &Store{
		byTS:    make(map[string]Message),
		users:   make(map[string]struct{}),
		threads: NewThreadIndex(),
	}
}

// Insert adds msg unless its ts is already present and reports whether a new
// record was added. Records without a ts are rejected.
func (s *Store) Insert(msg Message) bool {
	if msg.TS == "" {
		return false
	}
	s.mu.Lock()
	if _, ok := s.byTS[msg.TS]; ok {
		s.mu.Unlock()
		return false
	}
	s.byTS[msg.TS] = msg
	s.order = append(s.order, msg.TS)
	if author := msg.Author(); author != "" {
		s.users[author] = struct{}{}
	}
	s.mu.Unlock()

	s.threads.Update(msg)
	return true
}

// Has reports whether ts is stored.
func (s *Store) Has(ts string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byTS[ts]
	return ok
}

// Get returns the stored message for ts.
func (s *Store) Get(ts string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byTS[ts]
	return m, ok
}

// Len returns the number of stored messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Snapshot returns every record in insertion order.
func (s *Store) Snapshot() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, 0, len(s.order))
	for _, ts := range s.order {
		out = append(out, s.byTS[ts])
	}
	return out
}

// Users returns the sorted set of authors seen so far.
func (s *Store) Users() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := setToSlice(s.users)
	sort.Strings(out)
	return out
}

// Threads returns the thread index maintained alongside the store.
func (s *Store) Threads() *ThreadIndex {
	return s.threads
}

// Load hydrates the store from persisted records. Date and time annotations
// are derived again in loc. When threads is nil the index is rebuilt from
// the loaded messages. It returns the number of records added.
func (s *Store) Load(records []Message, threads []SerializedThread, loc *time.Location) int {
	added := 0
	s.mu.Lock()
	for _, m := range records {
		if m.TS == "" {
			continue
		}
		if _, ok := s.byTS[m.TS]; ok {
			continue
		}
		m.Annotate(loc)
		s.byTS[m.TS] = m
		s.order = append(s.order, m.TS)
		if author := m.Author(); author != "" {
			s.users[author] = struct{}{}
		}
		added++
	}
	s.mu.Unlock()

	if threads != nil {
		s.threads.Restore(threads)
	} else {
		s.threads.Rebuild(s.Snapshot())
	}
	return added
}

// Clear removes every record and thread.
func (s *Store) Clear() {
	s.mu.Lock()
	s.order = nil
	s.byTS = make(map[string]Message)
	s.users = make(map[string]struct{})
	s.mu.Unlock()
	s.threads.Clear()
}
