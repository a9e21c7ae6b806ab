package archive

import (
	"sort"
	"sync"

	"github.com/zulandar/skimmer/internal/timestamp"
)

// Thread aggregates the messages sharing one thread key.
type Thread struct {
	RootTS        string
	RootMessageTS string
	Replies       map[string]struct{}
	ReplyCount    int
	LatestReplyTS string
	Participants  map[string]struct{}
}

// SerializedThread is the persisted form of a Thread; sets become sorted slices.
type SerializedThread struct {
	ThreadTS      string   `json:"thread_ts"`
	RootMessageTS string   `json:"root_message_ts,omitempty"`
	ReplyTS       []string `json:"reply_ts"`
	ReplyCount    int      `json:"reply_count"`
	LatestReplyTS string   `json:"latest_reply_ts,omitempty"`
	Participants  []string `json:"participants"`
}

// ThreadIndex is a secondary index over the Store keyed by thread ts. Every
// field in it can be rebuilt by replaying the stored messages.
type ThreadIndex struct {
	mu      sync.RWMutex
	threads map[string]*Thread
}

// NewThreadIndex returns an empty index.
func NewThreadIndex() *ThreadIndex {
	return &ThreadIndex{threads: make(map[string]*Thread)}
}

// Update folds msg into the thread it belongs to. Unthreaded messages are ignored.
func (ti *ThreadIndex) Update(msg Message) {
	key := msg.threadKey()
	if key == "" {
		return
	}
	ti.mu.Lock()
	defer ti.mu.Unlock()
	ti.updateLocked(key, msg)
}

func (ti *ThreadIndex) updateLocked(key string, msg Message) {
	t, ok := ti.threads[key]
	if !ok {
		t = &Thread{
			RootTS:       key,
			Replies:      make(map[string]struct{}),
			Participants: make(map[string]struct{}),
		}
		ti.threads[key] = t
	}

	if msg.TS == key {
		t.RootMessageTS = msg.TS
		if msg.ReplyCount > t.ReplyCount {
			t.ReplyCount = msg.ReplyCount
		}
	} else {
		t.Replies[msg.TS] = struct{}{}
		if t.LatestReplyTS == "" || timestamp.Compare(msg.TS, t.LatestReplyTS) > 0 {
			t.LatestReplyTS = msg.TS
		}
	}
	// The UI hint can lag behind what has been scraped, so keep the larger.
	if len(t.Replies) > t.ReplyCount {
		t.ReplyCount = len(t.Replies)
	}
	if author := msg.Author(); author != "" {
		t.Participants[author] = struct{}{}
	}
}

// Rebuild clears the index and replays every message.
func (ti *ThreadIndex) Rebuild(messages []Message) {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	ti.threads = make(map[string]*Thread)
	for _, m := range messages {
		if key := m.threadKey(); key != "" {
			ti.updateLocked(key, m)
		}
	}
}

// Get returns a copy of the thread keyed by rootTS.
func (ti *ThreadIndex) Get(rootTS string) (Thread, bool) {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	t, ok := ti.threads[rootTS]
	if !ok {
		return Thread{}, false
	}
	return copyThread(t), true
}

// Len returns the number of threads.
func (ti *ThreadIndex) Len() int {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	return len(ti.threads)
}

// Keys returns the thread keys in ascending ts order.
func (ti *ThreadIndex) Keys() []string {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	keys := make([]string, 0, len(ti.threads))
	for k := range ti.threads {
		keys = append(keys, k)
	}
	sortTS(keys)
	return keys
}

// Clear drops every thread.
func (ti *ThreadIndex) Clear() {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	ti.threads = make(map[string]*Thread)
}

// Serialize returns the persisted form of every thread, ordered by key.
func (ti *ThreadIndex) Serialize() []SerializedThread {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	out := make([]SerializedThread, 0, len(ti.threads))
	for _, t := range ti.threads {
		replies := setToSlice(t.Replies)
		sortTS(replies)
		participants := setToSlice(t.Participants)
		sort.Strings(participants)
		out = append(out, SerializedThread{
			ThreadTS:      t.RootTS,
			RootMessageTS: t.RootMessageTS,
			ReplyTS:       replies,
			ReplyCount:    t.ReplyCount,
			LatestReplyTS: t.LatestReplyTS,
			Participants:  participants,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return timestamp.Compare(out[i].ThreadTS, out[j].ThreadTS) < 0
	})
	return out
}

// Restore replaces the index contents with previously serialized threads.
func (ti *ThreadIndex) Restore(threads []SerializedThread) {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	ti.threads = make(map[string]*Thread, len(threads))
	for _, st := range threads {
		if st.ThreadTS == "" {
			continue
		}
		t := &Thread{
			RootTS:        st.ThreadTS,
			RootMessageTS: st.RootMessageTS,
			Replies:       make(map[string]struct{}, len(st.ReplyTS)),
			ReplyCount:    st.ReplyCount,
			LatestReplyTS: st.LatestReplyTS,
			Participants:  make(map[string]struct{}, len(st.Participants)),
		}
		for _, ts := range st.ReplyTS {
			t.Replies[ts] = struct{}{}
		}
		for _, p := range st.Participants {
			t.Participants[p] = struct{}{}
		}
		ti.threads[st.ThreadTS] = t
	}
}

func copyThread(t *Thread) Thread {
	c := *t
	c.Replies = make(map[string]struct{}, len(t.Replies))
	for k := range t.Replies {
		c.Replies[k] = struct{}{}
	}
	c.Participants = make(map[string]struct{}, len(t.Participants))
	for k := range t.Participants {
		c.Participants[k] = struct{}{}
	}
	return c
}

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func sortTS(s []string) {
	sort.Slice(s, func(i, j int) bool { return timestamp.Compare(s[i], s[j]) < 0 })
}
