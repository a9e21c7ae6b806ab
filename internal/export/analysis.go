package export

import (
	"fmt"
	"slices"
	"strings"

	"github.com/zulandar/skimmer/internal/archive"
	"github.com/zulandar/skimmer/internal/timestamp"
)

// Analysis regroups the archive into conversations.
type Analysis struct {
	Metadata   Metadata          `json:"metadata"`
	Threads    []Conversation    `json:"threads"`
	Standalone []archive.Message `json:"standalone"`
}

// Conversation is one thread with its replies in time order.
type Conversation struct {
	ThreadTS     string            `json:"thread_ts"`
	Root         *archive.Message  `json:"root,omitempty"`
	Replies      []archive.Message `json:"replies"`
	ReplyCount   int               `json:"reply_count"`
	Participants []string          `json:"participants"`
	Transcript   string            `json:"transcript"`
}

// Analyze builds the analysis document from msgs, which must be sorted.
func Analyze(src Source, msgs []archive.Message) Analysis {
	byThread := make(map[string]*Conversation)
	var order []string
	conv := func(key string) *Conversation {
		c, ok := byThread[key]
		if !ok {
			c = &Conversation{ThreadTS: key, Replies: []archive.Message{}}
			byThread[key] = c
			order = append(order, key)
		}
		return c
	}

	out := Analysis{Metadata: metadata(src, msgs), Standalone: []archive.Message{}}
	for _, m := range msgs {
		switch {
		case m.IsRoot():
			root := m
			conv(m.TS).Root = &root
		case m.ThreadTS != "":
			c := conv(m.ThreadTS)
			c.Replies = append(c.Replies, m)
		default:
			out.Standalone = append(out.Standalone, m)
		}
	}

	slices.SortFunc(order, timestamp.Compare)
	out.Threads = make([]Conversation, 0, len(order))
	for _, key := range order {
		c := byThread[key]
		c.ReplyCount = len(c.Replies)
		if t, ok := src.Store.Threads().Get(key); ok {
			c.ReplyCount = max(c.ReplyCount, t.ReplyCount)
		}
		c.Participants = participants(c)
		c.Transcript = transcript(c)
		out.Threads = append(out.Threads, *c)
	}
	return out
}

func participants(c *Conversation) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(m archive.Message) {
		a := m.Author()
		if a == "" {
			return
		}
		if _, ok := seen[a]; !ok {
			seen[a] = struct{}{}
			out = append(out, a)
		}
	}
	if c.Root != nil {
		add(*c.Root)
	}
	for _, r := range c.Replies {
		add(r)
	}
	if out == nil {
		out = []string{}
	}
	return out
}

// transcript renders the conversation one message per line:
// "[date time] name: text".
func transcript(c *Conversation) string {
	var b strings.Builder
	line := func(m archive.Message) {
		name := m.UserName
		if name == "" {
			name = m.UserID
		}
		if name == "" {
			name = "unknown"
		}
		fmt.Fprintf(&b, "[%s %s] %s: %s\n", m.MessageDate, m.MessageTime, name, m.Text)
	}
	if c.Root != nil {
		line(*c.Root)
	}
	for _, r := range c.Replies {
		line(r)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
