// Package archive holds the extracted message records: the deduplicating
// Store and the ThreadIndex derived from it.
package archive

import (
	"time"

	"github.com/zulandar/skimmer/internal/timestamp"
)

// Message is one chat message as observed in the DOM.
type Message struct {
	TS          string       `json:"ts"`
	UserID      string       `json:"user_id,omitempty"`
	UserName    string       `json:"user_name,omitempty"`
	Text        string       `json:"text"`
	ThreadTS    string       `json:"thread_ts,omitempty"`
	ReplyCount  int          `json:"reply_count"`
	IsReply     bool         `json:"is_reply,omitempty"`
	Reactions   []Reaction   `json:"reactions,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	MessageDate string       `json:"message_date,omitempty"`
	MessageTime string       `json:"message_time,omitempty"`
}

// Reaction is an emoji reaction with its count.
type Reaction struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
}

// Attachment is either a titled unfurl ({title}) or a typed file ({type, name}).
type Attachment struct {
	Title string `json:"title,omitempty"`
	Type  string `json:"type,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Author returns the identifier used for participant and user sets.
func (m Message) Author() string {
	if m.UserID != "" {
		return m.UserID
	}
	return m.UserName
}

// IsRoot reports whether m starts a thread.
func (m Message) IsRoot() bool {
	if m.ThreadTS != "" {
		return m.ThreadTS == m.TS
	}
	return m.ReplyCount > 0
}

// threadKey returns the thread m belongs to, or "" when it is unthreaded.
func (m Message) threadKey() string {
	if m.ThreadTS != "" {
		return m.ThreadTS
	}
	if m.ReplyCount > 0 {
		return m.TS
	}
	return ""
}

// Annotate fills the derived date and time display fields from TS.
func (m *Message) Annotate(loc *time.Location) {
	m.MessageDate, m.MessageTime = timestamp.DateTime(m.TS, loc)
}
