// Package parse turns message DOM nodes into archive records. Every field is
// read through a cascade of lookups so that a missing attribute or a renamed
// class in the chat UI degrades one strategy, not the whole record.
package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"github.com/zulandar/skimmer/internal/archive"
)

var (
	countPattern    = regexp.MustCompile(`(\d+)`)
	teamIDPattern   = regexp.MustCompile(`/team/([A-Z0-9]+)`)
	idTSPattern     = regexp.MustCompile(`(\d{10}\.\d+)$`)
	threadTSPattern = regexp.MustCompile(`[?&]thread_ts=(\d{10}\.\d+)`)
)

// Parser holds the field cascades. The zero value is not usable; use New.
type Parser struct {
	TS         Cascade
	ThreadTS   Cascade
	UserID     Cascade
	UserName   Cascade
	Text       Cascade
	ReplyCount Cascade

	ReactionSelector string
	ReactionEmoji    Cascade
	ReactionCount    Cascade

	// AttachmentTitleSelector marks link unfurls ({title}).
	AttachmentTitleSelector string
	// FileSelectors maps a file node selector to the attachment type it yields.
	FileSelectors []FileSelector

	Location *time.Location
}

// FileSelector pairs a selector with the attachment type and name cascade
// used for matching nodes.
type FileSelector struct {
	Selector string
	Type     string
	Name     Cascade
}

// New returns a Parser configured for the current chat web client markup.
// Dates are rendered in loc.
func New(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.Local
	}
	return &Parser{
		TS: Cascade{
			Timestamp(Attr("data-item-key")),
			Timestamp(Attr("data-msg-ts")),
			Timestamp(Matching(Attr("id"), idTSPattern)),
			Timestamp(NestedAttr("a.c-timestamp", "data-ts")),
			Timestamp(NestedAttr("[data-ts]", "data-ts")),
			Timestamp(NestedAttr("a.c-timestamp", "href")),
			Timestamp(NestedAttr("a[href*='/archives/']", "href")),
		},
		ThreadTS: Cascade{
			Timestamp(Attr("data-thread-ts")),
			Timestamp(NestedAttr("[data-thread-ts]", "data-thread-ts")),
			Timestamp(Matching(NestedAttr("a.c-timestamp", "href"), threadTSPattern)),
			Timestamp(Matching(NestedAttr("a[href*='/archives/']", "href"), threadTSPattern)),
		},
		UserID: Cascade{
			NestedAttr("[data-message-sender]", "data-message-sender"),
			Matching(NestedAttr("a.c-message__sender_link", "href"), teamIDPattern),
			Attr("data-user-id"),
		},
		UserName: Cascade{
			NestedText("button.c-message__sender_button"),
			NestedText(`[data-qa="message_sender_name"]`),
			NestedText(".c-message__sender"),
			NestedAttr("img.c-base_icon", "alt"),
		},
		Text: Cascade{
			NestedText(`[data-qa="message-text"]`),
			NestedText(".c-message_kit__blocks"),
			NestedText(".p-rich_text_section"),
			NestedText(".c-message__body"),
		},
		ReplyCount: Cascade{
			Matching(NestedText(".c-message__reply_count"), countPattern),
			Matching(NestedText(`[data-qa="reply_bar_count"]`), countPattern),
			Matching(NestedAttr(".c-message__reply_bar", "aria-label"), countPattern),
		},
		ReactionSelector: ".c-reaction",
		ReactionEmoji: Cascade{
			NestedAttr("img[data-stringify-emoji]", "data-stringify-emoji"),
			NestedAttr("img", "alt"),
			Attr("aria-label"),
		},
		ReactionCount: Cascade{
			Matching(NestedText(".c-reaction__count"), countPattern),
		},
		AttachmentTitleSelector: ".c-message_attachment__title",
		FileSelectors: []FileSelector{
			{
				Selector: ".c-file__title, [data-qa='file_name']",
				Type:     "file",
				Name:     Cascade{selfText()},
			},
			{
				Selector: ".p-file_image_thumbnail__wrapper img",
				Type:     "image",
				Name:     Cascade{Attr("alt"), Attr("data-file-name")},
			},
		},
		Location: loc,
	}
}

func selfText() Strategy {
	return func(node *goquery.Selection) (string, bool) {
		v := collapseSpace(node.Text())
		return v, v != ""
	}
}

// Parse reads one message node. It never panics: a failure anywhere in the
// cascades is reported as no record.
func (p *Parser) Parse(node *goquery.Selection) (msg archive.Message, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Debug().Interface("panic", r).Msg("parse: message node rejected")
			msg, ok = archive.Message{}, false
		}
	}()

	if node == nil || node.Length() == 0 {
		return archive.Message{}, false
	}
	ts, found := p.TS.Resolve(node)
	if !found {
		return archive.Message{}, false
	}

	msg = archive.Message{TS: ts}
	msg.UserID, _ = p.UserID.Resolve(node)
	msg.UserName, _ = p.UserName.Resolve(node)
	msg.Text, _ = p.Text.Resolve(node)
	if v, found := p.ReplyCount.Resolve(node); found {
		msg.ReplyCount, _ = strconv.Atoi(v)
	}
	msg.ThreadTS, _ = p.ThreadTS.Resolve(node)
	if msg.ThreadTS == "" && msg.ReplyCount > 0 {
		msg.ThreadTS = ts
	}
	msg.IsReply = msg.ThreadTS != "" && msg.ThreadTS != ts
	msg.Reactions = p.reactions(node)
	msg.Attachments = p.attachments(node)
	msg.Annotate(p.Location)
	return msg, true
}

func (p *Parser) reactions(node *goquery.Selection) []archive.Reaction {
	var out []archive.Reaction
	node.Find(p.ReactionSelector).Each(func(_ int, r *goquery.Selection) {
		emoji, ok := p.ReactionEmoji.Resolve(r)
		if !ok {
			return
		}
		count := 1
		if v, ok := p.ReactionCount.Resolve(r); ok {
			if n, err := strconv.Atoi(v); err == nil {
				count = n
			}
		}
		out = append(out, archive.Reaction{Emoji: strings.Trim(emoji, ":"), Count: count})
	})
	return out
}

func (p *Parser) attachments(node *goquery.Selection) []archive.Attachment {
	var out []archive.Attachment
	node.Find(p.AttachmentTitleSelector).Each(func(_ int, a *goquery.Selection) {
		if title := collapseSpace(a.Text()); title != "" {
			out = append(out, archive.Attachment{Title: title})
		}
	})
	for _, fs := range p.FileSelectors {
		node.Find(fs.Selector).Each(func(_ int, f *goquery.Selection) {
			if name, ok := fs.Name.Resolve(f); ok {
				out = append(out, archive.Attachment{Type: fs.Type, Name: name})
			}
		})
	}
	return out
}

// ParseFragment parses an HTML fragment whose first element is the message node.
func (p *Parser) ParseFragment(fragment string) (archive.Message, bool) {
	node, err := Fragment(fragment)
	if err != nil {
		return archive.Message{}, false
	}
	return p.Parse(node)
}

// ParseAll parses a batch of fragments, dropping the unparseable ones.
func (p *Parser) ParseAll(fragments []string) []archive.Message {
	out := make([]archive.Message, 0, len(fragments))
	for _, f := range fragments {
		if m, ok := p.ParseFragment(f); ok {
			out = append(out, m)
		}
	}
	return out
}

// Fragment loads an HTML fragment and returns its first top-level element.
func Fragment(fragment string) (*goquery.Selection, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("parse: load fragment: %w", err)
	}
	node := doc.Find("body").Children().First()
	if node.Length() == 0 {
		return nil, fmt.Errorf("parse: fragment has no element")
	}
	return node, nil
}
