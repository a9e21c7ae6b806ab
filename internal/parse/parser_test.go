package parse

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/zulandar/skimmer/internal/archive"
)

const fullMessage = `
<div class="c-virtual_list__item" data-item-key="1700000000.000100" role="listitem">
  <div class="c-message_kit__message" data-qa="message_container">
    <button class="c-message__sender_button" data-message-sender="U0123ABC">Ada Lovelace</button>
    <a class="c-timestamp" data-ts="1700000000.000100" href="https://acme.slack.com/archives/C1/p1700000000000100"></a>
    <div class="c-message_kit__blocks">
      <div data-qa="message-text"><div class="p-rich_text_section">Ship   it
      today</div></div>
    </div>
    <div class="c-message_attachment__title">Release notes</div>
    <div class="c-file__title">build.log</div>
    <div class="p-file_image_thumbnail__wrapper"><img alt="screenshot.png"></div>
    <div class="c-reaction" aria-label="3 reactions">
      <img data-stringify-emoji=":tada:" alt="tada"><span class="c-reaction__count">3</span>
    </div>
    <div class="c-reaction"><img alt="eyes"></div>
    <a class="c-message__reply_bar" aria-label="5 replies">
      <span class="c-message__reply_count">5 replies</span>
    </a>
  </div>
</div>`

func TestParse_FullMessage(t *testing.T) {
	p := New(time.UTC)
	got, ok := p.ParseFragment(fullMessage)
	if !ok {
		t.Fatal("expected a record")
	}

	want := archive.Message{
		TS:         "1700000000.000100",
		UserID:     "U0123ABC",
		UserName:   "Ada Lovelace",
		Text:       "Ship it\ntoday",
		ThreadTS:   "1700000000.000100",
		ReplyCount: 5,
		Reactions: []archive.Reaction{
			{Emoji: "tada", Count: 3},
			{Emoji: "eyes", Count: 1},
		},
		Attachments: []archive.Attachment{
			{Title: "Release notes"},
			{Type: "file", Name: "build.log"},
			{Type: "image", Name: "screenshot.png"},
		},
		MessageDate: "2023-11-14",
		MessageTime: "22:13:20",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_TimestampCascade(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "item key",
			html: `<div data-item-key="1700000001.000001"></div>`,
			want: "1700000001.000001",
		},
		{
			name: "msg ts attribute",
			html: `<div data-item-key="divider-2023" data-msg-ts="1700000002.000002"></div>`,
			want: "1700000002.000002",
		},
		{
			name: "element id",
			html: `<div id="message-list_1700000003.000003"></div>`,
			want: "1700000003.000003",
		},
		{
			name: "nested data-ts",
			html: `<div><a class="c-timestamp" data-ts="1700000004.000004"></a></div>`,
			want: "1700000004.000004",
		},
		{
			name: "permalink fallback",
			html: `<div><a class="c-timestamp" href="/archives/C9/p1700000005000005"></a></div>`,
			want: "1700000005.000005",
		},
		{
			name: "archives link anywhere",
			html: `<div><a href="https://x.slack.com/archives/C9/p1700000006000006">link</a></div>`,
			want: "1700000006.000006",
		},
	}

	p := New(time.UTC)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.ParseFragment(tt.html)
			if !ok {
				t.Fatal("expected a record")
			}
			if got.TS != tt.want {
				t.Errorf("TS = %q, want %q", got.TS, tt.want)
			}
		})
	}
}

func TestParse_ThreadTSCascade(t *testing.T) {
	tests := []struct {
		name      string
		html      string
		wantTS    string
		wantReply bool
	}{
		{
			name:      "thread ts attribute",
			html:      `<div data-item-key="1700000100.000200" data-thread-ts="1700000000.000100"></div>`,
			wantTS:    "1700000000.000100",
			wantReply: true,
		},
		{
			name: "nested thread ts attribute",
			html: `<div data-item-key="1700000100.000200">
				<div data-thread-ts="1700000000.000100"></div></div>`,
			wantTS:    "1700000000.000100",
			wantReply: true,
		},
		{
			name: "timestamp link query",
			html: `<div data-item-key="1700000100.000200">
				<a class="c-timestamp" href="https://acme.slack.com/archives/C1/p1700000100000200?thread_ts=1700000000.000100&amp;cid=C1"></a></div>`,
			wantTS:    "1700000000.000100",
			wantReply: true,
		},
		{
			name: "archives link query",
			html: `<div data-item-key="1700000100.000200">
				<a href="/archives/C1/p1700000100000200?cid=C1&amp;thread_ts=1700000000.000100"></a></div>`,
			wantTS:    "1700000000.000100",
			wantReply: true,
		},
		{
			name:   "root with replies",
			html:   `<div data-item-key="1700000000.000100"><span class="c-message__reply_count">2 replies</span></div>`,
			wantTS: "1700000000.000100",
		},
		{
			name:   "root carrying its own thread ts",
			html:   `<div data-item-key="1700000000.000100" data-thread-ts="1700000000.000100"></div>`,
			wantTS: "1700000000.000100",
		},
		{
			name: "plain permalink",
			html: `<div data-item-key="1700000100.000200">
				<a class="c-timestamp" href="https://acme.slack.com/archives/C1/p1700000100000200"></a></div>`,
		},
	}
	p := New(time.UTC)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.ParseFragment(tt.html)
			if !ok {
				t.Fatal("expected a record")
			}
			if got.ThreadTS != tt.wantTS {
				t.Errorf("ThreadTS = %q, want %q", got.ThreadTS, tt.wantTS)
			}
			if got.IsReply != tt.wantReply {
				t.Errorf("IsReply = %v, want %v", got.IsReply, tt.wantReply)
			}
		})
	}
}

func TestParse_ReplyKeepsOwnTimestamp(t *testing.T) {
	p := New(time.UTC)
	got, ok := p.ParseFragment(`<div class="c-message_kit__message">
		<a class="c-timestamp" href="https://acme.slack.com/archives/C1/p1700000100000200?thread_ts=1700000000.000100"></a></div>`)
	if !ok {
		t.Fatal("expected a record")
	}
	if got.TS != "1700000100.000200" || got.ThreadTS != "1700000000.000100" {
		t.Errorf("TS/ThreadTS = %q/%q, want 1700000100.000200/1700000000.000100", got.TS, got.ThreadTS)
	}
}

func TestParse_NoTimestampIsUnparseable(t *testing.T) {
	p := New(time.UTC)
	for _, html := range []string{
		`<div class="c-message_kit__message"><div data-qa="message-text">orphan</div></div>`,
		`<div data-item-key="divider-1"><span>Today</span></div>`,
	} {
		if m, ok := p.ParseFragment(html); ok {
			t.Errorf("ParseFragment(%q) = %+v, want unparseable", html, m)
		}
	}
}

func TestParse_ToleratesMissingFields(t *testing.T) {
	p := New(time.UTC)
	got, ok := p.ParseFragment(`<div data-item-key="1700000000.000100"><div class="c-message__body">bare</div></div>`)
	if !ok {
		t.Fatal("expected a record")
	}
	if got.UserID != "" || got.UserName != "" {
		t.Errorf("author = %q/%q, want empty", got.UserID, got.UserName)
	}
	if got.Text != "bare" {
		t.Errorf("Text = %q, want bare", got.Text)
	}
	if got.ThreadTS != "" || got.ReplyCount != 0 {
		t.Errorf("thread fields set on plain message: %+v", got)
	}
}

func TestParse_LocalizedReplyCount(t *testing.T) {
	p := New(time.UTC)
	got, ok := p.ParseFragment(`<div data-item-key="1700000000.000100">
		<span data-qa="reply_bar_count">12 回复</span></div>`)
	if !ok {
		t.Fatal("expected a record")
	}
	if got.ReplyCount != 12 {
		t.Errorf("ReplyCount = %d, want 12", got.ReplyCount)
	}
}

func TestParse_UserIDFromSenderLink(t *testing.T) {
	p := New(time.UTC)
	got, _ := p.ParseFragment(`<div data-item-key="1700000000.000100">
		<a class="c-message__sender_link" href="/team/U777">Grace</a>
		<span class="c-message__sender">Grace</span></div>`)
	if got.UserID != "U777" || got.UserName != "Grace" {
		t.Errorf("author = %q/%q, want U777/Grace", got.UserID, got.UserName)
	}
}

func TestParse_RecoversFromPanickingStrategy(t *testing.T) {
	p := New(time.UTC)
	p.Text = Cascade{func(*goquery.Selection) (string, bool) { panic("boom") }}

	if _, ok := p.ParseFragment(`<div data-item-key="1700000000.000100"></div>`); ok {
		t.Error("expected no record when a strategy panics")
	}
}

func TestParse_NilNode(t *testing.T) {
	if _, ok := New(time.UTC).Parse(nil); ok {
		t.Error("nil node should not parse")
	}
}

func TestParseAll_DropsUnparseable(t *testing.T) {
	p := New(time.UTC)
	got := p.ParseAll([]string{
		`<div data-item-key="1700000000.000100"></div>`,
		`<div>no ts</div>`,
		`<div data-item-key="1700000000.000200"></div>`,
	})
	if len(got) != 2 {
		t.Fatalf("ParseAll returned %d records, want 2", len(got))
	}
}

func TestCascade_FirstNonEmptyWins(t *testing.T) {
	node, err := Fragment(`<div a="" b="second" c="third"></div>`)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := Cascade{Attr("missing"), Attr("a"), Attr("b"), Attr("c")}.Resolve(node)
	if !ok || got != "second" {
		t.Errorf("Resolve = %q/%v, want second", got, ok)
	}
	if _, ok := (Cascade{}).Resolve(node); ok {
		t.Error("empty cascade should not resolve")
	}
}

func TestFragment_Empty(t *testing.T) {
	if _, err := Fragment("   "); err == nil || !strings.Contains(err.Error(), "no element") {
		t.Errorf("Fragment(blank) err = %v, want no element", err)
	}
}
