// Package slack posts notices to a Slack channel through the Web API.
package slack

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/skimmer/internal/notify"
)

// maxRetries is the max number of retries for rate-limited API calls.
const maxRetries = 3

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Sender implements notify.Sender for Slack.
type Sender struct {
	client    slackClient
	channelID string
}

// Opts holds parameters for creating a Slack Sender.
type Opts struct {
	BotToken  string // xoxb-... Slack bot token
	ChannelID string
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// New creates a Slack Sender.
func New(opts Opts) (*Sender, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("slack: channel id is required")
	}
	s := &Sender{client: opts.Client, channelID: opts.ChannelID}
	if s.client == nil {
		s.client = slackapi.New(opts.BotToken)
	}
	return s, nil
}

func (s *Sender) Name() string { return "slack" }

// Send posts n as a message with one attachment.
func (s *Sender) Send(ctx context.Context, n notify.Notice) error {
	options := []slackapi.MsgOption{
		slackapi.MsgOptionText(n.Title, false),
		slackapi.MsgOptionAttachments(noticeToAttachment(n)),
	}
	err := retryOnRateLimit(ctx, func() error {
		_, _, postErr := s.client.PostMessage(s.channelID, options...)
		return postErr
	})
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// noticeToAttachment converts a Notice to a Slack Attachment.
func noticeToAttachment(n notify.Notice) slackapi.Attachment {
	att := slackapi.Attachment{
		Title:    n.Title,
		Text:     n.Body,
		Color:    n.Color,
		Fallback: n.Title,
	}
	for _, f := range n.Fields {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: f.Short,
		})
	}
	return att
}

// retryOnRateLimit calls fn and retries with backoff on Slack rate limit errors.
// It respects context cancellation and the RetryAfter duration from Slack.
func retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) || attempt == maxRetries {
			return err
		}

		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * time.Second
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
