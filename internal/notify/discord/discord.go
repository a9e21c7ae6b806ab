// Package discord posts notices to a Discord channel through the REST API.
package discord

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
	"github.com/zulandar/skimmer/internal/notify"
)

const (
	// maxRetries is the max number of retries for rate-limited API calls.
	maxRetries = 3
	// baseBackoff is the initial backoff after a rate limit.
	baseBackoff = 2 * time.Second
	// maxBackoff caps the backoff.
	maxBackoff = 30 * time.Second
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Sender implements notify.Sender for Discord.
type Sender struct {
	sess        session
	channelID   string
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// Opts holds parameters for creating a Discord Sender.
type Opts struct {
	BotToken  string
	ChannelID string
	// For testing: inject a mock session instead of the real API.
	Session session
}

// New creates a Discord Sender. No gateway connection is opened; sends go
// over REST.
func New(opts Opts) (*Sender, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("discord: channel id is required")
	}
	s := &Sender{
		sess:        opts.Session,
		channelID:   opts.ChannelID,
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
	}
	if s.sess == nil {
		dg, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		s.sess = dg
	}
	return s, nil
}

func (s *Sender) Name() string { return "discord" }

// Send posts n as a message with one embed.
func (s *Sender) Send(ctx context.Context, n notify.Notice) error {
	data := &discordgo.MessageSend{
		Content: n.Title,
		Embeds:  []*discordgo.MessageEmbed{noticeToEmbed(n)},
	}
	err := s.retryOnRateLimit(ctx, func() error {
		_, sendErr := s.sess.ChannelMessageSendComplex(s.channelID, data, discordgo.WithContext(ctx))
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("discord: send message: %w", err)
	}
	return nil
}

// noticeToEmbed converts a Notice to a Discord Embed.
func noticeToEmbed(n notify.Notice) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       n.Title,
		Description: n.Body,
	}
	if n.Color != "" {
		embed.Color = parseHexColor(n.Color)
	}
	for _, f := range n.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Short,
		})
	}
	return embed
}

// parseHexColor converts a hex color string (e.g. "#36a64f") to an int.
func parseHexColor(hex string) int {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	var color int
	for _, c := range hex {
		color <<= 4
		switch {
		case c >= '0' && c <= '9':
			color |= int(c - '0')
		case c >= 'a' && c <= 'f':
			color |= int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			color |= int(c-'A') + 10
		}
	}
	return color
}

// retryOnRateLimit calls fn and retries with exponential backoff on Discord
// rate limit errors. It respects context cancellation.
func (s *Sender) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var restErr *discordgo.RESTError
		if !errors.As(err, &restErr) || restErr.Response == nil ||
			restErr.Response.StatusCode != http.StatusTooManyRequests || attempt == maxRetries {
			return err
		}

		wait := min(time.Duration(math.Pow(2, float64(attempt)))*s.baseBackoff, s.maxBackoff)
		log.Warn().Int("attempt", attempt+1).Dur("wait", wait).Msg("discord: rate limited")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
