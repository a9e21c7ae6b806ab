package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/zulandar/skimmer/internal/browser"
	"github.com/zulandar/skimmer/internal/config"
	"github.com/zulandar/skimmer/internal/db"
	"github.com/zulandar/skimmer/internal/events"
	"github.com/zulandar/skimmer/internal/notify"
	"github.com/zulandar/skimmer/internal/notify/discord"
	"github.com/zulandar/skimmer/internal/notify/slack"
	"github.com/zulandar/skimmer/internal/persist"
	"github.com/zulandar/skimmer/internal/schedule"
	"github.com/zulandar/skimmer/internal/session"
	"gorm.io/gorm"
)

const defaultConfigPath = "skimmer.yaml"

func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Open(cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	return cfg, gormDB, nil
}

// settingsFromConfig maps the extract section onto session settings.
func settingsFromConfig(cfg *config.Config) session.Settings {
	s := session.DefaultSettings()
	s.ScrollDelaySeconds = cfg.Extract.ScrollDelaySeconds
	s.AutoSaveInterval = cfg.Extract.AutoSaveInterval
	s.TimeRangeFrom = cfg.Extract.TimeRangeFrom
	s.TimeRangeTo = cfg.Extract.TimeRangeTo
	if cfg.Extract.IncludeThreads != nil {
		s.IncludeThreads = *cfg.Extract.IncludeThreads
	}
	return s
}

// newNotifier builds a notifier for the configured chat targets. It returns
// nil when none is configured.
func newNotifier(cfg *config.Config) (*notify.Notifier, error) {
	var senders []notify.Sender
	if t := cfg.Notify.Slack; t.Enabled() {
		s, err := slack.New(slack.Opts{BotToken: t.BotToken, ChannelID: t.ChannelID})
		if err != nil {
			return nil, err
		}
		senders = append(senders, s)
	}
	if t := cfg.Notify.Discord; t.Enabled() {
		s, err := discord.New(discord.Opts{BotToken: t.BotToken, ChannelID: t.ChannelID})
		if err != nil {
			return nil, err
		}
		senders = append(senders, s)
	}
	if len(senders) == 0 {
		return nil, nil
	}
	return notify.New(notify.Opts{Senders: senders, Channel: cfg.ChannelURL}), nil
}

// openBrowser starts or attaches to the configured browser on channelURL.
func openBrowser(ctx context.Context, cfg *config.Config, channelURL string) (*browser.Chrome, error) {
	return browser.NewChrome(ctx, browser.ChromeOpts{
		RemoteURL:   cfg.Browser.RemoteURL,
		ExecPath:    cfg.Browser.ExecPath,
		UserDataDir: cfg.Browser.UserDataDir,
		UserAgent:   cfg.Browser.UserAgent,
		Headless:    cfg.Browser.Headless,
		URL:         channelURL,
	})
}

// app is the wiring shared by run and serve.
type app struct {
	cfg      *config.Config
	sess     *session.Session
	notifier *notify.Notifier
	runs     *persist.GormRuns
}

// newApp builds a session over page. extra emitters receive every signal
// alongside the log and the notifier.
func newApp(cfg *config.Config, gormDB *gorm.DB, page browser.Page, extra ...events.Emitter) (*app, error) {
	notifier, err := newNotifier(cfg)
	if err != nil {
		return nil, err
	}

	sinks := events.Multi{events.LogSink{Logger: log.Logger}}
	if notifier != nil {
		sinks = append(sinks, notifier)
	}
	sinks = append(sinks, extra...)

	runs := persist.NewGormRuns(gormDB)
	sess := session.New(session.Opts{
		Page:     page,
		KV:       persist.NewGormKV(gormDB),
		Events:   sinks,
		Location: cfg.Location(),
		Runs:     runs,
	})
	return &app{cfg: cfg, sess: sess, notifier: notifier, runs: runs}, nil
}

// background starts the notifier and the scheduled autosave. Both stop
// with ctx; wait blocks until pending notifications are delivered.
func (a *app) background(ctx context.Context) (wait func()) {
	if a.notifier != nil {
		go a.notifier.Run(ctx)
	}
	if a.cfg.AutosaveCron != "" {
		sched, err := schedule.Parse(a.cfg.AutosaveCron)
		if err == nil {
			go schedule.Run(ctx, sched, func(ctx context.Context) {
				if !a.sess.State().Running {
					return
				}
				if err := a.sess.Flush(ctx); err != nil {
					log.Warn().Err(err).Msg("scheduled autosave failed")
				}
			})
		}
	}
	return func() {
		if a.notifier != nil {
			a.notifier.Wait()
		}
	}
}
