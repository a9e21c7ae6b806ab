package main

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/zulandar/skimmer/internal/config"
	"github.com/zulandar/skimmer/internal/session"
)

func parseConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return cfg
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := parseConfig(t, `
extract:
  scroll_delay_seconds: 1.5
  include_threads: false
  auto_save_interval: 250
  time_range_from: "2023-11-01"
  time_range_to: "2023-11-02 12:00"
`)
	want := session.Settings{
		ScrollDelaySeconds: 1.5,
		IncludeThreads:     false,
		AutoSaveInterval:   250,
		TimeRangeFrom:      "2023-11-01",
		TimeRangeTo:        "2023-11-02 12:00",
	}
	if diff := cmp.Diff(want, settingsFromConfig(cfg)); diff != "" {
		t.Errorf("settings (-want +got):\n%s", diff)
	}
}

func TestSettingsFromConfig_Defaults(t *testing.T) {
	cfg := parseConfig(t, "channel_url: https://example.slack.com/archives/C1\n")
	if diff := cmp.Diff(session.DefaultSettings(), settingsFromConfig(cfg)); diff != "" {
		t.Errorf("settings (-want +got):\n%s", diff)
	}
}

func TestRunFlags_Apply(t *testing.T) {
	var flags runFlags
	cmd := &cobra.Command{Use: "run"}
	cmd.Flags().StringVar(&flags.from, "from", "", "")
	cmd.Flags().StringVar(&flags.to, "to", "", "")
	cmd.Flags().Float64Var(&flags.delay, "delay", 0, "")
	cmd.Flags().BoolVar(&flags.noThreads, "no-threads", false, "")
	cmd.Flags().IntVar(&flags.autoSave, "auto-save", 0, "")
	if err := cmd.ParseFlags([]string{"--from", "2023-11-01", "--delay", "0", "--no-threads"}); err != nil {
		t.Fatal(err)
	}

	base := session.DefaultSettings()
	base.TimeRangeTo = "2023-12-01"
	got := flags.apply(cmd, base)
	want := session.Settings{
		ScrollDelaySeconds: 0,
		IncludeThreads:     false,
		AutoSaveInterval:   100,
		TimeRangeFrom:      "2023-11-01",
		TimeRangeTo:        "2023-12-01",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("settings (-want +got):\n%s", diff)
	}
}

func TestNewNotifier(t *testing.T) {
	none := parseConfig(t, "timezone: UTC\n")
	n, err := newNotifier(none)
	if err != nil || n != nil {
		t.Fatalf("newNotifier without targets = %v, %v; want nil, nil", n, err)
	}

	both := parseConfig(t, `
notify:
  slack:
    bot_token: xoxb-test
    channel_id: C1
  discord:
    bot_token: abc
    channel_id: "123"
`)
	n, err = newNotifier(both)
	if err != nil {
		t.Fatalf("newNotifier: %v", err)
	}
	if n == nil {
		t.Fatal("expected a notifier")
	}
}

func TestNewLogger_NonTerminalWritesJSON(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := newLogger(buf, false)
	logger.Info().Str("phase", "scrolling").Msg("tick")
	out := buf.String()
	if !bytes.HasPrefix(buf.Bytes(), []byte("{")) {
		t.Errorf("expected JSON output, got %q", out)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"phase":"scrolling"`)) {
		t.Errorf("missing field in %q", out)
	}
}

func TestSetupLogging_Level(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)
	setupLogging(new(bytes.Buffer), true, false)
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Errorf("level = %v, want debug", zerolog.GlobalLevel())
	}
	setupLogging(new(bytes.Buffer), false, true)
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("level = %v, want info", zerolog.GlobalLevel())
	}
}
