package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/skimmer/internal/archive"
	"github.com/zulandar/skimmer/internal/config"
	"github.com/zulandar/skimmer/internal/db"
	"github.com/zulandar/skimmer/internal/persist"
)

// execCmd runs the root command with args and returns its combined output.
func execCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// writeConfig writes a sqlite-backed config into a temp dir and returns
// its path and the database path.
func writeConfig(t *testing.T) (configPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "skimmer.db")
	content := fmt.Sprintf(`channel_url: https://example.slack.com/archives/C0123
timezone: UTC
store:
  driver: sqlite
  path: %s
export:
  dir: %s
`, dbPath, filepath.Join(dir, "exports"))
	configPath = filepath.Join(dir, "skimmer.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath, dbPath
}

// seedArchive saves msgs as the persisted archive.
func seedArchive(t *testing.T, dbPath string, msgs ...archive.Message) {
	t.Helper()
	gormDB, err := db.Open(config.StoreConfig{Driver: "sqlite", Path: dbPath})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, _ := gormDB.DB()
	defer sqlDB.Close()

	store := archive.NewStore()
	for _, m := range msgs {
		store.Insert(m)
	}
	snap := persist.Capture(store, persist.ExtractorState{ChannelID: "C0123", ChannelName: "general"},
		time.Date(2023, 11, 14, 22, 30, 0, 0, time.UTC))
	if err := persist.Save(context.Background(), persist.NewGormKV(gormDB), snap); err != nil {
		t.Fatalf("save: %v", err)
	}
}

func sampleMessages() []archive.Message {
	return []archive.Message{
		{TS: "1700000000.000100", UserID: "U1", UserName: "ada", Text: "hello", ReplyCount: 1, ThreadTS: "1700000000.000100"},
		{TS: "1700000060.000200", UserID: "U2", UserName: "grace", Text: "hi there", ThreadTS: "1700000000.000100", IsReply: true},
		{TS: "1700000120.000300", UserID: "U1", UserName: "ada", Text: "standalone"},
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := execCmd(t, "", "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out, "skim dev") {
		t.Errorf("expected output to contain 'skim dev', got: %s", out)
	}
	if !strings.Contains(out, "commit: none") {
		t.Errorf("expected output to contain 'commit: none', got: %s", out)
	}
}

func TestVersionCmdWithCustomValues(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	Version, Commit, Date = "1.0.0", "abc123", "2026-01-01"
	defer func() { Version, Commit, Date = origVersion, origCommit, origDate }()

	out, err := execCmd(t, "", "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	for _, want := range []string{"skim 1.0.0", "commit: abc123", "built: 2026-01-01"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got: %s", want, out)
		}
	}
}

func TestRootCmdHelp(t *testing.T) {
	out, err := execCmd(t, "", "--help")
	if err != nil {
		t.Fatalf("help command failed: %v", err)
	}
	for _, sub := range []string{"run", "serve", "export", "status", "clear", "db", "version"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected help output to list %q, got: %s", sub, out)
		}
	}
}

func TestExecute_ReturnsExitCode(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"no-such-command"})
	if code := execute(cmd); code != 1 {
		t.Errorf("execute = %d, want 1", code)
	}
}

func TestMissingConfig(t *testing.T) {
	for _, sub := range []string{"status", "export", "clear", "run", "serve"} {
		t.Run(sub, func(t *testing.T) {
			_, err := execCmd(t, "", sub, "--config", "/nonexistent/skimmer.yaml")
			if err == nil {
				t.Fatal("expected error for missing config")
			}
			if !strings.Contains(err.Error(), "load config") {
				t.Errorf("error = %v, want load config failure", err)
			}
		})
	}
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{45230, "45,230"},
		{1234567, "1,234,567"},
		{-1500, "-1,500"},
	}
	for _, tt := range tests {
		if got := formatCount(tt.in); got != tt.want {
			t.Errorf("formatCount(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
