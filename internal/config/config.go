// Package config provides YAML-based configuration loading for skimmer.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/zulandar/skimmer/internal/schedule"
	"github.com/zulandar/skimmer/internal/timestamp"
	"gopkg.in/yaml.v3"
)

// Config is the top-level skimmer configuration, loaded from skimmer.yaml.
type Config struct {
	ChannelURL   string          `yaml:"channel_url"`
	Timezone     string          `yaml:"timezone"`
	Browser      BrowserConfig   `yaml:"browser"`
	Store        StoreConfig     `yaml:"store"`
	Extract      ExtractConfig   `yaml:"extract"`
	Dashboard    DashboardConfig `yaml:"dashboard"`
	Export       ExportConfig    `yaml:"export"`
	AutosaveCron string          `yaml:"autosave_cron"`
	Notify       NotifyConfig    `yaml:"notify"`
}

// BrowserConfig controls how the chat client is reached.
type BrowserConfig struct {
	RemoteURL   string `yaml:"remote_url"`
	Headless    bool   `yaml:"headless"`
	UserDataDir string `yaml:"user_data_dir"`
	UserAgent   string `yaml:"user_agent"`
	ExecPath    string `yaml:"exec_path"`
}

// StoreConfig selects the database behind the persisted key-value store.
type StoreConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// ExtractConfig holds the session settings used by `skim run`.
type ExtractConfig struct {
	ScrollDelaySeconds float64 `yaml:"scroll_delay_seconds"`
	IncludeThreads     *bool   `yaml:"include_threads"`
	AutoSaveInterval   int     `yaml:"auto_save_interval"`
	TimeRangeFrom      string  `yaml:"time_range_from"`
	TimeRangeTo        string  `yaml:"time_range_to"`
}

// DashboardConfig configures the local control surface.
type DashboardConfig struct {
	Port int `yaml:"port"`
}

// ExportConfig configures where exports are written.
type ExportConfig struct {
	Dir string `yaml:"dir"`
}

// NotifyConfig holds optional chat notification targets.
type NotifyConfig struct {
	Slack   ChatTarget `yaml:"slack"`
	Discord ChatTarget `yaml:"discord"`
}

// ChatTarget is a bot token plus the channel it posts to.
type ChatTarget struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// Enabled reports whether the target is configured.
func (t ChatTarget) Enabled() bool {
	return t.BotToken != ""
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		c.Store.Path = ".skimmer/skimmer.db"
	}
	if c.Store.Driver == "mysql" {
		if c.Store.Host == "" {
			c.Store.Host = "127.0.0.1"
		}
		if c.Store.Port == 0 {
			c.Store.Port = 3306
		}
		if c.Store.User == "" {
			c.Store.User = "root"
		}
	}
	if c.Extract.ScrollDelaySeconds == 0 {
		c.Extract.ScrollDelaySeconds = 2
	}
	if c.Extract.IncludeThreads == nil {
		on := true
		c.Extract.IncludeThreads = &on
	}
	if c.Extract.AutoSaveInterval == 0 {
		c.Extract.AutoSaveInterval = 100
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8765
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "exports"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		errs = append(errs, fmt.Sprintf("timezone %q is not a known location", c.Timezone))
		loc = time.Local
	}
	switch c.Store.Driver {
	case "sqlite":
	case "mysql":
		if c.Store.Database == "" {
			errs = append(errs, "store.database is required for the mysql driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be sqlite or mysql", c.Store.Driver))
	}
	if c.Extract.ScrollDelaySeconds < 0 {
		errs = append(errs, "extract.scroll_delay_seconds must not be negative")
	}
	if c.Extract.AutoSaveInterval < 0 {
		errs = append(errs, "extract.auto_save_interval must not be negative")
	}
	for field, v := range map[string]string{
		"extract.time_range_from": c.Extract.TimeRangeFrom,
		"extract.time_range_to":   c.Extract.TimeRangeTo,
	} {
		if v == "" {
			continue
		}
		if _, err := timestamp.ParseLocal(v, loc); err != nil {
			errs = append(errs, fmt.Sprintf("%s %q is not a date or datetime", field, v))
		}
	}
	if c.Dashboard.Port < 1 || c.Dashboard.Port > 65535 {
		errs = append(errs, fmt.Sprintf("dashboard.port %d is out of range", c.Dashboard.Port))
	}
	if c.AutosaveCron != "" {
		if _, err := schedule.Parse(c.AutosaveCron); err != nil {
			errs = append(errs, fmt.Sprintf("autosave_cron %q is not a 5-field cron expression", c.AutosaveCron))
		}
	}
	if c.Notify.Slack.Enabled() && c.Notify.Slack.ChannelID == "" {
		errs = append(errs, "notify.slack.channel_id is required with a bot token")
	}
	if c.Notify.Discord.Enabled() && c.Notify.Discord.ChannelID == "" {
		errs = append(errs, "notify.discord.channel_id is required with a bot token")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Location returns the configured time zone. Parse has already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
