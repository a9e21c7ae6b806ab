package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/skimmer/internal/export"
	"github.com/zulandar/skimmer/internal/session"
)

// runFlags are the command-line overrides of the extract section.
type runFlags struct {
	url       string
	from      string
	to        string
	delay     float64
	noThreads bool
	autoSave  int
	formats   []string
}

func newRunCmd() *cobra.Command {
	var (
		configPath string
		flags      runFlags
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Extract a channel in the foreground",
		Long: `Opens the configured channel in the browser, extracts its history and
thread replies, and saves the archive. Ctrl-C stops the run after a final save.

With --export the archive is written to the export directory when the run ends.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, configPath, flags)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to skimmer config file")
	cmd.Flags().StringVar(&flags.url, "url", "", "channel URL (overrides channel_url)")
	cmd.Flags().StringVar(&flags.from, "from", "", "oldest local date or datetime to extract")
	cmd.Flags().StringVar(&flags.to, "to", "", "newest local date or datetime to extract; a bare date includes the whole day")
	cmd.Flags().Float64Var(&flags.delay, "delay", 0, "seconds between scroll steps")
	cmd.Flags().BoolVar(&flags.noThreads, "no-threads", false, "skip thread replies")
	cmd.Flags().IntVar(&flags.autoSave, "auto-save", 0, "save after this many new messages")
	cmd.Flags().StringSliceVar(&flags.formats, "export", nil, "export formats to write when done (json, csv, analysis)")
	return cmd
}

// apply overlays the flags the user set onto s.
func (f runFlags) apply(cmd *cobra.Command, s session.Settings) session.Settings {
	if cmd.Flags().Changed("from") {
		s.TimeRangeFrom = f.from
	}
	if cmd.Flags().Changed("to") {
		s.TimeRangeTo = f.to
	}
	if cmd.Flags().Changed("delay") {
		s.ScrollDelaySeconds = f.delay
	}
	if f.noThreads {
		s.IncludeThreads = false
	}
	if cmd.Flags().Changed("auto-save") {
		s.AutoSaveInterval = f.autoSave
	}
	return s
}

func runExtract(cmd *cobra.Command, configPath string, flags runFlags) error {
	out := cmd.OutOrStdout()

	formats := make([]export.Format, 0, len(flags.formats))
	for _, name := range flags.formats {
		f, err := export.ParseFormat(name)
		if err != nil {
			return err
		}
		formats = append(formats, f)
	}

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	settings := flags.apply(cmd, settingsFromConfig(cfg))

	channelURL := cfg.ChannelURL
	if flags.url != "" {
		channelURL = flags.url
	}
	if channelURL == "" && cfg.Browser.RemoteURL == "" {
		return fmt.Errorf("no channel: set channel_url, pass --url, or attach with browser.remote_url")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	page, err := openBrowser(ctx, cfg, channelURL)
	if err != nil {
		return err
	}
	defer page.Close()

	a, err := newApp(cfg, gormDB, page)
	if err != nil {
		return err
	}
	wait := a.background(ctx)

	_ = a.sess.Restore(ctx)
	if err := a.sess.Start(ctx, settings); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-a.sess.Done():
	case sig := <-sigCh:
		fmt.Fprintf(out, "\nReceived %s, stopping after a final save...\n", sig)
		stopCtx, stopCancel := context.WithTimeout(ctx, time.Minute)
		err := a.sess.Stop(stopCtx)
		stopCancel()
		if err != nil {
			return fmt.Errorf("stop: %w", err)
		}
	}

	st := a.sess.State()
	fmt.Fprintf(out, "Run %s %s: %s messages, %s threads, %d users\n",
		st.RunID, st.Phase, formatCount(st.Messages), formatCount(st.Threads), st.Users)

	for _, f := range formats {
		path, err := export.Dir{Path: cfg.Export.Dir}.Save(f, export.Source{
			Store:       a.sess.Store(),
			ChannelID:   st.ChannelID,
			ChannelName: st.ChannelName,
			TimeRange:   st.ActiveTimeRange,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s\n", path)
	}

	cancel()
	wait()

	if st.Phase == session.PhaseError {
		return fmt.Errorf("extraction failed: %s", st.LastError)
	}
	return nil
}
