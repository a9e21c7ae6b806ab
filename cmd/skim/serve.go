package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/zulandar/skimmer/internal/dashboard"
	"github.com/zulandar/skimmer/internal/events"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
		url        string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Open the channel and serve the control API",
		Long: `Opens the configured channel in the browser and serves the local control API:
start, pause, resume, stop and clear commands, the session state, a live
event stream and archive downloads.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port, url)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to skimmer config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides dashboard.port)")
	cmd.Flags().StringVar(&url, "url", "", "channel URL (overrides channel_url)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int, url string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if port == 0 {
		port = cfg.Dashboard.Port
	}
	channelURL := cfg.ChannelURL
	if url != "" {
		channelURL = url
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	page, err := openBrowser(ctx, cfg, channelURL)
	if err != nil {
		return err
	}
	defer page.Close()

	hub := events.NewHub(64)
	a, err := newApp(cfg, gormDB, page, hub)
	if err != nil {
		return err
	}
	wait := a.background(ctx)
	_ = a.sess.Restore(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	err = dashboard.Start(ctx, dashboard.StartOpts{
		Session:  a.sess,
		Hub:      hub,
		Runs:     a.runs,
		Defaults: settingsFromConfig(cfg),
		Port:     port,
		Out:      cmd.OutOrStdout(),
	})

	if a.sess.State().Running {
		stopCtx, stopCancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
		if stopErr := a.sess.Stop(stopCtx); stopErr != nil {
			log.Warn().Err(stopErr).Msg("stop on shutdown")
		}
		stopCancel()
	}
	cancel()
	wait()
	return err
}
