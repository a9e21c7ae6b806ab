package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/skimmer/internal/archive"
	"github.com/zulandar/skimmer/internal/models"
	"github.com/zulandar/skimmer/internal/persist"
)

func newStatusCmd() *cobra.Command {
	var (
		configPath string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the saved archive and recent runs",
		Long:  "Displays what the archive holds (messages, threads, users, last save) and the most recent extraction runs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, configPath, limit)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to skimmer config file")
	cmd.Flags().IntVarP(&limit, "runs", "n", 5, "number of recent runs to list")
	return cmd
}

func runStatus(cmd *cobra.Command, configPath string, limit int) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	store := archive.NewStore()
	st, err := persist.Restore(ctx, persist.NewGormKV(gormDB), store, cfg.Location())
	if err != nil {
		return fmt.Errorf("load archive: %w", err)
	}
	runs, err := persist.NewGormRuns(gormDB).Recent(ctx, limit)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), formatStatus(store, st, runs))
	return nil
}

// formatStatus renders the archive summary and the run table.
func formatStatus(store *archive.Store, st persist.ExtractorState, runs []models.Run) string {
	var b strings.Builder

	channel := st.ChannelName
	if channel == "" {
		channel = st.ChannelID
	}
	if channel == "" {
		channel = "-"
	}
	fmt.Fprintf(&b, "Channel:   %s\n", channel)
	fmt.Fprintf(&b, "Messages:  %s\n", formatCount(store.Len()))
	fmt.Fprintf(&b, "Threads:   %s\n", formatCount(store.Threads().Len()))
	fmt.Fprintf(&b, "Users:     %s\n", formatCount(len(store.Users())))
	if st.TimeRange != nil && st.TimeRange.Active() {
		fmt.Fprintf(&b, "Range:     %s .. %s\n", orDash(st.TimeRange.FromTS), orDash(st.TimeRange.ToTS))
	}
	if st.LastSaveTime.IsZero() {
		fmt.Fprintf(&b, "Last save: never\n")
	} else {
		fmt.Fprintf(&b, "Last save: %s\n", st.LastSaveTime.Local().Format(time.DateTime))
	}

	b.WriteString("\nRecent runs:\n")
	if len(runs) == 0 {
		b.WriteString("  (none)\n")
		return b.String()
	}
	writeRuns(&b, runs)
	return b.String()
}

func writeRuns(w io.Writer, runs []models.Run) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  RUN\tSTARTED\tPHASE\tMESSAGES\tTHREADS\tDURATION")
	for _, r := range runs {
		dur := "-"
		if r.FinishedAt != nil {
			dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		phase := r.Phase
		if r.Error != "" {
			phase += " (" + r.Error + ")"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t%s\n",
			id, r.StartedAt.Local().Format(time.DateTime), phase,
			formatCount(r.Messages), formatCount(r.Threads), dur)
	}
	tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
