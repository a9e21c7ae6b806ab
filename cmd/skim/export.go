package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/skimmer/internal/archive"
	"github.com/zulandar/skimmer/internal/export"
	"github.com/zulandar/skimmer/internal/persist"
)

func newExportCmd() *cobra.Command {
	var (
		configPath string
		formats    []string
		outDir     string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the saved archive",
		Long:  "Writes the saved archive as JSON, CSV or an analysis document. No browser is needed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, configPath, formats, outDir)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to skimmer config file")
	cmd.Flags().StringSliceVarP(&formats, "format", "f", []string{"json"}, "formats to write (json, csv, analysis)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (overrides export.dir)")
	return cmd
}

func runExport(cmd *cobra.Command, configPath string, formats []string, outDir string) error {
	parsed := make([]export.Format, 0, len(formats))
	for _, name := range formats {
		f, err := export.ParseFormat(name)
		if err != nil {
			return err
		}
		parsed = append(parsed, f)
	}

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if outDir == "" {
		outDir = cfg.Export.Dir
	}

	ctx := context.Background()
	store := archive.NewStore()
	st, err := persist.Restore(ctx, persist.NewGormKV(gormDB), store, cfg.Location())
	if err != nil {
		return fmt.Errorf("load archive: %w", err)
	}
	if store.Len() == 0 {
		return fmt.Errorf("nothing to export: the archive is empty")
	}

	out := cmd.OutOrStdout()
	for _, f := range parsed {
		path, err := export.Dir{Path: outDir}.Save(f, export.Source{
			Store:       store,
			ChannelID:   st.ChannelID,
			ChannelName: st.ChannelName,
			TimeRange:   st.TimeRange,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s (%s messages)\n", path, formatCount(store.Len()))
	}
	return nil
}
