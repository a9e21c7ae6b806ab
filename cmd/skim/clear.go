package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/skimmer/internal/persist"
)

func newClearCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the saved archive",
		Long:  "Removes every saved message, the thread index and the session metadata. Run history is kept.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClear(cmd, configPath, yes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to skimmer config file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runClear(cmd *cobra.Command, configPath string, yes bool) error {
	out := cmd.OutOrStdout()

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	if !yes {
		fmt.Fprint(out, "Delete the saved archive? This cannot be undone. [y/N] ")
		reader := bufio.NewReader(cmd.InOrStdin())
		answer, _ := reader.ReadString('\n')
		answer = strings.TrimSpace(strings.ToLower(answer))
		if answer != "y" && answer != "yes" {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	if err := persist.Clear(context.Background(), persist.NewGormKV(gormDB)); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	fmt.Fprintln(out, "Archive cleared.")
	return nil
}
