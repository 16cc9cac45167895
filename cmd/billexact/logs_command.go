package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"billexact/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		event  string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent entries from the billexact log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			path := cfg.LogFilePath()
			if path == "" {
				return fmt.Errorf("paths.log_dir is not configured")
			}
			opts := logs.Options{Lines: lines, Match: event}

			out := cmd.OutOrStdout()
			tail, offset, err := logs.Last(path, opts)
			if err != nil {
				return err
			}
			for _, line := range tail {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}

			followCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return logs.Follow(followCtx, path, offset, opts, logs.DefaultPollInterval, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().StringVar(&event, "event", "", "Only show lines mentioning this event type or text")
	return cmd
}
