package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"billexact/internal/preflight"
)

var errNotReady = errors.New("one or more readiness checks failed")

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check directories, database, rule files and ActivityWatch",
		RunE: func(cmd *cobra.Command, args []string) error {
			results := preflight.RunAll(cmd.Context(), ctx.configValue())

			out := cmd.OutOrStdout()
			if jsonOutput {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				colorize := isTerminal(out)
				for _, line := range renderSectionHeader("billexact status", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, r := range results {
					fmt.Fprintln(out, renderStatusLine(r.Name, resultKind(r), r.Detail, colorize))
				}
			}

			if preflight.Failed(results) {
				return errNotReady
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
