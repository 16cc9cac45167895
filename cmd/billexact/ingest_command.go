package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"billexact/internal/ingest"
	"billexact/internal/store"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var (
		since      string
		until      string
		eventsFile string
		client     string
		matter     string
		timekeeper string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Import window activity as time entries",
		Long: "Fetch window events from ActivityWatch (or read them from --file), drop short\n" +
			"and ignored-app focus, merge contiguous work, apply bindings, categorize,\n" +
			"and store new time entries. Re-running over the same window is safe.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			logger := ctx.loggerValue()

			var activities []ingest.Activity
			if eventsFile != "" {
				var err error
				activities, err = ingest.ReadEventsFile(eventsFile)
				if err != nil {
					return err
				}
			} else {
				now := time.Now().UTC()
				start, err := parseInstant(since, now, now.Add(-24*time.Hour))
				if err != nil {
					return fmt.Errorf("--since: %w", err)
				}
				end, err := parseInstant(until, now, now)
				if err != nil {
					return fmt.Errorf("--until: %w", err)
				}
				if !end.After(start) {
					return fmt.Errorf("--until must be after --since")
				}
				aw, err := ingest.NewClient(cfg.Ingest.ActivityWatchURL,
					time.Duration(cfg.Ingest.RequestTimeout)*time.Second, logger)
				if err != nil {
					return err
				}
				activities, err = aw.Fetch(cmd.Context(), start, end)
				if err != nil {
					return err
				}
			}

			return ctx.withStore(func(st *store.Store) error {
				categorizer, _ := ctx.categorizer(st)
				svc := ingest.NewService(cfg, st, categorizer, logger)
				summary, err := svc.Ingest(cmd.Context(), activities, ingest.Request{
					ClientID:     strings.TrimSpace(client),
					MatterID:     strings.TrimSpace(matter),
					TimekeeperID: strings.TrimSpace(timekeeper),
				})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, summary)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Received %d events, %d after focus filter, %d after merge\n",
					summary.Received, summary.Focused, summary.Merged)
				fmt.Fprintf(out, "Inserted %d entries (%d duplicates, %d do-not-bill, %d failed)\n",
					summary.Inserted, summary.Duplicates, summary.DoNotBill, summary.Failed)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "Start of the window: RFC 3339 time, YYYY-MM-DD, or a duration ago such as 8h (default 24h)")
	cmd.Flags().StringVar(&until, "until", "", "End of the window (default now)")
	cmd.Flags().StringVar(&eventsFile, "file", "", "Read events from a JSON file instead of ActivityWatch")
	cmd.Flags().StringVar(&client, "client", "", "Client ID for unbound activity")
	cmd.Flags().StringVar(&matter, "matter", "", "Matter ID for unbound activity")
	cmd.Flags().StringVar(&timekeeper, "timekeeper", "", "Timekeeper ID (defaults to billing.default_timekeeper_id)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")
	return cmd
}

// parseInstant accepts an RFC 3339 time, a date, or a duration before now.
func parseInstant(value string, now, fallback time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		return now.Add(-d), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized time %q", value)
	}
	return t.UTC(), nil
}
