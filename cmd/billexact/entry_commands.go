package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"billexact/internal/billing"
	"billexact/internal/categorize"
	"billexact/internal/store"
)

func newEntryCommand(ctx *commandContext) *cobra.Command {
	entryCmd := &cobra.Command{
		Use:   "entry",
		Short: "Manage time entries",
	}
	entryCmd.AddCommand(newEntryAddCommand(ctx))
	entryCmd.AddCommand(newEntryListCommand(ctx))
	entryCmd.AddCommand(newEntryCodesCommand(ctx))
	entryCmd.AddCommand(newEntryRecategorizeCommand(ctx))
	entryCmd.AddCommand(newEntryRemoveCommand(ctx))
	return entryCmd
}

func newEntryAddCommand(ctx *commandContext) *cobra.Command {
	var (
		date       string
		client     string
		matter     string
		timekeeper string
		hours      float64
		rate       float64
		task       string
		activity   string
		noAuto     bool
	)
	cmd := &cobra.Command{
		Use:   "add <description>",
		Short: "Record a manual time entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			workDate := billing.DateOf(time.Now())
			if date != "" {
				var err error
				if workDate, err = billing.ParseDate(date); err != nil {
					return fmt.Errorf("--date: %w", err)
				}
			}
			entry := billing.TimeEntry{
				WorkDate:      workDate,
				ClientID:      strings.TrimSpace(client),
				MatterID:      strings.TrimSpace(matter),
				TimekeeperID:  strings.TrimSpace(timekeeper),
				DurationHours: hours,
				Description:   args[0],
				Rate:          rate,
				Source:        billing.SourceManual,
			}
			if entry.TimekeeperID == "" {
				entry.TimekeeperID = cfg.Billing.DefaultTimekeeperID
			}

			return ctx.withStore(func(st *store.Store) error {
				if entry.Rate == 0 {
					entry.Rate = cfg.Billing.DefaultRate
					if tk, err := st.GetTimekeeper(cmd.Context(), entry.TimekeeperID); err == nil && tk.Rate > 0 {
						entry.Rate = tk.Rate
					}
				}
				if entry.ClientID == "" && entry.MatterID != "" {
					if m, err := st.GetMatter(cmd.Context(), entry.MatterID); err == nil {
						entry.ClientID = m.ClientID
					}
				}
				switch {
				case task != "" || activity != "":
					if err := entry.SetCodes(task, activity, 1.0); err != nil {
						return err
					}
				case !noAuto:
					source, err := ctx.ruleSource(cmd, st, false)
					if err != nil {
						return err
					}
					result, err := categorize.NewService(source).Categorize(cmd.Context(), entry.Description)
					if err != nil {
						return err
					}
					if err := result.Apply(&entry); err != nil {
						return err
					}
				}
				saved, err := st.InsertEntry(cmd.Context(), entry)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added entry %s (%s %s/%s)\n",
					saved.ID, strconv.FormatFloat(saved.DurationHours, 'f', -1, 64), codeOrDash(saved.TaskCode), codeOrDash(saved.ActivityCode))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Work date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&client, "client", "", "Client ID (defaults to the matter's client)")
	cmd.Flags().StringVar(&matter, "matter", "", "Client matter ID")
	cmd.Flags().StringVar(&timekeeper, "timekeeper", "", "Timekeeper ID")
	cmd.Flags().Float64Var(&hours, "hours", 0, "Duration in hours")
	cmd.Flags().Float64Var(&rate, "rate", 0, "Hourly rate (defaults to the timekeeper or configured rate)")
	cmd.Flags().StringVar(&task, "task", "", "UTBMS task code")
	cmd.Flags().StringVar(&activity, "activity", "", "UTBMS activity code")
	cmd.Flags().BoolVar(&noAuto, "no-categorize", false, "Do not suggest codes")
	return cmd
}

func newEntryListCommand(ctx *commandContext) *cobra.Command {
	var (
		filters       entryFlags
		all           bool
		uncategorized bool
		asJSON        bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List time entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := filters.filter()
			if err != nil {
				return err
			}
			filter.IncludeArchived = all
			filter.Uncategorized = uncategorized
			return ctx.withStore(func(st *store.Store) error {
				entries, err := st.ListEntries(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if asJSON {
					if entries == nil {
						entries = []billing.TimeEntry{}
					}
					return writeJSON(cmd, entries)
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{
						e.ID,
						e.WorkDate.String(),
						e.MatterID,
						strconv.FormatFloat(e.DurationHours, 'f', 2, 64),
						codeOrDash(e.TaskCode) + "/" + codeOrDash(e.ActivityCode),
						strconv.FormatFloat(e.Confidence, 'f', 2, 64),
						yesNo(e.Archived),
						e.Description,
					})
				}
				printTable(cmd.OutOrStdout(),
					[]string{"ID", "Date", "Matter", "Hours", "Codes", "Conf", "Billed", "Description"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight})
				return nil
			})
		},
	}
	filters.register(cmd)
	cmd.Flags().BoolVar(&all, "all", false, "Include archived entries")
	cmd.Flags().BoolVar(&uncategorized, "uncategorized", false, "Only entries without codes")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	return cmd
}

func newEntryCodesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "codes <id> <task-code> <activity-code>",
		Short: "Set the UTBMS codes of an entry by hand",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				entry, err := st.GetEntry(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := entry.SetCodes(args[1], args[2], 1.0); err != nil {
					return err
				}
				if err := st.UpdateEntry(cmd.Context(), entry); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Entry %s coded %s/%s\n", entry.ID, entry.TaskCode, entry.ActivityCode)
				return nil
			})
		},
	}
}

func newEntryRecategorizeCommand(ctx *commandContext) *cobra.Command {
	var filters entryFlags
	cmd := &cobra.Command{
		Use:   "recategorize",
		Short: "Suggest codes for unbilled entries that have none",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := filters.filter()
			if err != nil {
				return err
			}
			filter.Uncategorized = true
			return ctx.withStore(func(st *store.Store) error {
				entries, err := st.ListEntries(cmd.Context(), filter)
				if err != nil {
					return err
				}
				svc, _ := ctx.categorizer(st)
				categorizer, err := svc.Categorizer(cmd.Context())
				if err != nil {
					return err
				}
				updated := 0
				for _, entry := range entries {
					result := categorizer.Categorize(entry.Description)
					if !result.Categorized() {
						continue
					}
					if err := result.Apply(&entry); err != nil {
						return err
					}
					if err := st.UpdateEntry(cmd.Context(), entry); err != nil {
						return err
					}
					updated++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Categorized %d of %d entries\n", updated, len(entries))
				return nil
			})
		},
	}
	filters.register(cmd)
	return cmd
}

func newEntryRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete an unbilled entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				err := st.DeleteEntry(cmd.Context(), args[0])
				if errors.Is(err, store.ErrArchived) {
					return fmt.Errorf("%w; billed entries are kept for the invoice record", err)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed entry %s\n", args[0])
				return nil
			})
		},
	}
}

func codeOrDash(code string) string {
	if code == "" {
		return "-"
	}
	return code
}
