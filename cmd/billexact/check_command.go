package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"billexact/internal/billing"
	"billexact/internal/compliance"
	"billexact/internal/store"
)

// errComplianceFailed signals that --strict found error-severity issues.
var errComplianceFailed = errors.New("compliance check found errors")

type entryFlags struct {
	client     string
	matter     string
	timekeeper string
	from       string
	to         string
}

func (f *entryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.client, "client", "", "Client ID")
	cmd.Flags().StringVar(&f.matter, "matter", "", "Client matter ID")
	cmd.Flags().StringVar(&f.timekeeper, "timekeeper", "", "Timekeeper ID")
	cmd.Flags().StringVar(&f.from, "from", "", "First work date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "Last work date (YYYY-MM-DD)")
}

func (f *entryFlags) filter() (store.EntryFilter, error) {
	from, err := billing.ParseDate(f.from)
	if err != nil {
		return store.EntryFilter{}, fmt.Errorf("--from: %w", err)
	}
	to, err := billing.ParseDate(f.to)
	if err != nil {
		return store.EntryFilter{}, fmt.Errorf("--to: %w", err)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return store.EntryFilter{}, errors.New("--to is before --from")
	}
	return store.EntryFilter{
		ClientID:     strings.TrimSpace(f.client),
		MatterID:     strings.TrimSpace(f.matter),
		TimekeeperID: strings.TrimSpace(f.timekeeper),
		From:         from,
		To:           to,
	}, nil
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var (
		filters   entryFlags
		rulesPath string
		policyDir string
		inputPath string
		asJSON    bool
		strict    bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run compliance rules over time entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			opts := compliance.Options{
				RulesPath: cfg.Paths.RulesPath,
				PolicyDir: cfg.Paths.PolicyDir,
				ClientID:  strings.TrimSpace(filters.client),
			}
			if rulesPath != "" {
				opts.RulesPath = rulesPath
				opts.PolicyDir = ""
			}
			if policyDir != "" {
				opts.PolicyDir = policyDir
			}

			batch, err := loadCheckEntries(ctx, cmd, inputPath, &filters)
			if err != nil {
				return err
			}

			logger := ctx.loggerValue()
			engine := compliance.NewEngine(compliance.LoadOrDefault(opts, logger), logger)
			report := engine.RunBatch(batch)

			if asJSON {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				printReport(cmd.OutOrStdout(), report, len(batch.Entries)+len(batch.Rejected))
			}
			if strict {
				for _, issue := range report.Issues {
					if issue.Severity == compliance.SeverityError {
						return errComplianceFailed
					}
				}
			}
			return nil
		},
	}

	filters.register(cmd)
	cmd.Flags().StringVar(&rulesPath, "rules", "", "Rule configuration file (YAML or JSON)")
	cmd.Flags().StringVar(&policyDir, "policy", "", "Policy directory with _base.yml and client overlays")
	cmd.Flags().StringVar(&inputPath, "input", "", "Check entries from a JSON file instead of the database")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when any error-severity issue is found")
	return cmd
}

func loadCheckEntries(ctx *commandContext, cmd *cobra.Command, inputPath string, filters *entryFlags) (compliance.Batch, error) {
	if inputPath != "" {
		var data []byte
		var err error
		if inputPath == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(inputPath)
		}
		if err != nil {
			return compliance.Batch{}, fmt.Errorf("read entries: %w", err)
		}
		return compliance.DecodeBatch(data)
	}
	filter, err := filters.filter()
	if err != nil {
		return compliance.Batch{}, err
	}
	var entries []billing.TimeEntry
	err = ctx.withStore(func(st *store.Store) error {
		entries, err = st.ListEntries(cmd.Context(), filter)
		return err
	})
	return compliance.Batch{Entries: entries}, err
}

func printReport(out io.Writer, report compliance.Report, total int) {
	for _, warning := range report.ConfigWarnings {
		fmt.Fprintf(out, "Config warning: %s\n", warning)
	}
	if len(report.Issues) == 0 {
		fmt.Fprintf(out, "No issues found in %d entries\n", total)
	} else {
		rows := make([][]string, 0, len(report.Issues))
		for i, issue := range report.Issues {
			entry := issue.EntryID
			if issue.BatchLevel() {
				entry = "(batch)"
			}
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				issue.RuleID,
				entry,
				string(issue.Severity),
				issue.Message,
				issue.Suggestion,
			})
		}
		printTable(out, []string{"#", "Rule", "Entry", "Severity", "Message", "Suggestion"}, rows,
			[]columnAlignment{alignRight})
	}
	for _, skipped := range report.Skipped {
		fmt.Fprintf(out, "Skipped entry %d (%s): %s\n", skipped.Index, skipped.EntryID, skipped.Reason)
	}
	for _, ruleErr := range report.RuleErrors {
		fmt.Fprintf(out, "Rule %s failed: %s\n", ruleErr.RuleID, ruleErr.Error)
	}
}
