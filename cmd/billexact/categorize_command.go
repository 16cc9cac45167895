package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"billexact/internal/categorize"
	"billexact/internal/keywords"
	"billexact/internal/logging"
	"billexact/internal/store"
)

func newCategorizeCommand(ctx *commandContext) *cobra.Command {
	var jsonInput bool
	var useSeeds bool

	cmd := &cobra.Command{
		Use:   "categorize [text]",
		Short: "Suggest UTBMS task and activity codes for a description",
		Long: "Categorize free text against the keyword and override rules.\n" +
			"With --json the request is read from stdin as {\"text\": ...} and the result is printed as JSON.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var text string
			if jsonInput {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read request: %w", err)
				}
				text, err = categorize.DecodeRequest(data)
				if err != nil {
					return err
				}
			} else {
				if len(args) == 0 {
					return errors.New("text argument is required (or use --json)")
				}
				text = args[0]
			}

			return ctx.withStore(func(st *store.Store) error {
				source, err := ctx.ruleSource(cmd, st, useSeeds)
				if err != nil {
					return err
				}
				result, err := categorize.NewService(source).Categorize(cmd.Context(), text)
				if err != nil {
					return err
				}
				if jsonInput {
					return writeJSON(cmd, result)
				}
				printCategorization(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonInput, "json", false, "Read a JSON request from stdin and print JSON")
	cmd.Flags().BoolVar(&useSeeds, "seeds", false, "Use the seed file instead of the database rules")
	return cmd
}

// ruleSource picks the database rules, falling back to the seed file when
// the database has none or when forced.
func (c *commandContext) ruleSource(cmd *cobra.Command, st *store.Store, forceSeeds bool) (keywords.Source, error) {
	if !forceSeeds {
		_, source := c.categorizer(st)
		snap, err := source.Snapshot(cmd.Context())
		if err != nil {
			return nil, err
		}
		if snap.Len() > 0 {
			return source, nil
		}
		c.loggerValue().Debug("no rules in database; using seed file",
			logging.String(logging.FieldEventType, "categorize_seed_fallback"))
	}
	seeds, err := keywords.LoadSeeds(c.configValue().Paths.SeedsPath)
	if err != nil {
		return nil, err
	}
	snap, err := seeds.Snapshot()
	if err != nil {
		return nil, err
	}
	return keywords.Static(snap), nil
}

func printCategorization(out io.Writer, r categorize.Result) {
	if !r.Categorized() {
		fmt.Fprintln(out, "Uncategorized")
	} else {
		fmt.Fprintf(out, "Task code:     %s\n", r.TaskCode)
		fmt.Fprintf(out, "Activity code: %s\n", r.ActivityCode)
		fmt.Fprintf(out, "Confidence:    %.2f\n", r.Confidence)
		fmt.Fprintf(out, "Matched rule:  %s\n", r.MatchedRule)
	}
	if len(r.Rationale) > 0 {
		fmt.Fprintf(out, "Rationale:     %s\n", strings.Join(r.Rationale, "; "))
	}
}
