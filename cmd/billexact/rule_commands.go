package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"billexact/internal/keywords"
	"billexact/internal/store"
)

func newKeywordCommand(ctx *commandContext) *cobra.Command {
	keywordCmd := &cobra.Command{
		Use:   "keyword",
		Short: "Manage keyword categorization rules",
	}

	var boost float64
	addCmd := &cobra.Command{
		Use:   "add <phrase> <task-code> <activity-code>",
		Short: "Add a keyword rule, or update the rule with the same phrase",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				_, source := ctx.categorizer(st)
				rule, err := source.UpsertKeyword(cmd.Context(), keywords.KeywordRule{
					Phrase:          args[0],
					TaskCode:        args[1],
					ActivityCode:    args[2],
					ConfidenceBoost: boost,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%q -> %s/%s, boost %.2f)\n",
					rule.RuleID(), rule.Phrase, rule.TaskCode, rule.ActivityCode, rule.ConfidenceBoost)
				return nil
			})
		},
	}
	addCmd.Flags().Float64Var(&boost, "boost", keywords.DefaultConfidenceBoost, "Confidence boost between 0 and 1")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List keyword rules in evaluation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				rules, err := st.ListKeywords(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(rules))
				for _, r := range rules {
					rows = append(rows, []string{
						strconv.FormatInt(r.ID, 10), r.Phrase, r.TaskCode, r.ActivityCode,
						strconv.FormatFloat(r.ConfidenceBoost, 'f', 2, 64),
					})
				}
				printTable(cmd.OutOrStdout(), []string{"ID", "Phrase", "Task", "Activity", "Boost"}, rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight})
				return nil
			})
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a keyword rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				_, source := ctx.categorizer(st)
				if err := source.DeleteKeyword(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed keyword:%d\n", id)
				return nil
			})
		},
	}

	keywordCmd.AddCommand(addCmd, listCmd, removeCmd)
	return keywordCmd
}

func newOverrideCommand(ctx *commandContext) *cobra.Command {
	overrideCmd := &cobra.Command{
		Use:   "override",
		Short: "Manage override rules, which always win over keywords",
	}

	var notes string
	addCmd := &cobra.Command{
		Use:   "add <phrase> <task-code> <activity-code>",
		Short: "Add an override, or update the override with the same phrase",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				_, source := ctx.categorizer(st)
				rule, err := source.UpsertOverride(cmd.Context(), keywords.OverrideRule{
					Phrase:       args[0],
					TaskCode:     args[1],
					ActivityCode: args[2],
					Notes:        notes,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%q -> %s/%s)\n",
					rule.RuleID(), rule.Phrase, rule.TaskCode, rule.ActivityCode)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&notes, "notes", "", "Free-form notes")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List override rules in evaluation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				rules, err := st.ListOverrides(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(rules))
				for _, r := range rules {
					rows = append(rows, []string{strconv.FormatInt(r.ID, 10), r.Phrase, r.TaskCode, r.ActivityCode, r.Notes})
				}
				printTable(cmd.OutOrStdout(), []string{"ID", "Phrase", "Task", "Activity", "Notes"}, rows,
					[]columnAlignment{alignRight})
				return nil
			})
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete an override rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				_, source := ctx.categorizer(st)
				if err := source.DeleteOverride(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed override:%d\n", id)
				return nil
			})
		},
	}

	overrideCmd.AddCommand(addCmd, listCmd, removeCmd)
	return overrideCmd
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
