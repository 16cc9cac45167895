package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"billexact/internal/billing"
	"billexact/internal/keywords"
	"billexact/internal/store"
)

func newSeedCommand(ctx *commandContext) *cobra.Command {
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Load keyword rules, matters or timekeepers into the database",
	}
	seedCmd.AddCommand(newSeedKeywordsCommand(ctx))
	seedCmd.AddCommand(newSeedMattersCommand(ctx))
	seedCmd.AddCommand(newSeedTimekeepersCommand(ctx))
	return seedCmd
}

func newSeedKeywordsCommand(ctx *commandContext) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "keywords",
		Short: "Upsert keyword and override rules from a seed file",
		Long:  "Reads --file, then paths.seeds_path (or UTBMS_SEEDS), then the built-in seeds.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = ctx.configValue().Paths.SeedsPath
			}
			seeds, err := keywords.LoadSeeds(path)
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				nk, no, err := st.ImportSeeds(cmd.Context(), seeds)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d keyword rules and %d overrides\n", nk, no)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "Seed file (JSON or YAML)")
	return cmd
}

func newSeedMattersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "matters <file>",
		Short: "Upsert matters from a JSON array",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var matters []billing.Matter
			if err := readJSONFile(args[0], &matters); err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				for i, m := range matters {
					if err := st.UpsertMatter(cmd.Context(), m); err != nil {
						return fmt.Errorf("matters[%d]: %w", i, err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d matters\n", len(matters))
				return nil
			})
		},
	}
}

func newSeedTimekeepersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "timekeepers <file>",
		Short: "Upsert timekeepers from a JSON array",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var timekeepers []billing.Timekeeper
			if err := readJSONFile(args[0], &timekeepers); err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				for i, tk := range timekeepers {
					if err := st.UpsertTimekeeper(cmd.Context(), tk); err != nil {
						return fmt.Errorf("timekeepers[%d]: %w", i, err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d timekeepers\n", len(timekeepers))
				return nil
			})
		},
	}
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
