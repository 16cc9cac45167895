package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"billexact/internal/billing"
	"billexact/internal/store"
)

func newBindingCommand(ctx *commandContext) *cobra.Command {
	bindingCmd := &cobra.Command{
		Use:   "binding",
		Short: "Route captured activity to matters or mark it do-not-bill",
	}

	matterCmd := &cobra.Command{
		Use:   "matter <pattern> <client-matter-id>",
		Short: "Bind activity matching pattern to a matter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return addBinding(ctx, cmd, billing.Binding{Kind: billing.BindingMatter, Pattern: args[0], Target: args[1]})
		},
	}

	skipCmd := &cobra.Command{
		Use:   "do-not-bill <pattern>",
		Short: "Drop activity matching pattern during ingestion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return addBinding(ctx, cmd, billing.Binding{Kind: billing.BindingDoNotBill, Pattern: args[0]})
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List bindings in evaluation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				bindings, err := st.ListBindings(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(bindings))
				for _, b := range bindings {
					rows = append(rows, []string{strconv.FormatInt(b.ID, 10), string(b.Kind), b.Pattern, b.Target})
				}
				printTable(cmd.OutOrStdout(), []string{"ID", "Kind", "Pattern", "Target"}, rows,
					[]columnAlignment{alignRight})
				return nil
			})
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a binding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				if err := st.DeleteBinding(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed binding %d\n", id)
				return nil
			})
		},
	}

	bindingCmd.AddCommand(matterCmd, skipCmd, listCmd, removeCmd)
	return bindingCmd
}

func addBinding(ctx *commandContext, cmd *cobra.Command, b billing.Binding) error {
	return ctx.withStore(func(st *store.Store) error {
		saved, err := st.AddBinding(cmd.Context(), b)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added binding %d (%s %q)\n", saved.ID, saved.Kind, saved.Pattern)
		return nil
	})
}

func newMatterCommand(ctx *commandContext) *cobra.Command {
	matterCmd := &cobra.Command{
		Use:   "matter",
		Short: "Manage matters",
	}

	var m billing.Matter
	var start, end string
	addCmd := &cobra.Command{
		Use:   "add <client-id> <client-matter-id>",
		Short: "Create or update a matter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			m.ClientID, m.ClientMatterID = args[0], args[1]
			if m.BillingStart, err = billing.ParseDate(start); err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			if m.BillingEnd, err = billing.ParseDate(end); err != nil {
				return fmt.Errorf("--end: %w", err)
			}
			if m.LawFirmID == "" {
				m.LawFirmID = ctx.configValue().Billing.LawFirmID
			}
			return ctx.withStore(func(st *store.Store) error {
				if err := st.UpsertMatter(cmd.Context(), m); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved matter %s\n", m.ClientMatterID)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&m.LawFirmMatterID, "firm-matter", "", "Law firm matter ID")
	addCmd.Flags().StringVar(&m.LawFirmID, "firm", "", "Law firm ID (defaults to billing.law_firm_id)")
	addCmd.Flags().StringVar(&m.Description, "description", "", "Matter description")
	addCmd.Flags().StringVar(&start, "start", "", "Billing period start (YYYY-MM-DD)")
	addCmd.Flags().StringVar(&end, "end", "", "Billing period end (YYYY-MM-DD)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List matters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				matters, err := st.ListMatters(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(matters))
				for _, m := range matters {
					rows = append(rows, []string{m.ClientID, m.ClientMatterID, m.LawFirmMatterID, m.Description,
						m.BillingStart.String(), m.BillingEnd.String()})
				}
				printTable(cmd.OutOrStdout(), []string{"Client", "Matter", "Firm Matter", "Description", "Start", "End"}, rows, nil)
				return nil
			})
		},
	}

	matterCmd.AddCommand(addCmd, listCmd)
	return matterCmd
}

func newTimekeeperCommand(ctx *commandContext) *cobra.Command {
	tkCmd := &cobra.Command{
		Use:   "timekeeper",
		Short: "Manage timekeepers",
	}

	var tk billing.Timekeeper
	addCmd := &cobra.Command{
		Use:   "add <id> <name>",
		Short: "Create or update a timekeeper",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tk.ID, tk.Name = args[0], args[1]
			return ctx.withStore(func(st *store.Store) error {
				if err := st.UpsertTimekeeper(cmd.Context(), tk); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved timekeeper %s\n", tk.ID)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&tk.Classification, "class", "", "Classification such as PT, AS or PL")
	addCmd.Flags().Float64Var(&tk.Rate, "rate", 0, "Hourly rate")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List timekeepers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				tks, err := st.ListTimekeepers(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(tks))
				for _, tk := range tks {
					rows = append(rows, []string{tk.ID, tk.Name, tk.Classification, strconv.FormatFloat(tk.Rate, 'f', 2, 64)})
				}
				printTable(cmd.OutOrStdout(), []string{"ID", "Name", "Class", "Rate"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight})
				return nil
			})
		},
	}

	tkCmd.AddCommand(addCmd, listCmd)
	return tkCmd
}
