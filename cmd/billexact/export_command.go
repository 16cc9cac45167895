package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"billexact/internal/billing"
	"billexact/internal/config"
	"billexact/internal/ledes"
	"billexact/internal/logging"
	"billexact/internal/store"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var (
		filters      entryFlags
		invoice      string
		invoiceDate  string
		format       string
		rate         float64
		description  string
		outputPath   string
		archive      bool
		blankActCode bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a LEDES 1998B invoice for a matter",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			matterID := strings.TrimSpace(filters.matter)
			if matterID == "" {
				return errors.New("--matter is required")
			}
			invoice = strings.TrimSpace(invoice)
			if invoice == "" {
				return errors.New("--invoice is required")
			}
			if format == "" {
				format = cfg.LEDES.Format
			}
			format = strings.ToLower(strings.TrimSpace(format))
			if format != config.LEDESFormatMinimum && format != config.LEDESFormatFull {
				return fmt.Errorf("--format must be %q or %q", config.LEDESFormatMinimum, config.LEDESFormatFull)
			}
			invDate, err := billing.ParseDate(invoiceDate)
			if err != nil {
				return fmt.Errorf("--invoice-date: %w", err)
			}
			filter, err := filters.filter()
			if err != nil {
				return err
			}

			return ctx.withStore(func(st *store.Store) error {
				matter, err := st.GetMatter(cmd.Context(), matterID)
				switch {
				case errors.Is(err, store.ErrNotFound) && format == config.LEDESFormatMinimum:
					matter = billing.Matter{ClientMatterID: matterID, ClientID: filter.ClientID}
				case err != nil:
					return err
				}
				if filter.From.IsZero() {
					filter.From = matter.BillingStart
				}
				if filter.To.IsZero() {
					filter.To = matter.BillingEnd
				}

				entries, err := st.ListEntries(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "No unbilled entries for matter %s; writing a header-only invoice\n", matterID)
				}

				var data []byte
				if format == config.LEDESFormatFull {
					data, err = exportFull(cmd, st, entries, matter, ledes.Invoice{
						Number:       invoice,
						Date:         invDate,
						BillingStart: filter.From,
						BillingEnd:   filter.To,
						Description:  description,
					})
				} else {
					data, err = exportMinimum(cmd, st, cfg, entries, matter, ledes.Params{
						TimekeeperID:      strings.TrimSpace(filters.timekeeper),
						Rate:              rate,
						InvoiceID:         invoice,
						InvoiceDate:       invDate,
						BlankActivityCode: blankActCode || cfg.LEDES.BlankActivityCode,
					})
				}
				if err != nil {
					return err
				}

				target := outputPath
				if target == "-" {
					if _, err := cmd.OutOrStdout().Write(data); err != nil {
						return err
					}
				} else {
					if target == "" {
						target = filepath.Join(cfg.Paths.ExportDir, ledes.FileName(matterID, invoice))
					}
					if err := ledes.WriteFile(target, data); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d line items to %s\n", len(entries), target)
				}

				ctx.loggerValue().Info("invoice exported", logging.Args(
					logging.String(logging.FieldEventType, "ledes_export"),
					logging.String(logging.FieldMatterID, matterID),
					logging.String("invoice", invoice),
					logging.String("format", format),
					logging.Int("lines", len(entries)),
				)...)

				if !archive || len(entries) == 0 {
					return nil
				}
				ids := make([]string, len(entries))
				for i, e := range entries {
					ids[i] = e.ID
				}
				n, err := st.ArchiveEntries(cmd.Context(), ids, invoice)
				if err != nil {
					return fmt.Errorf("archive exported entries: %w", err)
				}
				if target != "-" {
					fmt.Fprintf(cmd.OutOrStdout(), "Archived %d entries under invoice %s\n", n, invoice)
				}
				return nil
			})
		},
	}

	filters.register(cmd)
	cmd.Flags().StringVar(&invoice, "invoice", "", "Invoice number")
	cmd.Flags().StringVar(&invoiceDate, "invoice-date", "", "Invoice date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&format, "format", "", "LEDES layout: minimum or full (defaults to config)")
	cmd.Flags().Float64Var(&rate, "rate", 0, "Hourly rate for the minimum layout (defaults to the timekeeper or configured rate)")
	cmd.Flags().StringVar(&description, "description", "", "Invoice description for the full layout")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file, or - for stdout (defaults to the export directory)")
	cmd.Flags().BoolVar(&archive, "archive", false, "Archive exported entries under the invoice number")
	cmd.Flags().BoolVar(&blankActCode, "blank-activity-code", false, "Leave ACTIVITY_CODE empty")
	return cmd
}

func exportMinimum(cmd *cobra.Command, st *store.Store, cfg *config.Config, entries []billing.TimeEntry, matter billing.Matter, p ledes.Params) ([]byte, error) {
	p.ClientID = matter.ClientID
	p.MatterID = matter.LawFirmMatterID
	if p.MatterID == "" {
		p.MatterID = matter.ClientMatterID
	}
	if p.TimekeeperID == "" {
		p.TimekeeperID = cfg.Billing.DefaultTimekeeperID
	}
	if p.Rate == 0 {
		p.Rate = cfg.Billing.DefaultRate
		if p.TimekeeperID != "" {
			tk, err := st.GetTimekeeper(cmd.Context(), p.TimekeeperID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return nil, err
			}
			if err == nil && tk.Rate > 0 {
				p.Rate = tk.Rate
			}
		}
	}
	return ledes.Export(entries, p)
}

func exportFull(cmd *cobra.Command, st *store.Store, entries []billing.TimeEntry, matter billing.Matter, inv ledes.Invoice) ([]byte, error) {
	timekeepers, err := st.ListTimekeepers(cmd.Context())
	if err != nil {
		return nil, err
	}
	inv.Matter = matter
	inv.Timekeepers = make(map[string]billing.Timekeeper, len(timekeepers))
	for _, tk := range timekeepers {
		inv.Timekeepers[tk.ID] = tk
	}
	return ledes.ExportFull(entries, inv)
}
