package ledes

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"billexact/internal/billing"
)

// FullFields is the canonical LEDES 1998B field order.
var FullFields = []string{
	"INVOICE_DATE",
	"INVOICE_NUMBER",
	"CLIENT_ID",
	"LAW_FIRM_MATTER_ID",
	"INVOICE_TOTAL",
	"BILLING_START_DATE",
	"BILLING_END_DATE",
	"INVOICE_DESCRIPTION",
	"LINE_ITEM_NUMBER",
	"EXP/FEE/INV_ADJ_TYPE",
	"LINE_ITEM_NUMBER_OF_UNITS",
	"LINE_ITEM_ADJUSTMENT_AMOUNT",
	"LINE_ITEM_TOTAL",
	"LINE_ITEM_DATE",
	"LINE_ITEM_TASK_CODE",
	"LINE_ITEM_EXPENSE_CODE",
	"LINE_ITEM_ACTIVITY_CODE",
	"TIMEKEEPER_ID",
	"LINE_ITEM_DESCRIPTION",
	"LAW_FIRM_ID",
	"LINE_ITEM_UNIT_COST",
	"TIMEKEEPER_NAME",
	"TIMEKEEPER_CLASSIFICATION",
	"CLIENT_MATTER_ID",
}

// FormatID is the first line of every LEDES 1998B file.
const FormatID = "LEDES1998B"

const lineEnd = "[]"

// Line is one data row keyed by field name.
type Line map[string]string

// Invoice describes a full-format invoice.
type Invoice struct {
	Number       string
	Date         billing.Date // defaults to BillingEnd
	BillingStart billing.Date
	BillingEnd   billing.Date
	Description  string // defaults to the matter description
	Matter       billing.Matter
	Timekeepers  map[string]billing.Timekeeper
}

// BuildLines computes the full-format rows for entries. Unit cost is the
// timekeeper's rate, or the entry's rate when the timekeeper has none; line
// totals are rounded units × unit cost.
func BuildLines(entries []billing.TimeEntry, inv Invoice) ([]Line, error) {
	invoiceDate := inv.Date
	if invoiceDate.IsZero() {
		invoiceDate = inv.BillingEnd
	}
	description := inv.Description
	if strings.TrimSpace(description) == "" {
		description = inv.Matter.Description
	}

	lines := make([]Line, 0, len(entries))
	total := decimal.Zero
	for i, e := range entries {
		if err := checkValue("duration", e.ID, e.DurationHours); err != nil {
			return nil, err
		}
		if err := checkValue("rate", e.ID, e.Rate); err != nil {
			return nil, err
		}
		tk, ok := inv.Timekeepers[e.TimekeeperID]
		if !ok {
			return nil, fmt.Errorf("%w: entry %s: unknown timekeeper %q", ErrValidation, e.ID, e.TimekeeperID)
		}
		if err := checkValue("timekeeper rate", e.ID, tk.Rate); err != nil {
			return nil, err
		}
		rate := tk.Rate
		if rate == 0 {
			rate = e.Rate
		}
		units := cents(decimal.NewFromFloat(e.DurationHours))
		cost := cents(decimal.NewFromFloat(rate))
		adjustment := decimal.Zero
		lineTotal := cents(units.Mul(cost).Add(adjustment))
		total = total.Add(lineTotal)

		lines = append(lines, Line{
			"INVOICE_DATE":                invoiceDate.Compact(),
			"INVOICE_NUMBER":              inv.Number,
			"CLIENT_ID":                   inv.Matter.ClientID,
			"LAW_FIRM_MATTER_ID":          inv.Matter.LawFirmMatterID,
			"BILLING_START_DATE":          inv.BillingStart.Compact(),
			"BILLING_END_DATE":            inv.BillingEnd.Compact(),
			"INVOICE_DESCRIPTION":         fieldText(description),
			"LINE_ITEM_NUMBER":            strconv.Itoa(i + 1),
			"EXP/FEE/INV_ADJ_TYPE":        FeeType,
			"LINE_ITEM_NUMBER_OF_UNITS":   money(units),
			"LINE_ITEM_ADJUSTMENT_AMOUNT": money(adjustment),
			"LINE_ITEM_TOTAL":             money(lineTotal),
			"LINE_ITEM_DATE":              e.WorkDate.Compact(),
			"LINE_ITEM_TASK_CODE":         e.TaskCode,
			"LINE_ITEM_EXPENSE_CODE":      "",
			"LINE_ITEM_ACTIVITY_CODE":     e.ActivityCode,
			"TIMEKEEPER_ID":               e.TimekeeperID,
			"LINE_ITEM_DESCRIPTION":       fieldText(e.Description),
			"LAW_FIRM_ID":                 inv.Matter.LawFirmID,
			"LINE_ITEM_UNIT_COST":         money(cost),
			"TIMEKEEPER_NAME":             fieldText(tk.Name),
			"TIMEKEEPER_CLASSIFICATION":   tk.Classification,
			"CLIENT_MATTER_ID":            inv.Matter.ClientMatterID,
		})
	}
	for _, line := range lines {
		line["INVOICE_TOTAL"] = money(total)
	}
	return lines, nil
}

// ExportFull renders and validates a 24-field LEDES 1998B invoice. Any
// validation problem aborts the export.
func ExportFull(entries []billing.TimeEntry, inv Invoice) ([]byte, error) {
	lines, err := BuildLines(entries, inv)
	if err != nil {
		return nil, err
	}
	if err := Validate(lines); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(FormatID)
	buf.WriteString(lineEnd)
	buf.WriteByte('\n')
	buf.WriteString(strings.Join(FullFields, "|"))
	buf.WriteString(lineEnd)
	buf.WriteByte('\n')
	values := make([]string, len(FullFields))
	for _, line := range lines {
		for i, field := range FullFields {
			values[i] = line[field]
		}
		buf.WriteString(strings.Join(values, "|"))
		buf.WriteString(lineEnd)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// fieldText keeps free text on one line and free of delimiters.
func fieldText(s string) string {
	s = strings.NewReplacer("|", " ", "[]", " ", "\r\n", " ", "\n", " ", "\r", " ").Replace(s)
	return strings.TrimSpace(s)
}
