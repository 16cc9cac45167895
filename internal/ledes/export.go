package ledes

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"billexact/internal/billing"
)

// Header is the fixed column line of the 14-column export.
var Header = []string{
	"INVOICE_DATE",
	"CLIENT_ID",
	"LAW_FIRM_MATTER_ID",
	"INVOICE_NUMBER",
	"LINE_ITEM_NUMBER",
	"EXP/FEE/INV_ADJ_TYPE",
	"LINE_ITEM_DATE",
	"TIMEKEEPER_ID",
	"TASK_CODE",
	"ACTIVITY_CODE",
	"LINE_ITEM_UNITS",
	"LINE_ITEM_RATE",
	"LINE_ITEM_AMOUNT",
	"LINE_ITEM_DESCRIPTION",
}

// FeeType is the EXP/FEE/INV_ADJ_TYPE code for time entries.
const FeeType = "F"

// Params carries the invoice-level values shared by every line.
type Params struct {
	ClientID     string
	MatterID     string
	TimekeeperID string
	Rate         float64
	InvoiceID    string
	// InvoiceDate is left blank when zero.
	InvoiceDate billing.Date
	// BlankActivityCode emits an empty ACTIVITY_CODE column even for
	// categorized entries.
	BlankActivityCode bool
}

// Export renders entries in the supplied order, one line each, numbered from
// 1. A negative duration or rate aborts the export with ErrNegativeValue.
func Export(entries []billing.TimeEntry, p Params) ([]byte, error) {
	if err := checkValue("rate", "-", p.Rate); err != nil {
		return nil, err
	}
	rate := decimal.NewFromFloat(p.Rate)

	var buf bytes.Buffer
	buf.WriteString(strings.Join(Header, "|"))
	buf.WriteByte('\n')

	cols := make([]string, len(Header))
	for i, e := range entries {
		if err := checkValue("duration", e.ID, e.DurationHours); err != nil {
			return nil, err
		}
		activity := e.ActivityCode
		if p.BlankActivityCode {
			activity = ""
		}
		hours := decimal.NewFromFloat(e.DurationHours)
		cols[0] = p.InvoiceDate.String()
		cols[1] = p.ClientID
		cols[2] = p.MatterID
		cols[3] = p.InvoiceID
		cols[4] = strconv.Itoa(i + 1)
		cols[5] = FeeType
		cols[6] = e.WorkDate.String()
		cols[7] = p.TimekeeperID
		cols[8] = e.TaskCode
		cols[9] = activity
		cols[10] = money(hours)
		cols[11] = money(rate)
		cols[12] = money(cents(hours.Mul(rate)))
		cols[13] = strings.ReplaceAll(e.Description, "|", "/")
		buf.WriteString(strings.Join(cols, "|"))
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
