package ledes_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"billexact/internal/billing"
	"billexact/internal/ledes"
)

var params = ledes.Params{
	ClientID:     "ACME",
	MatterID:     "M-100",
	TimekeeperID: "TK1",
	Rate:         250.00,
	InvoiceID:    "INV-7",
}

const header = "INVOICE_DATE|CLIENT_ID|LAW_FIRM_MATTER_ID|INVOICE_NUMBER|LINE_ITEM_NUMBER|EXP/FEE/INV_ADJ_TYPE|LINE_ITEM_DATE|TIMEKEEPER_ID|TASK_CODE|ACTIVITY_CODE|LINE_ITEM_UNITS|LINE_ITEM_RATE|LINE_ITEM_AMOUNT|LINE_ITEM_DESCRIPTION"

func TestExportSingleEntry(t *testing.T) {
	entries := []billing.TimeEntry{{
		ID:            "e1",
		WorkDate:      billing.NewDate(2025, 8, 1),
		DurationHours: 1.25,
		Description:   "Draft motion | review",
		TaskCode:      "L250",
		ActivityCode:  "A103",
	}}
	out, err := ledes.Export(entries, params)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	lines := strings.Split(string(out), "\n")
	if len(lines) != 3 || lines[2] != "" {
		t.Fatalf("expected header, one line, trailing newline; got %q", out)
	}
	if lines[0] != header {
		t.Fatalf("header = %q", lines[0])
	}
	cols := strings.Split(lines[1], "|")
	if len(cols) != 14 {
		t.Fatalf("expected 14 columns, got %d: %q", len(cols), lines[1])
	}
	want := []string{"", "ACME", "M-100", "INV-7", "1", "F", "2025-08-01", "TK1", "L250", "A103", "1.25", "250.00", "312.50", "Draft motion / review"}
	for i := range want {
		if cols[i] != want[i] {
			t.Fatalf("column %d = %q, want %q", i, cols[i], want[i])
		}
	}
}

func TestExportEmptyIsHeaderOnly(t *testing.T) {
	out, err := ledes.Export(nil, params)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if string(out) != header+"\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestExportIsIdempotent(t *testing.T) {
	entries := []billing.TimeEntry{
		{ID: "a", DurationHours: 0.3, Description: "Call with client re strategy"},
		{ID: "b", DurationHours: 2.1, Description: "Research", WorkDate: billing.NewDate(2025, 8, 2)},
	}
	first, err := ledes.Export(entries, params)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	second, err := ledes.Export(entries, params)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("exports differ")
	}
	if !strings.Contains(string(first), "|2|F|2025-08-02|") {
		t.Fatalf("line numbering or date wrong: %q", first)
	}
}

func TestExportRoundsHalfUp(t *testing.T) {
	tests := []struct {
		hours, rate float64
		units, amt  string
	}{
		{hours: 0.125, rate: 1.00, units: "0.13", amt: "0.13"},
		{hours: 1.005, rate: 100.00, units: "1.01", amt: "100.50"},
		{hours: 1.005, rate: 1.00, units: "1.01", amt: "1.01"},
		{hours: 0.1, rate: 0.05, units: "0.10", amt: "0.01"},
	}
	for _, tt := range tests {
		p := params
		p.Rate = tt.rate
		out, err := ledes.Export([]billing.TimeEntry{{ID: "x", DurationHours: tt.hours}}, p)
		if err != nil {
			t.Fatalf("Export: %v", err)
		}
		cols := strings.Split(strings.Split(string(out), "\n")[1], "|")
		if cols[10] != tt.units || cols[12] != tt.amt {
			t.Fatalf("%v × %v: units=%s amount=%s, want %s %s", tt.hours, tt.rate, cols[10], cols[12], tt.units, tt.amt)
		}
	}
}

func TestExportRejectsNegativeValues(t *testing.T) {
	if _, err := ledes.Export([]billing.TimeEntry{{ID: "x", DurationHours: -1}}, params); !errors.Is(err, ledes.ErrNegativeValue) {
		t.Fatalf("expected ErrNegativeValue for duration, got %v", err)
	}
	p := params
	p.Rate = -10
	if _, err := ledes.Export(nil, p); !errors.Is(err, ledes.ErrNegativeValue) {
		t.Fatalf("expected ErrNegativeValue for rate, got %v", err)
	}
}

func TestExportBlankActivityCode(t *testing.T) {
	p := params
	p.BlankActivityCode = true
	out, err := ledes.Export([]billing.TimeEntry{{ID: "x", DurationHours: 1, TaskCode: "L110", ActivityCode: "A101"}}, p)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	cols := strings.Split(strings.Split(string(out), "\n")[1], "|")
	if cols[8] != "L110" || cols[9] != "" {
		t.Fatalf("task=%q activity=%q", cols[8], cols[9])
	}
}

func fullInvoice() ledes.Invoice {
	return ledes.Invoice{
		Number:       "INV-9",
		BillingStart: billing.NewDate(2025, 8, 1),
		BillingEnd:   billing.NewDate(2025, 8, 31),
		Matter: billing.Matter{
			ClientID:        "ACME",
			ClientMatterID:  "ACME-LIT-1",
			LawFirmMatterID: "LF-42",
			LawFirmID:       "FIRM1",
			Description:     "Acme v. Widget | appeal",
		},
		Timekeepers: map[string]billing.Timekeeper{
			"TK1": {ID: "TK1", Name: "Alice Johnson", Classification: "PT", Rate: 300},
		},
	}
}

func TestExportFull(t *testing.T) {
	entries := []billing.TimeEntry{
		{ID: "a", TimekeeperID: "TK1", WorkDate: billing.NewDate(2025, 8, 4), DurationHours: 1.5, Description: "Draft reply brief", TaskCode: "L250", ActivityCode: "A103"},
		{ID: "b", TimekeeperID: "TK1", WorkDate: billing.NewDate(2025, 8, 5), DurationHours: 0.333, Description: "Call with\nclient"},
	}
	out, err := ledes.ExportFull(entries, fullInvoice())
	if err != nil {
		t.Fatalf("ExportFull: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(out), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %q", len(lines), out)
	}
	if lines[0] != "LEDES1998B[]" {
		t.Fatalf("format line = %q", lines[0])
	}
	if lines[1] != strings.Join(ledes.FullFields, "|")+"[]" {
		t.Fatalf("field line = %q", lines[1])
	}
	row := strings.Split(strings.TrimSuffix(lines[3], "[]"), "|")
	if len(row) != 24 {
		t.Fatalf("expected 24 fields, got %d", len(row))
	}
	field := func(name string) string {
		for i, f := range ledes.FullFields {
			if f == name {
				return row[i]
			}
		}
		t.Fatalf("unknown field %s", name)
		return ""
	}
	checks := map[string]string{
		"INVOICE_DATE":              "20250831",
		"INVOICE_TOTAL":             "549.00",
		"BILLING_START_DATE":        "20250801",
		"INVOICE_DESCRIPTION":       "Acme v. Widget   appeal",
		"LINE_ITEM_NUMBER":          "2",
		"LINE_ITEM_NUMBER_OF_UNITS": "0.33",
		"LINE_ITEM_TOTAL":           "99.00",
		"LINE_ITEM_DATE":            "20250805",
		"LINE_ITEM_DESCRIPTION":     "Call with client",
		"LINE_ITEM_UNIT_COST":       "300.00",
		"TIMEKEEPER_NAME":           "Alice Johnson",
		"CLIENT_MATTER_ID":          "ACME-LIT-1",
	}
	for name, want := range checks {
		if got := field(name); got != want {
			t.Fatalf("%s = %q, want %q", name, got, want)
		}
	}
}

func TestExportFullFailsValidation(t *testing.T) {
	inv := fullInvoice()
	inv.Matter.LawFirmID = ""
	_, err := ledes.ExportFull([]billing.TimeEntry{{ID: "a", TimekeeperID: "TK1", DurationHours: 0}}, inv)
	var verr *ledes.ValidationError
	if !errors.As(err, &verr) || !errors.Is(err, ledes.ErrValidation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	joined := strings.Join(verr.Problems, "\n")
	for _, want := range []string{"LINE_ITEM_NUMBER_OF_UNITS", "LAW_FIRM_ID"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing problem for %s in %q", want, joined)
		}
	}

	if _, err := ledes.ExportFull([]billing.TimeEntry{{ID: "a", TimekeeperID: "ghost", DurationHours: 1}}, fullInvoice()); !errors.Is(err, ledes.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown timekeeper, got %v", err)
	}
}

func TestValidateTotals(t *testing.T) {
	line := ledes.Line{
		"INVOICE_DATE": "20250831", "INVOICE_NUMBER": "1", "CLIENT_ID": "C", "LAW_FIRM_MATTER_ID": "M",
		"LAW_FIRM_ID": "F", "CLIENT_MATTER_ID": "CM", "TIMEKEEPER_ID": "TK",
		"LINE_ITEM_NUMBER_OF_UNITS": "2.00", "LINE_ITEM_UNIT_COST": "100.00",
		"LINE_ITEM_ADJUSTMENT_AMOUNT": "-10.00", "LINE_ITEM_TOTAL": "190.00",
	}
	if err := ledes.Validate([]ledes.Line{line}); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	line["LINE_ITEM_TOTAL"] = "200.00"
	if err := ledes.Validate([]ledes.Line{line}); !errors.Is(err, ledes.ErrValidation) {
		t.Fatalf("expected total mismatch, got %v", err)
	}
}

func TestWriteFileIsAtomic(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	path := filepath.Join(dir, ledes.FileName("ACME/LIT 1", "INV-7"))
	if filepath.Base(path) != "ACME-LIT-1_INV-7_LEDES1998B.txt" {
		t.Fatalf("FileName = %q", filepath.Base(path))
	}
	if err := ledes.WriteFile(path, []byte("first\n")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := ledes.WriteFile(path, []byte("second\n")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "second\n" {
		t.Fatalf("content = %q", data)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, ".*"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
}

func TestWriteFileHonorsHeldLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ACME_INV-1_LEDES1998B.txt")
	held := flock.New(path + ".lock")
	locked, err := held.TryLock()
	if err != nil || !locked {
		t.Fatalf("TryLock: locked=%v err=%v", locked, err)
	}
	if err := ledes.WriteFile(path, []byte("blocked\n")); err == nil {
		t.Fatal("expected WriteFile to refuse while the lock is held")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("invoice written despite held lock: %v", err)
	}
	if err := held.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}

	if err := ledes.WriteFile(path, []byte("first\n")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := os.Stat(path + ".lock"); err != nil {
		t.Fatalf("lock file should remain after writing: %v", err)
	}

	// A holder of the surviving lock file still excludes later writers.
	again := flock.New(path + ".lock")
	if locked, err := again.TryLock(); err != nil || !locked {
		t.Fatalf("TryLock after write: locked=%v err=%v", locked, err)
	}
	defer again.Unlock()
	if err := ledes.WriteFile(path, []byte("second\n")); err == nil {
		t.Fatal("expected WriteFile to refuse while the surviving lock is held")
	}
}
