package ledes

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var requiredHeaderFields = []string{
	"INVOICE_DATE",
	"INVOICE_NUMBER",
	"CLIENT_ID",
	"LAW_FIRM_MATTER_ID",
	"LAW_FIRM_ID",
	"CLIENT_MATTER_ID",
}

var tolerance = decimal.RequireFromString("0.01")

// ValidationError lists every problem found in an invoice.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ledes validation failed: %s", strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Validate checks full-format lines: required header fields, a timekeeper,
// positive units and unit cost, and LINE_ITEM_TOTAL = units × cost +
// adjustment within one cent.
func Validate(lines []Line) error {
	var problems []string
	for i, line := range lines {
		n := i + 1
		must := func(field string, ok bool, msg string) {
			if !ok {
				problems = append(problems, fmt.Sprintf("line %d: %s %s", n, field, msg))
			}
		}
		must("TIMEKEEPER_ID", strings.TrimSpace(line["TIMEKEEPER_ID"]) != "", "is required")
		units := number(line["LINE_ITEM_NUMBER_OF_UNITS"])
		cost := number(line["LINE_ITEM_UNIT_COST"])
		adjustment := number(line["LINE_ITEM_ADJUSTMENT_AMOUNT"])
		total := number(line["LINE_ITEM_TOTAL"])
		must("LINE_ITEM_NUMBER_OF_UNITS", units.IsPositive(), "must be > 0")
		must("LINE_ITEM_UNIT_COST", cost.IsPositive(), "must be > 0")
		expected := units.Mul(cost).Add(adjustment)
		must("LINE_ITEM_TOTAL", total.Sub(expected).Abs().LessThan(tolerance), "must equal units*rate+adjustment")
		for _, field := range requiredHeaderFields {
			must(field, strings.TrimSpace(line[field]) != "", "is required")
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// number parses a field, treating blank or malformed values as zero.
func number(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
