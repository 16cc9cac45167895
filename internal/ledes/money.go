package ledes

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var (
	// ErrNegativeValue reports a negative duration or rate.
	ErrNegativeValue = errors.New("negative value")
	// ErrValidation reports an invoice that fails LEDES validation.
	ErrValidation = errors.New("ledes validation failed")
)

// cents rounds v to two decimal places, half away from zero. Callers reject
// negative inputs first, so this is half-up.
func cents(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

func money(v decimal.Decimal) string {
	return v.StringFixed(2)
}

func checkValue(field, entryID string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: entry %s: %s is not a finite number", ErrValidation, entryID, field)
	}
	if v < 0 {
		return fmt.Errorf("%w: entry %s: %s %.2f", ErrNegativeValue, entryID, field, v)
	}
	return nil
}
