package billing

import (
	"fmt"
	"regexp"
	"strings"
)

// Matter is a client engagement that invoices are billed against.
type Matter struct {
	ClientID        string `json:"client_id"`
	ClientMatterID  string `json:"client_matter_id"`
	LawFirmMatterID string `json:"law_firm_matter_id"`
	LawFirmID       string `json:"law_firm_id"`
	Description     string `json:"description"`
	BillingStart    Date   `json:"billing_start"`
	BillingEnd      Date   `json:"billing_end"`
}

// Timekeeper is a person whose time is billed.
type Timekeeper struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Classification string  `json:"classification"`
	Rate           float64 `json:"rate"`
}

// BindingKind selects what a matching binding does with an activity.
type BindingKind string

const (
	BindingMatter    BindingKind = "matter"
	BindingDoNotBill BindingKind = "do_not_bill"
)

// Binding routes raw activity text to a matter, or drops it.
type Binding struct {
	ID      int64       `json:"id"`
	Kind    BindingKind `json:"kind"`
	Pattern string      `json:"pattern"`
	Target  string      `json:"target,omitempty"`
}

// Compile validates the binding and returns its case-insensitive matcher.
func (b Binding) Compile() (*regexp.Regexp, error) {
	switch b.Kind {
	case BindingMatter:
		if strings.TrimSpace(b.Target) == "" {
			return nil, fmt.Errorf("%w: matter binding %q requires a target", ErrInvalidEntry, b.Pattern)
		}
	case BindingDoNotBill:
	default:
		return nil, fmt.Errorf("%w: unknown binding kind %q", ErrInvalidEntry, b.Kind)
	}
	if strings.TrimSpace(b.Pattern) == "" {
		return nil, fmt.Errorf("%w: binding pattern is required", ErrInvalidEntry)
	}
	re, err := regexp.Compile("(?i)" + b.Pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: binding pattern %q: %v", ErrInvalidEntry, b.Pattern, err)
	}
	return re, nil
}
